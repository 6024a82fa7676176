package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/jrbritton/sexuality-stereotype-eyetracking/config"
	"github.com/jrbritton/sexuality-stereotype-eyetracking/sequence"
)

var (
	planFlags sessionFlags
	planYAML  bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the sequenced trial lists of a session without presenting it",
	Long: `Loads the stimulus tables of a session, sequences them with the given seed
and prints the practice and main lists together with the question each
trial would show. With the seed from a session manifest this reproduces the
order that participant saw.`,
	Args: cobra.NoArgs,
	RunE: runPlan,
}

func init() {
	planFlags.bind(planCmd)
	planCmd.Flags().BoolVar(&planYAML, "yaml", false, "Print the plan as YAML")
}

// plannedTrial is one line of the printed plan.
type plannedTrial struct {
	Block    string `yaml:"block"`
	Number   int    `yaml:"number"`
	Section  int    `yaml:"section"`
	ID       string `yaml:"id"`
	Prime    string `yaml:"prime"`
	Target   string `yaml:"target"`
	Question string `yaml:"question,omitempty"`
	Legend   string `yaml:"legend,omitempty"`
	Break    bool   `yaml:"break_before,omitempty"`
}

type printedPlan struct {
	Participant string         `yaml:"participant"`
	Seed        uint64         `yaml:"seed"`
	OrderKey    int            `yaml:"order_key"`
	Order       []int          `yaml:"order"`
	Trials      []plannedTrial `yaml:"trials"`
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := planFlags.session()
	if err != nil {
		return err
	}
	exp, err := loadExperiment()
	if err != nil {
		return err
	}
	rows, practice, err := exp.Source().Load(cfg.Subgroup(), cfg.Version(), cfg.Rotation())
	if err != nil {
		return err
	}

	p := buildPlan(cfg, exp, rows, practice)
	logger.Debug("plan built",
		zap.String("participant", cfg.Participant()),
		zap.Uint64("seed", cfg.Seed()),
		zap.Int("order_key", p.OrderKey))

	if planYAML {
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		defer enc.Close()
		return enc.Encode(p)
	}
	return writePlanTable(cmd.OutOrStdout(), p)
}

// buildPlan draws exactly what a session with the same seed draws: the plan
// first, then one question gate per trial, practice before main.
func buildPlan(cfg config.Session, exp *config.Experiment, rows, practice []sequence.Row) printedPlan {
	rng := sequence.NewRand(cfg.Seed())
	plan := sequence.Build(rows, practice, exp.BreaksFor(cfg.Rotation()), rng)

	out := printedPlan{
		Participant: cfg.Participant(),
		Seed:        cfg.Seed(),
		OrderKey:    plan.OrderKey,
		Order:       plan.Order[:],
	}
	add := func(block string, list []sequence.Row, breaks *sequence.Breaks) {
		for i, r := range list {
			t := plannedTrial{
				Block:   block,
				Number:  i + 1,
				Section: r.Section,
				ID:      r.ID,
				Prime:   r.Prime,
				Target:  r.Target,
				Break:   breaks != nil && breaks.At(i+1),
			}
			if q := sequence.Gate(rng); q.Show && r.Question != "" {
				t.Question = r.Question
				t.Legend = exp.Text.LegendNoLeft
				if q.Polarity == sequence.YesIsLeft {
					t.Legend = exp.Text.LegendYesLeft
				}
			}
			out.Trials = append(out.Trials, t)
		}
	}
	add("practice", plan.Practice, nil)
	add("main", plan.Main, &plan.Breaks)
	return out
}

func writePlanTable(w io.Writer, p printedPlan) error {
	fmt.Fprintf(w, "participant %s  seed %d  order %d %v\n\n", p.Participant, p.Seed, p.OrderKey, p.Order)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "BLOCK\tTRIAL\tSECTION\tID\tPRIME\tTARGET\tQUESTION\tLEGEND")
	for _, t := range p.Trials {
		if t.Break {
			_, _ = fmt.Fprintf(tw, "%s\t-\t\tbreak\t\t\t\t\n", t.Block)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%s\t%s\t%s\n",
			t.Block, t.Number, t.Section, t.ID, t.Prime, t.Target, t.Question, t.Legend)
	}
	return tw.Flush()
}
