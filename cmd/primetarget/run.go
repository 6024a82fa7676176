package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"

	"github.com/Zyko0/go-sdl3/bin/binimg"
	"github.com/Zyko0/go-sdl3/bin/binsdl"
	"github.com/Zyko0/go-sdl3/bin/binttf"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jrbritton/sexuality-stereotype-eyetracking/config"
	"github.com/jrbritton/sexuality-stereotype-eyetracking/engine"
)

// sessionFlags are shared by run and plan.
type sessionFlags struct {
	fields config.Fields
	seed   uint64
}

func (f *sessionFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.fields.Participant, "participant", "p", "", "Participant number")
	fl.IntVar(&f.fields.Subgroup, "subgroup", 0, "Subgroup (1 or 2)")
	fl.IntVar(&f.fields.Version, "version", 0, "Version (1 or 2)")
	fl.StringVar(&f.fields.Rotation, "rotation", "", "Rotation: f, m or test")
	fl.StringVar(&f.fields.Tracker, "tracker", "mouse", "Eye tracker: mouse, eyelink, gazepoint or tobii")
	fl.Uint64Var(&f.seed, "seed", 0, "Sequencing seed; drawn at random when 0")
}

// session freezes the flags. A zero seed is replaced by a random one, which
// ends up in the session manifest.
func (f *sessionFlags) session() (config.Session, error) {
	seed := f.seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return config.NewSession(f.fields, seed)
}

func loadExperiment() (*config.Experiment, error) {
	if experimentPath == "" {
		return config.DefaultExperiment(), nil
	}
	exp, err := config.LoadExperiment(experimentPath)
	if err != nil {
		return nil, err
	}
	logger.Info("experiment settings loaded", zap.String("path", experimentPath))
	return exp, nil
}

var (
	runFlags  sessionFlags
	dlpDevice string
	useDialog bool
	cachePath string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one participant session",
	Long: `Opens the participant window, calibrates the eye tracker and presents the
practice and main blocks. Results are written under the results directory
even when the session is stopped with the quit key.

With --dialog the session fields are asked for in a setup window that is
pre-filled from the previous session.`,
	Args: cobra.NoArgs,
	RunE: runSession,
}

func init() {
	runFlags.bind(runCmd)
	runCmd.Flags().StringVar(&dlpDevice, "dlp", "", "Serial device of a DLP-IO8-G trigger box")
	runCmd.Flags().BoolVar(&useDialog, "dialog", false, "Ask for the session fields in a setup window")
	runCmd.Flags().StringVar(&cachePath, "cache", config.CacheFile, "Setup cache file")
}

func runSession(cmd *cobra.Command, args []string) error {
	defer binsdl.Load().Unload()
	defer binimg.Load().Unload()
	defer binttf.Load().Unload()

	if useDialog {
		cache := config.LoadCache(cachePath)
		fields, err := engine.RunSetupDialog(cache.Apply(runFlags.fields))
		if err != nil {
			return err
		}
		runFlags.fields = fields
		if err := config.CacheFrom(fields, experimentPath).Save(cachePath); err != nil {
			logger.Warn("setup cache not saved", zap.String("path", cachePath), zap.Error(err))
		}
	}

	cfg, err := runFlags.session()
	if err != nil {
		return err
	}
	exp, err := loadExperiment()
	if err != nil {
		return err
	}

	log := logger.With(zap.String("participant", cfg.Participant()))
	log.Info("session starting",
		zap.String("session", cfg.ID().String()),
		zap.Int("subgroup", cfg.Subgroup()),
		zap.Int("version", cfg.Version()),
		zap.String("rotation", cfg.Rotation().String()),
		zap.String("tracker", cfg.Tracker()),
		zap.Uint64("seed", cfg.Seed()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, err := engine.Run(ctx, engine.Options{
		Session:    cfg,
		Experiment: exp,
		DLPDevice:  dlpDevice,
		Logger:     log,
	})
	if out.ResultsPath != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Results saved to %s (%d of %d trials, %d answered)\n",
			out.ResultsPath, out.Presented, out.Trials, out.Answered)
	}
	if out.Report.Path != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %d events to %s\n", out.Report.Events, out.Report.Path)
	}
	return err
}
