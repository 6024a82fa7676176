package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jrbritton/sexuality-stereotype-eyetracking/sequence"
)

// Experiment holds everything about the study that does not change between
// participants: where files live, how long each screen lasts and what it says.
type Experiment struct {
	Paths   Paths   `yaml:"paths"`
	Timing  Timing  `yaml:"timing"`
	Breaks  Breaks  `yaml:"breaks"`
	Keys    Keys    `yaml:"keys"`
	Text    Text    `yaml:"text"`
	Display Display `yaml:"display"`
	Export  Export  `yaml:"export"`
}

type Paths struct {
	StimLists string `yaml:"stim_lists"`
	Primes    string `yaml:"primes"`
	Targets   string `yaml:"targets"`
	Results   string `yaml:"results"`
	Data      string `yaml:"data"`
}

type Timing struct {
	Welcome          time.Duration `yaml:"welcome"`
	Gap              time.Duration `yaml:"gap"`
	PostTarget       time.Duration `yaml:"post_target"`
	Blank            time.Duration `yaml:"blank"`
	AfterCalibration time.Duration `yaml:"after_calibration"`
	// SampleInterval is the gaze sampling period while the tracker records.
	SampleInterval   time.Duration `yaml:"sample_interval"`
}

type Breaks struct {
	Main sequence.Breaks `yaml:"main"`
	Test sequence.Breaks `yaml:"test"`
}

type Keys struct {
	Continue string `yaml:"continue"`
	Quit     string `yaml:"quit"`
}

type Text struct {
	Welcome            string `yaml:"welcome"`
	InstructionsFemale string `yaml:"instructions_female"`
	InstructionsMale   string `yaml:"instructions_male"`
	Break              string `yaml:"break"`
	PracticeEnd        string `yaml:"practice_end"`
	ThankYou           string `yaml:"thank_you"`
	LegendNoLeft       string `yaml:"legend_no_left"`
	LegendYesLeft      string `yaml:"legend_yes_left"`
}

type Display struct {
	Width         int    `yaml:"width"`
	Height        int    `yaml:"height"`
	Fullscreen    bool   `yaml:"fullscreen"`
	VSync         bool   `yaml:"vsync"`
	FontFile      string `yaml:"font_file"`
	FontSize      int    `yaml:"font_size"`
	WelcomeImage  string `yaml:"welcome_image"`
	Background    Color  `yaml:"background"`
	TextColor     Color  `yaml:"text_color"`
	FixationColor Color  `yaml:"fixation_color"`
}

type Export struct {
	EventType string   `yaml:"event_type"`
	Fields    []string `yaml:"fields"`
	Start     string   `yaml:"start"`
	End       string   `yaml:"end"`
}

const instructionsBody = `
实验开始后你将会听到一系列句子，
你的任务是通过听到的句子内容进
行判断。在一句话结束后，你可能会
看见一个关于该句子内容的问题，
你可以通过键盘左右键选择你认为是
或不是。

请以尽量快的速度准确地做出判断。

请在实验过程中保持专注!
`

// DefaultExperiment reproduces the settings the study was run with.
func DefaultExperiment() *Experiment {
	return &Experiment{
		Paths: Paths{
			StimLists: "stim_lists",
			Primes:    "../primes",
			Targets:   "../targets",
			Results:   "../results",
			Data:      ".",
		},
		Timing: Timing{
			Welcome:          3 * time.Second,
			Gap:              1500 * time.Millisecond,
			PostTarget:       2700 * time.Millisecond,
			Blank:            time.Second,
			AfterCalibration: time.Second,
			SampleInterval:   time.Second / 60,
		},
		Breaks: Breaks{
			Main: sequence.BreaksFor(sequence.Female),
			Test: sequence.BreaksFor(sequence.Test),
		},
		Keys: Keys{
			Continue: "return",
			Quit:     "q",
		},
		Text: Text{
			Welcome: "Welcome to this experiment!",
			InstructionsFemale: instructionsBody + `
接下来你将会听到一些由以普通话作为
母语的成年女性说出的语句，请你通
过听见的内容回答与句子内容相关
的问题。`,
			InstructionsMale: instructionsBody + `
接下来你将会听到一些由以普通话作为
母语的成年男性说出的语句，请你通
过听见的内容回答与句子内容相关
的问题。`,
			Break:         "请休息一下。\n\n当您准备好继续时，请按`enter'。",
			PracticeEnd:   "练习块已经完成。\n\n如果您准备好开始主要实验，请按\"enter\"。",
			ThankYou:      "The experiment is complete.\nThank you for taking part!\nPlease press 'enter' to end the experiment.",
			LegendNoLeft:  "左 = 不是    |    右 = 是的",
			LegendYesLeft: "左 = 是的    |    右 = 不是",
		},
		Display: Display{
			Width:         1280,
			Height:        1024,
			Fullscreen:    true,
			VSync:         true,
			FontSize:      32,
			Background:    Color{R: 128, G: 128, B: 128, A: 255},
			TextColor:     Color{R: 230, G: 255, B: 191, A: 255},
			FixationColor: Color{R: 255, G: 255, B: 255, A: 255},
		},
		Export: Export{
			EventType: "MonocularEyeSample",
			Start:     "trial_start",
			End:       "trial_end",
		},
	}
}

// LoadExperiment overlays the YAML file at path on the defaults.
func LoadExperiment(path string) (*Experiment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	exp, err := LoadExperimentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return exp, nil
}

func LoadExperimentFromReader(r io.Reader) (*Experiment, error) {
	exp := DefaultExperiment()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(exp); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := exp.Validate(); err != nil {
		return nil, err
	}
	return exp, nil
}

func (e *Experiment) Validate() error {
	var errs []error

	for name, d := range map[string]time.Duration{
		"welcome":           e.Timing.Welcome,
		"gap":               e.Timing.Gap,
		"post_target":       e.Timing.PostTarget,
		"blank":             e.Timing.Blank,
		"after_calibration": e.Timing.AfterCalibration,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("timing.%s must not be negative", name))
		}
	}
	if e.Timing.SampleInterval <= 0 {
		errs = append(errs, errors.New("timing.sample_interval must be positive"))
	}
	for name, b := range map[string]sequence.Breaks{"main": e.Breaks.Main, "test": e.Breaks.Test} {
		if b.First < 1 || b.Second <= b.First || b.Third <= b.Second {
			errs = append(errs, fmt.Errorf("breaks.%s must be strictly increasing positive counts, got %d/%d/%d", name, b.First, b.Second, b.Third))
		}
	}
	if e.Keys.Continue == "" || e.Keys.Quit == "" {
		errs = append(errs, errors.New("keys.continue and keys.quit are required"))
	}
	if e.Keys.Quit == "left" || e.Keys.Quit == "right" {
		errs = append(errs, fmt.Errorf("keys.quit %q collides with an answer key", e.Keys.Quit))
	}
	if e.Display.Width <= 0 || e.Display.Height <= 0 {
		errs = append(errs, fmt.Errorf("display size %dx%d invalid", e.Display.Width, e.Display.Height))
	}
	if e.Paths.StimLists == "" {
		errs = append(errs, errors.New("paths.stim_lists is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

func (e *Experiment) BreaksFor(rot sequence.Rotation) sequence.Breaks {
	if rot == sequence.Test {
		return e.Breaks.Test
	}
	return e.Breaks.Main
}

// Instructions picks the text matching the voice set; the test rotation
// uses the female set.
func (e *Experiment) Instructions(rot sequence.Rotation) string {
	if rot == sequence.Male {
		return e.Text.InstructionsMale
	}
	return e.Text.InstructionsFemale
}

func (e *Experiment) Source() sequence.Source {
	return sequence.Source{Dir: e.Paths.StimLists}
}

func (e *Experiment) ResultsDir(s Session) string {
	return filepath.Join(e.Paths.Results, fmt.Sprintf("subgroup%d_version%d", s.Subgroup(), s.Version()))
}

func (e *Experiment) ResultsPath(s Session) string {
	return filepath.Join(e.ResultsDir(s), s.Code()+"_results.csv")
}

func (e *Experiment) ManifestPath(s Session) string {
	return filepath.Join(e.ResultsDir(s), s.Code()+"_session.yaml")
}

// dataStem names the datastore and report of one session. The start time
// keeps a re-run of the same participant from reopening an earlier file.
func (e *Experiment) dataStem(s Session) string {
	return s.Code() + "_" + s.Started().Format("20060102-150405")
}

func (e *Experiment) DataPath(s Session) string {
	return filepath.Join(e.Paths.Data, e.dataStem(s)+".db")
}

func (e *Experiment) ReportPath(s Session) string {
	return filepath.Join(e.Paths.Data, e.dataStem(s)+"_"+strings.ToLower(e.Export.EventType)+".csv")
}
