// Package session runs one participant through the practice and main blocks
// and writes what was recorded, even when the operator stops early.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jrbritton/sexuality-stereotype-eyetracking/config"
	"github.com/jrbritton/sexuality-stereotype-eyetracking/eventlog"
	"github.com/jrbritton/sexuality-stereotype-eyetracking/results"
	"github.com/jrbritton/sexuality-stereotype-eyetracking/sequence"
	"github.com/jrbritton/sexuality-stereotype-eyetracking/tracker"
)

// Deps are the devices a session talks to. Markers is optional and receives
// every event alongside Events (a TTL trigger box, for instance).
type Deps struct {
	Surface Surface
	Audio   AudioPlayer
	Input   Input
	Tracker tracker.Tracker
	Events  Recorder
	Markers eventlog.Sink
	Logger  *zap.Logger
}

func (d Deps) check() error {
	var errs []error
	if d.Surface == nil {
		errs = append(errs, errors.New("no surface"))
	}
	if d.Audio == nil {
		errs = append(errs, errors.New("no audio player"))
	}
	if d.Input == nil {
		errs = append(errs, errors.New("no input"))
	}
	if d.Tracker == nil {
		errs = append(errs, errors.New("no tracker"))
	}
	if d.Events == nil {
		errs = append(errs, errors.New("no event store"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("session: %w", errors.Join(errs...))
	}
	return nil
}

// Session is a sequenced experiment bound to its devices.
type Session struct {
	cfg    config.Session
	exp    *config.Experiment
	plan   sequence.Plan
	deps   Deps
	runner *Runner
	log    *zap.Logger
	now    func() time.Time
}

// Outcome summarises a finished or interrupted run.
type Outcome struct {
	ResultsPath  string
	ManifestPath string
	Report       eventlog.ExportResult
	Trials       int
	Presented    int
	Answered     int
	Quit         bool
}

// Load reads the main and practice tables for cfg and checks that every
// referenced sound exists. Any failure here is a configuration error and no
// trial may be shown.
func Load(cfg config.Session, exp *config.Experiment) (main, practice []sequence.Row, err error) {
	main, practice, err = exp.Source().Load(cfg.Subgroup(), cfg.Version(), cfg.Rotation())
	if err != nil {
		return nil, nil, err
	}
	if err := sequence.VerifyAudio(main, exp.Paths.Primes, exp.Paths.Targets); err != nil {
		return nil, nil, fmt.Errorf("session: main list: %w", err)
	}
	if err := sequence.VerifyAudio(practice, exp.Paths.Primes, exp.Paths.Targets); err != nil {
		return nil, nil, fmt.Errorf("session: practice list: %w", err)
	}
	return main, practice, nil
}

// New sequences main and practice with the session seed. The same seed and
// tables always give the same plan and the same question draws.
func New(cfg config.Session, exp *config.Experiment, main, practice []sequence.Row, deps Deps) (*Session, error) {
	if err := deps.check(); err != nil {
		return nil, err
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(
		zap.String("participant", cfg.Participant()),
		zap.String("session", cfg.ID().String()))

	rng := sequence.NewRand(cfg.Seed())
	plan := sequence.Build(main, practice, exp.BreaksFor(cfg.Rotation()), rng)
	log.Info("session planned",
		zap.Uint64("seed", cfg.Seed()),
		zap.Int("order_key", plan.OrderKey),
		zap.Ints("order", plan.Order[:]),
		zap.Int("practice", len(plan.Practice)),
		zap.Int("main", len(plan.Main)))

	events := eventlog.Sink(deps.Events)
	if deps.Markers != nil {
		events = eventlog.Tee(deps.Events, deps.Markers)
	}
	return &Session{
		cfg:  cfg,
		exp:  exp,
		plan: plan,
		deps: deps,
		log:  log,
		now:  time.Now,
		runner: &Runner{
			exp:     exp,
			surface: deps.Surface,
			audio:   deps.Audio,
			input:   deps.Input,
			tracker: deps.Tracker,
			events:  events,
			samples: deps.Events,
			rng:     rng,
			log:     log,
		},
	}, nil
}

func (s *Session) Plan() sequence.Plan { return s.plan }

// Run presents the whole session. It returns ErrQuit, together with a valid
// Outcome, when the operator quits; results are written in that case too.
func (s *Session) Run(ctx context.Context) (Outcome, error) {
	defer func() {
		if err := s.deps.Tracker.Disconnect(); err != nil {
			s.log.Error("tracker disconnect failed", zap.Error(err))
		}
	}()

	main := &ResponseLog{}
	runErr := s.present(ctx, main)
	quit := errors.Is(runErr, ErrQuit)
	if runErr != nil && !quit {
		s.log.Error("session stopped", zap.Error(runErr))
	}

	out, err := s.save(main, quit)
	if err != nil {
		return out, errors.Join(runErr, err)
	}
	if runErr != nil {
		return out, runErr
	}

	if err := s.screen(Text(s.exp.Text.ThankYou)); err != nil {
		return out, err
	}
	if _, err := s.deps.Input.AwaitKey(s.exp.Keys.Continue); err != nil {
		return out, err
	}
	return out, nil
}

func (s *Session) present(ctx context.Context, main *ResponseLog) error {
	s.runner.calibrate(ctx)
	if err := s.runner.events.LogEvent(MsgSessionStart, eventlog.CategorySession); err != nil {
		s.log.Warn("event not logged", zap.Error(err))
	}

	if err := s.screen(Welcome(s.exp.Text.Welcome)); err != nil {
		return err
	}
	if err := s.deps.Surface.Wait(s.exp.Timing.Welcome); err != nil {
		return err
	}
	if err := s.confirm(Text(s.exp.Instructions(s.cfg.Rotation()))); err != nil {
		return err
	}

	practice := Block{Name: "practice", Rows: s.plan.Practice}
	if err := s.runner.RunBlock(ctx, practice, &ResponseLog{}); err != nil {
		return err
	}
	if err := s.confirm(Text(s.exp.Text.PracticeEnd)); err != nil {
		return err
	}

	b := s.plan.Breaks
	block := Block{Name: "main", Rows: s.plan.Main, Breaks: &b, Messages: true}
	return s.runner.RunBlock(ctx, block, main)
}

func (s *Session) screen(sc Screen) error {
	s.deps.Surface.Draw(sc)
	return s.deps.Surface.Present()
}

// confirm shows sc until the continue key. The quit key stops the session.
func (s *Session) confirm(sc Screen) error {
	if err := s.screen(sc); err != nil {
		return err
	}
	key, err := s.deps.Input.AwaitKey(s.exp.Keys.Continue, s.exp.Keys.Quit)
	if err != nil {
		return err
	}
	if key == s.exp.Keys.Quit {
		return ErrQuit
	}
	return nil
}

// save writes the results table, the gaze report and the manifest. A report
// that cannot be exported is fatal after a complete run and only logged after
// a quit, when there may be nothing to export yet.
func (s *Session) save(log *ResponseLog, quit bool) (Outcome, error) {
	out := Outcome{
		ResultsPath:  s.exp.ResultsPath(s.cfg),
		ManifestPath: s.exp.ManifestPath(s.cfg),
		Trials:       len(s.plan.Main),
		Presented:    log.Len(),
		Answered:     log.Answered(),
		Quit:         quit,
	}

	if err := results.Write(out.ResultsPath, s.plan.Main, log.Entries()); err != nil {
		return out, err
	}
	s.log.Info("results saved",
		zap.String("path", out.ResultsPath),
		zap.Int("presented", out.Presented),
		zap.Int("answered", out.Answered))

	report, exportErr := s.deps.Events.Export(eventlog.ExportRequest{
		EventType: s.exp.Export.EventType,
		Fields:    s.exp.Export.Fields,
		Start:     s.exp.Export.Start,
		End:       s.exp.Export.End,
		Path:      s.exp.ReportPath(s.cfg),
	})
	if exportErr == nil {
		out.Report = report
	}

	if err := results.WriteManifest(out.ManifestPath, s.manifest(out)); err != nil {
		return out, errors.Join(err, exportErr)
	}

	if exportErr != nil {
		if quit {
			s.log.Warn("event report not exported", zap.Error(exportErr))
			return out, nil
		}
		return out, exportErr
	}
	return out, nil
}

func (s *Session) manifest(out Outcome) results.Manifest {
	return results.Manifest{
		SessionID:   s.cfg.ID().String(),
		Participant: s.cfg.Participant(),
		Subgroup:    s.cfg.Subgroup(),
		Version:     s.cfg.Version(),
		Rotation:    s.cfg.Rotation().String(),
		Tracker:     s.cfg.Tracker(),
		Seed:        s.cfg.Seed(),
		OrderKey:    s.plan.OrderKey,
		Order:       s.plan.Order[:],
		Trials:      out.Trials,
		Presented:   out.Presented,
		Answered:    out.Answered,
		Quit:        out.Quit,
		Started:     s.cfg.Started(),
		Finished:    s.now(),
		Results:     out.ResultsPath,
		Datastore:   s.exp.DataPath(s.cfg),
		Run:         out.Report.Run,
	}
}
