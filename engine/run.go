package engine

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/Zyko0/go-sdl3/sdl"
	"github.com/Zyko0/go-sdl3/ttf"
	"go.uber.org/zap"

	"github.com/jrbritton/sexuality-stereotype-eyetracking/config"
	"github.com/jrbritton/sexuality-stereotype-eyetracking/eventlog"
	"github.com/jrbritton/sexuality-stereotype-eyetracking/sequence"
	"github.com/jrbritton/sexuality-stereotype-eyetracking/session"
	"github.com/jrbritton/sexuality-stereotype-eyetracking/tracker"
	"github.com/jrbritton/sexuality-stereotype-eyetracking/trigger"
)

type Options struct {
	Session    config.Session
	Experiment *config.Experiment
	// DLPDevice is the serial device of an optional trigger box.
	DLPDevice string
	Logger    *zap.Logger
}

// Run loads the stimulus tables, opens every device and presents the session.
// Table and stimulus problems are reported before any window opens.
func Run(ctx context.Context, opts Options) (session.Outcome, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	cfg, exp := opts.Session, opts.Experiment

	main, practice, err := session.Load(cfg, exp)
	if err != nil {
		return session.Outcome{}, err
	}
	log.Info("stimulus tables loaded",
		zap.String("dir", exp.Paths.StimLists),
		zap.Int("main", len(main)),
		zap.Int("practice", len(practice)))

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_AUDIO | sdl.INIT_EVENTS); err != nil {
		return session.Outcome{}, fmt.Errorf("engine: SDL init: %w", err)
	}
	defer sdl.Quit()

	if err := ttf.Init(); err != nil {
		return session.Outcome{}, fmt.Errorf("engine: ttf init: %w", err)
	}
	defer ttf.Quit()

	display, err := OpenDisplay("Prime/target experiment", exp.Display, exp.Keys.Quit, log)
	if err != nil {
		return session.Outcome{}, err
	}
	defer display.Close()

	mixer, err := OpenMixer()
	if err != nil {
		return session.Outcome{}, err
	}
	defer mixer.Close()

	sounds := NewSoundCache(log)
	if err := sounds.Preload(soundPaths(exp, main, practice)); err != nil {
		return session.Outcome{}, err
	}

	store, err := eventlog.Open(exp.DataPath(cfg), eventlog.WithLogger(log))
	if err != nil {
		return session.Outcome{}, err
	}
	defer store.Close()

	bg := exp.Display.Background
	gaze, err := tracker.Open(cfg.Tracker(), tracker.Options{
		Logger:     log,
		Pointer:    display,
		Background: [3]uint8{bg.R, bg.G, bg.B},
	})
	if err != nil {
		return session.Outcome{}, err
	}

	deps := session.Deps{
		Surface: display,
		Audio:   NewPlayer(mixer, sounds),
		Input:   display,
		Tracker: gaze,
		Events:  store,
		Logger:  log,
	}
	if opts.DLPDevice != "" {
		dlp, err := trigger.Open(opts.DLPDevice, log)
		if err != nil {
			log.Error("trigger box unavailable, continuing without it", zap.String("device", opts.DLPDevice), zap.Error(err))
		} else {
			defer dlp.Close()
			deps.Markers = dlp
		}
	}

	s, err := session.New(cfg, exp, main, practice, deps)
	if err != nil {
		return session.Outcome{}, err
	}
	return s.Run(ctx)
}

func soundPaths(exp *config.Experiment, lists ...[]sequence.Row) []string {
	var paths []string
	for _, rows := range lists {
		for _, r := range rows {
			paths = append(paths,
				filepath.Join(exp.Paths.Primes, r.Prime),
				filepath.Join(exp.Paths.Targets, r.Target))
		}
	}
	return paths
}
