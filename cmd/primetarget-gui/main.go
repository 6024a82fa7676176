// Command primetarget-gui opens the setup dialog, pre-filled from the last
// session, and runs the experiment with the fields entered there.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"runtime"

	"github.com/Zyko0/go-sdl3/bin/binimg"
	"github.com/Zyko0/go-sdl3/bin/binsdl"
	"github.com/Zyko0/go-sdl3/bin/binttf"
	"go.uber.org/zap"

	"github.com/jrbritton/sexuality-stereotype-eyetracking/config"
	"github.com/jrbritton/sexuality-stereotype-eyetracking/engine"
	"github.com/jrbritton/sexuality-stereotype-eyetracking/session"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	os.Exit(run())
}

func run() int {
	defer binsdl.Load().Unload()
	defer binimg.Load().Unload()
	defer binttf.Load().Unload()

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		return engine.ExitFailure
	}
	defer func() { _ = log.Sync() }()

	cache := config.LoadCache(config.CacheFile)
	fields, err := engine.RunSetupDialog(cache.Apply(config.Fields{Tracker: "mouse"}))
	if errors.Is(err, engine.ErrCancelled) {
		log.Info("setup cancelled")
		return engine.ExitOK
	}
	if err != nil {
		log.Error("setup failed", zap.Error(err))
		return engine.ExitFailure
	}
	if err := config.CacheFrom(fields, cache.Experiment).Save(config.CacheFile); err != nil {
		log.Warn("setup cache not saved", zap.Error(err))
	}

	exp := config.DefaultExperiment()
	if cache.Experiment != "" {
		exp, err = config.LoadExperiment(cache.Experiment)
		if err != nil {
			log.Error("experiment settings not loaded", zap.String("path", cache.Experiment), zap.Error(err))
			return engine.ExitConfig
		}
	}

	cfg, err := config.NewSession(fields, rand.Uint64())
	if err != nil {
		log.Error("invalid session", zap.Error(err))
		return engine.ExitCode(err)
	}

	out, err := engine.Run(context.Background(), engine.Options{
		Session:    cfg,
		Experiment: exp,
		Logger:     log.With(zap.String("participant", cfg.Participant())),
	})
	switch {
	case errors.Is(err, session.ErrQuit):
		log.Info("session quit", zap.String("results", out.ResultsPath), zap.Int("presented", out.Presented))
	case err != nil:
		log.Error("session failed", zap.Bool("config", engine.IsConfigError(err)), zap.Error(err))
	default:
		log.Info("session complete", zap.String("results", out.ResultsPath), zap.String("report", out.Report.Path))
	}
	return engine.ExitCode(err)
}
