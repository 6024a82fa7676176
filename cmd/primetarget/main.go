// Command primetarget runs the prime/target listening experiment, prints the
// sequenced trial lists of a session and re-exports gaze reports.
package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jrbritton/sexuality-stereotype-eyetracking/engine"
	"github.com/jrbritton/sexuality-stereotype-eyetracking/session"
)

// SDL wants every call on the main thread.
func init() {
	runtime.LockOSThread()
}

var (
	logger         *zap.Logger
	verbose        bool
	experimentPath string
)

var rootCmd = &cobra.Command{
	Use:   "primetarget",
	Short: "Prime/target listening experiment with eye tracking",
	Long: `Presents spoken prime and target sentences, asks occasional yes/no
comprehension questions and records gaze during every trial.

Each participant gets one stimulus table, selected by subgroup, version and
rotation, shuffled and sorted into one of 24 section orders.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
	rootCmd.PersistentFlags().StringVar(&experimentPath, "experiment", "", "Experiment settings file (YAML); built-in settings when empty")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})

	rootCmd.AddCommand(runCmd, planCmd, exportCmd)
}

const (
	exitOK      = engine.ExitOK
	exitFailure = engine.ExitFailure
	exitConfig  = engine.ExitConfig
)

func exitCode(err error) int {
	if errors.Is(err, errUsage) {
		return exitConfig
	}
	return engine.ExitCode(err)
}

var errUsage = errors.New("usage")

func main() {
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, session.ErrQuit) {
		fmt.Fprintln(os.Stderr, "primetarget:", err)
	}
	os.Exit(exitCode(err))
}
