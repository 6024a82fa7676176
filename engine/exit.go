package engine

import (
	"errors"

	"github.com/jrbritton/sexuality-stereotype-eyetracking/config"
	"github.com/jrbritton/sexuality-stereotype-eyetracking/sequence"
	"github.com/jrbritton/sexuality-stereotype-eyetracking/session"
	"github.com/jrbritton/sexuality-stereotype-eyetracking/tracker"
)

// Process exit codes shared by the commands.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitConfig  = 2
)

// ExitCode maps an error from Run onto the process status. Quitting is a
// normal end since results have been written by then.
func ExitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, session.ErrQuit):
		return ExitOK
	case IsConfigError(err):
		return ExitConfig
	}
	return ExitFailure
}

// IsConfigError reports errors the operator fixes in the session fields,
// the settings file or the stimulus directory.
func IsConfigError(err error) bool {
	return errors.Is(err, config.ErrInvalid) ||
		errors.Is(err, sequence.ErrNoTable) ||
		errors.Is(err, sequence.ErrMalformedRow) ||
		errors.Is(err, sequence.ErrMissingStimulus) ||
		errors.Is(err, tracker.ErrUnknownTracker) ||
		errors.Is(err, tracker.ErrNoDriver) ||
		errors.Is(err, ErrCancelled)
}
