package session

import (
	"errors"
	"time"

	"github.com/jrbritton/sexuality-stereotype-eyetracking/eventlog"
)

// ErrQuit reports that the operator stopped the session. Results recorded up
// to that point are still written.
var ErrQuit = errors.New("session: quit by operator")

type ScreenKind int

const (
	ScreenBlank ScreenKind = iota
	ScreenFixation
	ScreenText
	ScreenWelcome
	ScreenQuestion
)

// Screen is what the surface should show next. Legend is only used by
// question screens, below the question text.
type Screen struct {
	Kind   ScreenKind
	Text   string
	Legend string
}

func Blank() Screen              { return Screen{Kind: ScreenBlank} }
func Fixation() Screen           { return Screen{Kind: ScreenFixation} }
func Text(body string) Screen    { return Screen{Kind: ScreenText, Text: body} }
func Welcome(body string) Screen { return Screen{Kind: ScreenWelcome, Text: body} }

func Question(q, legend string) Screen {
	return Screen{Kind: ScreenQuestion, Text: q, Legend: legend}
}

// Surface is the participant display. Draw stages a screen, Present makes it
// visible. Wait blocks for d and returns ErrQuit if the window is closed.
type Surface interface {
	Draw(s Screen)
	Present() error
	Wait(d time.Duration) error
}

type Sound interface {
	Duration() time.Duration
}

// AudioPlayer starts playback and returns immediately; callers wait for
// Duration themselves.
type AudioPlayer interface {
	Load(path string) (Sound, error)
	Play(s Sound) error
}

// Input reports key names in lower case ("left", "return", "q").
type Input interface {
	// AwaitKey blocks until one of keys is pressed, or any key when keys is
	// empty.
	AwaitKey(keys ...string) (string, error)
	// PollKeys drains the keys pressed since the last call.
	PollKeys() []string
}

// Recorder is the session's event datastore.
type Recorder interface {
	eventlog.Sink
	LogSample(s eventlog.Sample) error
	Export(req eventlog.ExportRequest) (eventlog.ExportResult, error)
}
