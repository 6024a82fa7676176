package session

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"slices"
	"time"

	"github.com/jrbritton/sexuality-stereotype-eyetracking/eventlog"
	"github.com/jrbritton/sexuality-stereotype-eyetracking/tracker"
)

type fakeSurface struct {
	staged  Screen
	shown   []Screen
	waits   []time.Duration
	elapsed time.Duration
	failing error
}

func (s *fakeSurface) Draw(sc Screen) { s.staged = sc }

func (s *fakeSurface) Present() error {
	if s.failing != nil {
		return s.failing
	}
	s.shown = append(s.shown, s.staged)
	return nil
}

func (s *fakeSurface) Wait(d time.Duration) error {
	s.waits = append(s.waits, d)
	s.elapsed += d
	return nil
}

func (s *fakeSurface) count(kind ScreenKind, text string) int {
	n := 0
	for _, sc := range s.shown {
		if sc.Kind == kind && sc.Text == text {
			n++
		}
	}
	return n
}

func (s *fakeSurface) kinds(kind ScreenKind) []Screen {
	var out []Screen
	for _, sc := range s.shown {
		if sc.Kind == kind {
			out = append(out, sc)
		}
	}
	return out
}

type fakeSound time.Duration

func (d fakeSound) Duration() time.Duration { return time.Duration(d) }

const soundLength = 800 * time.Millisecond

type fakeAudio struct {
	played  []string
	missing string
}

func (a *fakeAudio) Load(path string) (Sound, error) {
	if a.missing != "" && filepath.Base(path) == a.missing {
		return nil, errors.New("no such sound")
	}
	a.played = append(a.played, path)
	return fakeSound(soundLength), nil
}

func (a *fakeAudio) Play(Sound) error { return nil }

// fakeInput answers questions with answer, breaks with onBreak and every
// other prompt with onPrompt or its first accepted key. PollKeys reports "q"
// on the quitAt-th call.
type fakeInput struct {
	answer   string
	onBreak  string
	onPrompt string
	polls    int
	quitAt   int
	awaited  [][]string
}

func (in *fakeInput) AwaitKey(keys ...string) (string, error) {
	in.awaited = append(in.awaited, keys)
	switch {
	case len(keys) == 0:
		if in.onBreak != "" {
			return in.onBreak, nil
		}
		return "return", nil
	case slices.Contains(keys, "left"):
		if in.answer != "" {
			return in.answer, nil
		}
		return "left", nil
	case in.onPrompt != "":
		return in.onPrompt, nil
	}
	return keys[0], nil
}

func (in *fakeInput) PollKeys() []string {
	in.polls++
	if in.quitAt > 0 && in.polls == in.quitAt {
		return []string{"space", "q"}
	}
	return nil
}

type fakeTracker struct {
	recording    bool
	calls        []string
	calibrations int
	disconnected bool
}

func (t *fakeTracker) SetRecording(on bool) error {
	t.recording = on
	if on {
		t.calls = append(t.calls, "on")
	} else {
		t.calls = append(t.calls, "off")
	}
	return nil
}

func (t *fakeTracker) LastGazePosition() (tracker.Point, bool) {
	return tracker.Point{X: 640, Y: 512}, t.recording
}

func (t *fakeTracker) RunCalibration(ctx context.Context) (tracker.Calibration, error) {
	t.calibrations++
	return tracker.Calibration{OK: true}, ctx.Err()
}

func (t *fakeTracker) Disconnect() error {
	t.disconnected = true
	return nil
}

// fakeRecorder stamps messages and samples with clock when it is set.
type fakeRecorder struct {
	clock     func() time.Duration
	messages  []eventlog.Message
	samples   []eventlog.Sample
	sampledAt []time.Duration
	exported  []eventlog.ExportRequest
	exportErr error
}

func (r *fakeRecorder) now() time.Duration {
	if r.clock == nil {
		return 0
	}
	return r.clock()
}

func (r *fakeRecorder) LogEvent(label, category string) error {
	r.messages = append(r.messages, eventlog.Message{Time: r.now().Seconds(), Text: label, Category: category})
	return nil
}

func (r *fakeRecorder) LogSample(s eventlog.Sample) error {
	r.samples = append(r.samples, s)
	r.sampledAt = append(r.sampledAt, r.now())
	return nil
}

func (r *fakeRecorder) at(label string) time.Duration {
	for _, m := range r.messages {
		if m.Text == label {
			return time.Duration(math.Round(m.Time * float64(time.Second)))
		}
	}
	return -1
}

func (r *fakeRecorder) Export(req eventlog.ExportRequest) (eventlog.ExportResult, error) {
	r.exported = append(r.exported, req)
	if r.exportErr != nil {
		return eventlog.ExportResult{}, r.exportErr
	}
	return eventlog.ExportResult{Path: req.Path, Events: len(r.samples)}, nil
}

func (r *fakeRecorder) labels(category string) []string {
	var out []string
	for _, m := range r.messages {
		if m.Category == category {
			out = append(out, m.Text)
		}
	}
	return out
}
