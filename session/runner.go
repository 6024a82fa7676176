package session

import (
	"context"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/jrbritton/sexuality-stereotype-eyetracking/config"
	"github.com/jrbritton/sexuality-stereotype-eyetracking/eventlog"
	"github.com/jrbritton/sexuality-stereotype-eyetracking/results"
	"github.com/jrbritton/sexuality-stereotype-eyetracking/sequence"
	"github.com/jrbritton/sexuality-stereotype-eyetracking/tracker"
)

// Experiment messages written to the event datastore.
const (
	MsgSessionStart = "session_start"
	MsgFixation     = "fixationtask_start"
	MsgTrialStart   = "trial_start"
	MsgTrialEnd     = "trial_end"
	MsgPrimeOnset   = "prime_onset"
	MsgTargetOnset  = "target_onset"
	MsgBreak        = "break"
	MsgCalibration  = "calibration"
)

// State is a step of one trial.
type State int

const (
	StateFixation State = iota
	StatePrime
	StateGap
	StateTarget
	StateQuestionMaybe
	StateRecord
	StateDone
)

func (s State) String() string {
	switch s {
	case StateFixation:
		return "fixation"
	case StatePrime:
		return "prime"
	case StateGap:
		return "gap"
	case StateTarget:
		return "target"
	case StateQuestionMaybe:
		return "question"
	case StateRecord:
		return "record"
	case StateDone:
		return "done"
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// ResponseLog collects one entry per presented trial. Entries are only ever
// appended; the planned rows are left untouched until export.
type ResponseLog struct {
	entries []results.Entry
}

func (l *ResponseLog) Append(e results.Entry) {
	l.entries = append(l.entries, e)
}

func (l *ResponseLog) Entries() []results.Entry {
	return slices.Clone(l.entries)
}

func (l *ResponseLog) Len() int { return len(l.entries) }

func (l *ResponseLog) Answered() int {
	n := 0
	for _, e := range l.entries {
		if e.Answered {
			n++
		}
	}
	return n
}

// Block is a run of trials. Practice blocks have no breaks and send no
// trial messages.
type Block struct {
	Name     string
	Rows     []sequence.Row
	Breaks   *sequence.Breaks
	Messages bool
}

type trial struct {
	index    int
	number   int
	row      sequence.Row
	started  bool
	ended    bool
	question sequence.Question
	answered bool
	response bool
	quit     bool
}

// Runner presents blocks of trials one state at a time. It is not safe for
// concurrent use; a session has exactly one.
type Runner struct {
	exp     *config.Experiment
	surface Surface
	audio   AudioPlayer
	input   Input
	tracker tracker.Tracker
	events  eventlog.Sink
	samples Recorder
	rng     *rand.Rand
	log     *zap.Logger
}

func (r *Runner) message(t *trial, block Block, label string) {
	if !block.Messages {
		return
	}
	if err := r.events.LogEvent(label, strconv.Itoa(t.index)); err != nil {
		r.log.Warn("event not logged", zap.String("label", label), zap.Int("trial", t.number), zap.Error(err))
	}
}

func (r *Runner) sample() {
	p, ok := r.tracker.LastGazePosition()
	err := r.samples.LogSample(eventlog.Sample{EventType: r.exp.Export.EventType, X: p.X, Y: p.Y, Valid: ok})
	if err != nil {
		r.log.Warn("gaze sample not logged", zap.Error(err))
	}
}

func (r *Runner) setRecording(on bool) {
	if err := r.tracker.SetRecording(on); err != nil {
		r.log.Error("tracker recording state not changed", zap.Bool("recording", on), zap.Error(err))
	}
}

func (r *Runner) quitRequested() bool {
	return slices.Contains(r.input.PollKeys(), r.exp.Keys.Quit)
}

// RunBlock presents every row of b in order and appends to log. It returns
// ErrQuit when the operator quits; the interrupted trial is still logged.
func (r *Runner) RunBlock(ctx context.Context, b Block, log *ResponseLog) error {
	r.log.Info("block started", zap.String("block", b.Name), zap.Int("trials", len(b.Rows)))
	for i, row := range b.Rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := i + 1
		if b.Breaks != nil && b.Breaks.At(n) {
			if err := r.rest(ctx, n); err != nil {
				return err
			}
		}

		t := &trial{index: i, number: n, row: row}
		r.log.Debug("trial",
			zap.String("block", b.Name),
			zap.Int("trial", n),
			zap.String("id", row.ID),
			zap.Int("section", row.Section))

		st := StateFixation
		for st != StateDone {
			if st != StateRecord && r.quitRequested() {
				t.quit = true
				st = StateRecord
			}
			next, err := r.step(b, t, st, log)
			if err != nil {
				return err
			}
			st = next
		}
	}
	r.log.Info("block finished", zap.String("block", b.Name), zap.Int("answered", log.Answered()))
	return nil
}

func (r *Runner) step(b Block, t *trial, st State, log *ResponseLog) (State, error) {
	switch st {
	case StateFixation:
		r.setRecording(true)
		t.started = true
		r.message(t, b, MsgFixation)
		r.surface.Draw(Fixation())
		if err := r.surface.Present(); err != nil {
			return StateDone, err
		}
		r.message(t, b, MsgTrialStart)
		r.sample()
		return StatePrime, nil

	case StatePrime:
		if err := r.play(t, b, filepath.Join(r.exp.Paths.Primes, t.row.Prime), MsgPrimeOnset); err != nil {
			return StateDone, err
		}
		return StateGap, nil

	case StateGap:
		if err := r.hold(t, r.exp.Timing.Gap); err != nil {
			return StateDone, err
		}
		return StateTarget, nil

	case StateTarget:
		if err := r.play(t, b, filepath.Join(r.exp.Paths.Targets, t.row.Target), MsgTargetOnset); err != nil {
			return StateDone, err
		}
		if err := r.hold(t, r.exp.Timing.PostTarget); err != nil {
			return StateDone, err
		}
		r.endRecording(t, b)
		r.surface.Draw(Blank())
		if err := r.surface.Present(); err != nil {
			return StateDone, err
		}
		if err := r.surface.Wait(r.exp.Timing.Blank); err != nil {
			return StateDone, err
		}
		return StateQuestionMaybe, nil

	case StateQuestionMaybe:
		t.question = sequence.Gate(r.rng)
		if !t.question.Show || t.row.Question == "" {
			return StateRecord, nil
		}
		legend := r.exp.Text.LegendNoLeft
		if t.question.Polarity == sequence.YesIsLeft {
			legend = r.exp.Text.LegendYesLeft
		}
		r.surface.Draw(Question(t.row.Question, legend))
		if err := r.surface.Present(); err != nil {
			return StateDone, err
		}
		key, err := r.input.AwaitKey("left", "right", r.exp.Keys.Quit)
		if err != nil {
			return StateDone, err
		}
		if key == r.exp.Keys.Quit {
			t.quit = true
			return StateRecord, nil
		}
		t.response, t.answered = t.question.Polarity.Answer(key)
		return StateRecord, nil

	case StateRecord:
		if !t.started {
			r.log.Warn("quit requested before trial", zap.Int("trial", t.number))
			return StateDone, ErrQuit
		}
		if !t.ended {
			r.endRecording(t, b)
		}
		log.Append(results.Entry{
			Index:       t.index,
			TrialNumber: t.number,
			Answered:    t.answered,
			Response:    t.response,
		})
		if t.quit {
			r.log.Warn("quit requested", zap.Int("trial", t.number))
			return StateDone, ErrQuit
		}
		r.surface.Draw(Blank())
		if err := r.surface.Present(); err != nil {
			return StateDone, err
		}
		if err := r.surface.Wait(r.exp.Timing.Blank); err != nil {
			return StateDone, err
		}
		return StateDone, nil
	}
	return StateDone, fmt.Errorf("session: unknown state %v", st)
}

func (r *Runner) endRecording(t *trial, b Block) {
	r.message(t, b, MsgTrialEnd)
	r.setRecording(false)
	t.ended = true
}

func (r *Runner) play(t *trial, b Block, path, onset string) error {
	snd, err := r.audio.Load(path)
	if err != nil {
		return fmt.Errorf("session: trial %d: %w", t.number, err)
	}
	if err := r.audio.Play(snd); err != nil {
		return fmt.Errorf("session: trial %d: %w", t.number, err)
	}
	r.message(t, b, onset)
	return r.hold(t, snd.Duration())
}

func (t *trial) recording() bool { return t.started && !t.ended }

// hold waits d. While the trial records it waits in sample intervals and
// stores a gaze sample after each one.
func (r *Runner) hold(t *trial, d time.Duration) error {
	if !t.recording() {
		return r.surface.Wait(d)
	}
	interval := r.exp.Timing.SampleInterval
	if interval <= 0 {
		interval = d
	}
	for d > 0 {
		step := min(d, interval)
		if err := r.surface.Wait(step); err != nil {
			return err
		}
		r.sample()
		d -= step
	}
	return nil
}

// rest shows the break screen before trial n. Continuing with the continue
// key recalibrates the tracker first.
func (r *Runner) rest(ctx context.Context, n int) error {
	r.log.Info("break", zap.Int("before_trial", n))
	if err := r.events.LogEvent(MsgBreak+" "+strconv.Itoa(n), eventlog.CategoryBreak); err != nil {
		r.log.Warn("event not logged", zap.String("label", MsgBreak), zap.Error(err))
	}

	r.surface.Draw(Text(r.exp.Text.Break))
	if err := r.surface.Present(); err != nil {
		return err
	}
	key, err := r.input.AwaitKey()
	if err != nil {
		return err
	}
	switch key {
	case r.exp.Keys.Quit:
		return ErrQuit
	case r.exp.Keys.Continue:
		r.calibrate(ctx)
		r.surface.Draw(Blank())
		if err := r.surface.Present(); err != nil {
			return err
		}
		return r.surface.Wait(r.exp.Timing.AfterCalibration)
	}
	return nil
}

// calibrate runs the tracker setup once. Failures are reported, not retried.
func (r *Runner) calibrate(ctx context.Context) {
	res, err := r.tracker.RunCalibration(ctx)
	if err != nil {
		r.log.Error("calibration failed", zap.Error(err))
		return
	}
	r.log.Info("calibration returned", zap.Bool("ok", res.OK), zap.String("result", res.String()))
	label := MsgCalibration + "_ok"
	if !res.OK {
		label = MsgCalibration + "_failed"
	}
	if err := r.events.LogEvent(label, eventlog.CategorySession); err != nil {
		r.log.Warn("event not logged", zap.String("label", MsgCalibration), zap.Error(err))
	}
}
