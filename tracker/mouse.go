package tracker

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// PointerSource reports the current pointer position, false when the pointer
// is outside the window.
type PointerSource interface {
	Pointer() (Point, bool)
}

// Mouse simulates a gaze device with the pointer.
type Mouse struct {
	src       PointerSource
	log       *zap.Logger
	recording bool
	closed    bool
}

var errDisconnected = errors.New("tracker: disconnected")

func NewMouse(src PointerSource, log *zap.Logger) *Mouse {
	if log == nil {
		log = zap.NewNop()
	}
	return &Mouse{src: src, log: log}
}

func (m *Mouse) SetRecording(on bool) error {
	if m.closed {
		return errDisconnected
	}
	m.recording = on
	return nil
}

func (m *Mouse) Recording() bool { return m.recording }

func (m *Mouse) LastGazePosition() (Point, bool) {
	if m.closed || !m.recording {
		return Point{}, false
	}
	return m.src.Pointer()
}

func (m *Mouse) RunCalibration(ctx context.Context) (Calibration, error) {
	if err := ctx.Err(); err != nil {
		return Calibration{}, err
	}
	if m.closed {
		return Calibration{}, errDisconnected
	}
	m.log.Debug("mouse tracker calibration skipped")
	return Calibration{OK: true, Message: "mouse needs no calibration"}, nil
}

func (m *Mouse) Disconnect() error {
	m.closed = true
	m.recording = false
	return nil
}
