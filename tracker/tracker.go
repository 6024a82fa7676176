// Package tracker defines the gaze-device contract used during a session and
// a registry of drivers selected by name. The built-in "mouse" driver stands
// in for a real eye tracker during piloting; vendor drivers register
// themselves from their own packages.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrUnknownTracker = errors.New("tracker: unknown tracker")
	ErrNoDriver       = errors.New("tracker: no driver registered")
)

// Point is a gaze position in display pixels, origin at the screen centre
// and y growing upwards.
type Point struct {
	X, Y float64
}

type Calibration struct {
	OK      bool
	Message string
}

func (c Calibration) String() string {
	if c.OK {
		return "ok: " + c.Message
	}
	return "failed: " + c.Message
}

type Tracker interface {
	SetRecording(on bool) error
	// LastGazePosition reports false when no valid sample is available.
	LastGazePosition() (Point, bool)
	RunCalibration(ctx context.Context) (Calibration, error)
	Disconnect() error
}

type Options struct {
	Logger *zap.Logger
	// Pointer feeds the mouse driver.
	Pointer PointerSource
	// Background is the calibration screen colour handed to vendor drivers.
	Background [3]uint8
}

type Factory func(opts Options) (Tracker, error)

// Known lists the names a session may ask for.
var Known = []string{"mouse", "eyelink", "gazepoint", "tobii"}

var (
	mu      sync.RWMutex
	drivers = map[string]Factory{}
)

// Register makes a driver available under name. It panics on duplicates,
// like database/sql.Register.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := drivers[name]; dup {
		panic("tracker: Register called twice for " + name)
	}
	drivers[name] = f
}

func Drivers() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(drivers))
	for n := range drivers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func Open(name string, opts Options) (Tracker, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	known := false
	for _, k := range Known {
		if k == name {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTracker, name)
	}

	mu.RLock()
	f, ok := drivers[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w for %q", ErrNoDriver, name)
	}
	t, err := f(opts)
	if err != nil {
		return nil, fmt.Errorf("tracker: open %s: %w", name, err)
	}
	return t, nil
}

func init() {
	Register("mouse", func(opts Options) (Tracker, error) {
		if opts.Pointer == nil {
			return nil, errors.New("mouse tracker needs a pointer source")
		}
		return NewMouse(opts.Pointer, opts.Logger), nil
	})
}
