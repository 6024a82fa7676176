package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jrbritton/sexuality-stereotype-eyetracking/sequence"
)

var ErrInvalid = errors.New("config: invalid session")

var Trackers = []string{"mouse", "eyelink", "gazepoint", "tobii"}

const (
	MinGroup = 1
	MaxGroup = 2
)

// Fields is the raw setup entry as typed into the dialog or passed as flags.
type Fields struct {
	Participant string `yaml:"participant"`
	Subgroup    int    `yaml:"subgroup"`
	Version     int    `yaml:"version"`
	Rotation    string `yaml:"rotation"`
	Tracker     string `yaml:"tracker"`
}

// Session identifies one run of the experiment. It is built once at startup
// and only read afterwards.
type Session struct {
	id          uuid.UUID
	participant string
	subgroup    int
	version     int
	rotation    sequence.Rotation
	tracker     string
	seed        uint64
	started     time.Time
}

// NewSession validates f and freezes it together with the session seed.
func NewSession(f Fields, seed uint64) (Session, error) {
	var errs []error

	participant := strings.TrimSpace(f.Participant)
	if participant == "" || participant == "0" {
		errs = append(errs, errors.New("participant is required"))
	} else if strings.ContainsAny(participant, `/\ `) {
		errs = append(errs, fmt.Errorf("participant %q must not contain spaces or path separators", participant))
	}
	if f.Subgroup < MinGroup || f.Subgroup > MaxGroup {
		errs = append(errs, fmt.Errorf("subgroup %d invalid, select 1 or 2", f.Subgroup))
	}
	if f.Version < MinGroup || f.Version > MaxGroup {
		errs = append(errs, fmt.Errorf("version %d invalid, select 1 or 2", f.Version))
	}
	rot, err := sequence.ParseRotation(f.Rotation)
	if err != nil {
		errs = append(errs, err)
	}
	tracker := strings.ToLower(strings.TrimSpace(f.Tracker))
	if !slices.Contains(Trackers, tracker) {
		errs = append(errs, fmt.Errorf("%q is not a valid tracker name; use %s", f.Tracker, strings.Join(Trackers, ", ")))
	}

	if len(errs) > 0 {
		return Session{}, fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}

	return Session{
		id:          uuid.New(),
		participant: participant,
		subgroup:    f.Subgroup,
		version:     f.Version,
		rotation:    rot,
		tracker:     tracker,
		seed:        seed,
		started:     time.Now(),
	}, nil
}

func (s Session) ID() uuid.UUID               { return s.id }
func (s Session) Participant() string         { return s.participant }
func (s Session) Subgroup() int               { return s.subgroup }
func (s Session) Version() int                { return s.version }
func (s Session) Rotation() sequence.Rotation { return s.rotation }
func (s Session) Tracker() string             { return s.tracker }
func (s Session) Seed() uint64                { return s.seed }
func (s Session) Started() time.Time          { return s.started }

// Code is the session label used for file names and the event datastore.
func (s Session) Code() string {
	return fmt.Sprintf("%s_sub%d_ver%d_%s", s.participant, s.subgroup, s.version, s.rotation)
}

func (s Session) Fields() Fields {
	return Fields{
		Participant: s.participant,
		Subgroup:    s.subgroup,
		Version:     s.version,
		Rotation:    s.rotation.String(),
		Tracker:     s.tracker,
	}
}
