// Package eventlog records the messages and gaze samples of one session in a
// SQLite datastore and exports per-trial sample reports from it.
package eventlog

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Message categories.
const (
	CategorySession = "session"
	CategoryBreak   = "break"
)

// Sink receives labelled experiment messages.
type Sink interface {
	LogEvent(label, category string) error
}

type Message struct {
	Time     float64
	Text     string
	Category string
}

type Sample struct {
	EventType string
	X, Y      float64
	Valid     bool
}

// Store is a per-session event datastore. Timestamps are seconds since Open.
//
// Every handle that writes gets its own run; messages and samples of earlier
// runs in the same file are never mixed into its windows or exports.
type Store struct {
	db    *sql.DB
	path  string
	start time.Time
	now   func() time.Time
	log   *zap.Logger

	mu  sync.Mutex
	run int64
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func Open(path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("eventlog: create directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path, now: time.Now, log: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	s.start = s.now()

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("eventlog: initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS runs (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	started TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	run      INTEGER NOT NULL REFERENCES runs(id),
	time     REAL NOT NULL,
	text     TEXT NOT NULL,
	category TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS samples (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run        INTEGER NOT NULL REFERENCES runs(id),
	time       REAL NOT NULL,
	event_type TEXT NOT NULL,
	gaze_x     REAL,
	gaze_y     REAL,
	status     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS samples_run_type_time ON samples (run, event_type, time);
CREATE INDEX IF NOT EXISTS messages_run ON messages (run);
`)
	return err
}

func (s *Store) Path() string { return s.path }

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) elapsed() float64 {
	return s.now().Sub(s.start).Seconds()
}

// Run returns the id of the run this handle writes to, 0 before the first
// write.
func (s *Store) Run() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run
}

func (s *Store) ensureRun() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run != 0 {
		return s.run, nil
	}
	res, err := s.db.Exec(`INSERT INTO runs (started) VALUES (?)`, s.start.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("eventlog: start run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("eventlog: start run: %w", err)
	}
	s.run = id
	s.log.Debug("event run started", zap.String("path", s.path), zap.Int64("run", id))
	return id, nil
}

// resolveRun maps 0 to this handle's run, or to the latest run in the file
// when this handle has not written anything.
func (s *Store) resolveRun(run int64) (int64, error) {
	if run != 0 {
		return run, nil
	}
	if own := s.Run(); own != 0 {
		return own, nil
	}
	var latest sql.NullInt64
	if err := s.db.QueryRow(`SELECT MAX(id) FROM runs`).Scan(&latest); err != nil {
		return 0, err
	}
	return latest.Int64, nil
}

func (s *Store) LogEvent(label, category string) error {
	run, err := s.ensureRun()
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO messages (run, time, text, category) VALUES (?, ?, ?, ?)`, run, s.elapsed(), label, category)
	if err != nil {
		return fmt.Errorf("eventlog: log %q: %w", label, err)
	}
	return nil
}

// LogSample stores one gaze sample. Invalid samples keep a NULL position and
// status 1, matching the tracker convention of a non-zero status for lost
// tracking.
func (s *Store) LogSample(smp Sample) error {
	run, err := s.ensureRun()
	if err != nil {
		return err
	}
	var x, y sql.NullFloat64
	status := 1
	if smp.Valid {
		x = sql.NullFloat64{Float64: smp.X, Valid: true}
		y = sql.NullFloat64{Float64: smp.Y, Valid: true}
		status = 0
	}
	_, err = s.db.Exec(`INSERT INTO samples (run, time, event_type, gaze_x, gaze_y, status) VALUES (?, ?, ?, ?, ?, ?)`,
		run, s.elapsed(), smp.EventType, x, y, status)
	if err != nil {
		return fmt.Errorf("eventlog: log sample: %w", err)
	}
	return nil
}

// Messages returns the messages of this handle's run, or of the latest run
// when nothing has been written through it.
func (s *Store) Messages() ([]Message, error) {
	run, err := s.resolveRun(0)
	if err != nil {
		return nil, err
	}
	return s.messages(run)
}

func (s *Store) messages(run int64) ([]Message, error) {
	rows, err := s.db.Query(`SELECT time, text, category FROM messages WHERE run = ? ORDER BY id`, run)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Time, &m.Text, &m.Category); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Tee fans messages out to several sinks. Every sink is called even when an
// earlier one fails.
func Tee(sinks ...Sink) Sink {
	return tee(sinks)
}

type tee []Sink

func (t tee) LogEvent(label, category string) error {
	var errs []error
	for _, s := range t {
		if s == nil {
			continue
		}
		if err := s.LogEvent(label, category); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
