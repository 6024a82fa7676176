// Package results merges the planned trial list with the responses collected
// during a session and writes the per-participant output files.
package results

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jrbritton/sexuality-stereotype-eyetracking/sequence"
)

// Entry is one presented trial. Answered is false when no question was
// shown, leaving the response column empty.
type Entry struct {
	Index       int
	TrialNumber int
	Answered    bool
	Response    bool
}

// Header of the results table.
var Header = append(append([]string{}, sequence.Columns...), "trial_number", "response")

// Merge pairs every planned row with its log entry. Rows that were never
// presented keep empty annotations. Later entries for the same index win.
func Merge(rows []sequence.Row, log []Entry) [][]string {
	byIndex := make(map[int]Entry, len(log))
	for _, e := range log {
		byIndex[e.Index] = e
	}

	out := make([][]string, 0, len(rows))
	for i, r := range rows {
		record := []string{strconv.Itoa(r.Section), r.ID, r.Prime, r.Target, r.Question, "", ""}
		if e, ok := byIndex[i]; ok {
			record[5] = strconv.Itoa(e.TrialNumber)
			if e.Answered {
				record[6] = formatBool(e.Response)
			}
		}
		out = append(out, record)
	}
	return out
}

func formatBool(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// Write stores the merged table as UTF-8 CSV with a byte order mark so that
// spreadsheet tools pick up the Chinese question text.
func Write(path string, rows []sequence.Row, log []Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("results: create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("results: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if _, err := bw.WriteString("\ufeff"); err != nil {
		return fmt.Errorf("results: %w", err)
	}
	w := csv.NewWriter(bw)
	if err := w.Write(Header); err != nil {
		return fmt.Errorf("results: %w", err)
	}
	if err := w.WriteAll(Merge(rows, log)); err != nil {
		return fmt.Errorf("results: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("results: %w", err)
	}
	return f.Close()
}

// Manifest is written next to the results so a session can be replayed.
type Manifest struct {
	SessionID   string    `yaml:"session_id"`
	Participant string    `yaml:"participant"`
	Subgroup    int       `yaml:"subgroup"`
	Version     int       `yaml:"version"`
	Rotation    string    `yaml:"rotation"`
	Tracker     string    `yaml:"tracker"`
	Seed        uint64    `yaml:"seed"`
	OrderKey    int       `yaml:"order_key"`
	Order       []int     `yaml:"order"`
	Trials      int       `yaml:"trials"`
	Presented   int       `yaml:"presented"`
	Answered    int       `yaml:"answered"`
	Quit        bool      `yaml:"quit"`
	Started     time.Time `yaml:"started"`
	Finished    time.Time `yaml:"finished"`
	Results     string    `yaml:"results"`
	Datastore   string    `yaml:"datastore,omitempty"`
	Run         int64     `yaml:"run,omitempty"`
}

func WriteManifest(path string, m Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("results: manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("results: create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("results: manifest: %w", err)
	}
	return nil
}

func ReadManifest(path string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("results: manifest: %w", err)
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("results: manifest: %w", err)
	}
	return m, nil
}
