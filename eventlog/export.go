package eventlog

import (
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

var ErrExport = errors.New("eventlog: export failed")

// ExportFields are the columns a report may contain, in their default order.
var ExportFields = []string{"trial", "time", "gaze_x", "gaze_y", "status"}

type ExportRequest struct {
	EventType string
	// Fields selects report columns; nil exports all ExportFields.
	Fields []string
	// Start and End name the messages bounding each trial window. Both empty
	// exports every sample as a single window.
	Start, End string
	Path       string
	// Run selects the recording to export; 0 is the run of this handle, or
	// the latest run in the file.
	Run int64
}

type ExportResult struct {
	Path   string
	Run    int64
	Events int
}

type window struct {
	trial      string
	start, end float64
}

// Export writes the samples of req.EventType that fall inside each
// Start..End message window to a CSV report.
func (s *Store) Export(req ExportRequest) (ExportResult, error) {
	fields := req.Fields
	if len(fields) == 0 {
		fields = ExportFields
	}
	for _, f := range fields {
		if !validField(f) {
			return ExportResult{}, fmt.Errorf("%w: unknown field %q", ErrExport, f)
		}
	}
	if (req.Start == "") != (req.End == "") {
		return ExportResult{}, fmt.Errorf("%w: start and end messages must both be set or both be empty", ErrExport)
	}

	run, err := s.resolveRun(req.Run)
	if err != nil {
		return ExportResult{}, fmt.Errorf("%w: %v", ErrExport, err)
	}
	if run == 0 {
		return ExportResult{}, fmt.Errorf("%w: nothing recorded in %s", ErrExport, s.path)
	}

	var known int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM samples WHERE run = ? AND event_type = ?`, run, req.EventType).Scan(&known); err != nil {
		return ExportResult{}, fmt.Errorf("%w: %v", ErrExport, err)
	}
	if known == 0 {
		return ExportResult{}, fmt.Errorf("%w: no events of type %q in run %d", ErrExport, req.EventType, run)
	}

	windows, err := s.windows(run, req.Start, req.End)
	if err != nil {
		return ExportResult{}, fmt.Errorf("%w: %v", ErrExport, err)
	}
	if len(windows) == 0 {
		return ExportResult{}, fmt.Errorf("%w: no %s..%s windows recorded", ErrExport, req.Start, req.End)
	}

	if err := os.MkdirAll(filepath.Dir(req.Path), 0o755); err != nil {
		return ExportResult{}, fmt.Errorf("%w: %v", ErrExport, err)
	}
	f, err := os.Create(req.Path)
	if err != nil {
		return ExportResult{}, fmt.Errorf("%w: %v", ErrExport, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(fields); err != nil {
		return ExportResult{}, fmt.Errorf("%w: %v", ErrExport, err)
	}

	count := 0
	for _, win := range windows {
		n, err := s.writeWindow(w, fields, run, req.EventType, win)
		if err != nil {
			return ExportResult{}, fmt.Errorf("%w: %v", ErrExport, err)
		}
		count += n
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return ExportResult{}, fmt.Errorf("%w: %v", ErrExport, err)
	}
	if err := f.Close(); err != nil {
		return ExportResult{}, fmt.Errorf("%w: %v", ErrExport, err)
	}

	s.log.Sugar().Infof("saved %d events of run %d to %s", count, run, req.Path)
	return ExportResult{Path: req.Path, Run: run, Events: count}, nil
}

func validField(f string) bool {
	for _, k := range ExportFields {
		if k == f {
			return true
		}
	}
	return false
}

func (s *Store) windows(run int64, start, end string) ([]window, error) {
	if start == "" {
		var last sql.NullFloat64
		if err := s.db.QueryRow(`SELECT MAX(time) FROM samples WHERE run = ?`, run).Scan(&last); err != nil {
			return nil, err
		}
		return []window{{trial: "", start: 0, end: last.Float64}}, nil
	}

	msgs, err := s.messages(run)
	if err != nil {
		return nil, err
	}
	var out []window
	var open *window
	for _, m := range msgs {
		switch m.Text {
		case start:
			open = &window{trial: m.Category, start: m.Time}
		case end:
			if open != nil {
				open.end = m.Time
				out = append(out, *open)
				open = nil
			}
		}
	}
	return out, nil
}

func (s *Store) writeWindow(w *csv.Writer, fields []string, run int64, eventType string, win window) (int, error) {
	rows, err := s.db.Query(`SELECT time, gaze_x, gaze_y, status FROM samples
		WHERE run = ? AND event_type = ? AND time >= ? AND time <= ? ORDER BY id`, run, eventType, win.start, win.end)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var (
			t      float64
			x, y   *float64
			status int
		)
		if err := rows.Scan(&t, &x, &y, &status); err != nil {
			return n, err
		}
		record := make([]string, len(fields))
		for i, f := range fields {
			switch f {
			case "trial":
				record[i] = win.trial
			case "time":
				record[i] = strconv.FormatFloat(t, 'f', 6, 64)
			case "gaze_x":
				record[i] = formatOptional(x)
			case "gaze_y":
				record[i] = formatOptional(y)
			case "status":
				record[i] = strconv.Itoa(status)
			}
		}
		if err := w.Write(record); err != nil {
			return n, err
		}
		n++
	}
	return n, rows.Err()
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
