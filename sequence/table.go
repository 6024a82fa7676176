package sequence

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	ErrNoTable         = errors.New("sequence: no stimulus table")
	ErrMalformedRow    = errors.New("sequence: malformed row")
	ErrMissingStimulus = errors.New("sequence: missing stimulus file")
)

// Row is one line of a stimulus table. Rows are never modified after loading;
// presentation annotations live in the session's response log.
type Row struct {
	Section  int
	ID       string
	Prime    string
	Target   string
	Question string
}

// Columns is the header every stimulus table must carry.
var Columns = []string{"Section", "ID", "Prime", "Target", "Question"}

const utf8BOM = "\ufeff"

func LoadTableFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoTable, path)
		}
		return nil, err
	}
	defer f.Close()

	rows, err := LoadTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// LoadTable reads rows in file order. Columns are located by header name so
// tables exported with extra or reordered columns still load.
func LoadTable(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty table", ErrMalformedRow)
	}

	idx := make(map[string]int)
	for i, name := range records[0] {
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		idx[strings.TrimSpace(name)] = i
	}
	for _, col := range Columns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrMalformedRow, col)
		}
	}

	field := func(record []string, col string) string {
		i := idx[col]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []Row
	for i, record := range records[1:] {
		line := i + 2
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}

		section, err := strconv.Atoi(field(record, "Section"))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: invalid section: %v", ErrMalformedRow, line, err)
		}
		if section < 1 || section > NumSections {
			return nil, fmt.Errorf("%w: line %d: section %d out of range 1-%d", ErrMalformedRow, line, section, NumSections)
		}

		row := Row{
			Section:  section,
			ID:       field(record, "ID"),
			Prime:    field(record, "Prime"),
			Target:   field(record, "Target"),
			Question: field(record, "Question"),
		}
		switch {
		case row.ID == "":
			return nil, fmt.Errorf("%w: line %d: empty ID", ErrMalformedRow, line)
		case row.Prime == "":
			return nil, fmt.Errorf("%w: line %d: empty Prime", ErrMalformedRow, line)
		case row.Target == "":
			return nil, fmt.Errorf("%w: line %d: empty Target", ErrMalformedRow, line)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// Source locates the stimulus tables of a study on disk.
type Source struct {
	Dir string
}

// TablePath mirrors the naming of the study's stim_lists directory.
func (s Source) TablePath(subgroup, version int, rot Rotation) string {
	return filepath.Join(s.Dir, fmt.Sprintf("subgroup%dversion%d_%s.csv", subgroup, version, rot))
}

func (s Source) PracticePath(rot Rotation) string {
	if rot == Male {
		return filepath.Join(s.Dir, "practice_male.csv")
	}
	return filepath.Join(s.Dir, "practice_female.csv")
}

// Load returns the main and practice tables for a session.
func (s Source) Load(subgroup, version int, rot Rotation) (main, practice []Row, err error) {
	main, err = LoadTableFile(s.TablePath(subgroup, version, rot))
	if err != nil {
		return nil, nil, err
	}
	practice, err = LoadTableFile(s.PracticePath(rot))
	if err != nil {
		return nil, nil, err
	}
	return main, practice, nil
}

// VerifyAudio checks that every prime and target referenced by rows exists.
func VerifyAudio(rows []Row, primeDir, targetDir string) error {
	var errs []error
	for _, r := range rows {
		for _, p := range []string{filepath.Join(primeDir, r.Prime), filepath.Join(targetDir, r.Target)} {
			if _, err := os.Stat(p); err != nil {
				errs = append(errs, fmt.Errorf("row %s: %w", r.ID, err))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrMissingStimulus, errors.Join(errs...))
	}
	return nil
}
