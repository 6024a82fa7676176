package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/jrbritton/sexuality-stereotype-eyetracking/config"
	"github.com/jrbritton/sexuality-stereotype-eyetracking/engine"
	"github.com/jrbritton/sexuality-stereotype-eyetracking/eventlog"
	"github.com/jrbritton/sexuality-stereotype-eyetracking/sequence"
	"github.com/jrbritton/sexuality-stereotype-eyetracking/session"
	"github.com/jrbritton/sexuality-stereotype-eyetracking/tracker"
)

// setupStudy writes a stimulus directory and an experiment file pointing at
// it, and points the command globals at them.
func setupStudy(t *testing.T, rows int) {
	t.Helper()
	logger = zap.NewNop()

	dir := t.TempDir()
	stim := filepath.Join(dir, "stim_lists")
	require.NoError(t, os.MkdirAll(stim, 0o755))

	var table strings.Builder
	table.WriteString("Section,ID,Prime,Target,Question\n")
	for i := 1; i <= rows; i++ {
		fmt.Fprintf(&table, "%d,s%02d,p%02d.wav,t%02d.wav,问题%d？\n", (i-1)%4+1, i, i, i, i)
	}
	require.NoError(t, os.WriteFile(filepath.Join(stim, "subgroup2version1_test.csv"), []byte(table.String()), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(stim, "practice_female.csv"),
		[]byte("Section,ID,Prime,Target,Question\n1,pr1,a.wav,b.wav,\n2,pr2,c.wav,d.wav,\n"), 0o644))

	expFile := filepath.Join(dir, "experiment.yaml")
	require.NoError(t, os.WriteFile(expFile, []byte("paths:\n  stim_lists: "+stim+"\n"), 0o644))
	experimentPath = expFile

	planFlags = sessionFlags{
		fields: config.Fields{Participant: "12", Subgroup: 2, Version: 1, Rotation: "test", Tracker: "mouse"},
		seed:   99,
	}
	t.Cleanup(func() {
		experimentPath = ""
		planFlags = sessionFlags{}
		planYAML = false
	})
}

func runPlanOutput(t *testing.T) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	err := runPlan(cmd, nil)
	return buf.String(), err
}

func TestPlanTable(t *testing.T) {
	setupStudy(t, 5)

	out, err := runPlanOutput(t)
	require.NoError(t, err)
	assert.Contains(t, out, "participant 12  seed 99")
	assert.Contains(t, out, "BLOCK")
	for _, id := range []string{"pr1", "pr2", "s01", "s05"} {
		assert.Contains(t, out, id)
	}
	assert.Equal(t, 1, strings.Count(out, "break"))
}

func TestPlanYAMLIsReproducible(t *testing.T) {
	setupStudy(t, 12)
	planYAML = true

	first, err := runPlanOutput(t)
	require.NoError(t, err)
	second, err := runPlanOutput(t)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var p printedPlan
	require.NoError(t, yaml.Unmarshal([]byte(first), &p))
	assert.Equal(t, uint64(99), p.Seed)
	require.Len(t, p.Trials, 14)

	want := sequence.Build(make([]sequence.Row, 12), make([]sequence.Row, 2), sequence.BreaksFor(sequence.Test), sequence.NewRand(99))
	assert.Equal(t, want.OrderKey, p.OrderKey)
	assert.Equal(t, want.Order[:], p.Order)

	var breaks []int
	for _, tr := range p.Trials {
		if tr.Break {
			assert.Equal(t, "main", tr.Block)
			breaks = append(breaks, tr.Number)
		}
	}
	assert.Equal(t, []int{4, 7, 10}, breaks)

	pos := map[int]int{}
	for i, s := range p.Order {
		pos[s] = i
	}
	last := -1
	for _, tr := range p.Trials[2:] {
		assert.GreaterOrEqual(t, pos[tr.Section], last, "trial %d", tr.Number)
		last = pos[tr.Section]
	}
}

func TestPlanQuestionLegends(t *testing.T) {
	setupStudy(t, 40)
	planYAML = true

	out, err := runPlanOutput(t)
	require.NoError(t, err)
	var p printedPlan
	require.NoError(t, yaml.Unmarshal([]byte(out), &p))

	exp := config.DefaultExperiment()
	asked := 0
	for _, tr := range p.Trials {
		if tr.Question == "" {
			assert.Empty(t, tr.Legend)
			continue
		}
		asked++
		assert.Contains(t, []string{exp.Text.LegendNoLeft, exp.Text.LegendYesLeft}, tr.Legend)
		assert.Equal(t, "main", tr.Block, "practice rows carry no question text")
	}
	assert.Positive(t, asked)
}

func TestPlanRejectsInvalidSession(t *testing.T) {
	setupStudy(t, 3)
	planFlags.fields.Participant = "0"

	_, err := runPlanOutput(t)
	require.ErrorIs(t, err, config.ErrInvalid)
	assert.Equal(t, exitConfig, exitCode(err))
}

func TestPlanMissingTable(t *testing.T) {
	setupStudy(t, 3)
	planFlags.fields.Version = 2

	_, err := runPlanOutput(t)
	require.ErrorIs(t, err, sequence.ErrNoTable)
	assert.Equal(t, exitConfig, exitCode(err))
}

func TestExport(t *testing.T) {
	logger = zap.NewNop()
	dir := t.TempDir()
	db := filepath.Join(dir, "12_sub2_ver1_test.db")

	store, err := eventlog.Open(db)
	require.NoError(t, err)
	require.NoError(t, store.LogEvent("trial_start", "0"))
	require.NoError(t, store.LogSample(eventlog.Sample{EventType: "MonocularEyeSample", X: 1, Y: 2, Valid: true}))
	require.NoError(t, store.LogEvent("trial_end", "0"))
	require.NoError(t, store.Close())

	exportDB = db
	exportReq = eventlog.ExportRequest{
		EventType: "MonocularEyeSample",
		Fields:    []string{"trial", "gaze_x"},
		Start:     "trial_start",
		End:       "trial_end",
		Path:      filepath.Join(dir, "report.csv"),
	}
	t.Cleanup(func() {
		exportDB = ""
		exportReq = eventlog.ExportRequest{}
	})

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	require.NoError(t, runExport(cmd, nil))
	assert.Contains(t, buf.String(), "Saved 1 events")

	data, err := os.ReadFile(exportReq.Path)
	require.NoError(t, err)
	assert.Equal(t, "trial,gaze_x\n0,1.00\n", string(data))

	exportReq.Start, exportReq.End = "", ""
	buf.Reset()
	require.NoError(t, runExport(cmd, nil))
	assert.Contains(t, buf.String(), "Saved 1 events")

	exportReq.EventType = "BinocularEyeSample"
	err = runExport(cmd, nil)
	require.ErrorIs(t, err, eventlog.ErrExport)
	assert.Equal(t, exitFailure, exitCode(err))
}

func TestExportMissingDatastore(t *testing.T) {
	logger = zap.NewNop()
	exportDB = filepath.Join(t.TempDir(), "none.db")
	t.Cleanup(func() { exportDB = "" })

	err := runExport(&cobra.Command{}, nil)
	assert.Equal(t, exitConfig, exitCode(err))
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{session.ErrQuit, exitOK},
		{fmt.Errorf("wrapped: %w", session.ErrQuit), exitOK},
		{config.ErrInvalid, exitConfig},
		{sequence.ErrMalformedRow, exitConfig},
		{sequence.ErrMissingStimulus, exitConfig},
		{fmt.Errorf("%w for %q", tracker.ErrNoDriver, "tobii"), exitConfig},
		{engine.ErrCancelled, exitConfig},
		{errors.New("renderer lost"), exitFailure},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, exitCode(c.err), "%v", c.err)
	}
}

func TestSessionFlagsDrawSeed(t *testing.T) {
	f := sessionFlags{fields: config.Fields{Participant: "3", Subgroup: 1, Version: 1, Rotation: "f", Tracker: "mouse"}}
	s, err := f.session()
	require.NoError(t, err)
	assert.NotZero(t, s.Seed())

	f.seed = 5
	s, err = f.session()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), s.Seed())
}
