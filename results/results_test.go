package results

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrbritton/sexuality-stereotype-eyetracking/sequence"
)

var rows = []sequence.Row{
	{Section: 3, ID: "a", Prime: "a.wav", Target: "ta.wav", Question: "他是老师吗？"},
	{Section: 1, ID: "b", Prime: "b.wav", Target: "tb.wav"},
	{Section: 2, ID: "c", Prime: "c.wav", Target: "tc.wav", Question: "q"},
}

func TestMerge(t *testing.T) {
	log := []Entry{
		{Index: 0, TrialNumber: 1, Answered: true, Response: true},
		{Index: 1, TrialNumber: 2},
	}
	got := Merge(rows, log)
	assert.Equal(t, [][]string{
		{"3", "a", "a.wav", "ta.wav", "他是老师吗？", "1", "TRUE"},
		{"1", "b", "b.wav", "tb.wav", "", "2", ""},
		{"2", "c", "c.wav", "tc.wav", "q", "", ""},
	}, got)
}

func TestMergeFalseAnswer(t *testing.T) {
	got := Merge(rows[:1], []Entry{{Index: 0, TrialNumber: 1, Answered: true, Response: false}})
	assert.Equal(t, "FALSE", got[0][6])
}

func TestWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subgroup1_version1", "7_sub1_ver1_test_results.csv")
	require.NoError(t, Write(path, rows, []Entry{{Index: 2, TrialNumber: 3, Answered: true}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), "\ufeff"))

	records, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(data), "\ufeff"))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"Section", "ID", "Prime", "Target", "Question", "trial_number", "response"}, records[0])
	assert.Equal(t, "c", records[3][1])
	assert.Equal(t, "FALSE", records[3][6])
}

func TestManifestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.yaml")
	m := Manifest{
		SessionID:   "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		Participant: "7",
		Subgroup:    1,
		Version:     2,
		Rotation:    "f",
		Tracker:     "mouse",
		Seed:        1 << 60,
		OrderKey:    5,
		Order:       []int{1, 4, 2, 3},
		Trials:      100,
		Presented:   40,
		Quit:        true,
		Started:     time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		Finished:    time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
		Results:     "r.csv",
	}
	require.NoError(t, WriteManifest(path, m))
	got, err := ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}
