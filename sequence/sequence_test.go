package sequence

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeRows(n int) []Row {
	rows := make([]Row, n)
	for i := range rows {
		rows[i] = Row{
			Section: i%NumSections + 1,
			ID:      fmt.Sprintf("s%03d", i),
			Prime:   fmt.Sprintf("p%03d.wav", i),
			Target:  fmt.Sprintf("t%03d.wav", i),
		}
	}
	return rows
}

func ids(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func TestShufflePreservesRows(t *testing.T) {
	rows := makeRows(100)
	for seed := uint64(0); seed < 20; seed++ {
		out := Shuffle(rows, NewRand(seed))
		require.Len(t, out, len(rows))
		got := ids(out)
		slices.Sort(got)
		assert.Empty(t, cmp.Diff(ids(rows), got), "seed %d", seed)
	}
}

func TestShuffleDoesNotTouchInput(t *testing.T) {
	rows := makeRows(10)
	before := slices.Clone(rows)
	Shuffle(rows, NewRand(1))
	assert.Equal(t, before, rows)
}

func TestShuffleSameSeedSameOrder(t *testing.T) {
	rows := makeRows(50)
	a := Shuffle(rows, NewRand(42))
	b := Shuffle(rows, NewRand(42))
	assert.Empty(t, cmp.Diff(ids(a), ids(b)))
}

func TestOrdersTable(t *testing.T) {
	order, err := OrderFor(5)
	require.NoError(t, err)
	assert.Equal(t, [NumSections]int{1, 4, 2, 3}, order)

	seen := make(map[[NumSections]int]bool)
	for key := 1; key <= NumOrders; key++ {
		o, err := OrderFor(key)
		require.NoError(t, err)
		sorted := o
		slices.Sort(sorted[:])
		assert.Equal(t, [NumSections]int{1, 2, 3, 4}, sorted, "key %d is not a permutation", key)
		assert.False(t, seen[o], "key %d duplicates an earlier order", key)
		seen[o] = true
	}

	_, err = OrderFor(0)
	assert.Error(t, err)
	_, err = OrderFor(25)
	assert.Error(t, err)
}

func TestDrawOrderKeyRange(t *testing.T) {
	rng := NewRand(7)
	hits := make(map[int]int)
	for i := 0; i < 5000; i++ {
		k := DrawOrderKey(rng)
		require.GreaterOrEqual(t, k, 1)
		require.LessOrEqual(t, k, NumOrders)
		hits[k]++
	}
	assert.Len(t, hits, NumOrders)
}

func TestSortBySectionsStable(t *testing.T) {
	rows := Shuffle(makeRows(40), NewRand(3))
	order := Orders[5]
	sorted := SortBySections(rows, order)

	// sections appear as contiguous blocks in the chosen order
	var blocks []int
	for _, r := range sorted {
		if len(blocks) == 0 || blocks[len(blocks)-1] != r.Section {
			blocks = append(blocks, r.Section)
		}
	}
	assert.Equal(t, order[:], blocks)

	// within a section the shuffled order is kept
	for _, s := range order {
		var before, after []string
		for _, r := range rows {
			if r.Section == s {
				before = append(before, r.ID)
			}
		}
		for _, r := range sorted {
			if r.Section == s {
				after = append(after, r.ID)
			}
		}
		assert.Empty(t, cmp.Diff(before, after), "section %d", s)
	}
}

func TestSortBySectionsIdempotent(t *testing.T) {
	rows := Shuffle(makeRows(30), NewRand(11))
	for key := 1; key <= NumOrders; key++ {
		once := SortBySections(rows, Orders[key])
		twice := SortBySections(once, Orders[key])
		assert.Empty(t, cmp.Diff(ids(once), ids(twice)), "key %d", key)
	}
}

func TestGateRates(t *testing.T) {
	const draws = 1000
	rng := NewRand(2024)
	shown, noLeft := 0, 0
	for i := 0; i < draws; i++ {
		q := Gate(rng)
		if !q.Show {
			assert.Zero(t, q.Polarity)
			continue
		}
		shown++
		if q.Polarity == NoIsLeft {
			noLeft++
		}
	}

	rate := float64(shown) / draws
	// four standard errors around 1/3 for n=1000
	assert.InDelta(t, 1.0/3, rate, 4*math.Sqrt((1.0/3)*(2.0/3)/draws))

	polarity := float64(noLeft) / float64(shown)
	assert.InDelta(t, 0.5, polarity, 4*math.Sqrt(0.25/float64(shown)))
}

func TestPolarityAnswer(t *testing.T) {
	tests := []struct {
		polarity Polarity
		key      string
		want     bool
		ok       bool
	}{
		{NoIsLeft, "left", false, true},
		{NoIsLeft, "right", true, true},
		{YesIsLeft, "left", true, true},
		{YesIsLeft, "right", false, true},
		{NoIsLeft, "q", false, false},
	}
	for _, tt := range tests {
		got, ok := tt.polarity.Answer(tt.key)
		assert.Equal(t, tt.ok, ok, "%s %s", tt.polarity, tt.key)
		assert.Equal(t, tt.want, got, "%s %s", tt.polarity, tt.key)
	}
}

func TestBreaksExactlyAtThresholds(t *testing.T) {
	b := Breaks{First: 26, Second: 51, Third: 76}
	var fired []int
	for n := 1; n <= 80; n++ {
		if b.At(n) {
			fired = append(fired, n)
		}
	}
	assert.Equal(t, []int{26, 51, 76}, fired)
}

func TestBreaksFor(t *testing.T) {
	assert.Equal(t, Breaks{4, 7, 10}, BreaksFor(Test))
	assert.Equal(t, Breaks{26, 51, 76}, BreaksFor(Female))
	assert.Equal(t, Breaks{26, 51, 76}, BreaksFor(Male))
}

func TestBuildKeepsPracticeAndMainApart(t *testing.T) {
	main := makeRows(12)
	practice := []Row{
		{Section: 1, ID: "pr1", Prime: "a.wav", Target: "b.wav"},
		{Section: 1, ID: "pr2", Prime: "c.wav", Target: "d.wav"},
	}
	p := Build(main, practice, BreaksFor(Test), NewRand(9))

	require.Len(t, p.Main, len(main))
	require.Len(t, p.Practice, len(practice))
	assert.Equal(t, Orders[p.OrderKey], p.Order)

	got := ids(p.Main)
	slices.Sort(got)
	assert.Equal(t, ids(main), got)
	for _, r := range p.Practice {
		assert.True(t, strings.HasPrefix(r.ID, "pr"))
	}
	assert.Empty(t, cmp.Diff(ids(SortBySections(p.Main, p.Order)), ids(p.Main)))
}

func TestBuildReproducible(t *testing.T) {
	main := makeRows(20)
	a := Build(main, nil, BreaksFor(Female), NewRand(77))
	b := Build(main, nil, BreaksFor(Female), NewRand(77))
	assert.Equal(t, a.OrderKey, b.OrderKey)
	assert.Empty(t, cmp.Diff(ids(a.Main), ids(b.Main)))
}

func TestLoadTable(t *testing.T) {
	in := "\ufeffID,Section,Prime,Target,Question,Notes\n" +
		"a1,2,p1.wav,t1.wav,他是老师吗？,x\n" +
		"a2,4,p2.wav,t2.wav,,y\n"
	rows, err := LoadTable(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []Row{
		{Section: 2, ID: "a1", Prime: "p1.wav", Target: "t1.wav", Question: "他是老师吗？"},
		{Section: 4, ID: "a2", Prime: "p2.wav", Target: "t2.wav"},
	}, rows)
}

func TestLoadTableMalformed(t *testing.T) {
	tests := map[string]string{
		"missing column": "Section,ID,Prime,Target\n1,a,p,t\n",
		"bad section":    "Section,ID,Prime,Target,Question\nx,a,p,t,\n",
		"section range":  "Section,ID,Prime,Target,Question\n5,a,p,t,\n",
		"empty id":       "Section,ID,Prime,Target,Question\n1,,p,t,\n",
		"empty target":   "Section,ID,Prime,Target,Question\n1,a,p,,\n",
		"empty file":     "",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadTable(strings.NewReader(in))
			assert.True(t, errors.Is(err, ErrMalformedRow), "got %v", err)
		})
	}
}

func TestSourceLoad(t *testing.T) {
	dir := t.TempDir()
	table := "Section,ID,Prime,Target,Question\n1,a,p.wav,t.wav,q\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "subgroup1version2_m.csv"), []byte(table), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "practice_male.csv"), []byte(table), 0o644))

	src := Source{Dir: dir}
	main, practice, err := src.Load(1, 2, Male)
	require.NoError(t, err)
	assert.Len(t, main, 1)
	assert.Len(t, practice, 1)

	_, _, err = src.Load(2, 2, Male)
	assert.True(t, errors.Is(err, ErrNoTable), "got %v", err)

	// test rotation practices with the female list
	assert.Equal(t, filepath.Join(dir, "practice_female.csv"), src.PracticePath(Test))
}

func TestVerifyAudio(t *testing.T) {
	dir := t.TempDir()
	primes := filepath.Join(dir, "primes")
	targets := filepath.Join(dir, "targets")
	require.NoError(t, os.MkdirAll(primes, 0o755))
	require.NoError(t, os.MkdirAll(targets, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(primes, "p.wav"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(targets, "t.wav"), nil, 0o644))

	ok := []Row{{Section: 1, ID: "a", Prime: "p.wav", Target: "t.wav"}}
	assert.NoError(t, VerifyAudio(ok, primes, targets))

	missing := []Row{{Section: 1, ID: "b", Prime: "p.wav", Target: "gone.wav"}}
	err := VerifyAudio(missing, primes, targets)
	require.ErrorIs(t, err, ErrMissingStimulus)
	assert.Contains(t, err.Error(), "row b")
}

func TestParseRotation(t *testing.T) {
	for in, want := range map[string]Rotation{"f": Female, "Female": Female, "m": Male, "male": Male, "test": Test} {
		got, err := ParseRotation(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseRotation("x")
	assert.Error(t, err)
}
