// Package sequence turns stimulus tables into the ordered trial lists of a
// session: uniform shuffling, section counterbalancing through a fixed table
// of 24 orders, per-trial question gating and break scheduling.
//
// Every random draw goes through the *rand.Rand handed in by the caller so a
// session can be replayed from its recorded seed.
package sequence

import (
	"math/rand/v2"
	"slices"
)

// NewRand returns the generator used for one session.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Shuffle returns a uniformly permuted copy of rows.
func Shuffle(rows []Row, rng *rand.Rand) []Row {
	out := slices.Clone(rows)
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// Polarity decides which arrow key answers "yes" for one question.
type Polarity int

const (
	// NoIsLeft shows "left = no | right = yes".
	NoIsLeft Polarity = iota + 1
	// YesIsLeft shows "left = yes | right = no".
	YesIsLeft
)

// Answer maps an arrow key to the participant's boolean answer.
func (p Polarity) Answer(key string) (bool, bool) {
	switch key {
	case "left":
		return p == YesIsLeft, true
	case "right":
		return p == NoIsLeft, true
	}
	return false, false
}

func (p Polarity) String() string {
	switch p {
	case NoIsLeft:
		return "no-left"
	case YesIsLeft:
		return "yes-left"
	}
	return "none"
}

type Question struct {
	Show     bool
	Polarity Polarity
}

// Gate draws whether a trial gets a comprehension question (one in three)
// and, if so, its polarity (one in two).
func Gate(rng *rand.Rand) Question {
	if rng.IntN(3) != 1 {
		return Question{}
	}
	if rng.IntN(2) == 0 {
		return Question{Show: true, Polarity: NoIsLeft}
	}
	return Question{Show: true, Polarity: YesIsLeft}
}

// Breaks holds the 1-based trial counts before which a rest screen appears.
type Breaks struct {
	First  int `yaml:"first"`
	Second int `yaml:"second"`
	Third  int `yaml:"third"`
}

func BreaksFor(rot Rotation) Breaks {
	if rot == Test {
		return Breaks{First: 4, Second: 7, Third: 10}
	}
	return Breaks{First: 26, Second: 51, Third: 76}
}

// At reports whether the running trial count n hits a threshold exactly.
func (b Breaks) At(n int) bool {
	return n == b.First || n == b.Second || n == b.Third
}

// Plan is the fully sequenced content of a session.
type Plan struct {
	OrderKey int
	Order    [NumSections]int
	Practice []Row
	Main     []Row
	Breaks   Breaks
}

// Build shuffles the practice rows, then shuffles the main rows and sorts them
// into the section order drawn for this session.
func Build(main, practice []Row, breaks Breaks, rng *rand.Rand) Plan {
	p := Plan{Breaks: breaks}
	shuffled := Shuffle(main, rng)
	p.OrderKey = DrawOrderKey(rng)
	p.Order = Orders[p.OrderKey]
	p.Main = SortBySections(shuffled, p.Order)
	p.Practice = Shuffle(practice, rng)
	return p
}
