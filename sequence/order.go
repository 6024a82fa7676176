package sequence

import (
	"fmt"
	"math/rand/v2"
	"slices"
)

const (
	NumSections = 4
	NumOrders   = 24
)

// Orders enumerates every permutation of the four sections in lexicographic
// order. Keys run from 1 to NumOrders; index 0 is unused.
var Orders = [NumOrders + 1][NumSections]int{
	{},
	{1, 2, 3, 4},
	{1, 2, 4, 3},
	{1, 3, 2, 4},
	{1, 3, 4, 2},
	{1, 4, 2, 3},
	{1, 4, 3, 2},
	{2, 1, 3, 4},
	{2, 1, 4, 3},
	{2, 3, 1, 4},
	{2, 3, 4, 1},
	{2, 4, 1, 3},
	{2, 4, 3, 1},
	{3, 1, 2, 4},
	{3, 1, 4, 2},
	{3, 2, 1, 4},
	{3, 2, 4, 1},
	{3, 4, 1, 2},
	{3, 4, 2, 1},
	{4, 1, 2, 3},
	{4, 1, 3, 2},
	{4, 2, 1, 3},
	{4, 2, 3, 1},
	{4, 3, 1, 2},
	{4, 3, 2, 1},
}

func OrderFor(key int) ([NumSections]int, error) {
	if key < 1 || key > NumOrders {
		return [NumSections]int{}, fmt.Errorf("sequence: order key %d out of range 1-%d", key, NumOrders)
	}
	return Orders[key], nil
}

func DrawOrderKey(rng *rand.Rand) int {
	return rng.IntN(NumOrders) + 1
}

// SortBySections returns a copy of rows ordered by the position of each row's
// section in order. The sort is stable, so rows of one section keep their
// shuffled relative order.
func SortBySections(rows []Row, order [NumSections]int) []Row {
	rank := make(map[int]int, NumSections)
	for i, s := range order {
		rank[s] = i
	}
	out := slices.Clone(rows)
	slices.SortStableFunc(out, func(a, b Row) int {
		return rank[a.Section] - rank[b.Section]
	})
	return out
}
