package sequence

import (
	"fmt"
	"strings"
)

// Rotation selects the voice set, the practice list and the break schedule.
type Rotation string

const (
	Female Rotation = "f"
	Male   Rotation = "m"
	Test   Rotation = "test"
)

var Rotations = []Rotation{Female, Male, Test}

func ParseRotation(s string) (Rotation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "f", "female":
		return Female, nil
	case "m", "male":
		return Male, nil
	case "test":
		return Test, nil
	}
	return "", fmt.Errorf("unknown rotation %q (want f, m or test)", s)
}

func (r Rotation) String() string { return string(r) }

func (r Rotation) Valid() bool {
	return r == Female || r == Male || r == Test
}
