package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Color struct {
	R, G, B, A uint8
}

// ParseColor reads "R,G,B" or "R,G,B,A". Alpha defaults to opaque.
func ParseColor(s string) (Color, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 && len(parts) != 4 {
		return Color{}, fmt.Errorf("color %q: want R,G,B or R,G,B,A", s)
	}
	var v [4]uint8
	v[3] = 255
	for i, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			return Color{}, fmt.Errorf("color %q: %w", s, err)
		}
		v[i] = uint8(n)
	}
	return Color{R: v[0], G: v[1], B: v[2], A: v[3]}, nil
}

func (c Color) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", c.R, c.G, c.B, c.A)
}

func (c *Color) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseColor(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c Color) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}
