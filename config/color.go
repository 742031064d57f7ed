package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Color is an RGB color with components in [0, 1]. In TOML it is written as
// "#rrggbb" or as [r, g, b].
type Color struct {
	R, G, B float64
	set     bool
}

func RGB(r, g, b float64) Color { return Color{R: r, G: g, B: b, set: true} }

// RGB8 builds a color from 0..255 components.
func RGB8(r, g, b uint8) Color {
	return RGB(float64(r)/255, float64(g)/255, float64(b)/255)
}

// IsSet distinguishes an explicit black from an absent color.
func (c Color) IsSet() bool { return c.set }

// Or returns c when set, def otherwise.
func (c Color) Or(def Color) Color {
	if c.set {
		return c
	}
	return def
}

func ParseColor(s string) (Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return Color{}, fmt.Errorf("color %q: want #rrggbb", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("color %q: %w", s, err)
	}
	return RGB8(uint8(v>>16), uint8(v>>8), uint8(v)), nil
}

func (c *Color) UnmarshalTOML(v any) error {
	switch v := v.(type) {
	case string:
		parsed, err := ParseColor(v)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	case []any:
		if len(v) != 3 {
			return fmt.Errorf("color array needs 3 components, got %d", len(v))
		}
		var rgb [3]float64
		for i, x := range v {
			switch n := x.(type) {
			case int64:
				rgb[i] = float64(n)
			case float64:
				rgb[i] = n
			default:
				return fmt.Errorf("color component %v is not a number", x)
			}
			if rgb[i] < 0 || rgb[i] > 1 {
				return fmt.Errorf("color component %g outside [0, 1]", rgb[i])
			}
		}
		*c = RGB(rgb[0], rgb[1], rgb[2])
		return nil
	}
	return fmt.Errorf("color: unsupported value %v", v)
}

func (c Color) String() string {
	b := func(f float64) int { return int(math.Round(math.Max(0, math.Min(1, f)) * 255)) }
	return fmt.Sprintf("#%02x%02x%02x", b(c.R), b(c.G), b(c.B))
}

func (c Color) MarshalText() ([]byte, error) { return []byte(c.String()), nil }
