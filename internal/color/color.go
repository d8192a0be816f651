// internal/color/color.go
//
// RGB color value used by the game.
// Defines:
//   - RGB: a native (red, green, blue) triple, each channel in [0,255].
//   - Formatting helpers: CSS "rgb(r,g,b)" and "#rrggbb" hex (wire format).
//   - Parse: lenient reader for formatted colors with a black fallback.
//   - Distance: perceptual CIEDE2000 distance between two colors.
//
// Notes:
//   - Colors marshal to and from JSON/YAML as "#rrggbb".
//   - Hex conversion and distance are delegated to go-colorful.

package color

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// RGB is a 24-bit color.
type RGB struct {
	R uint8
	G uint8
	B uint8
}

// Black is the fallback returned by Parse when nothing can be read.
var Black = RGB{}

// Clamp limits v to the channel range [0,255].
func Clamp(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// Shift adds offset to all three channels of c, clamping each channel.
func Shift(c RGB, offset int) RGB {
	return RGB{
		R: Clamp(int(c.R) + offset),
		G: Clamp(int(c.G) + offset),
		B: Clamp(int(c.B) + offset),
	}
}

// CSS formats c as "rgb(r,g,b)".
func (c RGB) CSS() string {
	return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B)
}

// Hex formats c as "#rrggbb".
func (c RGB) Hex() string {
	return c.colorful().Hex()
}

// String implements fmt.Stringer.
func (c RGB) String() string { return c.CSS() }

// MarshalText encodes c as "#rrggbb".
func (c RGB) MarshalText() ([]byte, error) {
	return []byte(c.Hex()), nil
}

// UnmarshalText decodes a strictly formatted color (hex, rgb() or r,g,b).
func (c *RGB) UnmarshalText(b []byte) error {
	v, err := ParseStrict(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

func (c RGB) colorful() colorful.Color {
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
}

// Distance returns the CIEDE2000 distance between a and b (0 for equal colors).
func Distance(a, b RGB) float64 {
	if a == b {
		return 0
	}
	return a.colorful().DistanceCIEDE2000(b.colorful())
}

// ------------------------------- parsing -----------------------------------

var digitRuns = regexp.MustCompile(`\d+`)

// ParseStrict reads "#rrggbb", "rgb(r,g,b)" or "r,g,b".
// Channels outside [0,255] are clamped.
func ParseStrict(s string) (RGB, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#") {
		c, err := colorful.Hex(s)
		if err != nil {
			return Black, fmt.Errorf("color: parse %q: %w", s, err)
		}
		r, g, b := c.RGB255()
		return RGB{R: r, G: g, B: b}, nil
	}
	runs := digitRuns.FindAllString(s, -1)
	if len(runs) < 3 {
		return Black, fmt.Errorf("color: parse %q: want 3 channels, got %d", s, len(runs))
	}
	var ch [3]uint8
	for i := range ch {
		n, err := strconv.Atoi(runs[i])
		if err != nil {
			// only possible on overflow of a very long digit run
			n = 255
		}
		ch[i] = Clamp(n)
	}
	return RGB{R: ch[0], G: ch[1], B: ch[2]}, nil
}

// Parse is the lenient form of ParseStrict: unreadable input yields Black.
func Parse(s string) RGB {
	c, err := ParseStrict(s)
	if err != nil {
		return Black
	}
	return c
}
