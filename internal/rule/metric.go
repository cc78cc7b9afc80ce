package rule

import (
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Metric selects the colour-difference measure compared against epsilon.
//
// RGB is the Euclidean distance over 8-bit R, G, B (alpha ignored), in the
// range 0 to ~441.7. Lab and CIEDE2000 use go-colorful's perceptual distances
// scaled by 100 so epsilon reads as a conventional ΔE value.
type Metric int

const (
	RGB Metric = iota
	Lab
	CIEDE2000
)

func (m Metric) String() string {
	switch m {
	case RGB:
		return "rgb"
	case Lab:
		return "lab"
	case CIEDE2000:
		return "ciede2000"
	}
	return fmt.Sprintf("Metric(%d)", int(m))
}

// ParseMetric maps a configuration name to a Metric. The empty string is RGB.
func ParseMetric(name string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "rgb", "euclidean":
		return RGB, nil
	case "lab", "cielab":
		return Lab, nil
	case "ciede2000", "de2000":
		return CIEDE2000, nil
	}
	return 0, fmt.Errorf("rule: unknown colour metric %q", name)
}

// Distance returns the colour difference between a and b.
func (m Metric) Distance(a, b color.RGBA) float64 {
	switch m {
	case Lab:
		return toColorful(a).DistanceLab(toColorful(b)) * 100
	case CIEDE2000:
		return toColorful(a).DistanceCIEDE2000(toColorful(b)) * 100
	}
	return math.Sqrt(float64(squaredRGB(a, b)))
}

// Exceeds reports whether a and b differ by strictly more than epsilon. A
// distance equal to epsilon is not an edge.
func (m Metric) Exceeds(a, b color.RGBA, epsilon float64) bool {
	if m == RGB {
		// Integer squared distance keeps the boundary case exact.
		return float64(squaredRGB(a, b)) > epsilon*epsilon
	}
	return m.Distance(a, b) > epsilon
}

func squaredRGB(a, b color.RGBA) int {
	dr := int(a.R) - int(b.R)
	dg := int(a.G) - int(b.G)
	db := int(a.B) - int(b.B)
	return dr*dr + dg*dg + db*db
}

func toColorful(c color.RGBA) colorful.Color {
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
}
