package rule

import (
	"fmt"
	"image/color"
	"sort"

	"github.com/ironsheep/ca-segment-mcp/internal/lattice"
	"github.com/ironsheep/ca-segment-mcp/internal/neighbourhood"
)

// Denoise removes isolated colour outliers.
//
// For each cell it takes the per-channel median over the neighbourhood window.
// When the cell differs from that median by more than Epsilon the cell takes
// the median colour and stays ACTIVE for another pass; otherwise it keeps its
// colour and settles to INACTIVE. Repeating passes over the active cells runs
// the filter to a fixed point.
type Denoise struct {
	Neighbours neighbourhood.Provider
	Epsilon    float64
	Metric     Metric
}

// Name returns "denoise".
func (d *Denoise) Name() string { return "denoise" }

// Apply implements Rule.
func (d *Denoise) Apply(v lattice.View, c lattice.Cell) (Outcome, error) {
	nbs, err := d.Neighbours.Neighbours(c.Point)
	if err != nil {
		return Outcome{}, fmt.Errorf("denoise %v: %w", c.Point, err)
	}
	if len(nbs) == 0 {
		return Unchanged(c, lattice.Inactive), nil
	}

	window := make([]color.RGBA, 0, len(nbs))
	for _, p := range nbs {
		window = append(window, v.Cell(p.X, p.Y).Colour)
	}
	median := MedianColour(window)

	if d.Metric.Exceeds(c.Colour, median, d.Epsilon) {
		return Outcome{Colour: median, State: lattice.Active, Class: c.Class}, nil
	}
	return Unchanged(c, lattice.Inactive), nil
}

// MedianColour returns the per-channel median of colours. For an even count
// the lower middle value is used so the result is always an observed channel
// value.
func MedianColour(colours []color.RGBA) color.RGBA {
	n := len(colours)
	if n == 0 {
		return color.RGBA{}
	}
	r := make([]int, n)
	g := make([]int, n)
	b := make([]int, n)
	a := make([]int, n)
	for i, c := range colours {
		r[i], g[i], b[i], a[i] = int(c.R), int(c.G), int(c.B), int(c.A)
	}
	mid := (n - 1) / 2
	pick := func(ch []int) uint8 {
		sort.Ints(ch)
		return uint8(ch[mid])
	}
	return color.RGBA{R: pick(r), G: pick(g), B: pick(b), A: pick(a)}
}
