package rule

import (
	"fmt"

	"github.com/ironsheep/ca-segment-mcp/internal/lattice"
	"github.com/ironsheep/ca-segment-mcp/internal/neighbourhood"
)

// EdgeDetect classifies a cell as Edge when any neighbour differs from it by
// strictly more than Epsilon, and Quiescent otherwise. Every cell settles to
// INACTIVE after one application; colour is untouched.
type EdgeDetect struct {
	Neighbours neighbourhood.Provider
	Epsilon    float64
	Metric     Metric
}

// Name returns "edge".
func (e *EdgeDetect) Name() string { return "edge" }

// Apply implements Rule.
func (e *EdgeDetect) Apply(v lattice.View, c lattice.Cell) (Outcome, error) {
	nbs, err := e.Neighbours.Neighbours(c.Point)
	if err != nil {
		return Outcome{}, fmt.Errorf("edge %v: %w", c.Point, err)
	}

	class := lattice.Quiescent
	for _, p := range nbs {
		if e.Metric.Exceeds(c.Colour, v.Cell(p.X, p.Y).Colour, e.Epsilon) {
			class = lattice.Edge
			break
		}
	}
	return Outcome{Colour: c.Colour, State: lattice.Inactive, Class: class}, nil
}
