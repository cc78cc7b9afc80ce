package rule

import (
	"fmt"

	"github.com/ironsheep/ca-segment-mcp/internal/lattice"
	"github.com/ironsheep/ca-segment-mcp/internal/neighbourhood"
)

// Unioner merges the regions of two cells. region.SyncMerger satisfies it.
type Unioner interface {
	Union(a, b lattice.Point) error
}

// RegionClassify joins each non-edge cell to every non-edge neighbour within
// Epsilon. Only neighbours after the cell in row-major order are considered,
// so each adjacent pair is offered to the merger once. Edge cells stay
// singleton regions until assimilation.
type RegionClassify struct {
	Neighbours neighbourhood.Provider
	Merger     Unioner
	Epsilon    float64
	Metric     Metric
}

// Name returns "region".
func (r *RegionClassify) Name() string { return "region" }

// Apply implements Rule.
func (r *RegionClassify) Apply(v lattice.View, c lattice.Cell) (Outcome, error) {
	if c.Class == lattice.Edge {
		return Unchanged(c, lattice.Inactive), nil
	}
	nbs, err := r.Neighbours.Neighbours(c.Point)
	if err != nil {
		return Outcome{}, fmt.Errorf("region %v: %w", c.Point, err)
	}
	for _, p := range nbs {
		if p.Y < c.Y || (p.Y == c.Y && p.X < c.X) {
			continue
		}
		n := v.Cell(p.X, p.Y)
		if n.Class == lattice.Edge || r.Metric.Exceeds(c.Colour, n.Colour, r.Epsilon) {
			continue
		}
		if err := r.Merger.Union(c.Point, p); err != nil {
			return Outcome{}, fmt.Errorf("region %v: %w", c.Point, err)
		}
	}
	return Unchanged(c, lattice.Inactive), nil
}
