// Package rule defines the cell transition functions run by the executor.
//
// A Rule reads the committed (front) lattice buffer through lattice.View and
// returns the cell's next colour, state, and class. It never writes the lattice
// itself; the executor stores the Outcome in the back buffer. Rules must be
// safe to call from several goroutines at once.
//
// Variants:
//   - Denoise: replaces outliers with the per-channel median of their window
//   - EdgeDetect: classifies cells as Edge or Quiescent against epsilon
//   - RegionClassify: unions quiescent cells with similar quiescent neighbours
package rule

import (
	"image/color"

	"github.com/ironsheep/ca-segment-mcp/internal/lattice"
)

// Outcome is the next value of one cell.
type Outcome struct {
	Colour color.RGBA
	State  lattice.State
	Class  lattice.Class
}

// Unchanged returns c's current values with the given state.
func Unchanged(c lattice.Cell, s lattice.State) Outcome {
	return Outcome{Colour: c.Colour, State: s, Class: c.Class}
}

// Rule maps a cell and its neighbourhood to the cell's next value.
type Rule interface {
	Name() string
	Apply(v lattice.View, c lattice.Cell) (Outcome, error)
}

// Func adapts a plain function to Rule.
type Func struct {
	Label string
	Fn    func(v lattice.View, c lattice.Cell) (Outcome, error)
}

// Name returns the label.
func (f Func) Name() string { return f.Label }

// Apply calls Fn.
func (f Func) Apply(v lattice.View, c lattice.Cell) (Outcome, error) { return f.Fn(v, c) }
