// Package neighbourhood computes ordered neighbour lists for lattice cells.
//
// A Strategy is a tagged union over the supported topologies: full square
// (Moore), approximate circle (VonNeumann), the four axis neighbours
// (VonNeumannCardinal), and the clockwise 8-cell ring used for outline tracing
// (MooreOutline). Neighbours are returned as coordinates; padding cells are
// never part of a list.
package neighbourhood

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ironsheep/ca-segment-mcp/internal/lattice"
)

// ErrRadius indicates a negative neighbourhood radius or an unknown kind name.
var ErrRadius = errors.New("neighbourhood: invalid radius or kind")

// Kind enumerates the neighbourhood topologies.
type Kind int

const (
	// Moore covers the (2r+1)×(2r+1) square.
	Moore Kind = iota
	// VonNeumann covers cells within Euclidean distance r.
	VonNeumann
	// VonNeumannCardinal covers the 4 axis-adjacent cells.
	VonNeumannCardinal
	// MooreOutline covers the 8 ring cells in fixed clockwise order from north.
	MooreOutline
)

func (k Kind) String() string {
	switch k {
	case Moore:
		return "moore"
	case VonNeumann:
		return "vonneumann"
	case VonNeumannCardinal:
		return "cardinal"
	case MooreOutline:
		return "outline"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a configuration name to a Kind.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "moore", "square":
		return Moore, nil
	case "vonneumann", "von-neumann", "circle":
		return VonNeumann, nil
	case "cardinal":
		return VonNeumannCardinal, nil
	case "outline":
		return MooreOutline, nil
	}
	return 0, fmt.Errorf("%w: unknown kind %q", ErrRadius, name)
}

// Ring is the MooreOutline order: N, NE, E, SE, S, SW, W, NW. Y grows
// downward, so north is (0,-1).
var Ring = [8]lattice.Point{
	{X: 0, Y: -1},
	{X: 1, Y: -1},
	{X: 1, Y: 0},
	{X: 1, Y: 1},
	{X: 0, Y: 1},
	{X: -1, Y: 1},
	{X: -1, Y: 0},
	{X: -1, Y: -1},
}

var cardinal = []lattice.Point{{X: 0, Y: -1}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: -1, Y: 0}}

// Strategy is an immutable neighbourhood geometry.
type Strategy struct {
	kind        Kind
	radius      int
	includeSelf bool
	offsets     []lattice.Point
}

// NewMoore returns the square neighbourhood of radius r in row-major order.
func NewMoore(r int, includeSelf bool) (Strategy, error) {
	if r < 0 {
		return Strategy{}, fmt.Errorf("%w: moore r=%d", ErrRadius, r)
	}
	offsets := make([]lattice.Point, 0, (2*r+1)*(2*r+1))
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx == 0 && dy == 0 && !includeSelf {
				continue
			}
			offsets = append(offsets, lattice.Point{X: dx, Y: dy})
		}
	}
	return Strategy{kind: Moore, radius: r, includeSelf: includeSelf, offsets: offsets}, nil
}

// NewVonNeumann returns the cells of the Moore square whose centre lies within
// Euclidean distance r, in row-major order.
func NewVonNeumann(r int, includeSelf bool) (Strategy, error) {
	if r < 0 {
		return Strategy{}, fmt.Errorf("%w: vonneumann r=%d", ErrRadius, r)
	}
	offsets := make([]lattice.Point, 0)
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx == 0 && dy == 0 && !includeSelf {
				continue
			}
			if dx*dx+dy*dy <= r*r {
				offsets = append(offsets, lattice.Point{X: dx, Y: dy})
			}
		}
	}
	return Strategy{kind: VonNeumann, radius: r, includeSelf: includeSelf, offsets: offsets}, nil
}

// NewCardinal returns the N, E, S, W neighbourhood.
func NewCardinal() Strategy {
	return Strategy{kind: VonNeumannCardinal, radius: 1, offsets: cardinal}
}

// NewOutline returns the MooreOutline ring.
func NewOutline() Strategy {
	return Strategy{kind: MooreOutline, radius: 1, offsets: Ring[:]}
}

// New builds a strategy from its kind. Radius and includeSelf are ignored by
// the fixed r=1 kinds.
func New(kind Kind, r int, includeSelf bool) (Strategy, error) {
	switch kind {
	case Moore:
		return NewMoore(r, includeSelf)
	case VonNeumann:
		return NewVonNeumann(r, includeSelf)
	case VonNeumannCardinal:
		return NewCardinal(), nil
	case MooreOutline:
		return NewOutline(), nil
	}
	return Strategy{}, fmt.Errorf("%w: %v", ErrRadius, kind)
}

// Kind returns the strategy's topology.
func (s Strategy) Kind() Kind { return s.kind }

// Radius returns the largest coordinate offset the strategy reaches.
func (s Strategy) Radius() int { return s.radius }

// IncludeSelf reports whether the centre cell is part of the list.
func (s Strategy) IncludeSelf() bool { return s.includeSelf }

// Offsets returns a copy of the relative coordinates in list order.
func (s Strategy) Offsets() []lattice.Point {
	out := make([]lattice.Point, len(s.offsets))
	copy(out, s.offsets)
	return out
}

// Neighbours computes the list for p without caching.
func (s Strategy) Neighbours(l *lattice.Lattice, p lattice.Point) ([]lattice.Point, error) {
	if err := s.check(l, p); err != nil {
		return nil, err
	}
	return s.compute(l, p), nil
}

func (s Strategy) check(l *lattice.Lattice, p lattice.Point) error {
	if s.radius > l.Radius() {
		return fmt.Errorf("%w: %v radius %d exceeds padding %d", lattice.ErrOutOfBounds, s.kind, s.radius, l.Radius())
	}
	if !l.Contains(p) {
		return fmt.Errorf("%w: neighbours of %v", lattice.ErrOutOfBounds, p)
	}
	return nil
}

func (s Strategy) compute(l *lattice.Lattice, p lattice.Point) []lattice.Point {
	out := make([]lattice.Point, 0, len(s.offsets))
	for _, o := range s.offsets {
		q := p.Add(o)
		if l.Contains(q) {
			out = append(out, q)
		}
	}
	return out
}

// Provider yields the neighbour list of a cell.
type Provider interface {
	Neighbours(p lattice.Point) ([]lattice.Point, error)
}

type direct struct {
	s Strategy
	l *lattice.Lattice
}

func (d direct) Neighbours(p lattice.Point) ([]lattice.Point, error) {
	return d.s.Neighbours(d.l, p)
}

// Bind returns an uncached provider, for strategies consulted once per cell.
func (s Strategy) Bind(l *lattice.Lattice) (Provider, error) {
	if s.radius > l.Radius() {
		return nil, fmt.Errorf("%w: %v radius %d exceeds padding %d", lattice.ErrOutOfBounds, s.kind, s.radius, l.Radius())
	}
	return direct{s: s, l: l}, nil
}
