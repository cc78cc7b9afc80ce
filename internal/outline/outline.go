// Package outline traces the outer boundary of a region.
//
// A region is any non-empty set of lattice cells plus a membership test;
// cells outside the lattice, including padding, count as outside. A boundary
// cell is a member with at least one of its eight ring neighbours outside the
// region.
//
// Two views of the same boundary are produced. Cells is a clockwise
// Moore-neighbour walk over boundary cells starting at the region's first cell
// in row-major order and heading east. Vertices is the closed polygon of
// lattice corners obtained by following the cracks between member and
// non-member cells with the region kept on the right, so an N×M rectangle has
// 2(N+M) vertices and a single cell has its four corners.
//
// Only the outer boundary is traced. Holes inside a region are not reported.
package outline

import (
	"errors"
	"fmt"

	"github.com/ironsheep/ca-segment-mcp/internal/lattice"
	"github.com/ironsheep/ca-segment-mcp/internal/neighbourhood"
	"github.com/ironsheep/ca-segment-mcp/internal/region"
)

var (
	// ErrEmptyRegion indicates a trace request with no member cells.
	ErrEmptyRegion = errors.New("outline: empty region")
	// ErrTraceDiverged indicates the membership test disagreed with the member
	// list or a walk failed to return to its start within the step bound.
	ErrTraceDiverged = errors.New("outline: trace did not close")
)

// Membership reports whether p belongs to the region being traced.
type Membership func(p lattice.Point) bool

// Outline is the traced boundary of one region.
type Outline struct {
	// Cells lists boundary cells in walk order, each once.
	Cells []lattice.Point `json:"cells"`
	// Vertices lists lattice corners of the boundary polygon. The polygon
	// closes from the last vertex back to the first.
	Vertices []lattice.Point `json:"vertices"`
	// Closed reports that the polygon's last vertex is one unit step from
	// its first.
	Closed bool `json:"closed"`
}

var (
	east  = lattice.Point{X: 1, Y: 0}
	south = lattice.Point{X: 0, Y: 1}
	west  = lattice.Point{X: -1, Y: 0}
	north = lattice.Point{X: 0, Y: -1}
)

// Trace computes the outline of the region made of members. members need not
// be sorted; inside must accept exactly the members. The walks step on the
// member list, and a neighbour that inside accepts but the list lacks fails
// the trace.
func Trace(members []lattice.Point, inside Membership) (*Outline, error) {
	if len(members) == 0 {
		return nil, ErrEmptyRegion
	}
	set := make(map[lattice.Point]bool, len(members))
	start := members[0]
	for _, p := range members {
		if !inside(p) {
			return nil, fmt.Errorf("%w: member %v rejected by membership test", ErrTraceDiverged, p)
		}
		set[p] = true
		if p.Y < start.Y || (p.Y == start.Y && p.X < start.X) {
			start = p
		}
	}
	var stray *lattice.Point
	member := func(p lattice.Point) bool {
		if set[p] {
			return true
		}
		if stray == nil && inside(p) {
			q := p
			stray = &q
		}
		return false
	}
	limit := 8*len(members) + 8

	cells, err := walkCells(start, member, limit)
	if err != nil {
		return nil, err
	}
	vertices, err := walkCracks(start, member, limit)
	if err != nil {
		return nil, err
	}
	if stray != nil {
		return nil, fmt.Errorf("%w: %v accepted by membership test but not a member", ErrTraceDiverged, *stray)
	}
	return &Outline{Cells: cells, Vertices: vertices, Closed: closes(vertices)}, nil
}

// closes reports whether the polygon's last vertex is one unit step from its
// first.
func closes(vertices []lattice.Point) bool {
	if len(vertices) < 4 {
		return false
	}
	d := vertices[0].Sub(vertices[len(vertices)-1])
	switch d {
	case east, south, west, north:
		return true
	}
	return false
}

// IsBoundary reports whether member p has a ring neighbour outside the region.
func IsBoundary(p lattice.Point, inside Membership) bool {
	for _, off := range neighbourhood.Ring {
		if !inside(p.Add(off)) {
			return true
		}
	}
	return false
}

func touchesOutside(p lattice.Point, inside Membership) bool {
	for _, d := range [4]lattice.Point{north, east, south, west} {
		if !inside(p.Add(d)) {
			return true
		}
	}
	return false
}

func ringSlot(off lattice.Point) int {
	for i, r := range neighbourhood.Ring {
		if r == off {
			return i
		}
	}
	return -1
}

// walkCells is Moore-neighbour tracing. back is the outside cell examined
// last before the current cell was entered; each scan runs clockwise from the
// slot after it.
func walkCells(start lattice.Point, inside Membership, limit int) ([]lattice.Point, error) {
	visited := map[lattice.Point]bool{start: true}
	cells := []lattice.Point{start}
	visit := func(p lattice.Point) {
		if !visited[p] {
			visited[p] = true
			cells = append(cells, p)
		}
	}

	cur, back := start, start.Add(north)
	first := -1
	for steps := 0; ; steps++ {
		if steps > limit {
			return nil, fmt.Errorf("%w: cell walk from %v", ErrTraceDiverged, start)
		}
		from := ringSlot(back.Sub(cur))
		found := -1
		for i := 1; i <= 8; i++ {
			k := (from + i) % 8
			if inside(cur.Add(neighbourhood.Ring[k])) {
				found = k
				break
			}
		}
		if found < 0 {
			// Isolated cell.
			return cells, nil
		}
		if cur == start {
			if first == found {
				return cells, nil
			}
			if first < 0 {
				first = found
			}
		}

		if found%2 == 1 {
			// A diagonal step can pass a member that only touches the
			// outside at a corner; the walk would never stand on it.
			mid := cur.Add(neighbourhood.Ring[(found+1)%8])
			if inside(mid) && !visited[mid] && !touchesOutside(mid, inside) && IsBoundary(mid, inside) {
				visit(mid)
			}
		}
		back = cur.Add(neighbourhood.Ring[(found+7)%8])
		cur = cur.Add(neighbourhood.Ring[found])
		visit(cur)
	}
}

// turn picks the next heading at vertex v, keeping the region on the right.
// Cells meeting only at a corner are treated as separate.
func turn(v, heading lattice.Point, inside Membership) lattice.Point {
	var aheadLeft, aheadRight lattice.Point
	switch heading {
	case east:
		aheadLeft, aheadRight = lattice.Point{X: v.X, Y: v.Y - 1}, lattice.Point{X: v.X, Y: v.Y}
	case south:
		aheadLeft, aheadRight = lattice.Point{X: v.X, Y: v.Y}, lattice.Point{X: v.X - 1, Y: v.Y}
	case west:
		aheadLeft, aheadRight = lattice.Point{X: v.X - 1, Y: v.Y}, lattice.Point{X: v.X - 1, Y: v.Y - 1}
	default:
		aheadLeft, aheadRight = lattice.Point{X: v.X - 1, Y: v.Y - 1}, lattice.Point{X: v.X, Y: v.Y - 1}
	}
	switch {
	case !inside(aheadRight):
		return lattice.Point{X: -heading.Y, Y: heading.X}
	case inside(aheadLeft):
		return lattice.Point{X: heading.Y, Y: -heading.X}
	}
	return heading
}

// walkCracks follows cell edges from the top-left corner of start, which has
// only start among its four adjacent cells.
func walkCracks(start lattice.Point, inside Membership, limit int) ([]lattice.Point, error) {
	vertices := []lattice.Point{start}
	v, heading := start, east
	for steps := 0; ; steps++ {
		if steps > 4*limit {
			return nil, fmt.Errorf("%w: crack walk from %v", ErrTraceDiverged, start)
		}
		v = v.Add(heading)
		heading = turn(v, heading, inside)
		if v == start && heading == east {
			return vertices, nil
		}
		vertices = append(vertices, v)
	}
}

// Tracer traces regions held by a merger whose unions are finished.
type Tracer struct {
	m *region.Merger
}

// NewTracer returns a Tracer over m.
func NewTracer(m *region.Merger) *Tracer {
	return &Tracer{m: m}
}

// Region traces the region containing p.
func (t *Tracer) Region(p lattice.Point) (*Outline, error) {
	root, err := t.m.Find(p)
	if err != nil {
		return nil, err
	}
	members, err := t.m.Members(root)
	if err != nil {
		return nil, err
	}
	return Trace(members, func(q lattice.Point) bool {
		r, err := t.m.Find(q)
		return err == nil && r == root
	})
}
