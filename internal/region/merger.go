// Package region tracks which lattice cells belong to the same visual region.
//
// Merger is a weighted union-find over the cells of one lattice. Every cell
// starts as its own singleton region. Union attaches the root of the smaller
// region under the root of the larger one and never re-parents anything else,
// so parent chains cannot cycle and each region's members are exactly the
// nodes reachable from its root through child links. There is no path
// compression; find depth stays logarithmic through weighting alone.
//
// Merger is not safe for concurrent use. SyncMerger serialises every operation
// behind one mutex for use from rule workers.
package region

import (
	"errors"
	"fmt"

	"github.com/ironsheep/ca-segment-mcp/internal/lattice"
)

// ErrUnknownCell indicates a merge request for a cell outside the merger.
var ErrUnknownCell = errors.New("region: cell not tracked by merger")

type node struct {
	parent   int
	size     int
	children []int
}

// Merger is a weighted union-find keyed by lattice coordinates.
type Merger struct {
	width, height int
	nodes         []node
	regions       int
}

// NewMerger creates width×height singleton regions.
func NewMerger(width, height int) (*Merger, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: merger %dx%d", lattice.ErrInvalidDimension, width, height)
	}
	n := width * height
	m := &Merger{width: width, height: height, nodes: make([]node, n), regions: n}
	for i := range m.nodes {
		m.nodes[i] = node{parent: i, size: 1}
	}
	return m, nil
}

func (m *Merger) index(p lattice.Point) (int, error) {
	if p.X < 0 || p.X >= m.width || p.Y < 0 || p.Y >= m.height {
		return 0, fmt.Errorf("%w: %v", ErrUnknownCell, p)
	}
	return p.Y*m.width + p.X, nil
}

// mustIndex is index for points already known to be in range.
func (m *Merger) mustIndex(p lattice.Point) int {
	return p.Y*m.width + p.X
}

func (m *Merger) point(i int) lattice.Point {
	return lattice.Point{X: i % m.width, Y: i / m.width}
}

func (m *Merger) find(i int) int {
	for m.nodes[i].parent != i {
		i = m.nodes[i].parent
	}
	return i
}

// Find returns the root cell of p's region.
func (m *Merger) Find(p lattice.Point) (lattice.Point, error) {
	i, err := m.index(p)
	if err != nil {
		return lattice.Point{}, err
	}
	return m.point(m.find(i)), nil
}

// Union merges the regions of a and b. When both regions have the same size
// a's root stays the root.
func (m *Merger) Union(a, b lattice.Point) error {
	ia, err := m.index(a)
	if err != nil {
		return err
	}
	ib, err := m.index(b)
	if err != nil {
		return err
	}
	m.union(ia, ib)
	return nil
}

func (m *Merger) union(ia, ib int) int {
	ra, rb := m.find(ia), m.find(ib)
	if ra == rb {
		return ra
	}
	if m.nodes[ra].size < m.nodes[rb].size {
		ra, rb = rb, ra
	}
	m.nodes[rb].parent = ra
	m.nodes[ra].size += m.nodes[rb].size
	m.nodes[ra].children = append(m.nodes[ra].children, rb)
	m.regions--
	return ra
}

// Connected reports whether a and b share a root.
func (m *Merger) Connected(a, b lattice.Point) (bool, error) {
	ia, err := m.index(a)
	if err != nil {
		return false, err
	}
	ib, err := m.index(b)
	if err != nil {
		return false, err
	}
	return m.find(ia) == m.find(ib), nil
}

// Size returns the number of cells in p's region.
func (m *Merger) Size(p lattice.Point) (int, error) {
	i, err := m.index(p)
	if err != nil {
		return 0, err
	}
	return m.nodes[m.find(i)].size, nil
}

// Members enumerates p's region breadth-first from its root. The walk is
// O(region size) and is not cached.
func (m *Merger) Members(p lattice.Point) ([]lattice.Point, error) {
	i, err := m.index(p)
	if err != nil {
		return nil, err
	}
	return m.members(m.find(i)), nil
}

// members lists the cells under root in breadth-first order.
func (m *Merger) members(root int) []lattice.Point {
	out := make([]lattice.Point, 0, m.nodes[root].size)
	queue := []int{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		out = append(out, m.point(n))
		queue = append(queue, m.nodes[n].children...)
	}
	return out
}

// Regions returns the current number of regions.
func (m *Merger) Regions() int { return m.regions }

// Roots returns one root per region, ordered by the region's first cell in
// row-major order. The order depends only on the partition, not on which
// cell became root.
func (m *Merger) Roots() []lattice.Point {
	seen := make(map[int]bool, m.regions)
	out := make([]lattice.Point, 0, m.regions)
	for i := range m.nodes {
		r := m.find(i)
		if !seen[r] {
			seen[r] = true
			out = append(out, m.point(r))
		}
	}
	return out
}

// Labels returns, for every cell in row-major order, the ordinal of its
// region in Roots order.
func (m *Merger) Labels() []int {
	ordinal := make(map[int]int, m.regions)
	out := make([]int, len(m.nodes))
	for i := range m.nodes {
		r := m.find(i)
		id, ok := ordinal[r]
		if !ok {
			id = len(ordinal)
			ordinal[r] = id
		}
		out[i] = id
	}
	return out
}
