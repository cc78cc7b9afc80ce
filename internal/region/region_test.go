package region

import (
	"context"
	"image"
	"image/color"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/ca-segment-mcp/internal/lattice"
	"github.com/ironsheep/ca-segment-mcp/internal/rule"
)

func pt(x, y int) lattice.Point { return lattice.Point{X: x, Y: y} }

func TestNewMerger_InvalidDimension(t *testing.T) {
	_, err := NewMerger(0, 4)
	assert.ErrorIs(t, err, lattice.ErrInvalidDimension)
	_, err = NewSyncMerger(3, -1)
	assert.ErrorIs(t, err, lattice.ErrInvalidDimension)
}

func TestUnion_ImpliesConnected(t *testing.T) {
	m, err := NewMerger(4, 4)
	require.NoError(t, err)

	require.NoError(t, m.Union(pt(0, 0), pt(1, 0)))
	ok, err := m.Connected(pt(0, 0), pt(1, 0))
	require.NoError(t, err)
	assert.True(t, ok)

	// Unrelated unions never split an existing region.
	require.NoError(t, m.Union(pt(2, 2), pt(3, 3)))
	require.NoError(t, m.Union(pt(3, 0), pt(3, 1)))
	ok, _ = m.Connected(pt(0, 0), pt(1, 0))
	assert.True(t, ok)
	ok, _ = m.Connected(pt(0, 0), pt(2, 2))
	assert.False(t, ok)
	assert.Equal(t, 13, m.Regions())
}

func TestUnion_NoOps(t *testing.T) {
	m, err := NewMerger(3, 1)
	require.NoError(t, err)

	require.NoError(t, m.Union(pt(1, 0), pt(1, 0)))
	assert.Equal(t, 3, m.Regions())

	require.NoError(t, m.Union(pt(0, 0), pt(1, 0)))
	require.NoError(t, m.Union(pt(1, 0), pt(0, 0)))
	size, err := m.Size(pt(0, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, size)
	assert.Equal(t, 2, m.Regions())
}

func TestUnion_UnknownCell(t *testing.T) {
	m, err := NewMerger(2, 2)
	require.NoError(t, err)

	assert.ErrorIs(t, m.Union(pt(0, 0), pt(2, 0)), ErrUnknownCell)
	_, err = m.Find(pt(-1, 0))
	assert.ErrorIs(t, err, ErrUnknownCell)
	_, err = m.Connected(pt(0, 0), pt(0, 5))
	assert.ErrorIs(t, err, ErrUnknownCell)
	_, err = m.Members(pt(9, 9))
	assert.ErrorIs(t, err, ErrUnknownCell)
	assert.Equal(t, 4, m.Regions())
}

func TestUnion_WeightedAttachesSmallerUnderLarger(t *testing.T) {
	m, err := NewMerger(5, 1)
	require.NoError(t, err)

	require.NoError(t, m.Union(pt(3, 0), pt(4, 0)))
	require.NoError(t, m.Union(pt(3, 0), pt(2, 0)))
	bigRoot, err := m.Find(pt(4, 0))
	require.NoError(t, err)
	assert.Equal(t, pt(3, 0), bigRoot)

	// The singleton goes under the 3-cell root even as the first argument.
	require.NoError(t, m.Union(pt(0, 0), pt(2, 0)))
	root, err := m.Find(pt(0, 0))
	require.NoError(t, err)
	assert.Equal(t, bigRoot, root)
	size, _ := m.Size(pt(0, 0))
	assert.Equal(t, 4, size)
}

// naivePartition mirrors the unions with a relabel-everything reference.
type naivePartition []int

func (n naivePartition) union(a, b int) {
	la, lb := n[a], n[b]
	for i := range n {
		if n[i] == lb {
			n[i] = la
		}
	}
}

func TestUnionFindLaws_RandomSequences(t *testing.T) {
	const w, h = 9, 7
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 20; round++ {
		m, err := NewMerger(w, h)
		require.NoError(t, err)
		ref := make(naivePartition, w*h)
		for i := range ref {
			ref[i] = i
		}

		for k := 0; k < 40; k++ {
			a, b := rng.Intn(w*h), rng.Intn(w*h)
			require.NoError(t, m.Union(m.point(a), m.point(b)))
			ref.union(a, b)
		}

		for a := 0; a < w*h; a++ {
			pa := m.point(a)
			self, _ := m.Connected(pa, pa)
			require.True(t, self, "reflexive")
			for b := 0; b < w*h; b++ {
				pb := m.point(b)
				ab, _ := m.Connected(pa, pb)
				ba, _ := m.Connected(pb, pa)
				require.Equal(t, ab, ba, "symmetric")
				require.Equal(t, ref[a] == ref[b], ab, "round %d cells %v %v", round, pa, pb)
			}
		}

		// Members from the child tree equal the reference class and the root size.
		for a := 0; a < w*h; a++ {
			members, err := m.Members(m.point(a))
			require.NoError(t, err)
			want := 0
			for b := range ref {
				if ref[b] == ref[a] {
					want++
				}
			}
			require.Len(t, members, want)
			require.Equal(t, members, m.members(m.find(a)))
			size, _ := m.Size(m.point(a))
			require.Equal(t, want, size)
			for _, p := range members {
				require.Equal(t, ref[a], ref[m.mustIndex(p)])
			}
		}
	}
}

func TestUnion_FindDepthIsLogarithmic(t *testing.T) {
	const n = 1024
	m, err := NewMerger(n, 1)
	require.NoError(t, err)
	for step := 1; step < n; step *= 2 {
		for i := 0; i+step < n; i += 2 * step {
			require.NoError(t, m.Union(pt(i, 0), pt(i+step, 0)))
		}
	}
	assert.Equal(t, 1, m.Regions())
	for i := 0; i < n; i++ {
		depth := 0
		for j := i; m.nodes[j].parent != j; j = m.nodes[j].parent {
			depth++
		}
		assert.LessOrEqual(t, depth, 10)
	}
}

func TestRootsAndLabels_FollowFirstCell(t *testing.T) {
	m, err := NewMerger(3, 2)
	require.NoError(t, err)
	// (0,1) becomes root of {(2,0),(0,1)}; Roots still orders the region by
	// (2,0), its first cell.
	require.NoError(t, m.Union(pt(0, 1), pt(2, 0)))
	require.NoError(t, m.Union(pt(0, 0), pt(1, 0)))

	roots := m.Roots()
	require.Len(t, roots, 4)
	first, _ := m.Find(pt(0, 0))
	second, _ := m.Find(pt(2, 0))
	assert.Equal(t, first, roots[0])
	assert.Equal(t, second, roots[1])
	assert.Equal(t, []int{0, 0, 1, 1, 2, 3}, m.Labels())
}

func TestSyncMerger_ConcurrentUnions(t *testing.T) {
	const w, h = 32, 32
	s, err := NewSyncMerger(w, h)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for row := 0; row < h; row++ {
		wg.Add(1)
		go func(y int) {
			defer wg.Done()
			for x := 0; x+1 < w; x++ {
				if err := s.Union(pt(x, y), pt(x+1, y)); err != nil {
					t.Error(err)
				}
			}
			if y+1 < h {
				if err := s.Union(pt(0, y), pt(0, y+1)); err != nil {
					t.Error(err)
				}
			}
		}(row)
	}
	wg.Wait()

	assert.Equal(t, 1, s.Regions())
	size, err := s.Size(pt(17, 5))
	require.NoError(t, err)
	assert.Equal(t, w*h, size)
	ok, err := s.Connected(pt(0, 0), pt(w-1, h-1))
	require.NoError(t, err)
	assert.True(t, ok)
	members, err := s.Members(pt(3, 3))
	require.NoError(t, err)
	assert.Len(t, members, w*h)
	root, err := s.Find(pt(9, 9))
	require.NoError(t, err)
	frozenRoot, err := s.Frozen().Find(pt(0, 0))
	require.NoError(t, err)
	assert.Equal(t, root, frozenRoot)
}

// latticeOf builds a lattice from rows of palette keys.
func latticeOf(t *testing.T, rows []string, palette map[byte]color.RGBA) *lattice.Lattice {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, len(rows[0]), len(rows)))
	for y, row := range rows {
		for x := 0; x < len(row); x++ {
			img.SetRGBA(x, y, palette[row[x]])
		}
	}
	l, err := lattice.FromRaster(lattice.NewImageRaster(img), 1)
	require.NoError(t, err)
	return l
}

// groupByColour unions cardinally adjacent cells of identical colour.
func groupByColour(t *testing.T, l *lattice.Lattice) *SyncMerger {
	t.Helper()
	s, err := NewSyncMerger(l.Width(), l.Height())
	require.NoError(t, err)
	for _, p := range l.Points() {
		for _, q := range []lattice.Point{p.Add(pt(1, 0)), p.Add(pt(0, 1))} {
			if l.Contains(q) && l.At(p).Colour == l.At(q).Colour {
				require.NoError(t, s.Union(p, q))
			}
		}
	}
	return s
}

var palette = map[byte]color.RGBA{
	'a': {200, 0, 0, 255},
	'b': {0, 0, 200, 255},
	'c': {190, 10, 0, 255},
	'd': {0, 10, 190, 255},
	'x': {100, 0, 100, 255},
}

func TestSummarise(t *testing.T) {
	l := latticeOf(t, []string{"aab", "aab"}, palette)
	s := groupByColour(t, l)

	stats, err := Summarise(l, s.Frozen())
	require.NoError(t, err)
	require.Len(t, stats, 2)

	rootA, _ := s.Find(pt(0, 0))
	a := stats[rootA]
	assert.Equal(t, 4, a.Area)
	assert.Equal(t, palette['a'], a.Mean())
	assert.Equal(t, [4]int{0, 0, 1, 1}, [4]int{a.MinX, a.MinY, a.MaxX, a.MaxY})

	other, err := NewMerger(2, 2)
	require.NoError(t, err)
	_, err = Summarise(l, other)
	assert.ErrorIs(t, err, lattice.ErrInvalidDimension)
}

func TestAssimilator_MergesIntoMostSimilarNeighbour(t *testing.T) {
	// The lone 'c' pixel sits between a red and a blue region and is closer
	// to red.
	l := latticeOf(t, []string{
		"aaabbb",
		"aacbbb",
		"aaabbb",
	}, palette)
	s := groupByColour(t, l)
	require.Equal(t, 3, s.Regions())

	report, err := (&Assimilator{MinArea: 2}).Run(context.Background(), l, s)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Merges)
	assert.Equal(t, 2, report.Regions)

	ok, _ := s.Connected(pt(2, 1), pt(0, 0))
	assert.True(t, ok, "c should join the red region")
	ok, _ = s.Connected(pt(2, 1), pt(5, 0))
	assert.False(t, ok)
}

func TestAssimilator_TieGoesToFirstNeighbour(t *testing.T) {
	// 'x' is equidistant from 'a' (north) and 'b' (south); north is seen first.
	l := latticeOf(t, []string{
		"aaa",
		"axa",
		"bbb",
	}, map[byte]color.RGBA{
		'a': {100, 0, 0, 255},
		'x': {100, 0, 50, 255},
		'b': {100, 0, 100, 255},
	})
	s := groupByColour(t, l)

	_, err := (&Assimilator{MinArea: 2}).Run(context.Background(), l, s)
	require.NoError(t, err)
	ok, _ := s.Connected(pt(1, 1), pt(1, 0))
	assert.True(t, ok)
	ok, _ = s.Connected(pt(1, 1), pt(1, 2))
	assert.False(t, ok)
}

func TestAssimilator_NoRegionBelowThreshold(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	keys := []byte("abcdx")
	rows := make([]string, 12)
	for y := range rows {
		row := make([]byte, 15)
		for x := range row {
			row[x] = keys[rng.Intn(len(keys))]
		}
		rows[y] = string(row)
	}
	l := latticeOf(t, rows, palette)
	s := groupByColour(t, l)

	before := map[lattice.Point]int{}
	for _, p := range l.Points() {
		n, _ := s.Size(p)
		before[p] = n
	}

	const minArea = 6
	_, err := (&Assimilator{MinArea: minArea, Metric: rule.Lab}).Run(context.Background(), l, s)
	require.NoError(t, err)

	m := s.Frozen()
	for _, root := range m.Roots() {
		size, _ := m.Size(root)
		assert.GreaterOrEqual(t, size, minArea)
	}
	for _, p := range l.Points() {
		n, _ := m.Size(p)
		assert.GreaterOrEqual(t, n, before[p], "region of %v shrank", p)
	}
}

func TestAssimilator_WholeImageSingleRegion(t *testing.T) {
	l := latticeOf(t, []string{"ab"}, palette)
	s := groupByColour(t, l)

	report, err := (&Assimilator{MinArea: 10}).Run(context.Background(), l, s)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Merges)
	assert.Equal(t, 1, report.Regions)
}

func TestAssimilator_Cancelled(t *testing.T) {
	l := latticeOf(t, []string{"abab", "baba"}, palette)
	s := groupByColour(t, l)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&Assimilator{MinArea: 3}).Run(ctx, l, s)
	assert.ErrorIs(t, err, context.Canceled)
}
