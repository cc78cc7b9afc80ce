package region

import (
	"context"
	"fmt"
	"image/color"
	"sort"

	"github.com/ironsheep/ca-segment-mcp/internal/lattice"
	"github.com/ironsheep/ca-segment-mcp/internal/rule"
)

// Stats aggregates the colour and extent of one region.
type Stats struct {
	Area                   int
	sum                    [4]int64
	MinX, MinY, MaxX, MaxY int
}

func (s *Stats) add(p lattice.Point, c color.RGBA) {
	if s.Area == 0 {
		s.MinX, s.MinY, s.MaxX, s.MaxY = p.X, p.Y, p.X, p.Y
	}
	s.Area++
	s.sum[0] += int64(c.R)
	s.sum[1] += int64(c.G)
	s.sum[2] += int64(c.B)
	s.sum[3] += int64(c.A)
	s.MinX = min(s.MinX, p.X)
	s.MinY = min(s.MinY, p.Y)
	s.MaxX = max(s.MaxX, p.X)
	s.MaxY = max(s.MaxY, p.Y)
}

func (s *Stats) absorb(o *Stats) {
	if o.Area == 0 {
		return
	}
	if s.Area == 0 {
		*s = *o
		return
	}
	s.Area += o.Area
	for i := range s.sum {
		s.sum[i] += o.sum[i]
	}
	s.MinX = min(s.MinX, o.MinX)
	s.MinY = min(s.MinY, o.MinY)
	s.MaxX = max(s.MaxX, o.MaxX)
	s.MaxY = max(s.MaxY, o.MaxY)
}

// Mean returns the rounded average member colour.
func (s *Stats) Mean() color.RGBA {
	if s.Area == 0 {
		return color.RGBA{}
	}
	n := int64(s.Area)
	avg := func(v int64) uint8 { return uint8((v + n/2) / n) }
	return color.RGBA{R: avg(s.sum[0]), G: avg(s.sum[1]), B: avg(s.sum[2]), A: avg(s.sum[3])}
}

// Summarise computes Stats for every region, keyed by root.
func Summarise(lat *lattice.Lattice, m *Merger) (map[lattice.Point]*Stats, error) {
	if lat.Width() != m.width || lat.Height() != m.height {
		return nil, fmt.Errorf("%w: lattice %dx%d vs merger %dx%d",
			lattice.ErrInvalidDimension, lat.Width(), lat.Height(), m.width, m.height)
	}
	out := make(map[lattice.Point]*Stats, m.regions)
	for i := range m.nodes {
		p := m.point(i)
		root := m.point(m.find(i))
		s, ok := out[root]
		if !ok {
			s = &Stats{}
			out[root] = s
		}
		s.add(p, lat.At(p).Colour)
	}
	return out, nil
}

// Assimilator folds undersized regions into their most similar neighbour.
type Assimilator struct {
	// MinArea is the smallest region size allowed to survive.
	MinArea int
	// Metric compares region average colours.
	Metric rule.Metric
}

// AssimilationReport summarises one assimilation run.
type AssimilationReport struct {
	Merges  int `json:"merges"`
	Regions int `json:"regions"`
}

var cardinalSteps = [4]lattice.Point{{X: 0, Y: -1}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: -1, Y: 0}}

// Run merges every region smaller than MinArea into the neighbouring region
// with the closest average colour. Candidates are visited member by member in
// row-major order, N, E, S, W around each member; the first of several equally
// close neighbours wins. A merged region that is still too small is
// re-evaluated at once, so when Run returns no region is below MinArea unless
// the whole lattice is a single region.
func (a *Assimilator) Run(ctx context.Context, lat *lattice.Lattice, s *SyncMerger) (AssimilationReport, error) {
	var report AssimilationReport
	err := s.Do(func(m *Merger) error {
		stats, err := Summarise(lat, m)
		if err != nil {
			return err
		}
		for _, start := range m.Roots() {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("region: assimilation cancelled: %w", err)
			}
			root := m.find(m.mustIndex(start))
			for m.nodes[root].size < a.MinArea {
				nb, ok := a.closest(lat, m, root, stats)
				if !ok {
					break
				}
				merged := m.union(root, nb)
				absorbed := root
				if merged == root {
					absorbed = nb
				}
				stats[m.point(merged)].absorb(stats[m.point(absorbed)])
				delete(stats, m.point(absorbed))
				root = merged
				report.Merges++
			}
		}
		report.Regions = m.regions
		return nil
	})
	return report, err
}

func (a *Assimilator) closest(lat *lattice.Lattice, m *Merger, root int, stats map[lattice.Point]*Stats) (int, bool) {
	members := m.members(root)
	sort.Slice(members, func(i, j int) bool {
		if members[i].Y != members[j].Y {
			return members[i].Y < members[j].Y
		}
		return members[i].X < members[j].X
	})

	self := stats[m.point(root)].Mean()
	seen := make(map[int]bool)
	best, bestDist := -1, 0.0
	for _, p := range members {
		for _, step := range cardinalSteps {
			q := p.Add(step)
			if !lat.Contains(q) {
				continue
			}
			r := m.find(m.mustIndex(q))
			if r == root || seen[r] {
				continue
			}
			seen[r] = true
			d := a.Metric.Distance(self, stats[m.point(r)].Mean())
			if best < 0 || d < bestDist {
				best, bestDist = r, d
			}
		}
	}
	return best, best >= 0
}
