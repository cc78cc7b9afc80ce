// Package segment drives the cellular-automaton segmentation phases over a
// raster: denoise to a fixed point, edge classification, region
// classification, small-region assimilation and outline tracing.
//
// Output is independent of the worker count. Regions are numbered by their
// first cell in row-major order.
package segment

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"
	"time"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/ca-segment-mcp/internal/executor"
	"github.com/ironsheep/ca-segment-mcp/internal/lattice"
	"github.com/ironsheep/ca-segment-mcp/internal/neighbourhood"
	"github.com/ironsheep/ca-segment-mcp/internal/outline"
	"github.com/ironsheep/ca-segment-mcp/internal/region"
	"github.com/ironsheep/ca-segment-mcp/internal/rule"
)

// Region describes one surviving region.
type Region struct {
	ID            int             `json:"id"`
	Area          int             `json:"area"`
	AverageColour color.RGBA      `json:"average_colour"`
	Hex           string          `json:"hex"`
	Bounds        image.Rectangle `json:"bounds"`
	Polygon       []lattice.Point `json:"polygon"`
	Closed        bool            `json:"closed"`
	BoundaryCells []lattice.Point `json:"boundary_cells,omitempty"`
}

// Result is the outcome of one pipeline run. DenoiseConverged is false when
// MaxPasses ran out while a denoise pass was still changing colours.
type Result struct {
	Width            int                       `json:"width"`
	Height           int                       `json:"height"`
	Regions          []Region                  `json:"regions"`
	EdgeCells        int                       `json:"edge_cells"`
	DenoisePasses    int                       `json:"denoise_passes"`
	DenoiseConverged bool                      `json:"denoise_converged"`
	Passes           []*executor.Report        `json:"passes"`
	Assimilation     region.AssimilationReport `json:"assimilation"`
	Duration         time.Duration             `json:"duration_ns"`

	labels []int
}

// RegionAt returns the region owning pixel (x, y).
func (r *Result) RegionAt(x, y int) (*Region, bool) {
	if x < 0 || y < 0 || x >= r.Width || y >= r.Height {
		return nil, false
	}
	id := r.labels[y*r.Width+x]
	return &r.Regions[id], true
}

// Err joins the per-cell failures of every pass, or returns nil.
func (r *Result) Err() error {
	var errs []error
	for _, p := range r.Passes {
		if err := p.Err(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Pipeline runs segmentation with fixed options.
type Pipeline struct {
	opts   Options
	metric rule.Metric
	kind   neighbourhood.Kind
	exec   *executor.Executor

	// wrap lets tests decorate every rule.
	wrap func(rule.Rule) rule.Rule
}

// New validates opts and returns a Pipeline.
func New(opts Options) (*Pipeline, error) {
	metric, kind, err := opts.resolve()
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		opts:   opts,
		metric: metric,
		kind:   kind,
		exec:   executor.New(opts.WorkerCount),
	}, nil
}

// Options returns the pipeline's configuration.
func (p *Pipeline) Options() Options { return p.opts }

func (p *Pipeline) pass(ctx context.Context, lat *lattice.Lattice, cells []lattice.Point, r rule.Rule, res *Result) (*executor.Report, error) {
	if p.wrap != nil {
		r = p.wrap(r)
	}
	report, err := p.exec.Run(ctx, lat, cells, r)
	if report != nil {
		res.Passes = append(res.Passes, report)
	}
	if err != nil {
		return report, err
	}
	log := Logger()
	log.Debug("pass complete", "rule", report.Rule, "claimed", report.Claimed,
		"changed", report.Changed, "workers", report.Workers, "duration", report.Duration)
	for _, f := range report.Failures {
		log.Warn("cell failed", "rule", f.Rule, "cell", f.Point.String(), "err", f.Err)
	}
	return report, nil
}

// Run segments src. Denoised colours are written back to src before
// classification. A cancelled context aborts between cell claims and returns
// its error; per-cell rule failures are reported through Result.Err and do
// not stop the run.
func (p *Pipeline) Run(ctx context.Context, src lattice.Raster) (*Result, error) {
	start := time.Now()
	log := Logger()

	lat, err := lattice.FromRaster(src, p.opts.Radius)
	if err != nil {
		return nil, err
	}
	res := &Result{Width: lat.Width(), Height: lat.Height()}
	log.Debug("segmentation started", "width", res.Width, "height", res.Height,
		"epsilon", p.opts.Epsilon, "metric", p.metric.String(), "workers", p.exec.Workers())

	// Denoise.
	window, err := neighbourhood.New(p.kind, p.opts.Radius, true)
	if err != nil {
		return nil, err
	}
	windowCache, err := neighbourhood.NewCache(lat, window)
	if err != nil {
		return nil, err
	}
	denoise := &rule.Denoise{Neighbours: windowCache, Epsilon: p.opts.Epsilon, Metric: p.metric}
	all := lat.Points()
	for res.DenoisePasses < p.opts.MaxPasses {
		// A settled cell can be disturbed by a neighbour changing later, so
		// every pass revisits the whole lattice.
		lat.Reactivate()
		report, err := p.pass(ctx, lat, all, denoise, res)
		if err != nil {
			return nil, err
		}
		res.DenoisePasses++
		if report.Changed == 0 {
			res.DenoiseConverged = true
			break
		}
	}
	if !res.DenoiseConverged {
		log.Warn("denoise stopped before a fixed point", "passes", res.DenoisePasses)
	}
	if err := lat.WriteTo(src); err != nil {
		return nil, err
	}

	// Edges. Classification passes ask for each cell's neighbours once, so
	// they go uncached.
	cardinal, err := neighbourhood.NewCardinal().Bind(lat)
	if err != nil {
		return nil, err
	}
	lat.Reactivate()
	edges := &rule.EdgeDetect{Neighbours: cardinal, Epsilon: p.opts.Epsilon, Metric: p.metric}
	if _, err := p.pass(ctx, lat, lat.ActiveCells(), edges, res); err != nil {
		return nil, err
	}
	res.EdgeCells = lat.CountClass(lattice.Edge)

	// Regions.
	merger, err := region.NewSyncMerger(lat.Width(), lat.Height())
	if err != nil {
		return nil, err
	}
	lat.Reactivate()
	classify := &rule.RegionClassify{Neighbours: cardinal, Merger: merger, Epsilon: p.opts.Epsilon, Metric: p.metric}
	if _, err := p.pass(ctx, lat, lat.ActiveCells(), classify, res); err != nil {
		return nil, err
	}

	assimilator := &region.Assimilator{MinArea: p.opts.MinRegionArea, Metric: p.metric}
	res.Assimilation, err = assimilator.Run(ctx, lat, merger)
	if err != nil {
		return nil, err
	}
	log.Debug("assimilation complete", "merges", res.Assimilation.Merges, "regions", res.Assimilation.Regions)

	if err := p.trace(ctx, lat, merger.Frozen(), res); err != nil {
		return nil, err
	}
	res.Duration = time.Since(start)
	log.Debug("segmentation finished", "regions", len(res.Regions), "edges", res.EdgeCells, "duration", res.Duration)
	return res, nil
}

func (p *Pipeline) trace(ctx context.Context, lat *lattice.Lattice, m *region.Merger, res *Result) error {
	stats, err := region.Summarise(lat, m)
	if err != nil {
		return err
	}
	tracer := outline.NewTracer(m)
	roots := m.Roots()
	res.Regions = make([]Region, 0, len(roots))
	for id, root := range roots {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("segment: tracing cancelled: %w", err)
		}
		o, err := tracer.Region(root)
		if err != nil {
			return fmt.Errorf("segment: region %d at %v: %w", id, root, err)
		}
		s := stats[root]
		avg := s.Mean()
		res.Regions = append(res.Regions, Region{
			ID:            id,
			Area:          s.Area,
			AverageColour: avg,
			Hex:           hex(avg),
			Bounds:        image.Rect(s.MinX, s.MinY, s.MaxX+1, s.MaxY+1),
			Polygon:       o.Vertices,
			Closed:        o.Closed,
			BoundaryCells: o.Cells,
		})
	}
	res.labels = m.Labels()
	return nil
}

func hex(c color.RGBA) string {
	return strings.ToUpper(colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}.Hex())
}
