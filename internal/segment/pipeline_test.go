package segment

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/ca-segment-mcp/internal/executor"
	"github.com/ironsheep/ca-segment-mcp/internal/lattice"
	"github.com/ironsheep/ca-segment-mcp/internal/neighbourhood"
	"github.com/ironsheep/ca-segment-mcp/internal/rule"
)

func fill(w, h int, px func(x, y int) color.RGBA) *lattice.ImageRaster {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, px(x, y))
		}
	}
	return lattice.NewImageRaster(img)
}

// quadrants draws four flat blocks with a sprinkling of outliers.
func quadrants(w, h int, seed int64) *lattice.ImageRaster {
	rng := rand.New(rand.NewSource(seed))
	return fill(w, h, func(x, y int) color.RGBA {
		if rng.Intn(25) == 0 {
			return color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255}
		}
		switch {
		case x < w/2 && y < h/2:
			return color.RGBA{30, 60, 200, 255}
		case y < h/2:
			return color.RGBA{220, 50, 40, 255}
		case x < w/2:
			return color.RGBA{40, 180, 60, 255}
		}
		return color.RGBA{240, 230, 90, 255}
	})
}

// speckled draws red, green, blue and white quadrants with a black speck
// every seven pixels. No denoise window holds two specks or two quadrants
// and a speck.
func speckled(w, h int) *lattice.ImageRaster {
	return fill(w, h, func(x, y int) color.RGBA {
		switch {
		case x%7 == 3 && y%7 == 3:
			return color.RGBA{0, 0, 0, 255}
		case x < w/2 && y < h/2:
			return color.RGBA{255, 0, 0, 255}
		case y < h/2:
			return color.RGBA{0, 255, 0, 255}
		case x < w/2:
			return color.RGBA{0, 0, 255, 255}
		}
		return color.RGBA{255, 255, 255, 255}
	})
}

// redenoise runs one Moore denoise pass over every cell of src.
func redenoise(t *testing.T, src lattice.Raster, o Options) *executor.Report {
	t.Helper()
	lat, err := lattice.FromRaster(src, o.Radius)
	require.NoError(t, err)
	window, err := neighbourhood.NewMoore(o.Radius, true)
	require.NoError(t, err)
	cache, err := neighbourhood.NewCache(lat, window)
	require.NoError(t, err)
	d := &rule.Denoise{Neighbours: cache, Epsilon: o.Epsilon, Metric: rule.RGB}
	report, err := executor.New(2).Run(context.Background(), lat, lat.Points(), d)
	require.NoError(t, err)
	require.NoError(t, report.Err())
	return report
}

func options(workers int) Options {
	o := DefaultOptions()
	o.WorkerCount = workers
	return o
}

func TestDefaultOptions_Valid(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())
}

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"negative epsilon", func(o *Options) { o.Epsilon = -1 }},
		{"zero radius", func(o *Options) { o.Radius = 0 }},
		{"negative area", func(o *Options) { o.MinRegionArea = -2 }},
		{"negative workers", func(o *Options) { o.WorkerCount = -1 }},
		{"no passes", func(o *Options) { o.MaxPasses = 0 }},
		{"unknown metric", func(o *Options) { o.Metric = "manhattan" }},
		{"outline window", func(o *Options) { o.Neighbourhood = "outline" }},
		{"unknown window", func(o *Options) { o.Neighbourhood = "hex" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := DefaultOptions()
			tt.mutate(&o)
			assert.ErrorIs(t, o.Validate(), ErrInvalidOptions)
			_, err := New(o)
			assert.ErrorIs(t, err, ErrInvalidOptions)
		})
	}
}

func TestRun_UniformImage(t *testing.T) {
	const w, h = 7, 5
	grey := color.RGBA{128, 128, 128, 255}
	p, err := New(options(4))
	require.NoError(t, err)

	res, err := p.Run(context.Background(), fill(w, h, func(int, int) color.RGBA { return grey }))
	require.NoError(t, err)
	require.NoError(t, res.Err())

	assert.Zero(t, res.EdgeCells)
	require.Len(t, res.Regions, 1)
	r := res.Regions[0]
	assert.Equal(t, w*h, r.Area)
	assert.Equal(t, grey, r.AverageColour)
	assert.Equal(t, "#808080", r.Hex)
	assert.Equal(t, image.Rect(0, 0, w, h), r.Bounds)
	assert.True(t, r.Closed)
	assert.Len(t, r.Polygon, 2*(w+h))
	assert.Len(t, r.BoundaryCells, 2*(w+h)-4)
	assert.Equal(t, 1, res.DenoisePasses)
}

func TestRun_WorkerCountDoesNotChangeOutput(t *testing.T) {
	run := func(workers int) (*Result, []uint8) {
		src := quadrants(48, 36, 11)
		p, err := New(options(workers))
		require.NoError(t, err)
		res, err := p.Run(context.Background(), src)
		require.NoError(t, err)
		return res, src.Image().Pix
	}

	one, pixOne := run(1)
	eight, pixEight := run(8)
	inline, _ := run(0)

	assert.Equal(t, pixOne, pixEight)
	assert.Equal(t, one.Regions, eight.Regions)
	assert.Equal(t, one.labels, eight.labels)
	assert.Equal(t, one.EdgeCells, eight.EdgeCells)
	assert.Equal(t, one.Regions, inline.Regions)
	assert.GreaterOrEqual(t, len(one.Regions), 4)
}

func TestRun_AssimilationLeavesNoSmallRegions(t *testing.T) {
	o := options(4)
	o.MinRegionArea = 20
	p, err := New(o)
	require.NoError(t, err)

	res, err := p.Run(context.Background(), quadrants(40, 40, 5))
	require.NoError(t, err)

	total := 0
	for i, r := range res.Regions {
		assert.Equal(t, i, r.ID)
		assert.GreaterOrEqual(t, r.Area, o.MinRegionArea)
		assert.True(t, r.Closed)
		require.GreaterOrEqual(t, len(r.Polygon), 4)
		first, last := r.Polygon[0], r.Polygon[len(r.Polygon)-1]
		dx, dy := first.X-last.X, first.Y-last.Y
		assert.Equal(t, 1, dx*dx+dy*dy, "region %d polygon closes from %v to %v", r.ID, last, first)
		total += r.Area
	}
	assert.Equal(t, 40*40, total)

	// Regions are numbered by first cell in row-major order.
	first, ok := res.RegionAt(0, 0)
	require.True(t, ok)
	assert.Equal(t, 0, first.ID)
	_, ok = res.RegionAt(40, 0)
	assert.False(t, ok)
}

func TestRun_EpsilonIsStrict(t *testing.T) {
	// Halves at RGB distance exactly 5.
	half := func(x, y int) color.RGBA {
		if x < 3 {
			return color.RGBA{0, 0, 0, 255}
		}
		return color.RGBA{3, 4, 0, 255}
	}

	o := options(2)
	o.Epsilon = 5
	o.MinRegionArea = 0
	p, err := New(o)
	require.NoError(t, err)
	res, err := p.Run(context.Background(), fill(6, 4, half))
	require.NoError(t, err)
	assert.Zero(t, res.EdgeCells)
	assert.Len(t, res.Regions, 1)

	o.Epsilon = 4.999
	p, err = New(o)
	require.NoError(t, err)
	res, err = p.Run(context.Background(), fill(6, 4, half))
	require.NoError(t, err)
	assert.Equal(t, 8, res.EdgeCells)
	// Two 2×4 interiors plus eight singleton edge cells.
	assert.Len(t, res.Regions, 10)
}

func TestRun_DenoiseWritesBack(t *testing.T) {
	grey := color.RGBA{90, 90, 90, 255}
	src := fill(9, 9, func(x, y int) color.RGBA {
		if x == 4 && y == 4 {
			return color.RGBA{255, 0, 255, 255}
		}
		return grey
	})
	p, err := New(options(3))
	require.NoError(t, err)
	res, err := p.Run(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, grey, src.At(4, 4))
	assert.Len(t, res.Regions, 1)
	assert.Zero(t, res.EdgeCells)
}

func TestRun_DenoiseReachesFixedPoint(t *testing.T) {
	o := options(4)
	src := speckled(40, 40)
	p, err := New(o)
	require.NoError(t, err)
	res, err := p.Run(context.Background(), src)
	require.NoError(t, err)

	// One pass clears the specks, the next changes nothing.
	assert.True(t, res.DenoiseConverged)
	assert.Equal(t, 2, res.DenoisePasses)
	assert.Equal(t, 36, res.Passes[0].Changed)
	assert.Zero(t, res.Passes[1].Changed)
	assert.Equal(t, 40*40, res.Passes[1].Claimed)
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			require.NotEqual(t, color.RGBA{0, 0, 0, 255}, src.At(x, y), "speck left at (%d,%d)", x, y)
		}
	}

	assert.Zero(t, redenoise(t, src, o).Changed)
	assert.Len(t, res.Regions, 4)
}

func TestRun_DenoisePassLimit(t *testing.T) {
	o := options(2)
	o.MaxPasses = 1
	p, err := New(o)
	require.NoError(t, err)
	res, err := p.Run(context.Background(), speckled(40, 40))
	require.NoError(t, err)

	assert.False(t, res.DenoiseConverged)
	assert.Equal(t, 1, res.DenoisePasses)
}

func TestRun_DenoiseOnNoise(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	src := fill(40, 40, func(int, int) color.RGBA {
		return color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255}
	})
	o := options(4)
	o.MaxPasses = 64
	p, err := New(o)
	require.NoError(t, err)
	res, err := p.Run(context.Background(), src)
	require.NoError(t, err)

	// Every denoise pass covers the whole lattice, settled cells included.
	for _, r := range res.Passes[:res.DenoisePasses] {
		assert.Equal(t, 40*40, r.Claimed)
	}
	if !res.DenoiseConverged {
		assert.Equal(t, o.MaxPasses, res.DenoisePasses)
		assert.NotZero(t, res.Passes[res.DenoisePasses-1].Changed)
		return
	}
	assert.Zero(t, res.Passes[res.DenoisePasses-1].Changed)
	assert.Zero(t, redenoise(t, src, o).Changed)
}

func TestRun_CellFailuresDoNotAbort(t *testing.T) {
	bad := errors.New("sensor glitch")
	p, err := New(options(4))
	require.NoError(t, err)
	p.wrap = func(r rule.Rule) rule.Rule {
		if r.Name() != "edge" {
			return r
		}
		return rule.Func{Label: r.Name(), Fn: func(v lattice.View, c lattice.Cell) (rule.Outcome, error) {
			if c.X == 2 && c.Y == 2 {
				return rule.Outcome{}, bad
			}
			return r.Apply(v, c)
		}}
	}

	res, err := p.Run(context.Background(), quadrants(20, 20, 3))
	require.NoError(t, err)
	assert.NotEmpty(t, res.Regions)

	failure := res.Err()
	require.Error(t, failure)
	assert.ErrorIs(t, failure, executor.ErrConcurrencyFailure)
	assert.ErrorIs(t, failure, bad)
}

func TestRun_Cancelled(t *testing.T) {
	p, err := New(options(2))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Run(ctx, quadrants(10, 10, 1))
	assert.ErrorIs(t, err, context.Canceled)
}
