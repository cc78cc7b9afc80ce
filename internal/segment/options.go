package segment

import (
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/ironsheep/ca-segment-mcp/internal/neighbourhood"
	"github.com/ironsheep/ca-segment-mcp/internal/rule"
)

// ErrInvalidOptions indicates an Options value that cannot drive a pipeline.
var ErrInvalidOptions = errors.New("segment: invalid options")

// Options configures a segmentation run.
type Options struct {
	// Epsilon is the colour-difference threshold. Differences strictly
	// greater than Epsilon count as different.
	Epsilon float64 `json:"epsilon"`
	// Radius is the denoise window radius.
	Radius int `json:"radius"`
	// MinRegionArea is the smallest region kept after assimilation. Values
	// of 0 or 1 disable assimilation.
	MinRegionArea int `json:"min_region_area"`
	// WorkerCount is the rule pool size; 0 runs on the calling goroutine.
	WorkerCount int `json:"worker_count"`
	// MaxPasses bounds the denoise fixed-point loop.
	MaxPasses int `json:"max_passes"`
	// Metric is "rgb", "lab" or "ciede2000".
	Metric string `json:"metric"`
	// Neighbourhood is the denoise window shape, "moore" or "vonneumann".
	Neighbourhood string `json:"neighbourhood"`
}

// DefaultOptions returns the settings used when a caller supplies none.
func DefaultOptions() Options {
	return Options{
		Epsilon:       24,
		Radius:        1,
		MinRegionArea: 16,
		WorkerCount:   runtime.GOMAXPROCS(0),
		MaxPasses:     8,
		Metric:        rule.RGB.String(),
		Neighbourhood: neighbourhood.Moore.String(),
	}
}

// Validate checks every field and returns an error wrapping
// ErrInvalidOptions for the first bad one.
func (o Options) Validate() error {
	_, _, err := o.resolve()
	return err
}

func (o Options) resolve() (rule.Metric, neighbourhood.Kind, error) {
	switch {
	case math.IsNaN(o.Epsilon) || math.IsInf(o.Epsilon, 0) || o.Epsilon < 0:
		return 0, 0, fmt.Errorf("%w: epsilon %v", ErrInvalidOptions, o.Epsilon)
	case o.Radius < 1:
		return 0, 0, fmt.Errorf("%w: radius %d must be at least 1", ErrInvalidOptions, o.Radius)
	case o.MinRegionArea < 0:
		return 0, 0, fmt.Errorf("%w: min_region_area %d", ErrInvalidOptions, o.MinRegionArea)
	case o.WorkerCount < 0:
		return 0, 0, fmt.Errorf("%w: worker_count %d", ErrInvalidOptions, o.WorkerCount)
	case o.MaxPasses < 1:
		return 0, 0, fmt.Errorf("%w: max_passes %d must be at least 1", ErrInvalidOptions, o.MaxPasses)
	}
	metric, err := rule.ParseMetric(o.Metric)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	name := o.Neighbourhood
	if name == "" {
		name = neighbourhood.Moore.String()
	}
	kind, err := neighbourhood.ParseKind(name)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	if kind != neighbourhood.Moore && kind != neighbourhood.VonNeumann {
		return 0, 0, fmt.Errorf("%w: neighbourhood %q cannot be a denoise window", ErrInvalidOptions, o.Neighbourhood)
	}
	return metric, kind, nil
}
