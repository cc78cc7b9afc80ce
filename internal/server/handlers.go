package server

import (
	"encoding/json"
	"fmt"
	"image"

	"github.com/ironsheep/ca-segment-mcp/internal/imaging"
	"github.com/ironsheep/ca-segment-mcp/internal/lattice"
	"github.com/ironsheep/ca-segment-mcp/internal/segment"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "image_segment").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)
	case "image_segment":
		return s.handleImageSegment(args)
	case "image_region_at":
		return s.handleImageRegionAt(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Basic Image Information Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

// === Segmentation Handlers ===

// Epsilon and MinRegionArea are pointers because zero is a meaningful
// request for both.
type segmentArgs struct {
	Path          string   `json:"path"`
	Epsilon       *float64 `json:"epsilon"`
	Radius        int      `json:"radius"`
	MinRegionArea *int     `json:"min_region_area"`
	Metric        string   `json:"metric"`
	Neighbourhood string   `json:"neighbourhood"`
	MaxDimension  int      `json:"max_dimension"`
}

// options overlays the supplied arguments on defaults.
func (a segmentArgs) options(defaults segment.Options) segment.Options {
	o := defaults
	if a.Epsilon != nil {
		o.Epsilon = *a.Epsilon
	}
	if a.Radius != 0 {
		o.Radius = a.Radius
	}
	if a.MinRegionArea != nil {
		o.MinRegionArea = *a.MinRegionArea
	}
	if a.Metric != "" {
		o.Metric = a.Metric
	}
	if a.Neighbourhood != "" {
		o.Neighbourhood = a.Neighbourhood
	}
	return o
}

type segmentRun struct {
	source image.Image
	norm   *imaging.Normalized
	opts   segment.Options
	result *segment.Result
}

// segmentation returns the cached run for a, computing it on first use.
func (s *Server) segmentation(a segmentArgs) (*segmentRun, error) {
	if a.MaxDimension < 0 {
		return nil, fmt.Errorf("max_dimension must not be negative")
	}
	opts := a.options(s.defaults)
	pipeline, err := segment.New(opts)
	if err != nil {
		return nil, err
	}

	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s|%d|%+v", a.Path, a.MaxDimension, opts)
	s.mu.Lock()
	run, ok := s.runs[key]
	s.mu.Unlock()
	if ok {
		return run, nil
	}

	norm := imaging.Normalize(img, a.MaxDimension)
	res, err := pipeline.Run(s.ctx, lattice.NewImageRaster(norm.Image))
	if err != nil {
		return nil, err
	}
	run = &segmentRun{source: img, norm: norm, opts: opts, result: res}

	s.mu.Lock()
	s.runs[key] = run
	s.mu.Unlock()
	return run, nil
}

type imageSegmentArgs struct {
	segmentArgs
	IncludeOverlay       bool   `json:"include_overlay"`
	Fill                 bool   `json:"fill"`
	Labels               *bool  `json:"labels"`
	LineColor            string `json:"line_color"`
	IncludeBoundaryCells bool   `json:"include_boundary_cells"`
}

type segmentResponse struct {
	Path          string                 `json:"path"`
	Width         int                    `json:"width"`
	Height        int                    `json:"height"`
	SourceWidth   int                    `json:"source_width"`
	SourceHeight  int                    `json:"source_height"`
	Scale         float64                `json:"scale"`
	Options       segment.Options        `json:"options"`
	RegionCount   int                    `json:"region_count"`
	EdgeCells     int                    `json:"edge_cells"`
	DenoisePasses int                    `json:"denoise_passes"`
	Converged     bool                   `json:"denoise_converged"`
	Merges        int                    `json:"merges"`
	Failures      string                 `json:"failures,omitempty"`
	DurationMS    int64                  `json:"duration_ms"`
	Regions       []segment.Region       `json:"regions"`
	Overlay       *imaging.OverlayResult `json:"overlay,omitempty"`
}

func (s *Server) handleImageSegment(args json.RawMessage) (interface{}, error) {
	var a imageSegmentArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.LineColor == "" {
		a.LineColor = "#FF0000"
	}
	labels := true
	if a.Labels != nil {
		labels = *a.Labels
	}

	run, err := s.segmentation(a.segmentArgs)
	if err != nil {
		return nil, err
	}
	res := run.result
	src := run.source.Bounds()

	resp := &segmentResponse{
		Path:          a.Path,
		Width:         res.Width,
		Height:        res.Height,
		SourceWidth:   src.Dx(),
		SourceHeight:  src.Dy(),
		Scale:         run.norm.Scale,
		Options:       run.opts,
		RegionCount:   len(res.Regions),
		EdgeCells:     res.EdgeCells,
		DenoisePasses: res.DenoisePasses,
		Converged:     res.DenoiseConverged,
		Merges:        res.Assimilation.Merges,
		DurationMS:    res.Duration.Milliseconds(),
		Regions:       res.Regions,
	}
	if err := res.Err(); err != nil {
		resp.Failures = err.Error()
	}
	if !a.IncludeBoundaryCells {
		resp.Regions = make([]segment.Region, len(res.Regions))
		for i, r := range res.Regions {
			r.BoundaryCells = nil
			resp.Regions[i] = r
		}
	}

	if a.IncludeOverlay {
		canvas, err := imaging.RenderOverlay(run.norm.Image, res, imaging.OverlayOptions{
			LineColor: a.LineColor,
			Fill:      a.Fill,
			Labels:    labels,
		})
		if err != nil {
			return nil, err
		}
		resp.Overlay, err = imaging.EncodeOverlay(canvas, len(res.Regions))
		if err != nil {
			return nil, err
		}
	}
	return resp, nil
}

type imageRegionAtArgs struct {
	segmentArgs
	X int `json:"x"`
	Y int `json:"y"`
}

type regionAtResponse struct {
	X           int                  `json:"x"`
	Y           int                  `json:"y"`
	SegmentedX  int                  `json:"segmented_x"`
	SegmentedY  int                  `json:"segmented_y"`
	Pixel       *imaging.ColorResult `json:"pixel"`
	Region      segment.Region       `json:"region"`
	RegionColor imaging.ColorResult  `json:"region_color"`
	RegionCount int                  `json:"region_count"`
	// SourceBounds is Region.Bounds mapped back to source pixels.
	SourceBounds image.Rectangle `json:"source_bounds"`
}

func (s *Server) handleImageRegionAt(args json.RawMessage) (interface{}, error) {
	var a imageRegionAtArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	run, err := s.segmentation(a.segmentArgs)
	if err != nil {
		return nil, err
	}

	src := run.source.Bounds()
	if a.X < 0 || a.Y < 0 || a.X >= src.Dx() || a.Y >= src.Dy() {
		return nil, fmt.Errorf("coordinates (%d,%d) outside image bounds %dx%d", a.X, a.Y, src.Dx(), src.Dy())
	}
	pixel, err := imaging.SampleColor(run.source, src.Min.X+a.X, src.Min.Y+a.Y)
	if err != nil {
		return nil, err
	}

	p := run.norm.ScaledPoint(a.X, a.Y)
	region, ok := run.result.RegionAt(p.X, p.Y)
	if !ok {
		return nil, fmt.Errorf("no region at (%d,%d)", p.X, p.Y)
	}
	r := *region
	r.BoundaryCells = nil

	return &regionAtResponse{
		X:           a.X,
		Y:           a.Y,
		SegmentedX:  p.X,
		SegmentedY:  p.Y,
		Pixel:       pixel,
		Region:      r,
		RegionColor: imaging.DescribeColor(r.AverageColour),
		RegionCount: len(run.result.Regions),
		SourceBounds: image.Rectangle{
			Min: run.norm.SourcePoint(r.Bounds.Min.X, r.Bounds.Min.Y),
			Max: run.norm.SourcePoint(r.Bounds.Max.X, r.Bounds.Max.Y),
		},
	}, nil
}
