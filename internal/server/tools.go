package server

import "github.com/ironsheep/ca-segment-mcp/internal/segment"

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the image file",
	}
}

// segmentationProperties describes the arguments shared by every tool that
// runs a segmentation. Defaults come from defaults.
func segmentationProperties(defaults segment.Options) map[string]interface{} {
	return map[string]interface{}{
		"path": pathProperty(),
		"epsilon": map[string]interface{}{
			"type":        "number",
			"description": "Color difference threshold; neighbours differing by more than this are separated",
			"default":     defaults.Epsilon,
		},
		"radius": map[string]interface{}{
			"type":        "integer",
			"description": "Denoise window radius in pixels",
			"default":     defaults.Radius,
		},
		"min_region_area": map[string]interface{}{
			"type":        "integer",
			"description": "Regions smaller than this many pixels are merged into their most similar neighbour. 0 or 1 disables merging",
			"default":     defaults.MinRegionArea,
		},
		"metric": map[string]interface{}{
			"type":        "string",
			"description": "Color difference measure",
			"enum":        []string{"rgb", "lab", "ciede2000"},
			"default":     defaults.Metric,
		},
		"neighbourhood": map[string]interface{}{
			"type":        "string",
			"description": "Denoise window shape",
			"enum":        []string{"moore", "vonneumann"},
			"default":     defaults.Neighbourhood,
		},
		"max_dimension": map[string]interface{}{
			"type":        "integer",
			"description": "Downscale so neither side exceeds this many pixels before segmenting. 0 keeps full size",
			"default":     0,
		},
	}
}

// GetToolDefinitions returns all available tools with the package defaults.
func GetToolDefinitions() []Tool {
	return toolDefinitions(segment.DefaultOptions())
}

func toolDefinitions(defaults segment.Options) []Tool {
	segmentProps := segmentationProperties(defaults)
	segmentProps["include_overlay"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Return a base64 PNG with region outlines drawn over the (possibly downscaled) image",
		"default":     false,
	}
	segmentProps["fill"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Paint each region with its average color in the overlay",
		"default":     false,
	}
	segmentProps["labels"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Print region IDs in the overlay",
		"default":     true,
	}
	segmentProps["line_color"] = map[string]interface{}{
		"type":        "string",
		"description": "Outline color in hex format (#RRGGBB or #RRGGBBAA)",
		"default":     "#FF0000",
	}
	segmentProps["include_boundary_cells"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Include the ordered boundary pixels of each region besides its polygon",
		"default":     false,
	}

	regionAtProps := segmentationProperties(defaults)
	regionAtProps["x"] = map[string]interface{}{
		"type":        "integer",
		"description": "X coordinate in the source image (0-based)",
	}
	regionAtProps["y"] = map[string]interface{}{
		"type":        "integer",
		"description": "Y coordinate in the source image (0-based)",
	}

	return []Tool{
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions, format and the number of cells a full-size segmentation uses.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_segment",
			Description: "Segment an image into regions of similar color. Returns one record per region with its area, average color, bounding box and closed outline polygon (pixel-corner coordinates in the segmented image). Results are cached per path and settings.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": segmentProps,
				"required":   []string{"path"},
			},
		},
		{
			Name:        "image_region_at",
			Description: "Report which segmented region owns a pixel, with the pixel's color and the region's average color.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": regionAtProps,
				"required":   []string{"path", "x", "y"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": toolDefinitions(s.defaults),
		},
	}
}
