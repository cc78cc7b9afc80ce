package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/ca-segment-mcp/internal/segment"
)

// OverlayOptions controls RenderOverlay.
type OverlayOptions struct {
	// LineColor is "#RRGGBB" or "#RRGGBBAA". Invalid values fall back to
	// opaque red.
	LineColor string
	// Fill paints every pixel with its region's average color.
	Fill bool
	// Labels prints each region's ID inside its bounding box when it fits.
	Labels bool
}

// OverlayResult contains a rendered overlay as a PNG.
type OverlayResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
	Regions     int    `json:"regions"`
}

const (
	glyphWidth  = 4
	glyphHeight = 7
)

// RenderOverlay draws the region outlines of res over a copy of img. img
// must have the dimensions res was computed on.
func RenderOverlay(img image.Image, res *segment.Result, opts OverlayOptions) (*image.NRGBA, error) {
	b := img.Bounds()
	if b.Dx() != res.Width || b.Dy() != res.Height {
		return nil, fmt.Errorf("overlay: image %dx%d does not match segmentation %dx%d",
			b.Dx(), b.Dy(), res.Width, res.Height)
	}

	lineColor, err := parseHexColor(opts.LineColor)
	if err != nil {
		lineColor = color.RGBA{255, 0, 0, 255}
	}

	canvas := imaging.Clone(img)
	w, h := res.Width, res.Height

	if opts.Fill {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if r, ok := res.RegionAt(x, y); ok {
					canvas.Set(x, y, r.AverageColour)
				}
			}
		}
	}

	// Polygon vertices sit on pixel corners; a corner on the right or bottom
	// image edge is drawn on the last pixel column or row.
	for _, r := range res.Regions {
		for _, v := range r.Polygon {
			canvas.Set(min(v.X, w-1), min(v.Y, h-1), lineColor)
		}
	}

	if opts.Labels {
		fg := color.RGBA{255, 255, 255, 255}
		bg := color.RGBA{0, 0, 0, 180}
		for _, r := range res.Regions {
			label := strconv.Itoa(r.ID)
			if r.Bounds.Dx() < len(label)*glyphWidth+2 || r.Bounds.Dy() < glyphHeight+2 {
				continue
			}
			drawLabel(canvas, r.Bounds.Min.X+2, r.Bounds.Min.Y+2, label, fg, bg)
		}
	}
	return canvas, nil
}

// EncodeOverlay encodes a rendered overlay as base64 PNG.
func EncodeOverlay(canvas image.Image, regions int) (*OverlayResult, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	b := canvas.Bounds()
	return &OverlayResult{
		Width:       b.Dx(),
		Height:      b.Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
		Regions:     regions,
	}, nil
}

// parseHexColor parses "#RRGGBB" or "#RRGGBBAA"; the leading '#' is optional.
func parseHexColor(hex string) (color.RGBA, error) {
	if len(hex) == 0 {
		return color.RGBA{}, fmt.Errorf("empty color string")
	}
	if hex[0] == '#' {
		hex = hex[1:]
	}

	var r, g, b, a uint8 = 0, 0, 0, 255

	switch len(hex) {
	case 6:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, err
		}
		r = uint8(val >> 16)
		g = uint8(val >> 8)
		b = uint8(val)
	case 8:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, err
		}
		r = uint8(val >> 24)
		g = uint8(val >> 16)
		b = uint8(val >> 8)
		a = uint8(val)
	default:
		return color.RGBA{}, fmt.Errorf("invalid hex color length")
	}

	return color.RGBA{R: r, G: g, B: b, A: a}, nil
}

// 3x5 digit glyphs for region IDs.
var glyphs = map[rune][]string{
	'0': {"111", "101", "101", "101", "111"},
	'1': {"010", "110", "010", "010", "111"},
	'2': {"111", "001", "111", "100", "111"},
	'3': {"111", "001", "111", "001", "111"},
	'4': {"101", "101", "111", "001", "001"},
	'5': {"111", "100", "111", "001", "111"},
	'6': {"111", "100", "111", "101", "111"},
	'7': {"111", "001", "001", "001", "001"},
	'8': {"111", "101", "111", "101", "111"},
	'9': {"111", "101", "111", "001", "111"},
}

// drawLabel prints text at (x, y) on a filled background box.
func drawLabel(img draw.Image, x, y int, text string, fg, bg color.RGBA) {
	bounds := img.Bounds()
	set := func(px, py int, c color.Color) {
		if image.Pt(px, py).In(bounds) {
			img.Set(px, py, c)
		}
	}

	for dy := -1; dy < glyphHeight; dy++ {
		for dx := -1; dx < len(text)*glyphWidth; dx++ {
			set(x+dx, y+dy, bg)
		}
	}

	cx := x
	for _, ch := range text {
		for row, line := range glyphs[ch] {
			for col, pixel := range line {
				if pixel == '1' {
					set(cx+col, y+row, fg)
				}
			}
		}
		cx += glyphWidth
	}
}
