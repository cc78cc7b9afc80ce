package lattice

import (
	"fmt"
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/clone"
)

// Raster is the pixel accessor the engine consumes. Decoding and encoding
// image files is the caller's business.
type Raster interface {
	Width() int
	Height() int
	At(x, y int) color.RGBA
	Set(x, y int, c color.RGBA)
}

// ImageRaster adapts an image.Image to Raster. The source is copied into an
// RGBA buffer, so Set never touches the caller's image.
type ImageRaster struct {
	img *image.RGBA
}

// NewImageRaster copies img into a fresh RGBA raster.
func NewImageRaster(img image.Image) *ImageRaster {
	return &ImageRaster{img: clone.AsRGBA(img)}
}

// Width returns the raster width in pixels.
func (r *ImageRaster) Width() int { return r.img.Bounds().Dx() }

// Height returns the raster height in pixels.
func (r *ImageRaster) Height() int { return r.img.Bounds().Dy() }

// At returns the pixel at (x, y) relative to the image origin.
func (r *ImageRaster) At(x, y int) color.RGBA {
	min := r.img.Bounds().Min
	return r.img.RGBAAt(x+min.X, y+min.Y)
}

// Set writes the pixel at (x, y) relative to the image origin.
func (r *ImageRaster) Set(x, y int, c color.RGBA) {
	min := r.img.Bounds().Min
	r.img.SetRGBA(x+min.X, y+min.Y, c)
}

// Image exposes the underlying buffer.
func (r *ImageRaster) Image() *image.RGBA { return r.img }

// FromRaster builds a lattice with padding radius and loads every pixel of src
// into both buffers.
func FromRaster(src Raster, radius int) (*Lattice, error) {
	l, err := New(src.Width(), src.Height(), radius)
	if err != nil {
		return nil, err
	}
	for y := 0; y < l.height; y++ {
		for x := 0; x < l.width; x++ {
			i := l.slot(x, y)
			c := src.At(x, y)
			l.front[i].colour = c
			l.back[i].colour = c
		}
	}
	return l, nil
}

// WriteTo copies the front-buffer colours into dst.
func (l *Lattice) WriteTo(dst Raster) error {
	if dst.Width() != l.width || dst.Height() != l.height {
		return fmt.Errorf("%w: raster %dx%d does not match lattice %dx%d",
			ErrInvalidDimension, dst.Width(), dst.Height(), l.width, l.height)
	}
	for y := 0; y < l.height; y++ {
		for x := 0; x < l.width; x++ {
			dst.Set(x, y, l.front[l.slot(x, y)].colour)
		}
	}
	return nil
}
