package imaging

import (
	"image"

	"github.com/disintegration/imaging"
)

// Normalized is a zero-origin working copy of an image.
type Normalized struct {
	Image *image.NRGBA
	// Scale is the factor applied to the source dimensions, 1 when the
	// image was not resized.
	Scale float64
}

// Normalize copies img into an NRGBA image anchored at (0,0). When
// maxDimension is positive and either side is larger, the copy is shrunk
// with Lanczos resampling to fit a maxDimension square, keeping the aspect
// ratio. Images are never enlarged.
func Normalize(img image.Image, maxDimension int) *Normalized {
	b := img.Bounds()
	if maxDimension <= 0 || (b.Dx() <= maxDimension && b.Dy() <= maxDimension) {
		return &Normalized{Image: imaging.Clone(img), Scale: 1}
	}
	out := imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos)
	return &Normalized{Image: out, Scale: float64(out.Bounds().Dx()) / float64(b.Dx())}
}

// SourcePoint maps a pixel of the normalised image back to the source.
func (n *Normalized) SourcePoint(x, y int) image.Point {
	if n.Scale == 1 {
		return image.Pt(x, y)
	}
	return image.Pt(int(float64(x)/n.Scale), int(float64(y)/n.Scale))
}

// ScaledPoint maps a source pixel into the normalised image, clamped to its
// bounds.
func (n *Normalized) ScaledPoint(x, y int) image.Point {
	b := n.Image.Bounds()
	p := image.Pt(int(float64(x)*n.Scale), int(float64(y)*n.Scale))
	p.X = min(max(p.X, 0), b.Dx()-1)
	p.Y = min(max(p.Y, 0), b.Dy()-1)
	return p
}
