// Package imaging loads, normalises and annotates images for segmentation.
//
// Images are read from disk through ImageCache, converted to a zero-origin
// copy (optionally downscaled) by Normalize, and segmentation results are
// drawn back over them by RenderOverlay. All coordinates are 0-based with
// (0,0) at the top-left corner, X increasing rightward and Y downward.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. The remaining functions are
// stateless; they never modify their input images.
//
// # Color Representation
//
// Colors are reported in several formats:
//   - Hex: 6-character format "#RRGGBB" (alpha excluded)
//   - RGB: 8-bit components (0-255)
//   - RGBA: 8-bit components with alpha (0-255)
//   - HSL: Hue (0-360), Saturation (0-100), Lightness (0-100)
//
// # Memory
//
// Cached images stay in memory until Evict or Clear. Segmenting a large image
// allocates two full-size lattice buffers besides the cached copy; pass a
// maxDimension to Normalize to bound that.
package imaging
