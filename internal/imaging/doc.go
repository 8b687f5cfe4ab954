// Package imaging provides the pixel-level foundation of the pipeline.
//
// It owns the PixelBuffer type, the codec that turns arbitrary raster bytes
// into buffers and back, a content-addressed cache of decoded buffers, the
// source loader that resolves file paths, inline base64 and remote URLs, and
// the grayscale planes and derivative operators used by the analyzer.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with (0,0) at the top-left corner:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - For rectangles, Min is inclusive and Max is exclusive
//
// # Immutability
//
// A PixelBuffer never changes after it is created. Every transformation in
// the pipeline allocates a new buffer, so any number of goroutines may read
// the same buffer concurrently. Buffers are always opaque RGB: alpha from the
// source is dropped at construction time.
//
// # Grayscale Planes
//
// Two single-channel conversions are available:
//   - Luma: ITU-R BT.601 weights (0.299*R + 0.587*G + 0.114*B)
//   - Intensity: the plain mean of the three channels
//
// Derivative operators (Laplacian, Sobel) work on planes with clamped
// (replicated) borders and keep signed float results.
//
// # Error Handling
//
// Decode failures are reported as apperr.DecodeError. Malformed or
// unreachable sources are reported as apperr.ValidationError.
package imaging
