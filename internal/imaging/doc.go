// Package imaging provides the raster primitives the dataset pipeline is
// built from: decoding and caching, cropping, smoothing filters, HSV
// thresholding, mask handling, box overlays and encoding.
//
// All operations work with standard Go image.Image types and use a coordinate
// system where (0,0) is at the top-left corner, X increases rightward, and Y
// increases downward.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - For regions, Min is inclusive (top-left) and Max is exclusive
//     (bottom-right), as with image.Rectangle
//
// Width is always Rectangle.Dx() and height Rectangle.Dy().
//
// # Color Representation
//
// HSV values use the 8-bit OpenCV encoding (H 0-179, S and V 0-255) so that
// hand-tuned ranges carry over between the native and OpenCV segmenters.
// Masks are *image.Gray with 255 marking the object and 0 the background.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Individual image operations
// are stateless and can be called concurrently on different images.
//
// # Formats
//
// PNG, JPEG, GIF, BMP, TIFF and WebP can be read. Encode writes every format
// disintegration/imaging supports plus WebP.
package imaging
