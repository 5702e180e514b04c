// Package imaging prepares images for text recognition.
//
// It covers the stages that run before the OCR engine sees any pixels:
// loading a file (with EXIF orientation applied), checking whether a path is
// a supported input, normalizing the image (grayscale, DPI rescale, optional
// inversion of light-on-dark scans) and marshalling it into a contiguous
// RGBA buffer. Crop, NamedArea and Select restrict recognition to part of
// an image.
//
// # Coordinate System
//
// Pixel coordinates are 0-based with (0,0) at the top-left corner. For
// regions, (X1,Y1) is inclusive and (X2,Y2) is exclusive.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use, as are SupportedFormats and
// ValidateImage. Preprocess and Marshal never modify their input and can be
// called concurrently.
package imaging
