// Package imaging loads slide images at a bounded working resolution and turns
// them into binary tissue masks.
//
// Everything downstream of this package works on Mask values: the alignment
// search never looks at colour pixels. The package covers four concerns:
//
//   - Loading: decode a source file, remember its full-resolution size and
//     downscale it so the longer side fits a configured maximum (see
//     LoadWorkingImage and ImageCache).
//   - Mask extraction: modality-specific thresholding followed by morphology
//     (see ExtractMask).
//   - Orientation: the 16 rotation/mirror variants of a mask and their exact
//     inverses (see Orientation).
//   - Debug rendering: a two-channel overlay of an alignment result (see
//     RenderOverlay).
//
// # Coordinate System
//
// All pixel coordinates are 0-based with the origin at the top-left corner,
// X increasing rightward and Y increasing downward. Masks always have their
// origin at (0,0).
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. Mask values are never modified after
// they are built; every operation returns a new Mask, so masks can be shared
// freely between goroutines.
//
// # Error Handling
//
// Functions return errors only for I/O problems: missing, unreadable or
// undecodable files and encoding failures. Degenerate content (for example a
// slide with no visible tissue) yields an empty mask, not an error.
package imaging
