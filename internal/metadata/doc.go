// Package metadata turns the first bytes of an image into a flat property
// map.
//
// A Chain holds a fixed, ordered list of Extractor strategies. The first
// strategy that returns a non-empty map wins; when all of them fail, the
// result is an empty map. A failing strategy never fails the fingerprint:
// errors and panics from the EXIF decoder are reported as
// model.ErrExtraction, logged at debug level and skipped.
//
// The default order is:
//
//	flat-exif    go-exif flat tag list of the located EXIF block
//	ifd-walk     go-exif IFD tree walk, first value of each tag
//	exif-marker  flat tag list read right after an "Exif\0\0" marker
//	image-config format and dimensions from the image header
//
// The window is usually truncated (10 KiB), so every strategy must cope with
// partial data.
package metadata
