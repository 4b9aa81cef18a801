package metadata

import (
	"bytes"
	"fmt"
	"image"
	"strconv"

	// Decoders registered for image.DecodeConfig.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/nao1215/imgshare/internal/model"
)

// Extractor is one property extraction strategy.
// Extract returns an empty map (or an error) when it finds nothing.
type Extractor interface {
	Name() string
	Extract(window []byte) (map[string]string, error)
}

// exifMarker precedes the TIFF header inside a JPEG APP1 segment.
var exifMarker = []byte("Exif\x00\x00")

// FlatEXIF locates the EXIF block anywhere in the window and returns the
// formatted value of every tag.
type FlatEXIF struct{}

// Name returns the strategy name.
func (FlatEXIF) Name() string { return "flat-exif" }

// Extract implements Extractor.
func (FlatEXIF) Extract(window []byte) (map[string]string, error) {
	raw, err := exif.SearchAndExtractExif(window)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrExtraction, err)
	}
	return flatTags(raw)
}

// IFDWalk parses the EXIF block into its IFD tree and walks every IFD,
// keeping the first value of each tag. It recovers tags that the flat
// listing gives up on when a sub-IFD is cut off by the window end.
type IFDWalk struct{}

// Name returns the strategy name.
func (IFDWalk) Name() string { return "ifd-walk" }

// Extract implements Extractor.
func (IFDWalk) Extract(window []byte) (map[string]string, error) {
	raw, err := exif.SearchAndExtractExif(window)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrExtraction, err)
	}

	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrExtraction, err)
	}
	ti := exif.NewTagIndex()

	_, index, err := exif.Collect(im, ti, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrExtraction, err)
	}

	props := make(map[string]string)
	err = index.RootIfd.EnumerateTagsRecursively(func(_ *exif.Ifd, ite *exif.IfdTagEntry) error {
		value, err := ite.FormatFirst()
		if err != nil {
			return nil //nolint:nilerr // one undecodable tag does not spoil the rest
		}
		props[tagKey(ite.TagName(), ite.TagId())] = value
		return nil
	})
	if err != nil && len(props) == 0 {
		return nil, fmt.Errorf("%w: %w", model.ErrExtraction, err)
	}
	return props, nil
}

// EXIFMarker reads the TIFF structure that directly follows the first
// "Exif\0\0" marker, for files whose container the EXIF search does not
// recognize.
type EXIFMarker struct{}

// Name returns the strategy name.
func (EXIFMarker) Name() string { return "exif-marker" }

// Extract implements Extractor.
func (EXIFMarker) Extract(window []byte) (map[string]string, error) {
	idx := bytes.Index(window, exifMarker)
	if idx < 0 {
		return nil, nil
	}
	return flatTags(window[idx+len(exifMarker):])
}

// ImageConfig reports the format and dimensions from the image header.
// It is the last resort for images without EXIF.
type ImageConfig struct{}

// Name returns the strategy name.
func (ImageConfig) Name() string { return "image-config" }

// Extract implements Extractor.
func (ImageConfig) Extract(window []byte) (map[string]string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(window))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrExtraction, err)
	}
	return map[string]string{
		"Format":      format,
		"ImageWidth":  strconv.Itoa(cfg.Width),
		"ImageLength": strconv.Itoa(cfg.Height),
	}, nil
}

// flatTags decodes a raw EXIF block (starting at the TIFF header) into a
// tag name to formatted value map.
func flatTags(raw []byte) (map[string]string, error) {
	entries, _, err := exif.GetFlatExifData(raw, nil)
	if err != nil && len(entries) == 0 {
		return nil, fmt.Errorf("%w: %w", model.ErrExtraction, err)
	}

	props := make(map[string]string, len(entries))
	for _, e := range entries {
		props[tagKey(e.TagName, e.TagId)] = e.Formatted
	}
	return props, nil
}

// tagKey names unknown tags by their ID.
func tagKey(name string, id uint16) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("0x%04x", id)
}
