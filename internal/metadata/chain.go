package metadata

import (
	"fmt"
	"log/slog"

	"github.com/nao1215/imgshare/internal/model"
)

// Chain runs its extractors in order and returns the first non-empty map.
type Chain struct {
	extractors []Extractor
	logger     *slog.Logger
}

// Option configures a Chain.
type Option func(*Chain)

// WithLogger sets the logger used for strategy failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chain) {
		c.logger = logger
	}
}

// WithExtractors replaces the strategy list.
func WithExtractors(extractors ...Extractor) Option {
	return func(c *Chain) {
		c.extractors = extractors
	}
}

// NewChain creates a Chain with the default strategy order.
func NewChain(opts ...Option) *Chain {
	c := &Chain{
		extractors: []Extractor{FlatEXIF{}, IFDWalk{}, EXIFMarker{}, ImageConfig{}},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Extract returns the properties of window. The result is never nil.
func (c *Chain) Extract(window []byte) map[string]string {
	if len(window) == 0 {
		return map[string]string{}
	}

	for _, e := range c.extractors {
		props, err := safeExtract(e, window)
		if err != nil {
			c.logger.Debug("extractor failed", "extractor", e.Name(), "error", err)
			continue
		}
		if len(props) > 0 {
			return props
		}
	}
	return map[string]string{}
}

// safeExtract runs one strategy, turning a panic into an extraction error.
// The EXIF decoder panics on some malformed inputs.
func safeExtract(e Extractor, window []byte) (props map[string]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			props = nil
			err = fmt.Errorf("%w: %s panicked: %v", model.ErrExtraction, e.Name(), r)
		}
	}()
	return e.Extract(window)
}
