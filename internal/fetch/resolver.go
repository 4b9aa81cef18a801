package fetch

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nao1215/imgshare/internal/crawler"
	"github.com/nao1215/imgshare/internal/model"
)

// Kind classifies a resolved target.
type Kind int

const (
	// KindImage is a target served as an image (or a local file).
	KindImage Kind = iota

	// KindPage is an HTML page whose image references were collected.
	KindPage

	// KindUnsupported is any other content type, or a page while HTML
	// parsing is disabled.
	KindUnsupported
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindPage:
		return "page"
	case KindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Kind   Kind
	Target string

	// Header holds the probe headers; for an image target they are passed to
	// the fingerprint builder so it does not probe twice.
	Header http.Header

	// References are the page's image references, capped at the per-page
	// maximum.
	References []string

	// Dropped counts references beyond the cap.
	Dropped int
}

// PageSource is the part of Fetcher the Resolver needs.
type PageSource interface {
	Probe(ctx context.Context, target string) ProbeResult
	GetPage(ctx context.Context, target string) RangeResult
}

// Resolver classifies targets.
type Resolver struct {
	source      PageSource
	parser      crawler.PageParser
	maxImages   int
	htmlParsing bool
	logger      *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithParser replaces the page parser.
func WithParser(p crawler.PageParser) ResolverOption {
	return func(r *Resolver) {
		r.parser = p
	}
}

// WithHTMLParsing enables or disables page mode.
func WithHTMLParsing(enabled bool) ResolverOption {
	return func(r *Resolver) {
		r.htmlParsing = enabled
	}
}

// WithResolverLogger sets the logger.
func WithResolverLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver creates a Resolver keeping at most maxImages references per
// page. HTML parsing is enabled by default.
func NewResolver(source PageSource, maxImages int, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		source:      source,
		parser:      crawler.NewImageParser(),
		maxImages:   maxImages,
		htmlParsing: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Resolve classifies target. Local paths are always images. Remote targets
// are probed: image content types are images, HTML content types are pages
// (when enabled) and everything else is unsupported. A failed probe or page
// download returns its error.
func (r *Resolver) Resolve(ctx context.Context, target string) (Resolution, error) {
	if !model.IsRemote(target) {
		return Resolution{Kind: KindImage, Target: target, Header: http.Header{}}, nil
	}

	probe := r.source.Probe(ctx, target)
	if !probe.OK() {
		return Resolution{}, probe.Err
	}

	ct := probe.ContentType()
	switch {
	case strings.Contains(ct, "image"):
		return Resolution{Kind: KindImage, Target: target, Header: probe.Header}, nil
	case strings.Contains(ct, "html"):
		if !r.htmlParsing {
			return Resolution{Kind: KindUnsupported, Target: target, Header: probe.Header}, nil
		}
		return r.resolvePage(ctx, target, probe.Header)
	default:
		return Resolution{Kind: KindUnsupported, Target: target, Header: probe.Header}, nil
	}
}

func (r *Resolver) resolvePage(ctx context.Context, target string, header http.Header) (Resolution, error) {
	page := r.source.GetPage(ctx, target)
	if page.Status == StatusFailed {
		return Resolution{}, page.Err
	}

	refs, err := r.parser.ImageReferences(target, bytes.NewReader(page.Body))
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: parsing %s: %w", model.ErrResolution, target, err)
	}

	res := Resolution{Kind: KindPage, Target: target, Header: header, References: refs}
	if r.maxImages > 0 && len(refs) > r.maxImages {
		res.References = refs[:r.maxImages]
		res.Dropped = len(refs) - r.maxImages
		r.logger.Debug("page references capped", "url", target, "kept", r.maxImages, "dropped", res.Dropped)
	}
	return res, nil
}
