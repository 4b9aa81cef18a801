package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/nao1215/imgshare/internal/fetch"
	"github.com/nao1215/imgshare/internal/metadata"
	"github.com/nao1215/imgshare/internal/model"
)

// DefaultMinSize is the size floor used when none is configured.
const DefaultMinSize = 20480

// RangeFetcher is the part of fetch.Fetcher the Builder needs.
type RangeFetcher interface {
	Probe(ctx context.Context, target string) fetch.ProbeResult
	FetchRange(ctx context.Context, target string, start, end int64) fetch.RangeResult
}

// PropertyExtractor turns a byte window into a property map.
// *metadata.Chain implements it.
type PropertyExtractor interface {
	Extract(window []byte) map[string]string
}

// Result is one built fingerprint with the window it was built from.
type Result struct {
	Fingerprint *model.Fingerprint

	// Window is the retrieved prefix. It is nil for size-only fingerprints.
	Window []byte

	// Err records a swallowed probe, range or read failure. The fingerprint
	// then carries only what was learned before the failure.
	Err error
}

// Builder builds fingerprints. It is safe for concurrent use.
type Builder struct {
	fetcher   RangeFetcher
	extractor PropertyExtractor
	minSize   int64
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithMinSize sets the size floor for hashing.
func WithMinSize(n int64) Option {
	return func(b *Builder) {
		b.minSize = n
	}
}

// WithExtractor replaces the metadata chain.
func WithExtractor(e PropertyExtractor) Option {
	return func(b *Builder) {
		b.extractor = e
	}
}

// WithClock sets the capture time source.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		b.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// NewBuilder creates a Builder. fetcher may be nil when only local files
// are fingerprinted.
func NewBuilder(fetcher RangeFetcher, opts ...Option) *Builder {
	b := &Builder{
		fetcher: fetcher,
		minSize: DefaultMinSize,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.extractor == nil {
		b.extractor = metadata.NewChain(metadata.WithLogger(b.logger))
	}
	return b
}

// Build fingerprints the image ref found on base. When ref is the target
// itself, pass the same value for both. header holds already known probe
// headers and may be nil.
func (b *Builder) Build(ctx context.Context, ref, base string, header http.Header) (Result, error) {
	if !model.IsRemote(ref) && !model.IsRemote(base) {
		return b.BuildLocal(ref)
	}

	target, err := ResolveReference(ref, base)
	if err != nil {
		return Result{}, err
	}

	var probeErr error
	if !hasSize(header) {
		probe := b.fetcher.Probe(ctx, target)
		header, probeErr = probe.Header, probe.Err
	}

	fp := &model.Fingerprint{
		SourceID:   target,
		ByteSize:   fetch.ProbeResult{Header: header}.ContentLength(),
		ETag:       model.NormalizeETag(header.Get("ETag")),
		CapturedAt: b.now().UTC(),
		Properties: map[string]string{},
	}
	if probeErr != nil || fp.ByteSize < b.minSize {
		return Result{Fingerprint: fp, Err: probeErr}, nil
	}

	rng := b.fetcher.FetchRange(ctx, target, 0, model.PrefixSize-1)
	if !rng.OK() {
		b.logger.Debug("prefix unavailable", "url", target, "status", rng.Status.String())
		return Result{Fingerprint: fp, Err: rng.Err}, nil
	}

	b.fill(fp, rng.Body)
	return Result{Fingerprint: fp, Window: rng.Body}, nil
}

// BuildLocal fingerprints a local file. A missing file is a resolution
// error; a read failure is recorded in Result.Err.
func (b *Builder) BuildLocal(path string) (Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", model.ErrResolution, err)
	}
	if info.IsDir() {
		return Result{}, fmt.Errorf("%w: %s is a directory", model.ErrResolution, path)
	}

	fp := &model.Fingerprint{
		SourceID:   path,
		ByteSize:   info.Size(),
		CapturedAt: b.now().UTC(),
		Properties: map[string]string{},
	}
	if fp.ByteSize < b.minSize {
		return Result{Fingerprint: fp}, nil
	}

	window, err := readPrefix(path)
	if err != nil {
		return Result{Fingerprint: fp, Err: fmt.Errorf("%w: %w", model.ErrPersistence, err)}, nil
	}
	if len(window) == 0 {
		return Result{Fingerprint: fp}, nil
	}

	b.fill(fp, window)
	return Result{Fingerprint: fp, Window: window}, nil
}

// fill sets the hash, sample and properties from a non-empty window.
func (b *Builder) fill(fp *model.Fingerprint, window []byte) {
	sum := sha256.Sum256(window)
	fp.ContentHashPrefix = hex.EncodeToString(sum[:])
	if len(window) >= model.SampleSize {
		fp.BoundarySample = hex.EncodeToString(window[len(window)-model.SampleSize:])
	}
	fp.Properties = b.extractor.Extract(window)
}

// ResolveReference turns ref into an absolute http(s) address relative to
// base.
func ResolveReference(ref, base string) (string, error) {
	if ref == base {
		return ref, nil
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: base %q: %w", model.ErrResolution, base, err)
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: reference %q: %w", model.ErrResolution, ref, err)
	}

	abs := baseURL.ResolveReference(refURL)
	if (abs.Scheme != "http" && abs.Scheme != "https") || abs.Host == "" {
		return "", fmt.Errorf("%w: cannot resolve %q against %q", model.ErrResolution, ref, base)
	}
	return abs.String(), nil
}

func hasSize(header http.Header) bool {
	return header != nil && header.Get("Content-Length") != ""
}

func readPrefix(path string) ([]byte, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the configured images folder
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, model.PrefixSize))
}
