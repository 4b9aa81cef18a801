package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/nao1215/imgshare/internal/model"
)

// ClientSource hands out the HTTP client for a host.
// *tor.Router implements it.
type ClientSource interface {
	ClientFor(host string) (*http.Client, error)
}

// Default request settings.
const (
	defaultUserAgent   = "imgshare"
	defaultMaxBodySize = 5 * 1024 * 1024
)

// Fetcher performs probes, range retrievals and page downloads.
// It is safe for concurrent use.
type Fetcher struct {
	clients     ClientSource
	userAgent   string
	maxBodySize int64
	logger      *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize limits how many bytes GetPage reads.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBodySize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher creates a Fetcher that routes through clients.
func NewFetcher(clients ClientSource, opts ...Option) *Fetcher {
	f := &Fetcher{
		clients:     clients,
		userAgent:   defaultUserAgent,
		maxBodySize: defaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	return f
}

// Probe issues a HEAD request and returns the response headers.
// Any transport error or non-2xx status yields StatusFailed.
func (f *Fetcher) Probe(ctx context.Context, target string) ProbeResult {
	resp, err := f.do(ctx, http.MethodHead, target, nil)
	if err != nil {
		f.logger.Debug("probe failed", "url", target, "error", err)
		return failedProbe(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse

	length := resp.ContentLength
	if length < 0 {
		length = 0
	}
	return ProbeResult{
		Status:     StatusOK,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Length:     length,
	}
}

// FetchRange retrieves bytes start..end (inclusive) of target. Both 206 and
// 200 are accepted; an origin that ignores the Range header still yields at
// most end-start+1 bytes.
func (f *Fetcher) FetchRange(ctx context.Context, target string, start, end int64) RangeResult {
	if start < 0 || end < start {
		return failedRange(fmt.Errorf("%w: %d-%d", ErrInvalidRange, start, end))
	}

	header := http.Header{}
	header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))

	resp, err := f.do(ctx, http.MethodGet, target, header)
	if err != nil {
		f.logger.Debug("range request failed", "url", target, "error", err)
		return failedRange(err)
	}
	defer resp.Body.Close()

	return f.readBody(resp, end-start+1, target)
}

// GetPage downloads an HTML page, reading at most the configured maximum
// body size.
func (f *Fetcher) GetPage(ctx context.Context, target string) RangeResult {
	header := http.Header{}
	header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.do(ctx, http.MethodGet, target, header)
	if err != nil {
		f.logger.Debug("page request failed", "url", target, "error", err)
		return failedRange(err)
	}
	defer resp.Body.Close()

	return f.readBody(resp, f.maxBodySize, target)
}

func (f *Fetcher) readBody(resp *http.Response, limit int64, target string) RangeResult {
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		err = fmt.Errorf("%w: reading %s: %w", model.ErrNetwork, target, err)
		f.logger.Debug("body read failed", "url", target, "error", err)
		return failedRange(err)
	}

	status := StatusOK
	if len(body) == 0 {
		status = StatusEmpty
	}
	return RangeResult{
		Status:     status,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}
}

// do sends one request through the client routed for the target host and
// rejects non-2xx responses. The returned response body must be closed.
func (f *Fetcher) do(ctx context.Context, method, target string, header http.Header) (*http.Response, error) {
	host, err := model.HostOf(target)
	if err != nil {
		return nil, err
	}
	client, err := f.clients.ClientFor(host)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrResolution, err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", model.ErrNetwork, method, target, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s %s: %d", ErrUnexpectedStatus, method, target, resp.StatusCode)
	}
	return resp, nil
}
