package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/imgshare/internal/config"
	"github.com/nao1215/imgshare/internal/fetch"
	"github.com/nao1215/imgshare/internal/fingerprint"
	"github.com/nao1215/imgshare/internal/model"
	"github.com/nao1215/imgshare/internal/store"
	"github.com/nao1215/imgshare/internal/tor"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeResolver answers from a fixed table.
type fakeResolver struct {
	results map[string]fetch.Resolution
	errs    map[string]error
}

func (r *fakeResolver) Resolve(_ context.Context, target string) (fetch.Resolution, error) {
	if err, ok := r.errs[target]; ok {
		return fetch.Resolution{}, err
	}
	if res, ok := r.results[target]; ok {
		return res, nil
	}
	return fetch.Resolution{Kind: fetch.KindImage, Target: target, Header: http.Header{}}, nil
}

// fakeBuilder builds fingerprints through a function.
type fakeBuilder struct {
	build func(ref, base string) (fingerprint.Result, error)
}

func (b *fakeBuilder) Build(_ context.Context, ref, base string, _ http.Header) (fingerprint.Result, error) {
	return b.build(ref, base)
}

// recordingReporter keeps every reported block.
type recordingReporter struct {
	mu     sync.Mutex
	blocks map[string][]model.MatchEvent
}

func (r *recordingReporter) ReportMatches(fp *model.Fingerprint, events []model.MatchEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.blocks == nil {
		r.blocks = make(map[string][]model.MatchEvent)
	}
	r.blocks[fp.SourceID] = append(r.blocks[fp.SourceID], events...)
	return nil
}

func hashed(ref string) fingerprint.Result {
	return fingerprint.Result{Fingerprint: &model.Fingerprint{SourceID: ref, ByteSize: 30000, ContentHashPrefix: "hash-of-" + ref}}
}

func newFakeOrchestrator(t *testing.T, resolver TargetResolver, builder FingerprintBuilder, opts ...Option) (*Orchestrator, string) {
	t.Helper()
	root := t.TempDir()
	st := store.New([]string{root}, store.WithLogger(quietLogger()))
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return New(resolver, builder, st, root, opts...), root
}

// imageBytes returns n bytes without long zero runs.
func imageBytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*31 + i/7 + 1)
	}
	return b
}

// newCorpusServer serves a page with three image references, the images and
// a byte-identical copy of the large one. It counts every request.
func newCorpusServer(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()

	var requests atomic.Int64
	large := imageBytes(30000)
	small := imageBytes(500)
	page := []byte(`<html><body><img src="/a.jpg"><img src="/missing.jpg"><img src="small.png"></body></html>`)

	mux := http.NewServeMux()
	serve := func(name string, body []byte) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(body))
		}
	}
	mux.HandleFunc("/page.html", serve("page.html", page))
	mux.HandleFunc("/a.jpg", serve("a.jpg", large))
	mux.HandleFunc("/copy.jpg", serve("copy.jpg", large))
	mux.HandleFunc("/small.png", serve("small.png", small))
	mux.HandleFunc("/empty.html", serve("empty.html", []byte("<html><body>no images</body></html>")))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func newLiveOrchestrator(t *testing.T, root string, reporter MatchReporter) *Orchestrator {
	t.Helper()

	router, err := tor.NewRouter(nil, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	fetcher := fetch.NewFetcher(router, fetch.WithLogger(quietLogger()))
	resolver := fetch.NewResolver(fetcher, 30, fetch.WithResolverLogger(quietLogger()))
	builder := fingerprint.NewBuilder(fetcher, fingerprint.WithMinSize(20480), fingerprint.WithLogger(quietLogger()))
	st := store.New([]string{root}, store.WithLogger(quietLogger()))

	return New(resolver, builder, st, root,
		WithLogger(quietLogger()),
		WithReporter(reporter),
		WithMaxThreads(4),
		WithMaxImagesPerPage(3),
	)
}

func TestOrchestrator_EndToEnd(t *testing.T) {
	t.Parallel()

	srv, requests := newCorpusServer(t)
	root := t.TempDir()
	page := srv.URL + "/page.html"
	empty := srv.URL + "/empty.html"
	dup := srv.URL + "/copy.jpg"

	reporter := &recordingReporter{}
	o := newLiveOrchestrator(t, root, reporter)

	first, err := o.Run(context.Background(), []string{page, empty})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Persisted != 2 || first.Fingerprints != 2 || first.DroppedUnits != 1 {
		t.Errorf("unexpected first summary %+v", first)
	}

	pagePath, err := store.RecordPath(root, page)
	if err != nil {
		t.Fatal(err)
	}
	fps, err := store.ReadRecordFile(pagePath)
	if err != nil {
		t.Fatalf("page record not readable: %v", err)
	}
	if len(fps) != 2 {
		t.Fatalf("expected 2 fingerprints in the page record, got %d", len(fps))
	}
	var large, small *model.Fingerprint
	for _, fp := range fps {
		switch fp.SourceID {
		case srv.URL + "/a.jpg":
			large = fp
		case srv.URL + "/small.png":
			small = fp
		}
	}
	if large == nil || !large.HasHash() || !large.HasSample() || large.ByteSize != 30000 {
		t.Errorf("unexpected large fingerprint %+v", large)
	}
	if small == nil || small.HasHash() || small.HasSample() || small.ByteSize != 500 {
		t.Errorf("unexpected small fingerprint %+v", small)
	}

	emptyPath, err := store.RecordPath(root, empty)
	if err != nil {
		t.Fatal(err)
	}
	if fps, err := store.ReadRecordFile(emptyPath); err != nil || len(fps) != 0 {
		t.Errorf("expected an empty record for a page without images, got %v, %v", fps, err)
	}

	second, err := o.Run(context.Background(), []string{page, dup})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Skipped != 1 || second.Scheduled != 1 || second.Matches != 2 {
		t.Errorf("unexpected second summary %+v", second)
	}
	events := reporter.blocks[dup]
	if len(events) != 2 || events[0].Reason != model.ReasonContentHash || events[1].Reason != model.ReasonBoundarySample {
		t.Errorf("unexpected events for the copy: %+v", events)
	}
	if len(events) > 0 && (events[0].MatchedSourceID != srv.URL+"/a.jpg" || events[0].RecordKey != pagePath) {
		t.Errorf("copy matched the wrong record: %+v", events[0])
	}

	before := requests.Load()
	third, err := newLiveOrchestrator(t, root, reporter).Run(context.Background(), []string{page, empty, dup})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if third.Scheduled != 0 || third.Skipped != 3 {
		t.Errorf("expected every target to be skipped, got %+v", third)
	}
	if got := requests.Load(); got != before {
		t.Errorf("expected no requests on a resumed run, got %d", got-before)
	}
}

func TestOrchestrator_FailureIsolation(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{
		errs: map[string]error{
			"http://broken.com/x.jpg": fmt.Errorf("%w: connection refused", model.ErrNetwork),
		},
		results: map[string]fetch.Resolution{
			"http://video.com/clip.mp4": {Kind: fetch.KindUnsupported, Header: http.Header{}},
		},
	}
	builder := &fakeBuilder{build: func(ref, _ string) (fingerprint.Result, error) { return hashed(ref), nil }}
	o, root := newFakeOrchestrator(t, resolver, builder)

	summary, err := o.Run(context.Background(), []string{
		"http://broken.com/x.jpg",
		"http://good.com/x.jpg",
		"http://video.com/clip.mp4",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Failed != 1 || summary.Persisted != 1 || summary.Unsupported != 1 {
		t.Errorf("unexpected summary %+v", summary)
	}

	for target, want := range map[string]bool{
		"http://broken.com/x.jpg":   false,
		"http://good.com/x.jpg":     true,
		"http://video.com/clip.mp4": false,
	} {
		path, err := store.RecordPath(root, target)
		if err != nil {
			t.Fatal(err)
		}
		if got := store.Exists(path); got != want {
			t.Errorf("record for %s exists = %v, want %v", target, got, want)
		}
	}
}

func TestOrchestrator_DegradedUnits(t *testing.T) {
	t.Parallel()

	unavailable := fmt.Errorf("%w: timeout", model.ErrNetwork)
	resolver := &fakeResolver{results: map[string]fetch.Resolution{
		"http://mixed.com/": {Kind: fetch.KindPage, References: []string{"ok.jpg", "down.jpg", "partial.jpg", "bad"}},
		"http://dead.com/":  {Kind: fetch.KindPage, References: []string{"a.jpg", "b.jpg"}},
	}}
	builder := &fakeBuilder{build: func(ref, base string) (fingerprint.Result, error) {
		src := base + ref
		switch {
		case ref == "bad":
			return fingerprint.Result{}, fmt.Errorf("%w: %s", model.ErrResolution, ref)
		case ref == "down.jpg" || strings.HasPrefix(base, "http://dead.com"):
			return fingerprint.Result{Fingerprint: &model.Fingerprint{SourceID: src}, Err: unavailable}, nil
		case ref == "partial.jpg":
			return fingerprint.Result{Fingerprint: &model.Fingerprint{SourceID: src, ByteSize: 40000, ETag: "e1"}, Err: unavailable}, nil
		default:
			return hashed(src), nil
		}
	}}
	o, root := newFakeOrchestrator(t, resolver, builder)

	summary, err := o.Run(context.Background(), []string{"http://mixed.com/", "http://dead.com/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Persisted != 1 || summary.Failed != 1 || summary.DroppedUnits != 4 || summary.Fingerprints != 2 {
		t.Errorf("unexpected summary %+v", summary)
	}

	path, err := store.RecordPath(root, "http://mixed.com/")
	if err != nil {
		t.Fatal(err)
	}
	fps, err := store.ReadRecordFile(path)
	if err != nil {
		t.Fatalf("record not readable: %v", err)
	}
	if len(fps) != 2 || fps[0].SourceID != "http://mixed.com/ok.jpg" || fps[1].ETag != "e1" {
		t.Errorf("unexpected record %+v", fps)
	}

	deadPath, err := store.RecordPath(root, "http://dead.com/")
	if err != nil {
		t.Fatal(err)
	}
	if store.Exists(deadPath) {
		t.Error("a target whose units all failed must not get a record")
	}
}

func TestOrchestrator_ConcurrencyBound(t *testing.T) {
	t.Parallel()

	const (
		threads  = 2
		perPage  = 3
		pages    = 5
		refCount = 7
	)

	results := make(map[string]fetch.Resolution, pages)
	targets := make([]string, pages)
	for i := range pages {
		target := fmt.Sprintf("http://site%d.com/", i)
		refs := make([]string, refCount)
		for j := range refs {
			refs[j] = fmt.Sprintf("%d.jpg", j)
		}
		targets[i] = target
		results[target] = fetch.Resolution{Kind: fetch.KindPage, References: refs}
	}

	var mu sync.Mutex
	inFlight := make(map[string]int)
	var total, maxTotal, maxPerPage int
	builder := &fakeBuilder{build: func(ref, base string) (fingerprint.Result, error) {
		mu.Lock()
		total++
		inFlight[base]++
		maxTotal = max(maxTotal, total)
		maxPerPage = max(maxPerPage, inFlight[base])
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		total--
		inFlight[base]--
		mu.Unlock()
		return hashed(base + ref), nil
	}}

	o, _ := newFakeOrchestrator(t, &fakeResolver{results: results}, builder,
		WithMaxThreads(threads), WithMaxImagesPerPage(perPage))

	summary, err := o.Run(context.Background(), targets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Persisted != pages || summary.Fingerprints != pages*refCount {
		t.Errorf("unexpected summary %+v", summary)
	}
	if maxPerPage > perPage {
		t.Errorf("inner pool exceeded: %d > %d", maxPerPage, perPage)
	}
	if maxTotal > threads*perPage {
		t.Errorf("worst-case concurrency exceeded: %d > %d", maxTotal, threads*perPage)
	}
}

func TestOrchestrator_MatchesAgainstStore(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	existing := filepath.Join(root, "old", "1111111111.json")
	if err := store.WriteRecordFile(existing, []*model.Fingerprint{
		{SourceID: "http://old.com/x.jpg", ContentHashPrefix: "shared", ETag: "tag"},
	}); err != nil {
		t.Fatal(err)
	}

	builder := &fakeBuilder{build: func(ref, _ string) (fingerprint.Result, error) {
		return fingerprint.Result{Fingerprint: &model.Fingerprint{SourceID: ref, ContentHashPrefix: "shared", ETag: "tag"}}, nil
	}}
	reporter := &recordingReporter{}
	st := store.New([]string{root}, store.WithLogger(quietLogger()))
	o := New(&fakeResolver{}, builder, st, root, WithLogger(quietLogger()), WithReporter(reporter))

	summary, err := o.Run(context.Background(), []string{"http://new.com/y.jpg"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Matches != 2 {
		t.Errorf("expected 2 match events, got %+v", summary)
	}
	events := reporter.blocks["http://new.com/y.jpg"]
	if len(events) != 2 || events[0].RecordKey != existing {
		t.Errorf("unexpected events %+v", events)
	}
}

func TestOrchestrator_PersistenceFailure(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	// A file where the record folder should be makes every write fail.
	if err := os.WriteFile(filepath.Join(root, "blocked"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	builder := &fakeBuilder{build: func(ref, _ string) (fingerprint.Result, error) { return hashed(ref), nil }}
	st := store.New([]string{root}, store.WithLogger(quietLogger()))
	o := New(&fakeResolver{}, builder, st, root, WithLogger(quietLogger()))

	summary, err := o.Run(context.Background(), []string{"http://blocked.com/a.jpg", "http://fine.com/a.jpg"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Failed != 1 || summary.Persisted != 1 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if st.Len() != 1 {
		t.Errorf("expected only the written record in the store, got %d entries", st.Len())
	}
}

func TestOrchestrator_Pending(t *testing.T) {
	t.Parallel()

	o, root := newFakeOrchestrator(t, &fakeResolver{}, &fakeBuilder{})
	done := "http://done.com/a.jpg"
	path, err := store.RecordPath(root, done)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.WriteRecordFile(path, nil); err != nil {
		t.Fatal(err)
	}

	pending, skipped := o.Pending([]string{
		done,
		"http://new.com/a.jpg",
		"http://new.com/a.jpg",
		"http:///nohost.jpg",
		"http://other.com/b.jpg",
	})
	if skipped != 3 {
		t.Errorf("expected 3 skipped, got %d", skipped)
	}
	if len(pending) != 2 || pending[0] != "http://new.com/a.jpg" || pending[1] != "http://other.com/b.jpg" {
		t.Errorf("unexpected pending list %v", pending)
	}
}

func TestOrchestrator_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o, _ := newFakeOrchestrator(t, &fakeResolver{}, &fakeBuilder{})
	if _, err := o.Run(ctx, []string{"http://a.com/x.jpg"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	o := New(nil, nil, store.New(nil), t.TempDir())
	if o.maxThreads != config.DefaultMaxThreads {
		t.Errorf("maxThreads = %d, want %d", o.maxThreads, config.DefaultMaxThreads)
	}
	if o.maxImages != config.DefaultMaxImgPerDomain {
		t.Errorf("maxImages = %d, want %d", o.maxImages, config.DefaultMaxImgPerDomain)
	}

	o = New(nil, nil, store.New(nil), t.TempDir(), WithMaxThreads(0), WithMaxImagesPerPage(-1))
	if o.maxThreads != config.DefaultMaxThreads || o.maxImages != config.DefaultMaxImgPerDomain {
		t.Errorf("non-positive limits must keep the defaults, got %d/%d", o.maxThreads, o.maxImages)
	}
}

func TestOrchestrator_InterruptedPageIsRetried(t *testing.T) {
	t.Parallel()

	const target = "http://gallery.com/page.html"
	refs := []string{
		"http://gallery.com/1.jpg",
		"http://gallery.com/2.jpg",
		"http://gallery.com/3.jpg",
		"http://gallery.com/4.jpg",
		"http://gallery.com/5.jpg",
	}
	resolver := &fakeResolver{results: map[string]fetch.Resolution{
		target: {Kind: fetch.KindPage, Target: target, Header: http.Header{}, References: refs},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var builds atomic.Int64
	builder := &fakeBuilder{build: func(ref, _ string) (fingerprint.Result, error) {
		builds.Add(1)
		cancel()
		return hashed(ref), nil
	}}

	o, root := newFakeOrchestrator(t, resolver, builder, WithMaxImagesPerPage(1))
	summary, err := o.Run(ctx, []string{target})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if summary.Persisted != 0 || summary.Fingerprints != 0 {
		t.Errorf("expected nothing persisted, got %+v", summary)
	}
	if summary.Interrupted != 1 {
		t.Errorf("expected one interrupted target, got %d", summary.Interrupted)
	}
	if builds.Load() >= int64(len(refs)) {
		t.Fatalf("expected the page to be cut short, got %d builds", builds.Load())
	}

	path, err := store.RecordPath(root, target)
	if err != nil {
		t.Fatal(err)
	}
	if store.Exists(path) {
		t.Fatal("expected no record for the interrupted page")
	}

	// The next run schedules the page again and builds every image.
	builds.Store(0)
	resumeBuilder := &fakeBuilder{build: func(ref, _ string) (fingerprint.Result, error) {
		builds.Add(1)
		return hashed(ref), nil
	}}
	st := store.New([]string{root}, store.WithLogger(quietLogger()))
	resumed := New(resolver, resumeBuilder, st, root, WithLogger(quietLogger()), WithMaxImagesPerPage(1))

	summary, err = resumed.Run(context.Background(), []string{target})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Scheduled != 1 || summary.Skipped != 0 {
		t.Errorf("expected the page to be scheduled again, got %+v", summary)
	}
	if got := builds.Load(); got != int64(len(refs)) {
		t.Errorf("expected %d builds, got %d", len(refs), got)
	}
	fps, err := store.ReadRecordFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(fps) != len(refs) {
		t.Errorf("expected %d fingerprints in the record, got %d", len(refs), len(fps))
	}
}

func TestOrchestrator_CompareExisting(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	for name, fp := range map[string]*model.Fingerprint{
		"a": {SourceID: "http://a.com/x.jpg", ContentHashPrefix: "same"},
		"b": {SourceID: "http://b.com/x.jpg", ContentHashPrefix: "same"},
		"c": {SourceID: "http://c.com/x.jpg", ContentHashPrefix: "unique"},
	} {
		if err := store.WriteRecordFile(filepath.Join(root, name, name+".json"), []*model.Fingerprint{fp}); err != nil {
			t.Fatal(err)
		}
	}

	reporter := &recordingReporter{}
	st := store.New([]string{root}, store.WithLogger(quietLogger()))
	o := New(&fakeResolver{}, &fakeBuilder{}, st, root, WithLogger(quietLogger()), WithReporter(reporter))

	n, err := o.CompareExisting(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 fingerprints with matches, got %d", n)
	}
	if got := reporter.blocks["http://a.com/x.jpg"]; len(got) != 1 || got[0].MatchedSourceID != "http://b.com/x.jpg" {
		t.Errorf("unexpected events for a: %+v", got)
	}
	if _, ok := reporter.blocks["http://c.com/x.jpg"]; ok {
		t.Error("unique fingerprint must not be reported")
	}
}
