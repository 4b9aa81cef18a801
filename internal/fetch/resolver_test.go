package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/imgshare/internal/model"
)

// newSiteServer serves a page referencing n images, one image and a PDF.
func newSiteServer(t *testing.T, n int) *httptest.Server {
	t.Helper()

	var page strings.Builder
	page.WriteString("<html><body>")
	for i := range n {
		fmt.Fprintf(&page, `<img src="/img/%d.jpg">`, i)
	}
	page.WriteString("</body></html>")

	mux := http.NewServeMux()
	mux.HandleFunc("/index.html", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, page.String())
	})
	mux.HandleFunc("/photo.jpg", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("ETag", `"photo"`)
	})
	mux.HandleFunc("/doc.pdf", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestResolver_Resolve(t *testing.T) {
	t.Parallel()

	t.Run("image target", func(t *testing.T) {
		t.Parallel()

		srv := newSiteServer(t, 0)
		r := NewResolver(newTestFetcher(srv), 30)

		got, err := r.Resolve(context.Background(), srv.URL+"/photo.jpg")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Kind != KindImage {
			t.Errorf("expected image, got %v", got.Kind)
		}
		if got.Header.Get("ETag") != `"photo"` {
			t.Errorf("expected probe headers to be kept, got %v", got.Header)
		}
	})

	t.Run("page references are capped", func(t *testing.T) {
		t.Parallel()

		srv := newSiteServer(t, 8)
		r := NewResolver(newTestFetcher(srv), 5)

		got, err := r.Resolve(context.Background(), srv.URL+"/index.html")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Kind != KindPage {
			t.Fatalf("expected page, got %v", got.Kind)
		}
		if len(got.References) != 5 {
			t.Fatalf("expected 5 references, got %d", len(got.References))
		}
		if got.Dropped != 3 {
			t.Errorf("expected 3 dropped, got %d", got.Dropped)
		}
		if got.References[0] != srv.URL+"/img/0.jpg" {
			t.Errorf("unexpected first reference %q", got.References[0])
		}
	})

	t.Run("page below cap keeps everything", func(t *testing.T) {
		t.Parallel()

		srv := newSiteServer(t, 2)
		got, err := NewResolver(newTestFetcher(srv), 30).Resolve(context.Background(), srv.URL+"/index.html")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got.References) != 2 || got.Dropped != 0 {
			t.Errorf("unexpected resolution %+v", got)
		}
	})

	t.Run("html parsing disabled", func(t *testing.T) {
		t.Parallel()

		srv := newSiteServer(t, 3)
		r := NewResolver(newTestFetcher(srv), 30, WithHTMLParsing(false))

		got, err := r.Resolve(context.Background(), srv.URL+"/index.html")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Kind != KindUnsupported || len(got.References) != 0 {
			t.Errorf("expected unsupported without references, got %+v", got)
		}
	})

	t.Run("other content type", func(t *testing.T) {
		t.Parallel()

		srv := newSiteServer(t, 0)
		got, err := NewResolver(newTestFetcher(srv), 30).Resolve(context.Background(), srv.URL+"/doc.pdf")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Kind != KindUnsupported {
			t.Errorf("expected unsupported, got %v", got.Kind)
		}
	})

	t.Run("failed probe", func(t *testing.T) {
		t.Parallel()

		srv := newSiteServer(t, 0)
		_, err := NewResolver(newTestFetcher(srv), 30).Resolve(context.Background(), srv.URL+"/missing")
		if !errors.Is(err, model.ErrNetwork) {
			t.Errorf("expected network error, got %v", err)
		}
	})

	t.Run("local file needs no probe", func(t *testing.T) {
		t.Parallel()

		f := NewFetcher(staticClients{err: errors.New("must not be called")})
		path := filepath.Join("images", "shop", "a.jpg")
		got, err := NewResolver(f, 30).Resolve(context.Background(), path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Kind != KindImage || got.Target != path {
			t.Errorf("unexpected resolution %+v", got)
		}
	})
}

func TestKindString(t *testing.T) {
	t.Parallel()

	if KindImage.String() != "image" || KindPage.String() != "page" || KindUnsupported.String() != "unsupported" {
		t.Error("unexpected kind names")
	}
	if Kind(9).String() != "unknown" {
		t.Error("expected unknown for out of range kind")
	}
}
