package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/nao1215/imgshare/internal/model"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSnapshot(t *testing.T) {
	t.Parallel()

	snap := Snapshot{
		"b": {{SourceID: "x"}, {SourceID: "y"}},
		"a": {{SourceID: "z"}},
		"c": nil,
	}
	keys := snap.Keys()
	if len(keys) != 3 || keys[0] != "a" || keys[1] != "b" || keys[2] != "c" {
		t.Errorf("unexpected key order %v", keys)
	}
	if snap.Count() != 3 {
		t.Errorf("expected 3 fingerprints, got %d", snap.Count())
	}
}

func TestStore_LoadOrGet(t *testing.T) {
	t.Parallel()

	t.Run("populates lazily from every root", func(t *testing.T) {
		t.Parallel()

		live := t.TempDir()
		archive := t.TempDir()
		writeFile(t, filepath.Join(live, "alpha", "1.json"), `[{"source_id": "http://alpha.com/1.jpg", "content_hash_prefix": "aa"}]`)
		writeFile(t, filepath.Join(archive, "beta", "2.json"), `[{"url": "http://beta.com/2.jpg", "sha256_first_10240_bytes": "bb"}]`)

		s := New([]string{live, archive, filepath.Join(live, "missing")}, WithLogger(quietLogger()))
		if s.Len() != 0 {
			t.Fatalf("expected an unpopulated store, got %d entries", s.Len())
		}

		snap, err := s.LoadOrGet(context.Background(), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(snap) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(snap))
		}
		if got := snap[filepath.Join(archive, "beta", "2.json")]; len(got) != 1 || got[0].ContentHashPrefix != "bb" {
			t.Errorf("unexpected archive entry %+v", got)
		}
	})

	t.Run("corrupt files are left out", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		writeFile(t, filepath.Join(root, "alpha", "good.json"), `[{"source_id": "http://alpha.com/1.jpg"}]`)
		writeFile(t, filepath.Join(root, "alpha", "bad.json"), `{not json`)

		snap, err := New([]string{root}, WithLogger(quietLogger())).LoadOrGet(context.Background(), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(snap) != 1 {
			t.Errorf("expected only the readable file, got %v", snap.Keys())
		}
	})

	t.Run("inserts only absent keys", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		path := filepath.Join(root, "alpha", "1.json")
		writeFile(t, path, `[{"source_id": "http://alpha.com/1.jpg"}]`)

		s := New([]string{root}, WithLogger(quietLogger()))
		snap, err := s.LoadOrGet(context.Background(), &Entry{
			Key:          path,
			Fingerprints: []*model.Fingerprint{{SourceID: "http://other.com/replaced.jpg"}},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if snap[path][0].SourceID != "http://alpha.com/1.jpg" {
			t.Errorf("existing entry was replaced: %+v", snap[path][0])
		}

		snap, err = s.LoadOrGet(context.Background(), &Entry{
			Key:          "new",
			Fingerprints: []*model.Fingerprint{{SourceID: "http://new.com/1.jpg"}},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(snap) != 2 || snap["new"][0].SourceID != "http://new.com/1.jpg" {
			t.Errorf("expected new entry in snapshot, got %v", snap.Keys())
		}
	})

	t.Run("snapshots are isolated from later inserts", func(t *testing.T) {
		t.Parallel()

		s := New([]string{t.TempDir()}, WithLogger(quietLogger()))
		before, err := s.LoadOrGet(context.Background(), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, err := s.LoadOrGet(context.Background(), &Entry{Key: "k"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(before) != 0 {
			t.Errorf("earlier snapshot changed: %v", before.Keys())
		}

		before["injected"] = nil
		after, err := s.LoadOrGet(context.Background(), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := after["injected"]; ok {
			t.Error("writing to a snapshot reached the store")
		}
		if s.Len() != 1 {
			t.Errorf("expected 1 entry, got %d", s.Len())
		}
	})

	t.Run("concurrent inserts", func(t *testing.T) {
		t.Parallel()

		s := New([]string{t.TempDir()}, WithLogger(quietLogger()))
		const workers = 32

		var wg sync.WaitGroup
		for i := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				entry := &Entry{
					Key:          fmt.Sprintf("k%d", i),
					Fingerprints: []*model.Fingerprint{{SourceID: fmt.Sprintf("http://site%d.com/a.jpg", i)}},
				}
				if _, err := s.LoadOrGet(context.Background(), entry); err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		if s.Len() != workers {
			t.Errorf("expected %d entries, got %d", workers, s.Len())
		}
	})

	t.Run("cancelled context before population", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		s := New([]string{t.TempDir()}, WithLogger(quietLogger()))
		if _, err := s.LoadOrGet(ctx, nil); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}

		if _, err := s.LoadOrGet(context.Background(), nil); err != nil {
			t.Errorf("expected a later call to populate, got %v", err)
		}
	})

	t.Run("empty key", func(t *testing.T) {
		t.Parallel()

		s := New(nil, WithLogger(quietLogger()))
		if _, err := s.LoadOrGet(context.Background(), &Entry{}); !errors.Is(err, ErrEmptyKey) {
			t.Errorf("expected ErrEmptyKey, got %v", err)
		}
	})
}
