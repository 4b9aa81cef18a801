package store

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/nao1215/imgshare/internal/model"
)

// Entry is one record file's fingerprints, keyed by the file path.
type Entry struct {
	Key          string
	Fingerprints []*model.Fingerprint
}

// Snapshot is a shallow copy of the store mapping. The fingerprint slices
// are shared with the store and must not be modified.
type Snapshot map[string][]*model.Fingerprint

// Keys returns the snapshot keys in lexical order.
func (s Snapshot) Keys() []string {
	return slices.Sorted(maps.Keys(s))
}

// Count returns the number of fingerprints in the snapshot.
func (s Snapshot) Count() int {
	n := 0
	for _, fps := range s {
		n += len(fps)
	}
	return n
}

// Store is the run-wide fingerprint cache over the live root and the
// archive roots. The zero value is not usable; call New.
type Store struct {
	mu      sync.Mutex
	roots   []string
	entries map[string][]*model.Fingerprint
	loaded  bool
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for unreadable record files.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a Store over roots. The first root is the live corpus;
// every root is read, none is written by the Store itself.
func New(roots []string, opts ...Option) *Store {
	s := &Store{
		roots:   slices.Clone(roots),
		entries: make(map[string][]*model.Fingerprint),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// LoadOrGet populates the store on first use, inserts entry when its key is
// not present yet, and returns a snapshot. entry may be nil.
//
// Population scans every root once under the store lock. Unreadable files
// are logged and left out. The only error is a cancelled ctx before the
// first population.
func (s *Store) LoadOrGet(ctx context.Context, entry *Entry) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.load()
		s.loaded = true
	}

	if entry != nil {
		if entry.Key == "" {
			return nil, ErrEmptyKey
		}
		if _, ok := s.entries[entry.Key]; !ok {
			s.entries[entry.Key] = slices.Clip(entry.Fingerprints)
		}
	}

	return maps.Clone(s.entries), nil
}

// Len returns the number of entries. It does not trigger population.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// load reads every record file below every root. Callers hold s.mu.
func (s *Store) load() {
	for _, root := range s.roots {
		files, err := ScanRecordFiles(root)
		if err != nil {
			s.logger.Warn("cannot scan corpus", "root", root, "error", err)
			continue
		}
		for _, path := range files {
			if _, ok := s.entries[path]; ok {
				continue
			}
			fps, err := ReadRecordFile(path)
			if err != nil {
				s.logger.Warn("skipping record file", "path", path, "error", err)
				continue
			}
			s.entries[path] = fps
		}
		s.logger.Debug("corpus loaded", "root", root, "files", len(files))
	}
}
