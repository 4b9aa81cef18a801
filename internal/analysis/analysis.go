package analysis

import (
	"cmp"
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/nao1215/imgshare/internal/model"
	"github.com/nao1215/imgshare/internal/store"
)

// Index maps a content hash to the set of domain labels that produced it.
type Index map[string]map[string]struct{}

// Add records that domain produced hash.
func (idx Index) Add(hash, domain string) {
	domains, ok := idx[hash]
	if !ok {
		domains = make(map[string]struct{})
		idx[hash] = domains
	}
	domains[domain] = struct{}{}
}

// Domains returns the sorted domains of hash.
func (idx Index) Domains(hash string) []string {
	return slices.Sorted(maps.Keys(idx[hash]))
}

// BuildIndex indexes every hashed fingerprint of snap. Fingerprints with a
// known size below minSize are ignored, as are fingerprints whose source
// yields no domain label; skipped counts the latter.
func BuildIndex(snap store.Snapshot, minSize int64) (idx Index, skipped int) {
	idx = make(Index)
	for _, key := range snap.Keys() {
		for _, fp := range snap[key] {
			if fp == nil || !fp.HasHash() {
				continue
			}
			if fp.ByteSize > 0 && fp.ByteSize < minSize {
				continue
			}
			domain, err := model.MainLabel(fp.SourceID)
			if err != nil {
				skipped++
				continue
			}
			idx.Add(fp.ContentHashPrefix, domain)
		}
	}
	return idx, skipped
}

// GroupByDomainSet clusters the hashes of idx by identical domain sets.
// Groups with fewer than two domains are dropped. The result is ordered by
// descending hash count, then by the domain list; hashes and domains inside
// a group are sorted.
func GroupByDomainSet(idx Index) []model.DomainGroup {
	byKey := make(map[string]*model.DomainGroup)
	for hash := range idx {
		domains := idx.Domains(hash)
		if len(domains) < 2 {
			continue
		}
		key := strings.Join(domains, "\x00")
		g, ok := byKey[key]
		if !ok {
			g = &model.DomainGroup{Domains: domains}
			byKey[key] = g
		}
		g.Hashes = append(g.Hashes, hash)
	}

	groups := make([]model.DomainGroup, 0, len(byKey))
	for _, g := range byKey {
		slices.Sort(g.Hashes)
		groups = append(groups, *g)
	}
	slices.SortFunc(groups, func(a, b model.DomainGroup) int {
		if c := cmp.Compare(len(b.Hashes), len(a.Hashes)); c != 0 {
			return c
		}
		return slices.Compare(a.Domains, b.Domains)
	})
	return groups
}

// Analyzer runs the grouping pass over a Store.
type Analyzer struct {
	store   *store.Store
	minSize int64
	logger  *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithMinSize ignores fingerprints of known size below n.
func WithMinSize(n int64) Option {
	return func(a *Analyzer) {
		a.minSize = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

// NewAnalyzer creates an Analyzer reading st.
func NewAnalyzer(st *store.Store, opts ...Option) *Analyzer {
	a := &Analyzer{store: st}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Analyze loads the store and returns the domain groups.
func (a *Analyzer) Analyze(ctx context.Context) ([]model.DomainGroup, error) {
	snap, err := a.store.LoadOrGet(ctx, nil)
	if err != nil {
		return nil, err
	}

	idx, skipped := BuildIndex(snap, a.minSize)
	if skipped > 0 {
		a.logger.Warn("fingerprints without a domain", "count", skipped)
	}

	groups := GroupByDomainSet(idx)
	a.logger.Debug("grouping complete", "records", len(snap), "hashes", len(idx), "groups", len(groups))
	return groups, nil
}
