package history

import (
	"context"
	"slices"
	"sync"
	"time"
)

type MemoryOption func(*MemoryStore)

func WithNowFunc(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// MemoryStore keeps revisions for the lifetime of the process.
type MemoryStore struct {
	mu    sync.Mutex
	nowFn func() time.Time
	// revs is in insertion order; newest last.
	revs []Revision
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{nowFn: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Record(_ context.Context, rev Revision) (Revision, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rev, err := prepare(rev, s.nowFn())
	if err != nil {
		return Revision{}, false, err
	}
	if latest, ok := s.latestLocked(rev.Path); ok && latest.Digest == rev.Digest {
		return copyRevision(latest, true), false, nil
	}
	for _, r := range s.revs {
		if r.ID == rev.ID {
			return Revision{}, false, ErrRevisionExists
		}
	}
	rev.Content = slices.Clone(rev.Content)
	s.revs = append(s.revs, rev)
	return copyRevision(rev, true), true, nil
}

func (s *MemoryStore) latestLocked(path string) (Revision, bool) {
	var out Revision
	found := false
	for _, r := range s.revs {
		if r.Path != path {
			continue
		}
		if !found || !r.SavedAt.Before(out.SavedAt) {
			out, found = r, true
		}
	}
	return out, found
}

// newestFirst returns the revisions of path (all when empty) ordered by
// SavedAt descending, ties broken by insertion order descending.
func (s *MemoryStore) newestFirst(path string) []Revision {
	var out []Revision
	for i := len(s.revs) - 1; i >= 0; i-- {
		if path == "" || s.revs[i].Path == path {
			out = append(out, s.revs[i])
		}
	}
	slices.SortStableFunc(out, func(a, b Revision) int {
		return b.SavedAt.Compare(a.SavedAt)
	})
	return out
}

func (s *MemoryStore) List(_ context.Context, req ListRequest) ([]Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.newestFirst(req.Path)
	limit := normalizeLimit(req.Limit)
	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]Revision, 0, len(all))
	for _, r := range all {
		out = append(out, copyRevision(r, false))
	}
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.revs {
		if r.ID == id {
			return copyRevision(r, true), nil
		}
	}
	return Revision{}, ErrRevisionNotFound
}

func (s *MemoryStore) Prune(_ context.Context, path string, keep int) (int, error) {
	path, err := revisionPath(path)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if keep < 0 {
		keep = 0
	}
	ordered := s.newestFirst(path)
	if len(ordered) <= keep {
		return 0, nil
	}
	drop := make(map[string]struct{}, len(ordered)-keep)
	for _, r := range ordered[keep:] {
		drop[r.ID] = struct{}{}
	}
	s.revs = slices.DeleteFunc(s.revs, func(r Revision) bool {
		_, ok := drop[r.ID]
		return ok
	})
	return len(drop), nil
}

func (s *MemoryStore) Close() error { return nil }

func copyRevision(r Revision, withContent bool) Revision {
	if withContent {
		r.Content = slices.Clone(r.Content)
	} else {
		r.Content = nil
	}
	return r
}
