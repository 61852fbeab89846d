// Package memory implements store.Store in process memory. It backs
// `og serve` when no database is configured and the tests of packages
// built on the store.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/orggraph/internal/model"
	"github.com/alfredjeanlab/orggraph/internal/store"
)

type row struct {
	profile   model.Profile
	structure []byte
}

// Store is a mutex-guarded map of profiles.
type Store struct {
	mu   sync.Mutex
	rows map[string]*row
	now  func() time.Time
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{rows: make(map[string]*row), now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) ListProfiles(_ context.Context) ([]*model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Profile, 0, len(s.rows))
	for _, r := range s.rows {
		p := r.profile
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsActive != out[j].IsActive {
			return out[i].IsActive
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) GetProfile(_ context.Context, id string) (*model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	p := r.profile
	return &p, nil
}

func (s *Store) ActiveProfile(_ context.Context) (*model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.profile.IsActive {
			p := r.profile
			return &p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateProfile(_ context.Context, p *model.Profile) error {
	if strings.TrimSpace(p.Name) == "" {
		return model.Invalid("name", "profile name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.rows {
		if id == p.ID || strings.EqualFold(r.profile.Name, p.Name) {
			return store.ErrProfileExists
		}
	}
	now := s.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	if p.IsActive {
		s.deactivateLocked("", now)
	}
	s.rows[p.ID] = &row{profile: *p}
	return nil
}

func (s *Store) DeleteProfile(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return store.ErrNotFound
	}
	if len(s.rows) <= 1 {
		return store.ErrLastProfile
	}
	delete(s.rows, id)
	return nil
}

func (s *Store) SetActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return store.ErrNotFound
	}
	now := s.now()
	if active {
		s.deactivateLocked(id, now)
	}
	r.profile.IsActive = active
	r.profile.UpdatedAt = now
	return nil
}

func (s *Store) deactivateLocked(except string, now time.Time) {
	for id, r := range s.rows {
		if id != except && r.profile.IsActive {
			r.profile.IsActive = false
			r.profile.UpdatedAt = now
		}
	}
}

func (s *Store) LoadStructure(_ context.Context, id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), r.structure...), nil
}

func (s *Store) SaveStructure(_ context.Context, id string, st store.Structure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return store.ErrNotFound
	}
	r.structure = append([]byte(nil), st.Document...)
	r.profile.SchemaVersion = st.SchemaVersion
	r.profile.RelationshipsCount = st.Relationships
	r.profile.UpdatedAt = s.now()
	return nil
}

// RunInTransaction calls fn with the store itself. Operations are individually
// atomic; fn is not isolated from concurrent callers.
func (s *Store) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

func (s *Store) Close() error { return nil }
