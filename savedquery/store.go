// Package savedquery keeps the user's named SOQL queries.
package savedquery

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SavedQuery is a named query definition.
type SavedQuery struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	SOQL        string    `json:"soql"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Store is the in-memory saved-query list backed by a Persister. The
// in-memory list is authoritative: persistence failures are logged and never
// returned to callers. Store is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	queries   []SavedQuery
	lastID    int64
	persister Persister
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used to report storage failures.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock used for ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore loads the persisted list. If loading fails the store starts
// empty. A nil persister keeps queries in memory only.
func NewStore(ctx context.Context, persister Persister, opts ...Option) *Store {
	s := &Store{
		persister: persister,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.persister == nil {
		s.persister = NewMemoryPersister()
	}

	queries, err := s.persister.Load(ctx)
	if err != nil {
		s.logger.Error("Failed to load saved queries, starting empty", zap.Error(err))
		queries = nil
	}
	s.queries = queries
	for _, q := range queries {
		s.lastID = max(s.lastID, q.ID)
	}

	s.logger.Debug("Saved queries loaded", zap.Int("count", len(s.queries)))
	return s
}

// List returns the saved queries in insertion order.
func (s *Store) List() []SavedQuery {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.queries)
	if out == nil {
		out = []SavedQuery{}
	}
	return out
}

// Get returns the saved query with id.
func (s *Store) Get(id int64) (SavedQuery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	if i < 0 {
		return SavedQuery{}, ErrNotFound
	}
	return s.queries[i], nil
}

// Save appends a new query and persists the list. A blank name returns
// ErrEmptyName and changes nothing.
func (s *Store) Save(ctx context.Context, name, description, soql string) (SavedQuery, error) {
	if strings.TrimSpace(name) == "" {
		return SavedQuery{}, ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	q := SavedQuery{
		ID:          s.nextID(now),
		Name:        name,
		Description: description,
		SOQL:        soql,
		CreatedAt:   now.UTC().Truncate(time.Millisecond),
	}
	s.queries = append(s.queries, q)
	s.persist(ctx)
	return q, nil
}

// Update replaces the name, description and SOQL of the query with id.
// The id and creation time never change.
func (s *Store) Update(ctx context.Context, id int64, name, description, soql string) (SavedQuery, error) {
	if strings.TrimSpace(name) == "" {
		return SavedQuery{}, ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return SavedQuery{}, ErrNotFound
	}

	// Replace the slice so lists returned earlier keep their contents.
	next := slices.Clone(s.queries)
	next[i].Name = name
	next[i].Description = description
	next[i].SOQL = soql
	s.queries = next
	s.persist(ctx)
	return next[i], nil
}

// Delete removes the query with id if present. The list is persisted either
// way.
func (s *Store) Delete(ctx context.Context, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queries = slices.DeleteFunc(slices.Clone(s.queries), func(q SavedQuery) bool {
		return q.ID == id
	})
	s.persist(ctx)
}

func (s *Store) indexOf(id int64) int {
	return slices.IndexFunc(s.queries, func(q SavedQuery) bool { return q.ID == id })
}

// nextID returns the clock in milliseconds, bumped past the last id handed
// out so two saves in the same millisecond never collide.
func (s *Store) nextID(now time.Time) int64 {
	id := max(now.UnixMilli(), s.lastID+1)
	s.lastID = id
	return id
}

// persist must be called with s.mu held.
func (s *Store) persist(ctx context.Context) {
	if err := s.persister.Save(ctx, s.queries); err != nil {
		s.logger.Error("Failed to persist saved queries",
			zap.Int("count", len(s.queries)),
			zap.Error(err))
	}
}
