package savedquery

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
)

// Persister loads and stores the complete saved-query list. The list is
// always written as a whole.
type Persister interface {
	// Load returns the stored list. A missing list is not an error.
	Load(ctx context.Context) ([]SavedQuery, error)
	Save(ctx context.Context, queries []SavedQuery) error
}

// StorageKey is the key the list is kept under in a KeyValueStore.
const StorageKey = "soql-saved-queries"

// KeyValueStore is durable storage addressed by string keys.
type KeyValueStore interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
}

// KVPersister keeps the JSON-encoded list under a single key.
type KVPersister struct {
	kv  KeyValueStore
	key string
}

// NewKVPersister returns a persister writing to StorageKey in kv.
func NewKVPersister(kv KeyValueStore) *KVPersister {
	return &KVPersister{kv: kv, key: StorageKey}
}

// Load reads and decodes the list.
func (p *KVPersister) Load(ctx context.Context) ([]SavedQuery, error) {
	raw, ok, err := p.kv.Get(ctx, p.key)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p.key, err)
	}
	if !ok || len(raw) == 0 {
		return nil, nil
	}

	var queries []SavedQuery
	if err := json.Unmarshal(raw, &queries); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", p.key, err)
	}
	return queries, nil
}

// Save encodes and writes the list.
func (p *KVPersister) Save(ctx context.Context, queries []SavedQuery) error {
	if queries == nil {
		queries = []SavedQuery{}
	}
	raw, err := json.Marshal(queries)
	if err != nil {
		return fmt.Errorf("failed to encode saved queries: %w", err)
	}
	if err := p.kv.Put(ctx, p.key, raw); err != nil {
		return fmt.Errorf("failed to write %s: %w", p.key, err)
	}
	return nil
}

// MemoryPersister keeps the list in process memory.
type MemoryPersister struct {
	mu      sync.Mutex
	queries []SavedQuery
	saves   int
}

// NewMemoryPersister returns a persister preloaded with queries.
func NewMemoryPersister(queries ...SavedQuery) *MemoryPersister {
	return &MemoryPersister{queries: slices.Clone(queries)}
}

// Load returns a copy of the stored list.
func (p *MemoryPersister) Load(ctx context.Context) ([]SavedQuery, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.queries), nil
}

// Save replaces the stored list.
func (p *MemoryPersister) Save(ctx context.Context, queries []SavedQuery) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries = slices.Clone(queries)
	p.saves++
	return nil
}

// Saves returns how many times Save was called.
func (p *MemoryPersister) Saves() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}
