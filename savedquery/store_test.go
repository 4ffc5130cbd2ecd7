package savedquery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type failingPersister struct {
	loadErr error
	saveErr error
	saves   int
}

func (p *failingPersister) Load(ctx context.Context) ([]SavedQuery, error) {
	return nil, p.loadErr
}

func (p *failingPersister) Save(ctx context.Context, queries []SavedQuery) error {
	p.saves++
	return p.saveErr
}

type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func (m *memKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Put(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	m.data[key] = value
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestSaveAndList(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersister()
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	s := NewStore(ctx, p, WithClock(fixedClock(now)))

	q, err := s.Save(ctx, "Accounts", "all accounts", "SELECT Id FROM Account")
	require.NoError(t, err)
	assert.Equal(t, now.UnixMilli(), q.ID)
	assert.Equal(t, now, q.CreatedAt)

	_, err = s.Save(ctx, "Contacts", "", "SELECT Id FROM Contact")
	require.NoError(t, err)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "Accounts", list[0].Name)
	assert.Equal(t, "Contacts", list[1].Name)
	assert.Equal(t, 2, p.Saves())

	stored, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, list, stored)
}

func TestSaveAllocatesUniqueIDsWithinOneMillisecond(t *testing.T) {
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000)
	s := NewStore(ctx, nil, WithClock(fixedClock(now)))

	seen := make(map[int64]bool)
	for i := 0; i < 5; i++ {
		q, err := s.Save(ctx, "q", "", "SELECT Id FROM Account")
		require.NoError(t, err)
		assert.False(t, seen[q.ID], "duplicate id %d", q.ID)
		seen[q.ID] = true
	}
}

func TestSaveRejectsBlankName(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersister()
	s := NewStore(ctx, p)

	_, err := s.Save(ctx, "   ", "desc", "SELECT Id FROM Account")
	assert.ErrorIs(t, err, ErrEmptyName)
	assert.Empty(t, s.List())
	assert.Equal(t, 0, p.Saves())
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewStore(ctx, NewMemoryPersister())

	q, err := s.Save(ctx, "Accounts", "", "SELECT Id FROM Account")
	require.NoError(t, err)

	updated, err := s.Update(ctx, q.ID, "Top accounts", "by revenue", "SELECT Id FROM Account ORDER BY AnnualRevenue DESC")
	require.NoError(t, err)
	assert.Equal(t, q.ID, updated.ID)
	assert.Equal(t, q.CreatedAt, updated.CreatedAt)
	assert.Equal(t, "Top accounts", updated.Name)

	got, err := s.Get(q.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, got)
}

func TestUpdateFailuresLeaveStateUntouched(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersister()
	s := NewStore(ctx, p)

	q, err := s.Save(ctx, "Accounts", "", "SELECT Id FROM Account")
	require.NoError(t, err)
	before := s.List()

	_, err = s.Update(ctx, q.ID, "", "x", "y")
	assert.ErrorIs(t, err, ErrEmptyName)

	_, err = s.Update(ctx, q.ID+1, "name", "x", "y")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, before, s.List())
	assert.Equal(t, 1, p.Saves())
}

func TestDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersister()
	s := NewStore(ctx, p)

	q, err := s.Save(ctx, "Accounts", "", "SELECT Id FROM Account")
	require.NoError(t, err)

	s.Delete(ctx, q.ID+42)
	assert.Len(t, s.List(), 1)

	s.Delete(ctx, q.ID)
	s.Delete(ctx, q.ID)
	assert.Empty(t, s.List())
	assert.Equal(t, 4, p.Saves())

	_, err = s.Get(q.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListIsACopy(t *testing.T) {
	ctx := context.Background()
	s := NewStore(ctx, nil)
	_, err := s.Save(ctx, "Accounts", "", "SELECT Id FROM Account")
	require.NoError(t, err)

	list := s.List()
	list[0].Name = "changed"

	assert.Equal(t, "Accounts", s.List()[0].Name)
}

func TestLoadFailureStartsEmptyAndLogs(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	ctx := context.Background()

	s := NewStore(ctx, &failingPersister{loadErr: errors.New("storage disabled")}, WithLogger(zap.New(core)))

	assert.Empty(t, s.List())
	assert.Equal(t, 1, logs.FilterMessage("Failed to load saved queries, starting empty").Len())
}

func TestSaveFailureKeepsMemoryAuthoritative(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	ctx := context.Background()
	p := &failingPersister{saveErr: errors.New("quota exceeded")}

	s := NewStore(ctx, p, WithLogger(zap.New(core)))
	q, err := s.Save(ctx, "Accounts", "", "SELECT Id FROM Account")
	require.NoError(t, err)

	assert.Len(t, s.List(), 1)
	assert.Equal(t, q, s.List()[0])
	assert.Equal(t, 1, p.saves)
	assert.Equal(t, 1, logs.FilterMessage("Failed to persist saved queries").Len())
}

func TestKVPersisterRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := &memKV{}
	now := time.Date(2024, 1, 15, 8, 30, 0, 0, time.UTC)

	s := NewStore(ctx, NewKVPersister(kv), WithClock(fixedClock(now)))
	_, err := s.Save(ctx, "Accounts", "desc", "SELECT Id FROM Account")
	require.NoError(t, err)

	raw, ok := kv.data[StorageKey]
	require.True(t, ok)
	assert.Contains(t, string(raw), `"createdAt":"2024-01-15T08:30:00Z"`)

	reloaded := NewStore(ctx, NewKVPersister(kv), WithClock(fixedClock(now)))
	assert.Equal(t, s.List(), reloaded.List())

	next, err := reloaded.Save(ctx, "Again", "", "SELECT Id FROM Lead")
	require.NoError(t, err)
	assert.Equal(t, now.UnixMilli()+1, next.ID)
}

func TestKVPersisterMalformedData(t *testing.T) {
	ctx := context.Background()
	kv := &memKV{data: map[string][]byte{StorageKey: []byte("{not json")}}

	_, err := NewKVPersister(kv).Load(ctx)
	assert.Error(t, err)

	s := NewStore(ctx, NewKVPersister(kv))
	assert.Empty(t, s.List())
}

func TestKVPersisterMissingKey(t *testing.T) {
	queries, err := NewKVPersister(&memKV{}).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, queries)
}

func TestConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	s := NewStore(ctx, NewMemoryPersister())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Save(ctx, "q", "", "SELECT Id FROM Account")
		}()
	}
	wg.Wait()

	list := s.List()
	require.Len(t, list, 20)
	ids := make(map[int64]bool)
	for _, q := range list {
		ids[q.ID] = true
	}
	assert.Len(t, ids, 20)
}
