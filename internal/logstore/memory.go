package logstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps records in process memory. Used for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Insert(_ context.Context, rec *Record) error {
	rec.ID = uuid.NewString()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	rec.Timestamp = rec.Timestamp.UTC()

	s.mu.Lock()
	s.records[rec.ID] = *rec
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Find(ctx context.Context, q Query) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		if q.matches(r) {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[j].Position().after(out[i].Position())
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *MemoryStore) Count(ctx context.Context, q Query) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, r := range s.records {
		if q.matches(r) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) NewBatch() Batch {
	return &memoryBatch{store: s}
}

func (s *MemoryStore) Ping(context.Context) error  { return nil }
func (s *MemoryStore) Close(context.Context) error { return nil }

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

type memoryBatch struct {
	store *MemoryStore
	ids   []string
}

func (b *memoryBatch) Delete(id string) { b.ids = append(b.ids, id) }
func (b *memoryBatch) Len() int         { return len(b.ids) }

func (b *memoryBatch) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.store.mu.Lock()
	for _, id := range b.ids {
		delete(b.store.records, id)
	}
	b.store.mu.Unlock()
	return nil
}
