package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/huangang/auditdesk/backend/internal/config"
	"github.com/huangang/auditdesk/backend/internal/logstore"
	"github.com/huangang/auditdesk/backend/internal/models"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC)

func newTestService(store logstore.Store) *AuditLogService {
	svc := NewAuditLogService(store, config.DefaultConfig().Audit)
	svc.now = func() time.Time { return testNow }
	return svc
}

// seedAt inserts n records one minute apart, the newest at newest.
func seedAt(t *testing.T, store logstore.Store, n int, newest time.Time, action string) {
	t.Helper()
	for i := 0; i < n; i++ {
		rec := &logstore.Record{
			Action:           action,
			TargetID:         "target",
			PerformedBy:      "u1",
			PerformedByEmail: "u1@example.com",
			Timestamp:        newest.Add(-time.Duration(i) * time.Minute),
			Details:          "{}",
		}
		if err := store.Insert(context.Background(), rec); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := models.Open(&config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "services.db")})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate() error = %v", err)
	}
	return db
}

var errOutage = errors.New("simulated outage")

// flakyStore counts batch commits and fails the ones listed in failOn.
// onCommit runs before each commit is applied.
type flakyStore struct {
	*logstore.MemoryStore
	failOn   map[int]bool
	onCommit func(n int)

	mu      sync.Mutex
	commits int
	sizes   []int
}

func newFlakyStore(failOn ...int) *flakyStore {
	s := &flakyStore{MemoryStore: logstore.NewMemoryStore(), failOn: map[int]bool{}}
	for _, n := range failOn {
		s.failOn[n] = true
	}
	return s
}

func (s *flakyStore) NewBatch() logstore.Batch {
	return &flakyBatch{Batch: s.MemoryStore.NewBatch(), store: s}
}

type flakyBatch struct {
	logstore.Batch
	store *flakyStore
}

func (b *flakyBatch) Commit(ctx context.Context) error {
	b.store.mu.Lock()
	b.store.commits++
	n := b.store.commits
	b.store.sizes = append(b.store.sizes, b.Len())
	b.store.mu.Unlock()

	if b.store.onCommit != nil {
		b.store.onCommit(n)
	}
	if b.store.failOn[n] {
		return errOutage
	}
	return b.Batch.Commit(ctx)
}

// brokenStore fails every read.
type brokenStore struct {
	*logstore.MemoryStore
}

func (brokenStore) Find(context.Context, logstore.Query) ([]logstore.Record, error) {
	return nil, errOutage
}

func (brokenStore) Count(context.Context, logstore.Query) (int64, error) {
	return 0, errOutage
}
