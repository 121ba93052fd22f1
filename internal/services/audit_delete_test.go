package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/huangang/auditdesk/backend/internal/logstore"
)

func TestDeleteAll_Empty(t *testing.T) {
	svc := newTestService(logstore.NewMemoryStore())

	result, err := svc.DeleteAll(context.Background())
	if err != nil {
		t.Fatalf("DeleteAll() error = %v", err)
	}
	if !result.Success || result.DeletedCount != 0 || len(result.Errors) != 0 {
		t.Errorf("result = %+v, expected an empty success", result)
	}
	if result.Message != "No logs found to delete" {
		t.Errorf("Message = %q", result.Message)
	}
}

func TestDeleteAll_Batches(t *testing.T) {
	store := newFlakyStore()
	seedAt(t, store, 1200, testNow, "login")
	svc := newTestService(store)

	result, err := svc.DeleteAll(context.Background())
	if err != nil {
		t.Fatalf("DeleteAll() error = %v", err)
	}
	if !result.Success || result.DeletedCount != 1200 {
		t.Errorf("result = %+v, expected 1200 deleted", result)
	}
	if store.commits != 3 {
		t.Errorf("commits = %d, expected 3", store.commits)
	}
	for i, size := range store.sizes {
		if size > 500 {
			t.Errorf("batch %d has %d deletes, expected at most 500", i+1, size)
		}
	}
	if store.Len() != 0 {
		t.Errorf("%d records left", store.Len())
	}
	if result.Message != "Successfully deleted 1200 logs" {
		t.Errorf("Message = %q", result.Message)
	}
}

func TestDeleteAll_PartialFailure(t *testing.T) {
	store := newFlakyStore(2)
	seedAt(t, store, 1200, testNow, "login")
	svc := newTestService(store)

	result, err := svc.DeleteAll(context.Background())
	if err != nil {
		t.Fatalf("DeleteAll() error = %v", err)
	}
	if result.DeletedCount != 700 {
		t.Errorf("DeletedCount = %d, expected 700", result.DeletedCount)
	}
	if !result.Success {
		t.Error("a partial deletion should still report success")
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "batch 2") {
		t.Errorf("Errors = %v, expected one entry naming batch 2", result.Errors)
	}
	if store.Len() != 500 {
		t.Errorf("%d records left, expected the 500 of the failed batch", store.Len())
	}
	if result.Message != "Deleted 700 logs with 1 errors" {
		t.Errorf("Message = %q", result.Message)
	}
}

func TestDeleteAll_EveryBatchFails(t *testing.T) {
	store := newFlakyStore(1, 2)
	seedAt(t, store, 600, testNow, "login")
	svc := newTestService(store)

	result, err := svc.DeleteAll(context.Background())
	if err != nil {
		t.Fatalf("DeleteAll() error = %v", err)
	}
	if result.Success || result.DeletedCount != 0 || len(result.Errors) != 2 {
		t.Errorf("result = %+v, expected a failure with 2 errors", result)
	}
	if store.Len() != 600 {
		t.Errorf("%d records left, expected 600", store.Len())
	}
}

func TestDeleteAll_SnapshotBoundary(t *testing.T) {
	store := newFlakyStore()
	seedAt(t, store, 600, testNow, "login")
	svc := newTestService(store)

	late := &logstore.Record{Action: "late", Timestamp: testNow.Add(time.Minute)}
	store.onCommit = func(n int) {
		if n == 1 {
			if err := store.MemoryStore.Insert(context.Background(), late); err != nil {
				t.Errorf("Insert() error = %v", err)
			}
		}
	}

	result, err := svc.DeleteAll(context.Background())
	if err != nil {
		t.Fatalf("DeleteAll() error = %v", err)
	}
	if result.DeletedCount != 600 {
		t.Errorf("DeletedCount = %d, expected 600", result.DeletedCount)
	}
	remaining, _ := store.Find(context.Background(), logstore.Query{})
	if len(remaining) != 1 || remaining[0].Action != "late" {
		t.Errorf("remaining = %+v, expected only the record inserted during deletion", remaining)
	}
}

func TestDeleteOlderThan_Cutoff(t *testing.T) {
	store := logstore.NewMemoryStore()
	cutoff := testNow.Add(-7 * 24 * time.Hour)
	for _, ts := range []time.Time{
		cutoff.Add(-time.Nanosecond),
		cutoff.Add(-30 * 24 * time.Hour),
		cutoff,
		cutoff.Add(time.Second),
		testNow,
	} {
		if err := store.Insert(context.Background(), &logstore.Record{Action: "x", Timestamp: ts}); err != nil {
			t.Fatal(err)
		}
	}
	svc := newTestService(store)

	result, err := svc.DeleteOlderThan(context.Background(), 7)
	if err != nil {
		t.Fatalf("DeleteOlderThan() error = %v", err)
	}
	if result.DeletedCount != 2 {
		t.Errorf("DeletedCount = %d, expected 2", result.DeletedCount)
	}

	remaining, _ := store.Find(context.Background(), logstore.Query{})
	for _, r := range remaining {
		if r.Timestamp.Before(cutoff) {
			t.Errorf("record at %v should have been deleted", r.Timestamp)
		}
	}
	if len(remaining) != 3 {
		t.Errorf("%d records left, expected 3", len(remaining))
	}

	again, err := svc.DeleteOlderThan(context.Background(), 7)
	if err != nil {
		t.Fatalf("second DeleteOlderThan() error = %v", err)
	}
	if !again.Success || again.DeletedCount != 0 {
		t.Errorf("second run = %+v, expected nothing to delete", again)
	}
}

func TestDeleteOlderThan_RejectsNonPositive(t *testing.T) {
	store := logstore.NewMemoryStore()
	seedAt(t, store, 3, testNow.Add(-365*24*time.Hour), "x")
	svc := newTestService(store)

	for _, days := range []int{0, -1} {
		result, err := svc.DeleteOlderThan(context.Background(), days)
		if !errors.Is(err, ErrInvalidRetention) {
			t.Errorf("days=%d error = %v, expected ErrInvalidRetention", days, err)
		}
		if result == nil || result.Success {
			t.Errorf("days=%d result = %+v, expected a failed result", days, result)
		}
	}
	if store.Len() != 3 {
		t.Errorf("nothing should be deleted, %d records left", store.Len())
	}
}

func TestDeleteMatching(t *testing.T) {
	store := logstore.NewMemoryStore()
	seedAt(t, store, 4, testNow, "login")
	seedAt(t, store, 3, testNow, "logout")
	svc := newTestService(store)

	result, err := svc.DeleteMatching(context.Background(), &LogsFilter{Action: "logout", SearchTerm: "no-effect"})
	if err != nil {
		t.Fatalf("DeleteMatching() error = %v", err)
	}
	if result.DeletedCount != 3 {
		t.Errorf("DeletedCount = %d, expected 3", result.DeletedCount)
	}
	n, _ := store.Count(context.Background(), logstore.Query{Action: "login"})
	if n != 4 {
		t.Errorf("login records = %d, expected 4", n)
	}
}

func TestDelete_ResolveError(t *testing.T) {
	svc := newTestService(brokenStore{logstore.NewMemoryStore()})

	result, err := svc.DeleteAll(context.Background())
	if !errors.Is(err, errOutage) {
		t.Errorf("error = %v, expected the store error", err)
	}
	if result == nil || result.Success || !strings.Contains(result.Message, "Failed to fetch logs") {
		t.Errorf("result = %+v", result)
	}
}

func TestChunkIDs(t *testing.T) {
	records := make([]logstore.Record, 1001)
	for i := range records {
		records[i].ID = string(rune('a' + i%26))
	}

	chunks := chunkIDs(records, 500)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, expected 3", len(chunks))
	}
	if len(chunks[0]) != 500 || len(chunks[1]) != 500 || len(chunks[2]) != 1 {
		t.Errorf("chunk sizes = %d, %d, %d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
	if len(chunkIDs(nil, 500)) != 0 {
		t.Error("no records should give no chunks")
	}
}
