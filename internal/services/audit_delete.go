package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/huangang/auditdesk/backend/internal/logstore"
	"github.com/huangang/auditdesk/backend/internal/metrics"
	"github.com/huangang/auditdesk/backend/pkg/logger"
)

var ErrInvalidRetention = errors.New("days must be a positive integer")

const (
	DeleteModeAll      = "all"
	DeleteModeOlder    = "older_than"
	DeleteModeMatching = "matching"
)

// DeletionResult reports a bulk deletion. Errors holds one message per
// failed batch; batches that committed stay deleted.
type DeletionResult struct {
	Success      bool     `json:"success"`
	DeletedCount int      `json:"deletedCount"`
	Message      string   `json:"message"`
	Errors       []string `json:"errors,omitempty"`
}

// DeleteAll removes every audit log.
func (s *AuditLogService) DeleteAll(ctx context.Context) (*DeletionResult, error) {
	return s.deleteWhere(ctx, DeleteModeAll, logstore.Query{})
}

// DeleteOlderThan removes logs with a timestamp before now minus days.
func (s *AuditLogService) DeleteOlderThan(ctx context.Context, days int) (*DeletionResult, error) {
	if days < 1 {
		return &DeletionResult{Message: ErrInvalidRetention.Error()}, ErrInvalidRetention
	}
	cutoff := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	return s.deleteWhere(ctx, DeleteModeOlder, logstore.Query{Before: &cutoff})
}

// DeleteMatching removes logs matching the store-side predicates of filter.
// SearchTerm does not narrow a deletion.
func (s *AuditLogService) DeleteMatching(ctx context.Context, filter *LogsFilter) (*DeletionResult, error) {
	return s.deleteWhere(ctx, DeleteModeMatching, buildQuery(filter))
}

// deleteWhere snapshots the ids matching q, then deletes them in batches of
// at most BatchSize, one commit at a time in order. A failed batch is noted
// and the remaining batches still run.
func (s *AuditLogService) deleteWhere(ctx context.Context, mode string, q logstore.Query) (*DeletionResult, error) {
	records, err := s.store.Find(ctx, q)
	if err != nil {
		logger.Error().Err(err).Str("mode", mode).Msg("failed to resolve audit logs for deletion")
		return &DeletionResult{
			Message: fmt.Sprintf("Failed to fetch logs for deletion: %v", err),
		}, fmt.Errorf("resolve deletion targets: %w", err)
	}

	if len(records) == 0 {
		return &DeletionResult{Success: true, Message: "No logs found to delete"}, nil
	}

	chunks := chunkIDs(records, s.limits.BatchSize)
	result := &DeletionResult{}
	for i, ids := range chunks {
		batch := s.store.NewBatch()
		for _, id := range ids {
			batch.Delete(id)
		}

		if err := batch.Commit(ctx); err != nil {
			metrics.AuditBatchCommits.WithLabelValues("failed").Inc()
			logger.Warn().Err(err).Str("mode", mode).Int("batch", i+1).Int("size", len(ids)).Msg("audit log batch delete failed")
			result.Errors = append(result.Errors, fmt.Sprintf("batch %d: %v", i+1, err))
			continue
		}

		metrics.AuditBatchCommits.WithLabelValues("ok").Inc()
		result.DeletedCount += len(ids)
		logger.Debug().Str("mode", mode).Int("batch", i+1).Int("of", len(chunks)).Int("size", len(ids)).Msg("audit log batch deleted")
	}

	metrics.AuditRecordsDeleted.WithLabelValues(mode).Add(float64(result.DeletedCount))
	result.Success = result.DeletedCount > 0
	result.Message = fmt.Sprintf("Successfully deleted %d logs", result.DeletedCount)
	if len(result.Errors) > 0 {
		result.Message = fmt.Sprintf("Deleted %d logs with %d errors", result.DeletedCount, len(result.Errors))
	}

	logger.Info().Str("mode", mode).Int("deleted", result.DeletedCount).Int("failed_batches", len(result.Errors)).Msg("audit log deletion finished")
	return result, nil
}

// chunkIDs splits the record ids into consecutive groups of at most size.
func chunkIDs(records []logstore.Record, size int) [][]string {
	chunks := make([][]string, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		ids := make([]string, 0, end-start)
		for _, r := range records[start:end] {
			ids = append(ids, r.ID)
		}
		chunks = append(chunks, ids)
	}
	return chunks
}
