package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/huangang/auditdesk/backend/internal/config"
	"github.com/huangang/auditdesk/backend/pkg/logger"
)

const (
	TaskTypePrune = "audit:prune"
)

// PruneTask is a bulk deletion job. Mode is one of the DeleteMode constants;
// Days applies to DeleteModeOlder and Filter to DeleteModeMatching.
type PruneTask struct {
	Mode   string      `json:"mode"`
	Days   int         `json:"days,omitempty"`
	Filter *LogsFilter `json:"filter,omitempty"`
	Reason string      `json:"reason,omitempty"` // schedule, api, cli
}

// TaskQueue defines the interface for prune task processing
type TaskQueue interface {
	// Enqueue adds a task to the queue
	Enqueue(task *PruneTask) error
	// IsAsync returns true if queue processes tasks asynchronously
	IsAsync() bool
	// Close gracefully shuts down the queue
	Close() error
}

// NewTaskQueue returns a Redis-backed queue when enabled and reachable,
// otherwise a SyncQueue.
func NewTaskQueue(cfg *config.RedisConfig) TaskQueue {
	if !cfg.Enabled {
		logger.Infof("[TaskQueue] Sync queue initialized (Redis disabled)")
		return NewSyncQueue()
	}
	queue, err := NewAsyncQueue(cfg)
	if err != nil {
		logger.Warnf("[TaskQueue] Redis unavailable, falling back to sync mode: %v", err)
		return NewSyncQueue()
	}
	logger.Infof("[TaskQueue] Async queue initialized with Redis at %s", cfg.Addr)
	return queue
}

// RunPrune executes a prune task against the service. It is the processor
// used by both queue implementations.
func (s *AuditLogService) RunPrune(ctx context.Context, task *PruneTask) error {
	var (
		result *DeletionResult
		err    error
	)
	switch task.Mode {
	case DeleteModeAll:
		result, err = s.DeleteAll(ctx)
	case DeleteModeOlder:
		result, err = s.DeleteOlderThan(ctx, task.Days)
	case DeleteModeMatching:
		result, err = s.DeleteMatching(ctx, task.Filter)
	default:
		return fmt.Errorf("unknown prune mode %q", task.Mode)
	}
	if err != nil {
		return err
	}

	event := logger.Info()
	if len(result.Errors) > 0 {
		event = logger.Warn()
	}
	event.
		Str("mode", task.Mode).
		Str("reason", task.Reason).
		Int("deleted", result.DeletedCount).
		Strs("errors", result.Errors).
		Msg(result.Message)

	// A run where nothing could be deleted fails the task so asynq retries it
	if !result.Success {
		return fmt.Errorf("prune %s: %s", task.Mode, result.Message)
	}
	return nil
}

func redisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// AsyncQueue implements TaskQueue using asynq (Redis-based)
type AsyncQueue struct {
	client *asynq.Client
}

// NewAsyncQueue creates a new Redis-based async queue
func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	opt := redisOpt(cfg)
	client := asynq.NewClient(opt)

	// Verify the connection before committing to async mode
	inspector := asynq.NewInspector(opt)
	defer inspector.Close()
	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

// Enqueue adds a prune task to the async queue
func (q *AsyncQueue) Enqueue(task *PruneTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}

	// Prune is not idempotent across partial failures, so one retry at most
	info, err := q.client.Enqueue(asynq.NewTask(TaskTypePrune, payload),
		asynq.Queue("default"),
		asynq.MaxRetry(1),
	)
	if err != nil {
		return err
	}

	logger.Infof("[AsyncQueue] Task enqueued: id=%s, queue=%s", info.ID, info.Queue)
	return nil
}

func (q *AsyncQueue) IsAsync() bool {
	return true
}

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue implements TaskQueue in-process (no Redis). Tasks run one at a
// time on a background goroutine so callers are not blocked.
type SyncQueue struct {
	processor func(context.Context, *PruneTask) error
	mu        sync.Mutex
	wg        sync.WaitGroup
}

func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

// SetProcessor sets the function that executes tasks
func (q *SyncQueue) SetProcessor(processor func(context.Context, *PruneTask) error) {
	q.processor = processor
}

func (q *SyncQueue) Enqueue(task *PruneTask) error {
	if q.processor == nil {
		logger.Warnf("[SyncQueue] no processor set, task will be dropped")
		return nil
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.mu.Lock()
		defer q.mu.Unlock()
		if err := q.processor(context.Background(), task); err != nil {
			logger.Errorf("[SyncQueue] Task processing failed: %v", err)
		}
	}()
	return nil
}

func (q *SyncQueue) IsAsync() bool {
	return false
}

// Close waits for running tasks to finish
func (q *SyncQueue) Close() error {
	q.wg.Wait()
	return nil
}
