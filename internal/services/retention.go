package services

import (
	"fmt"
	"os"
	"time"

	"github.com/huangang/auditdesk/backend/internal/models"
	"github.com/huangang/auditdesk/backend/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const retentionLockName = "audit_retention"

// RetentionScheduler enqueues a DeleteOlderThan prune on a cron schedule,
// using the retention period from the current settings snapshot.
type RetentionScheduler struct {
	db       *gorm.DB
	settings *SettingsService
	queue    TaskQueue
	schedule string
	instance string
	now      func() time.Time

	cron    *cron.Cron
	entryID cron.EntryID
}

func NewRetentionScheduler(db *gorm.DB, settings *SettingsService, queue TaskQueue, schedule string) *RetentionScheduler {
	host, _ := os.Hostname()
	return &RetentionScheduler{
		db:       db,
		settings: settings,
		queue:    queue,
		schedule: schedule,
		instance: fmt.Sprintf("%s-%d", host, os.Getpid()),
		now:      time.Now,
	}
}

func (s *RetentionScheduler) Start() error {
	s.cron = cron.New()
	entryID, err := s.cron.AddFunc(s.schedule, s.RunOnce)
	if err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", s.schedule, err)
	}
	s.entryID = entryID
	s.cron.Start()
	logger.Infof("[Retention] Scheduler started (cron: %s)", s.schedule)
	return nil
}

func (s *RetentionScheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		logger.Infof("[Retention] Scheduler stopped")
	}
}

// RunOnce claims today's run and enqueues the prune. It returns without
// work when retention is disabled or another instance already claimed the run.
func (s *RetentionScheduler) RunOnce() {
	days := s.settings.Current().LogRetentionDays
	if days <= 0 {
		logger.Infof("[Retention] Log cleanup disabled (retention_days <= 0)")
		return
	}

	claimed, err := s.claim(s.now())
	if err != nil {
		logger.Errorf("[Retention] Failed to claim run: %v", err)
		return
	}
	if !claimed {
		logger.Debug().Msg("[Retention] Run already claimed by another instance")
		return
	}

	if err := s.queue.Enqueue(&PruneTask{Mode: DeleteModeOlder, Days: days, Reason: "schedule"}); err != nil {
		logger.Errorf("[Retention] Failed to enqueue prune: %v", err)
		return
	}
	logger.Infof("[Retention] Prune of logs older than %d days enqueued", days)
}

// claim inserts the lock row for the given day; the unique index on
// (lock_name, lock_key) lets exactly one instance succeed.
func (s *RetentionScheduler) claim(at time.Time) (bool, error) {
	lock := models.SchedulerLock{
		LockName:  retentionLockName,
		LockKey:   at.Format("2006-01-02"),
		LockedBy:  s.instance,
		LockedAt:  at,
		ExpiresAt: at.Add(24 * time.Hour),
	}
	res := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&lock)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
