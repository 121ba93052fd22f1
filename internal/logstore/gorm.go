package logstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/huangang/auditdesk/backend/internal/models"
	"gorm.io/gorm"
)

// GormStore keeps audit logs in the application's sql database.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Insert(ctx context.Context, rec *Record) error {
	rec.ID = uuid.NewString()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	// mysql keeps datetime(3) by default, so match the coarsest backend
	rec.Timestamp = rec.Timestamp.UTC().Truncate(time.Millisecond)

	row := toModel(*rec)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (s *GormStore) Find(ctx context.Context, q Query) ([]Record, error) {
	var rows []models.AuditLog
	tx := s.where(ctx, q).Order("timestamp DESC").Order("id DESC")
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find audit logs: %w", err)
	}

	out := make([]Record, len(rows))
	for i, row := range rows {
		out[i] = fromModel(row)
	}
	return out, nil
}

func (s *GormStore) Count(ctx context.Context, q Query) (int64, error) {
	var total int64
	if err := s.where(ctx, q).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("count audit logs: %w", err)
	}
	return total, nil
}

func (s *GormStore) where(ctx context.Context, q Query) *gorm.DB {
	tx := s.db.WithContext(ctx).Model(&models.AuditLog{})

	if q.Action != "" {
		tx = tx.Where("action = ?", q.Action)
	}
	if q.PerformedBy != "" {
		tx = tx.Where("performed_by = ?", q.PerformedBy)
	}
	if q.Since != nil {
		tx = tx.Where("timestamp >= ?", q.Since.UTC())
	}
	if q.Until != nil {
		tx = tx.Where("timestamp <= ?", q.Until.UTC())
	}
	if q.Before != nil {
		tx = tx.Where("timestamp < ?", q.Before.UTC())
	}
	if q.After != nil {
		ts := q.After.Timestamp.UTC()
		tx = tx.Where("timestamp < ? OR (timestamp = ? AND id < ?)", ts, ts, q.After.ID)
	}
	return tx
}

func (s *GormStore) NewBatch() Batch {
	return &gormBatch{db: s.db}
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close is a no-op: the connection belongs to the application.
func (s *GormStore) Close(context.Context) error { return nil }

type gormBatch struct {
	db  *gorm.DB
	ids []string
}

func (b *gormBatch) Delete(id string) { b.ids = append(b.ids, id) }
func (b *gormBatch) Len() int         { return len(b.ids) }

func (b *gormBatch) Commit(ctx context.Context) error {
	if len(b.ids) == 0 {
		return nil
	}
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Where("id IN ?", b.ids).Delete(&models.AuditLog{}).Error
	})
}

func toModel(r Record) models.AuditLog {
	return models.AuditLog{
		ID:               r.ID,
		Action:           r.Action,
		TargetID:         r.TargetID,
		PerformedBy:      r.PerformedBy,
		PerformedByEmail: r.PerformedByEmail,
		Timestamp:        r.Timestamp,
		Details:          r.Details,
		IP:               r.IP,
	}
}

func fromModel(m models.AuditLog) Record {
	return Record{
		ID:               m.ID,
		Action:           m.Action,
		TargetID:         m.TargetID,
		PerformedBy:      m.PerformedBy,
		PerformedByEmail: m.PerformedByEmail,
		Timestamp:        m.Timestamp,
		Details:          m.Details,
		IP:               m.IP,
	}
}
