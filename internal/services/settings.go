package services

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/huangang/auditdesk/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultRetentionDays = 30

// AppSettings is a snapshot of the console settings. Values are never
// mutated in place; a reload swaps in a new snapshot.
type AppSettings struct {
	AppName          string `json:"app_name"`
	Favicon          string `json:"favicon"`
	LogRetentionDays int    `json:"log_retention_days"`
}

// SettingsService is the single owner of AppSettings. Readers call Current
// and get an immutable value; only Reload and the setters replace it.
type SettingsService struct {
	db      *gorm.DB
	current atomic.Pointer[AppSettings]
}

func NewSettingsService(db *gorm.DB) *SettingsService {
	s := &SettingsService{db: db}
	s.current.Store(&AppSettings{
		AppName:          "AuditDesk",
		Favicon:          "/favicon.ico",
		LogRetentionDays: defaultRetentionDays,
	})
	return s
}

// Current returns the latest loaded snapshot by value.
func (s *SettingsService) Current() AppSettings {
	return *s.current.Load()
}

// Reload reads every settings row and publishes a new snapshot. Missing or
// malformed rows keep the previous value.
func (s *SettingsService) Reload(ctx context.Context) (AppSettings, error) {
	var rows []models.SystemConfig
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return s.Current(), fmt.Errorf("load settings: %w", err)
	}

	next := s.Current()
	for _, row := range rows {
		switch row.Key {
		case models.ConfigKeyAppName:
			if row.Value != "" {
				next.AppName = row.Value
			}
		case models.ConfigKeyFavicon:
			next.Favicon = row.Value
		case models.ConfigKeyLogRetentionDays:
			if days, err := strconv.Atoi(row.Value); err == nil && days >= 0 {
				next.LogRetentionDays = days
			}
		}
	}

	s.current.Store(&next)
	return next, nil
}

// SetRetentionDays persists the retention period and republishes the settings.
// Zero disables scheduled pruning.
func (s *SettingsService) SetRetentionDays(ctx context.Context, days int) (AppSettings, error) {
	if days < 0 {
		return s.Current(), ErrInvalidRetention
	}
	if err := s.set(ctx, models.ConfigKeyLogRetentionDays, strconv.Itoa(days)); err != nil {
		return s.Current(), err
	}
	return s.Reload(ctx)
}

// set upserts one settings row keyed by its unique key. Other columns of an
// existing row are left alone.
func (s *SettingsService) set(ctx context.Context, key, value string) error {
	row := models.SystemConfig{Key: key, Value: value}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
}
