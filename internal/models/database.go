package models

import (
	"fmt"

	"github.com/huangang/auditdesk/backend/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the configured database.
func Open(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return db, nil
}

// AutoMigrate creates or updates every table the service owns on db.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&SystemConfig{},
		&SchedulerLock{},
		&AuditLog{},
	)
}

// SeedDefaultData creates the default settings rows if they do not exist
func SeedDefaultData(db *gorm.DB) error {
	defaultConfigs := []SystemConfig{
		{Key: ConfigKeyAppName, Value: "AuditDesk", Type: "string", Group: "general", Label: "Application Name"},
		{Key: ConfigKeyFavicon, Value: "/favicon.ico", Type: "string", Group: "general", Label: "Favicon URL"},
		{Key: ConfigKeyLogRetentionDays, Value: "30", Type: "int", Group: "audit", Label: "Audit Log Retention Days"},
	}

	for _, cfg := range defaultConfigs {
		var count int64
		db.Model(&SystemConfig{}).Where(&SystemConfig{Key: cfg.Key}).Count(&count)
		if count == 0 {
			if err := db.Create(&cfg).Error; err != nil {
				return err
			}
		}
	}

	return nil
}
