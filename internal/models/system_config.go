package models

import "time"

// Keys of the settings rows seeded on first start.
const (
	ConfigKeyAppName          = "app_name"
	ConfigKeyFavicon          = "app_favicon"
	ConfigKeyLogRetentionDays = "log_retention_days"
)

// SystemConfig is one key/value settings row
type SystemConfig struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"column:key;uniqueIndex;size:100;not null" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	Type      string    `gorm:"size:20;default:string" json:"type"`      // string, int, bool
	Group     string    `gorm:"column:group;size:50;index" json:"group"` // general, audit
	Label     string    `gorm:"size:200" json:"label"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SystemConfig) TableName() string { return "system_configs" }
