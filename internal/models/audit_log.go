package models

import "time"

// AuditLog is one audit event as persisted by the sql audit store.
// Rows are append-only; the only write after insert is deletion.
type AuditLog struct {
	ID               string    `gorm:"primaryKey;size:36" json:"id"`
	Action           string    `gorm:"size:200;index" json:"action"`
	TargetID         string    `gorm:"size:200" json:"target_id"`
	PerformedBy      string    `gorm:"size:100;index" json:"performed_by"`
	PerformedByEmail string    `gorm:"size:255" json:"performed_by_email"`
	Timestamp        time.Time `gorm:"index" json:"timestamp"`
	Details          string    `gorm:"type:text" json:"details"` // JSON payload
	IP               string    `gorm:"size:50" json:"ip"`
}

func (AuditLog) TableName() string { return "audit_logs" }
