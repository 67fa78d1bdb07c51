package model

import "time"

// Audit actions.
const (
	AuditOccurrenceCreated = "occurrence.created"
	AuditTaskCreated       = "task.created"
	AuditTaskCompleted     = "task.completed"
	AuditTaskDeleted       = "task.deleted"
)

// AuditLog records a change made to a task.
type AuditLog struct {
	ID           uint   `gorm:"primaryKey"`
	RunID        string `gorm:"size:36;index"`
	Action       string `gorm:"size:32;index"`
	TaskID       uint   `gorm:"index"`
	SourceTaskID *uint
	Details      string
	CreatedAt    time.Time
}
