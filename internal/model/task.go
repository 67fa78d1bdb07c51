package model

import "time"

// Task represents a single item in the planner.
//
// Date is a naive calendar date (YYYY-MM-DD). SourceTaskID links a generated
// occurrence to the task it was generated from; together with Date it is
// unique, so a recurring task yields at most one occurrence per date.
type Task struct {
	ID                 uint  `gorm:"primaryKey"`
	ListID             *uint `gorm:"index"`
	SourceTaskID       *uint `gorm:"uniqueIndex:idx_task_occurrence,priority:1"`
	Title              string
	Description        string
	Date               string `gorm:"size:10;index;uniqueIndex:idx_task_occurrence,priority:2"`
	Deadline           *time.Time
	Priority           string `gorm:"size:16;default:none"`
	EstimateHours      *int
	EstimateMinutes    *int
	ActualHours        *int
	ActualMinutes      *int
	IsCompleted        bool `gorm:"default:false;index"`
	CompletedAt        *time.Time
	IsRecurring        bool   `gorm:"default:false;index"`
	RecurrenceType     string `gorm:"size:16"` // daily, weekly, weekday, monthly, yearly, custom
	RecurrenceInterval *int
	RecurrenceEndDate  *string `gorm:"size:10"`
	Reminders          string
	CreatedAt          time.Time
	UpdatedAt          time.Time

	Labels      []Label      `gorm:"many2many:task_labels;"`
	SubTasks    []SubTask    `gorm:"foreignKey:TaskID"`
	Attachments []Attachment `gorm:"foreignKey:TaskID"`
}

// Task priorities.
const (
	PriorityNone   = "none"
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// SubTask is a checklist item of a task. Sub-tasks belong to one occurrence only.
type SubTask struct {
	ID          uint `gorm:"primaryKey"`
	TaskID      uint `gorm:"index"`
	Title       string
	IsCompleted bool `gorm:"default:false"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Attachment references an uploaded file stored outside the database.
type Attachment struct {
	ID        uint `gorm:"primaryKey"`
	TaskID    uint `gorm:"index"`
	FileName  string
	Path      string
	Size      int64
	CreatedAt time.Time
}
