package model

import "time"

// Label is a free-form tag attached to any number of tasks.
type Label struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"uniqueIndex"`
	Color     string
	CreatedAt time.Time
	UpdatedAt time.Time
	Tasks     []Task `gorm:"many2many:task_labels;"`
}

// TaskLabel is the join row of the task/label relation.
type TaskLabel struct {
	TaskID  uint `gorm:"primaryKey"`
	LabelID uint `gorm:"primaryKey"`
}
