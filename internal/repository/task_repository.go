package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/lassestilvang/todo-kat-coder-pro-v1-sub000/internal/model"
)

// TaskRepository handles CRUD for tasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create inserts task and fills its ID. Associations are not upserted.
func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Omit("Labels.*").Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, taskID uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Preload("Labels").First(&task, taskID).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// FindDueRecurring returns completed recurring tasks scheduled for date.
func (r *TaskRepository) FindDueRecurring(ctx context.Context, date string) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("is_recurring = ? AND is_completed = ? AND date = ?", true, true, date).
		Order("id ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("find due recurring tasks: %w", err)
	}
	return tasks, nil
}

// FindOccurrence returns the occurrence generated from sourceID for date, or nil.
func (r *TaskRepository) FindOccurrence(ctx context.Context, sourceID uint, date string) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).Where("source_task_id = ? AND date = ?", sourceID, date).First(&task).Error
	switch {
	case err == nil:
		return &task, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("find occurrence: %w", err)
	}
}

// FindNewestForDate returns the most recently created open task dated date, or nil.
// The recurrence engine does not use it: the occurrence id comes from the insert,
// since another open task created on the same date would be picked here.
func (r *TaskRepository) FindNewestForDate(ctx context.Context, date string) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).
		Where("date = ? AND is_completed = ?", date, false).
		Order("created_at DESC, id DESC").
		First(&task).Error
	switch {
	case err == nil:
		return &task, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("find newest task for %s: %w", date, err)
	}
}

// ListOpenForDate returns open tasks scheduled exactly on date.
func (r *TaskRepository) ListOpenForDate(ctx context.Context, date string) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Preload("Labels").
		Where("is_completed = ? AND date = ?", false, date).
		Order("id ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListOverdue returns open tasks scheduled before date.
func (r *TaskRepository) ListOverdue(ctx context.Context, date string) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Preload("Labels").
		Where("is_completed = ? AND date <> '' AND date < ?", false, date).
		Order("date ASC, id ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListOpen returns every open task, earliest date first.
func (r *TaskRepository) ListOpen(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Preload("Labels").
		Where("is_completed = ?", false).
		Order("date ASC, id ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListOpenRecurring returns open recurring tasks, the current link of every chain.
func (r *TaskRepository) ListOpenRecurring(ctx context.Context) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("is_recurring = ? AND is_completed = ?", true, false).
		Order("date ASC, id ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *TaskRepository) MarkCompleted(ctx context.Context, task *model.Task, completedAt time.Time) error {
	task.IsCompleted = true
	task.CompletedAt = &completedAt
	if err := r.db.WithContext(ctx).Model(task).Updates(map[string]interface{}{
		"is_completed": true,
		"completed_at": completedAt,
	}).Error; err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	return nil
}

// Delete removes a task together with its sub-tasks, attachments and label links.
func (r *TaskRepository) Delete(ctx context.Context, taskID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", taskID).Delete(&model.TaskLabel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", taskID).Delete(&model.SubTask{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", taskID).Delete(&model.Attachment{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Task{}, taskID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}
