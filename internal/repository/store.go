package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/lassestilvang/todo-kat-coder-pro-v1-sub000/internal/model"
)

// OccurrenceTx is the set of writes that materialize one occurrence.
// All calls made through one OccurrenceTx commit or roll back together.
type OccurrenceTx interface {
	FindOccurrence(ctx context.Context, sourceID uint, date string) (*model.Task, error)
	CreateTask(ctx context.Context, task *model.Task) error
	CopyLabels(ctx context.Context, sourceID, targetID uint) error
	RecordAudit(ctx context.Context, entry *model.AuditLog) error
}

// Store bundles the repositories used by the recurrence engine.
type Store struct {
	db     *gorm.DB
	Tasks  *TaskRepository
	Labels *LabelRepository
	Audit  *AuditRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:     db,
		Tasks:  NewTaskRepository(db),
		Labels: NewLabelRepository(db),
		Audit:  NewAuditRepository(db),
	}
}

func (s *Store) FindDueRecurring(ctx context.Context, date string) ([]model.Task, error) {
	return s.Tasks.FindDueRecurring(ctx, date)
}

// InTx runs fn inside a database transaction. A returned error rolls back.
func (s *Store) InTx(ctx context.Context, fn func(tx OccurrenceTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&occurrenceTx{
			tasks:  NewTaskRepository(tx),
			labels: NewLabelRepository(tx),
			audit:  NewAuditRepository(tx),
		})
	})
}

type occurrenceTx struct {
	tasks  *TaskRepository
	labels *LabelRepository
	audit  *AuditRepository
}

func (t *occurrenceTx) FindOccurrence(ctx context.Context, sourceID uint, date string) (*model.Task, error) {
	return t.tasks.FindOccurrence(ctx, sourceID, date)
}

func (t *occurrenceTx) CreateTask(ctx context.Context, task *model.Task) error {
	if err := t.tasks.Create(ctx, task); err != nil {
		return err
	}
	if task.ID == 0 {
		return fmt.Errorf("create task: no id assigned")
	}
	return nil
}

func (t *occurrenceTx) CopyLabels(ctx context.Context, sourceID, targetID uint) error {
	return t.labels.CopyAssociations(ctx, sourceID, targetID)
}

func (t *occurrenceTx) RecordAudit(ctx context.Context, entry *model.AuditLog) error {
	return t.audit.Record(ctx, entry)
}
