package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/lassestilvang/todo-kat-coder-pro-v1-sub000/internal/model"
)

// LabelRepository manages labels and their task associations.
type LabelRepository struct {
	db *gorm.DB
}

func NewLabelRepository(db *gorm.DB) *LabelRepository {
	return &LabelRepository{db: db}
}

func (r *LabelRepository) GetOrCreate(ctx context.Context, name string) (*model.Label, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	var label model.Label
	db := r.db.WithContext(ctx)
	err := db.Where("name = ?", name).First(&label).Error
	switch {
	case err == nil:
		return &label, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		label = model.Label{Name: name}
		if err := db.Create(&label).Error; err != nil {
			return nil, fmt.Errorf("create label: %w", err)
		}
		return &label, nil
	default:
		return nil, fmt.Errorf("find label: %w", err)
	}
}

func (r *LabelRepository) ListAll(ctx context.Context) ([]model.Label, error) {
	var labels []model.Label
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&labels).Error; err != nil {
		return nil, err
	}
	return labels, nil
}

// ListAssociations returns the label ids attached to taskID.
func (r *LabelRepository) ListAssociations(ctx context.Context, taskID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&model.TaskLabel{}).
		Where("task_id = ?", taskID).
		Order("label_id ASC").
		Pluck("label_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list label associations: %w", err)
	}
	return ids, nil
}

// CopyAssociations attaches every label of sourceID to targetID.
func (r *LabelRepository) CopyAssociations(ctx context.Context, sourceID, targetID uint) error {
	ids, err := r.ListAssociations(ctx, sourceID)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	rows := make([]model.TaskLabel, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, model.TaskLabel{TaskID: targetID, LabelID: id})
	}
	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("copy label associations: %w", err)
	}
	return nil
}
