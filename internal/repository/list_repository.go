package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/lassestilvang/todo-kat-coder-pro-v1-sub000/internal/model"
)

// ListRepository manages task lists.
type ListRepository struct {
	db *gorm.DB
}

func NewListRepository(db *gorm.DB) *ListRepository {
	return &ListRepository{db: db}
}

func (r *ListRepository) GetOrCreate(ctx context.Context, name string) (*model.List, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	var list model.List
	db := r.db.WithContext(ctx)
	err := db.Where("name = ?", name).First(&list).Error
	switch {
	case err == nil:
		return &list, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		list = model.List{Name: name}
		if err := db.Create(&list).Error; err != nil {
			return nil, fmt.Errorf("create list: %w", err)
		}
		return &list, nil
	default:
		return nil, fmt.Errorf("find list: %w", err)
	}
}

func (r *ListRepository) ListAll(ctx context.Context) ([]model.List, error) {
	var lists []model.List
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&lists).Error; err != nil {
		return nil, err
	}
	return lists, nil
}
