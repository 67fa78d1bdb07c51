package service

import (
	"context"

	"github.com/lassestilvang/todo-kat-coder-pro-v1-sub000/internal/model"
	"github.com/lassestilvang/todo-kat-coder-pro-v1-sub000/internal/repository"
)

// LabelService provides helpers around labels and lists.
type LabelService struct {
	labelRepo *repository.LabelRepository
	listRepo  *repository.ListRepository
}

func NewLabelService(labelRepo *repository.LabelRepository, listRepo *repository.ListRepository) *LabelService {
	return &LabelService{labelRepo: labelRepo, listRepo: listRepo}
}

func (s *LabelService) Labels(ctx context.Context) ([]model.Label, error) {
	return s.labelRepo.ListAll(ctx)
}

func (s *LabelService) Lists(ctx context.Context) ([]model.List, error) {
	return s.listRepo.ListAll(ctx)
}
