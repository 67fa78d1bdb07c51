package service

import (
	"context"
	"errors"
	"sync"

	"github.com/lassestilvang/todo-kat-coder-pro-v1-sub000/internal/model"
	"github.com/lassestilvang/todo-kat-coder-pro-v1-sub000/internal/repository"
)

// Common test errors
var (
	ErrMockQuery  = errors.New("mock query error")
	ErrMockCreate = errors.New("mock create error")
	ErrMockLabels = errors.New("mock label copy error")
)

// MockStore implements RecurringTaskStore in memory. Writes made inside InTx
// are staged and only become visible when the callback succeeds.
type MockStore struct {
	mu     sync.Mutex
	nextID uint

	Tasks  []model.Task
	Labels map[uint][]uint
	Audit  []model.AuditLog

	QueryErr error
	// CreateErr and CopyErr fail writes for the given source task id.
	CreateErr map[uint]error
	CopyErr   map[uint]error

	TxCount int
}

func NewMockStore(tasks ...model.Task) *MockStore {
	s := &MockStore{
		nextID:    1000,
		Labels:    make(map[uint][]uint),
		CreateErr: make(map[uint]error),
		CopyErr:   make(map[uint]error),
	}
	s.Tasks = append(s.Tasks, tasks...)
	return s
}

func (s *MockStore) FindDueRecurring(ctx context.Context, date string) ([]model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.QueryErr != nil {
		return nil, s.QueryErr
	}
	var due []model.Task
	for _, t := range s.Tasks {
		if t.IsRecurring && t.IsCompleted && t.Date == date {
			due = append(due, t)
		}
	}
	return due, nil
}

func (s *MockStore) InTx(ctx context.Context, fn func(tx repository.OccurrenceTx) error) error {
	s.mu.Lock()
	s.TxCount++
	s.mu.Unlock()

	tx := &mockTx{store: s, labels: make(map[uint][]uint)}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.Tasks = append(s.Tasks, tx.tasks...)
	for id, labels := range tx.labels {
		s.Labels[id] = labels
	}
	s.Audit = append(s.Audit, tx.audit...)
	return nil
}

// Generated returns committed occurrences of sourceID.
func (s *MockStore) Generated(sourceID uint) []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Task
	for _, t := range s.Tasks {
		if t.SourceTaskID != nil && *t.SourceTaskID == sourceID {
			out = append(out, t)
		}
	}
	return out
}

type mockTx struct {
	store  *MockStore
	tasks  []model.Task
	labels map[uint][]uint
	audit  []model.AuditLog
}

func (t *mockTx) FindOccurrence(ctx context.Context, sourceID uint, date string) (*model.Task, error) {
	match := func(task model.Task) bool {
		return task.SourceTaskID != nil && *task.SourceTaskID == sourceID && task.Date == date
	}
	for _, task := range t.tasks {
		if match(task) {
			task := task
			return &task, nil
		}
	}
	for _, task := range t.store.Generated(sourceID) {
		if match(task) {
			task := task
			return &task, nil
		}
	}
	return nil, nil
}

func (t *mockTx) CreateTask(ctx context.Context, task *model.Task) error {
	if task.SourceTaskID != nil {
		if err := t.store.CreateErr[*task.SourceTaskID]; err != nil {
			return err
		}
	}
	t.store.mu.Lock()
	t.store.nextID++
	task.ID = t.store.nextID
	t.store.mu.Unlock()

	t.tasks = append(t.tasks, *task)
	return nil
}

func (t *mockTx) CopyLabels(ctx context.Context, sourceID, targetID uint) error {
	if err := t.store.CopyErr[sourceID]; err != nil {
		return err
	}
	t.store.mu.Lock()
	labels := append([]uint(nil), t.store.Labels[sourceID]...)
	t.store.mu.Unlock()
	if len(labels) > 0 {
		t.labels[targetID] = labels
	}
	return nil
}

func (t *mockTx) RecordAudit(ctx context.Context, entry *model.AuditLog) error {
	t.audit = append(t.audit, *entry)
	return nil
}
