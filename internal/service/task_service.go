package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lassestilvang/todo-kat-coder-pro-v1-sub000/internal/model"
	"github.com/lassestilvang/todo-kat-coder-pro-v1-sub000/internal/recurrence"
	"github.com/lassestilvang/todo-kat-coder-pro-v1-sub000/internal/repository"
)

// ErrInvalidInput marks task input rejected by validation.
var ErrInvalidInput = errors.New("invalid task input")

// TaskInput represents data required to create a task.
type TaskInput struct {
	Title              string
	Description        string
	List               string
	Labels             []string
	Date               string // YYYY-MM-DD, empty means today
	Deadline           *time.Time
	Priority           string
	EstimateHours      *int
	EstimateMinutes    *int
	RecurrenceType     string
	RecurrenceInterval *int
	RecurrenceEndDate  string
	Reminders          string
}

// TaskService wraps task-related business logic.
type TaskService struct {
	taskRepo  *repository.TaskRepository
	listRepo  *repository.ListRepository
	labelRepo *repository.LabelRepository
	auditRepo *repository.AuditRepository
	log       zerolog.Logger
}

func NewTaskService(taskRepo *repository.TaskRepository, listRepo *repository.ListRepository, labelRepo *repository.LabelRepository, auditRepo *repository.AuditRepository, log zerolog.Logger) *TaskService {
	return &TaskService{
		taskRepo:  taskRepo,
		listRepo:  listRepo,
		labelRepo: labelRepo,
		auditRepo: auditRepo,
		log:       log.With().Str("component", "tasks").Logger(),
	}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// CreateTask validates input and stores a new task dated input.Date or now.
func (s *TaskService) CreateTask(ctx context.Context, input TaskInput, now time.Time) (*model.Task, error) {
	task, err := buildTask(input, now)
	if err != nil {
		return nil, err
	}

	if input.List != "" {
		list, err := s.listRepo.GetOrCreate(ctx, input.List)
		if err != nil {
			return nil, err
		}
		if list != nil {
			task.ListID = &list.ID
		}
	}

	for _, name := range input.Labels {
		label, err := s.labelRepo.GetOrCreate(ctx, name)
		if err != nil {
			return nil, err
		}
		if label != nil {
			task.Labels = append(task.Labels, *label)
		}
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, err
	}
	s.audit(ctx, model.AuditTaskCreated, task.ID, task.Title)
	return task, nil
}

func buildTask(input TaskInput, now time.Time) (*model.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, invalid("title is required")
	}

	date := recurrence.FormatDate(now)
	if raw := strings.TrimSpace(input.Date); raw != "" {
		d, err := recurrence.ParseDate(raw)
		if err != nil {
			return nil, invalid("date must be YYYY-MM-DD")
		}
		date = recurrence.FormatDate(d)
	}

	priority := strings.ToLower(strings.TrimSpace(input.Priority))
	switch priority {
	case "":
		priority = model.PriorityNone
	case model.PriorityNone, model.PriorityLow, model.PriorityMedium, model.PriorityHigh:
	default:
		return nil, invalid("unknown priority %q", input.Priority)
	}

	if negative(input.EstimateHours) || negative(input.EstimateMinutes) {
		return nil, invalid("estimate must not be negative")
	}

	task := &model.Task{
		Title:           title,
		Description:     strings.TrimSpace(input.Description),
		Date:            date,
		Deadline:        input.Deadline,
		Priority:        priority,
		EstimateHours:   input.EstimateHours,
		EstimateMinutes: input.EstimateMinutes,
		Reminders:       strings.TrimSpace(input.Reminders),
	}

	if strings.TrimSpace(input.RecurrenceType) == "" {
		return task, nil
	}

	kind, ok := recurrence.ParseKind(input.RecurrenceType)
	if !ok {
		return nil, invalid("unknown recurrence type %q", input.RecurrenceType)
	}
	if input.RecurrenceInterval != nil && *input.RecurrenceInterval <= 0 {
		return nil, invalid("recurrence interval must be positive")
	}

	task.IsRecurring = true
	task.RecurrenceType = kind.String()
	task.RecurrenceInterval = input.RecurrenceInterval

	if raw := strings.TrimSpace(input.RecurrenceEndDate); raw != "" {
		end, err := recurrence.ParseDate(raw)
		if err != nil {
			return nil, invalid("recurrence end date must be YYYY-MM-DD")
		}
		endDate := recurrence.FormatDate(end)
		if endDate < date {
			return nil, invalid("recurrence end date %s is before %s", endDate, date)
		}
		task.RecurrenceEndDate = &endDate
	}

	return task, nil
}

func negative(v *int) bool {
	return v != nil && *v < 0
}

func (s *TaskService) ListOpen(ctx context.Context) ([]model.Task, error) {
	return s.taskRepo.ListOpen(ctx)
}

func (s *TaskService) GetTask(ctx context.Context, taskID uint) (*model.Task, error) {
	return s.taskRepo.FindByID(ctx, taskID)
}

// CompleteTask marks a task as done. Recurring tasks get their next occurrence
// from the daily recurrence run on the task's date.
func (s *TaskService) CompleteTask(ctx context.Context, taskID uint, completedAt time.Time) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.IsCompleted {
		return task, nil
	}

	if err := s.taskRepo.MarkCompleted(ctx, task, completedAt); err != nil {
		return nil, err
	}
	s.audit(ctx, model.AuditTaskCompleted, task.ID, task.Date)
	return task, nil
}

// DeleteTask removes a task completely (for both one-time and recurring tasks).
func (s *TaskService) DeleteTask(ctx context.Context, taskID uint) error {
	if err := s.taskRepo.Delete(ctx, taskID); err != nil {
		return err
	}
	s.audit(ctx, model.AuditTaskDeleted, taskID, "")
	return nil
}

// audit is best effort: the task change has already been committed.
func (s *TaskService) audit(ctx context.Context, action string, taskID uint, details string) {
	if s.auditRepo == nil {
		return
	}
	if err := s.auditRepo.Record(ctx, &model.AuditLog{Action: action, TaskID: taskID, Details: details}); err != nil {
		s.log.Warn().Err(err).Uint("task_id", taskID).Str("action", action).Msg("audit record failed")
	}
}
