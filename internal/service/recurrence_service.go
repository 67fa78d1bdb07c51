package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/lassestilvang/todo-kat-coder-pro-v1-sub000/internal/model"
	"github.com/lassestilvang/todo-kat-coder-pro-v1-sub000/internal/recurrence"
	"github.com/lassestilvang/todo-kat-coder-pro-v1-sub000/internal/repository"
)

// RecurringTaskStore is the task store as seen by the recurrence engine.
type RecurringTaskStore interface {
	FindDueRecurring(ctx context.Context, date string) ([]model.Task, error)
	InTx(ctx context.Context, fn func(tx repository.OccurrenceTx) error) error
}

// Outcome describes what happened to one due task.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeNoRule    Outcome = "no_rule"
	OutcomeEnded     Outcome = "ended"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFailed    Outcome = "failed"
)

// Occurrence is one due task handled during a run.
type Occurrence struct {
	SourceID uint
	TaskID   uint // zero unless created
	Title    string
	NextDate string
	Outcome  Outcome
	Err      error
}

// RecurrenceReport summarizes one processing cycle.
type RecurrenceReport struct {
	RunID       string
	Date        string
	Occurrences []Occurrence
}

func (r *RecurrenceReport) count(o Outcome) int {
	n := 0
	for _, occ := range r.Occurrences {
		if occ.Outcome == o {
			n++
		}
	}
	return n
}

func (r *RecurrenceReport) Due() int     { return len(r.Occurrences) }
func (r *RecurrenceReport) Created() int { return r.count(OutcomeCreated) }
func (r *RecurrenceReport) Failed() int  { return r.count(OutcomeFailed) }
func (r *RecurrenceReport) Skipped() int { return r.Due() - r.Created() - r.Failed() }

// RecurrenceService materializes the next occurrence of completed recurring tasks.
type RecurrenceService struct {
	store RecurringTaskStore
	log   zerolog.Logger
	newID func() string
}

func NewRecurrenceService(store RecurringTaskStore, log zerolog.Logger) *RecurrenceService {
	return &RecurrenceService{
		store: store,
		log:   log.With().Str("component", "recurrence").Logger(),
		newID: func() string { return uuid.NewString() },
	}
}

// ProcessRecurringTasks handles every recurring task completed on the calendar
// date of referenceDate. Only the due-task query can fail the run; a failure
// on a single task is logged and recorded in the report. A cancelled ctx stops
// the run between tasks and returns the partial report without an error.
func (s *RecurrenceService) ProcessRecurringTasks(ctx context.Context, referenceDate time.Time) (*RecurrenceReport, error) {
	report := &RecurrenceReport{
		RunID: s.newID(),
		Date:  recurrence.FormatDate(referenceDate),
	}
	log := s.log.With().Str("run_id", report.RunID).Str("date", report.Date).Logger()

	tasks, err := s.store.FindDueRecurring(ctx, report.Date)
	if err != nil {
		return nil, err
	}
	log.Info().Int("due", len(tasks)).Msg("recurrence run started")

	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			log.Warn().Err(err).Int("processed", report.Due()).Int("due", len(tasks)).Msg("recurrence run interrupted")
			return report, nil
		}

		occ := s.processTask(ctx, report.RunID, task)
		report.Occurrences = append(report.Occurrences, occ)

		level := zerolog.DebugLevel
		switch occ.Outcome {
		case OutcomeFailed:
			level = zerolog.ErrorLevel
		case OutcomeCreated:
			level = zerolog.InfoLevel
		}
		log.WithLevel(level).
			Err(occ.Err).
			Uint("source_id", occ.SourceID).
			Uint("task_id", occ.TaskID).
			Str("next_date", occ.NextDate).
			Str("outcome", string(occ.Outcome)).
			Msg("recurring task processed")
	}

	log.Info().
		Int("created", report.Created()).
		Int("skipped", report.Skipped()).
		Int("failed", report.Failed()).
		Msg("recurrence run finished")
	return report, nil
}

// ProcessPreviousDay is the scheduled form of a run: fired shortly after
// midnight, it handles the tasks dated on the day that just ended.
func (s *RecurrenceService) ProcessPreviousDay(ctx context.Context, now time.Time) (*RecurrenceReport, error) {
	return s.ProcessRecurringTasks(ctx, PreviousDay(now))
}

// PreviousDay returns the calendar day before now in now's location.
func PreviousDay(now time.Time) time.Time {
	return now.AddDate(0, 0, -1)
}

func (s *RecurrenceService) processTask(ctx context.Context, runID string, task model.Task) Occurrence {
	occ := Occurrence{SourceID: task.ID, Title: task.Title}
	fail := func(err error) Occurrence {
		occ.Outcome = OutcomeFailed
		occ.Err = err
		return occ
	}

	rule, ok, err := recurrence.ParseRule(task.RecurrenceType, task.RecurrenceInterval, task.RecurrenceEndDate)
	if err != nil {
		return fail(err)
	}
	if !ok {
		occ.Outcome = OutcomeNoRule
		return occ
	}

	next, err := rule.Next(task.Date)
	if err != nil {
		return fail(err)
	}
	occ.NextDate = next
	if rule.Ended(next) {
		occ.Outcome = OutcomeEnded
		return occ
	}

	instance := BuildOccurrence(task, next)
	err = s.store.InTx(ctx, func(tx repository.OccurrenceTx) error {
		existing, err := tx.FindOccurrence(ctx, task.ID, next)
		if err != nil {
			return err
		}
		if existing != nil {
			occ.TaskID = existing.ID
			return errAlreadyGenerated
		}

		if err := tx.CreateTask(ctx, instance); err != nil {
			return err
		}
		if err := tx.CopyLabels(ctx, task.ID, instance.ID); err != nil {
			return err
		}

		sourceID := task.ID
		return tx.RecordAudit(ctx, &model.AuditLog{
			RunID:        runID,
			Action:       model.AuditOccurrenceCreated,
			TaskID:       instance.ID,
			SourceTaskID: &sourceID,
			Details:      fmt.Sprintf("%s every %d until %s: %s -> %s", rule.Kind, rule.Interval, endLabel(rule), task.Date, next),
		})
	})

	switch {
	case err == nil:
		occ.TaskID = instance.ID
		occ.Outcome = OutcomeCreated
	case errors.Is(err, errAlreadyGenerated), errors.Is(err, gorm.ErrDuplicatedKey):
		occ.Outcome = OutcomeDuplicate
	default:
		return fail(fmt.Errorf("generate occurrence of task %d for %s: %w", task.ID, next, err))
	}
	return occ
}

var errAlreadyGenerated = errors.New("occurrence already generated")

func endLabel(rule recurrence.Rule) string {
	if rule.EndDate == "" {
		return "-"
	}
	return rule.EndDate
}

// BuildOccurrence returns the task row that follows source on date.
// Scheduling, estimate and recurrence fields carry over; completion and actual
// time are reset. An empty priority is stored as none, the column default. Labels are copied separately; sub-tasks and attachments are
// never copied.
func BuildOccurrence(source model.Task, date string) *model.Task {
	sourceID := source.ID
	priority := source.Priority
	if priority == "" {
		priority = model.PriorityNone
	}
	return &model.Task{
		ListID:             copyUint(source.ListID),
		SourceTaskID:       &sourceID,
		Title:              source.Title,
		Description:        source.Description,
		Date:               date,
		Deadline:           copyTime(source.Deadline),
		Priority:           priority,
		EstimateHours:      copyInt(source.EstimateHours),
		EstimateMinutes:    copyInt(source.EstimateMinutes),
		IsRecurring:        true,
		RecurrenceType:     source.RecurrenceType,
		RecurrenceInterval: copyInt(source.RecurrenceInterval),
		RecurrenceEndDate:  copyString(source.RecurrenceEndDate),
		Reminders:          source.Reminders,
	}
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyUint(v *uint) *uint {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
