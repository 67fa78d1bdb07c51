package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/lassestilvang/todo-kat-coder-pro-v1-sub000/internal/model"
	"github.com/lassestilvang/todo-kat-coder-pro-v1-sub000/internal/recurrence"
	"github.com/lassestilvang/todo-kat-coder-pro-v1-sub000/internal/repository"
)

// ReminderService builds human-readable summaries for daily notifications.
type ReminderService struct {
	taskRepo *repository.TaskRepository
	listRepo *repository.ListRepository
}

func NewReminderService(taskRepo *repository.TaskRepository, listRepo *repository.ListRepository) *ReminderService {
	return &ReminderService{taskRepo: taskRepo, listRepo: listRepo}
}

// DailySummary lists today's and overdue open tasks plus the upcoming
// occurrence of every open recurring task.
func (s *ReminderService) DailySummary(ctx context.Context, now time.Time) (string, error) {
	today := recurrence.FormatDate(now)

	todays, err := s.taskRepo.ListOpenForDate(ctx, today)
	if err != nil {
		return "", err
	}
	overdue, err := s.taskRepo.ListOverdue(ctx, today)
	if err != nil {
		return "", err
	}
	recurring, err := s.taskRepo.ListOpenRecurring(ctx)
	if err != nil {
		return "", err
	}

	lists, err := s.listRepo.ListAll(ctx)
	if err != nil {
		return "", err
	}
	listNames := make(map[uint]string)
	for _, list := range lists {
		listNames[list.ID] = list.Name
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Ежедневный отчёт</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("02.01.2006")))

	builder.WriteString("🔥 <b>На сегодня</b>\n")
	if len(todays) == 0 {
		builder.WriteString("— нет задач на сегодня\n")
	} else {
		for _, task := range todays {
			builder.WriteString(FormatTask(task, listNames, today))
		}
	}

	if len(overdue) > 0 {
		builder.WriteString("\n⚠️ <b>Просрочено</b>\n")
		for _, task := range overdue {
			builder.WriteString(FormatTask(task, listNames, today))
		}
	}

	builder.WriteString("\n♻️ <b>Регулярные задачи</b>\n")
	if len(recurring) == 0 {
		builder.WriteString("— нет повторяющихся задач\n")
	} else {
		for _, task := range recurring {
			builder.WriteString(FormatRecurring(task))
		}
	}

	return strings.TrimSpace(builder.String()), nil
}

// FormatTask renders one task line. today decides the overdue marker.
func FormatTask(task model.Task, listNames map[uint]string, today string) string {
	var sb strings.Builder

	icon := "🟢"
	switch {
	case task.IsCompleted:
		icon = "✅"
	case task.Date != "" && task.Date < today:
		icon = "⚠️"
	case task.Priority == model.PriorityHigh:
		icon = "🔴"
	}
	if task.IsRecurring && !task.IsCompleted && icon == "🟢" {
		icon = "♻️"
	}

	sb.WriteString(fmt.Sprintf("%s <b>#%d</b> %s", icon, task.ID, html.EscapeString(strings.TrimSpace(task.Title))))

	if task.ListID != nil {
		if name, ok := listNames[*task.ListID]; ok {
			trimmed := strings.TrimSpace(name)
			if trimmed != "" {
				sb.WriteString(fmt.Sprintf(" <i>(%s)</i>", html.EscapeString(trimmed)))
			}
		}
	}

	if task.Date != "" && task.Date != today {
		sb.WriteString(fmt.Sprintf("\n   📆 %s", task.Date))
	}
	if task.Deadline != nil {
		sb.WriteString(fmt.Sprintf("\n   ⏰ до %s", task.Deadline.Format("2006-01-02")))
	}
	if len(task.Labels) > 0 {
		names := make([]string, 0, len(task.Labels))
		for _, label := range task.Labels {
			names = append(names, "#"+html.EscapeString(label.Name))
		}
		sb.WriteString("\n   🏷 " + strings.Join(names, " "))
	}
	if task.Description != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", html.EscapeString(strings.TrimSpace(task.Description))))
	}

	sb.WriteByte('\n')
	return sb.String()
}

// FormatRecurring renders a recurring task with its rule and next occurrence.
func FormatRecurring(task model.Task) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("♻️ <b>#%d</b> %s", task.ID, html.EscapeString(strings.TrimSpace(task.Title))))

	rule, ok, err := recurrence.ParseRule(task.RecurrenceType, task.RecurrenceInterval, task.RecurrenceEndDate)
	switch {
	case err != nil:
		sb.WriteString(fmt.Sprintf("\n   ❗ %s", html.EscapeString(err.Error())))
	case !ok:
		sb.WriteString("\n   🔄 правило повтора не задано")
	default:
		sb.WriteString(fmt.Sprintf("\n   🔄 %s", DescribeRule(rule)))
		next, err := rule.Next(task.Date)
		switch {
		case err != nil:
			sb.WriteString(fmt.Sprintf("\n   ❗ %s", html.EscapeString(err.Error())))
		case rule.Ended(next):
			sb.WriteString(fmt.Sprintf("\n   🏁 %s — последнее повторение", task.Date))
		default:
			sb.WriteString(fmt.Sprintf("\n   📆 %s → %s", task.Date, next))
		}
	}

	sb.WriteByte('\n')
	return sb.String()
}

// DescribeRule renders a rule for people.
func DescribeRule(rule recurrence.Rule) string {
	n := rule.Interval
	var text string
	switch rule.Kind {
	case recurrence.Daily, recurrence.Custom:
		text = plural(n, "каждый день", "каждые %d дн.")
	case recurrence.Weekly:
		text = plural(n, "каждую неделю", "каждые %d нед.")
	case recurrence.Weekday:
		text = plural(n, "по будням", "каждый %d-й будний день")
	case recurrence.Monthly:
		text = plural(n, "каждый месяц", "каждые %d мес.")
	case recurrence.Yearly:
		text = plural(n, "каждый год", "каждые %d г.")
	default:
		text = rule.Kind.String()
	}
	if rule.EndDate != "" {
		text += fmt.Sprintf(" до %s", rule.EndDate)
	}
	return text
}

func plural(n int, one, many string) string {
	if n <= 1 {
		return one
	}
	return fmt.Sprintf(many, n)
}

// FormatRecurrenceReport renders the result of one recurrence run.
func FormatRecurrenceReport(report *RecurrenceReport) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("♻️ <b>Повторяющиеся задачи</b> · %s\n", report.Date))
	sb.WriteString(fmt.Sprintf("Создано: %d · пропущено: %d · ошибок: %d\n", report.Created(), report.Skipped(), report.Failed()))

	for _, occ := range report.Occurrences {
		title := html.EscapeString(strings.TrimSpace(occ.Title))
		switch occ.Outcome {
		case OutcomeCreated:
			sb.WriteString(fmt.Sprintf("✅ «%s» → %s (#%d)\n", title, occ.NextDate, occ.TaskID))
		case OutcomeFailed:
			sb.WriteString(fmt.Sprintf("❌ «%s»: %s\n", title, html.EscapeString(occ.Err.Error())))
		case OutcomeEnded:
			sb.WriteString(fmt.Sprintf("🏁 «%s»: серия завершена\n", title))
		}
	}

	return strings.TrimSpace(sb.String())
}
