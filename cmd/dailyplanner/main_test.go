package main

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lassestilvang/todo-kat-coder-pro-v1-sub000/internal/service"
)

func newTestApp(t *testing.T) *app {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	for _, key := range []string{"CONFIG_FILE", "TELEGRAM_TOKEN", "TELEGRAM_CHAT_ID", "RECURRENCE_TIME", "REPORT_INTERVAL_HOURS", "LOG_FORMAT"} {
		t.Setenv(key, "")
	}
	t.Setenv("DATABASE_URL", fmt.Sprintf("file:main_%s?mode=memory&cache=shared", name))
	t.Setenv("LOG_LEVEL", "disabled")

	a, err := newApp("")
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

// A task completed in the afternoon is picked up by the run after midnight.
func TestRecurrenceJobProcessesPreviousDay(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	loc := time.Local

	task, err := a.services.Tasks.CreateTask(ctx, service.TaskInput{
		Title:          "Water plants",
		Date:           "2024-01-01",
		RecurrenceType: "daily",
	}, time.Date(2024, 1, 1, 9, 0, 0, 0, loc))
	require.NoError(t, err)

	// The run at 00:05 on the task's own day finds nothing due yet.
	report := a.recurrenceJob(ctx, time.Date(2024, 1, 1, 0, 5, 0, 0, loc), nil)
	require.NotNil(t, report)
	assert.Equal(t, "2023-12-31", report.Date)
	assert.Zero(t, report.Due())

	_, err = a.services.Tasks.CompleteTask(ctx, task.ID, time.Date(2024, 1, 1, 15, 0, 0, 0, loc))
	require.NoError(t, err)

	report = a.recurrenceJob(ctx, time.Date(2024, 1, 2, 0, 5, 0, 0, loc), nil)
	require.NotNil(t, report)
	assert.Equal(t, "2024-01-01", report.Date)
	require.Equal(t, 1, report.Created())

	next, err := a.services.Tasks.GetTask(ctx, report.Occurrences[0].TaskID)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02", next.Date)
	assert.False(t, next.IsCompleted)

	// The next night's run sees the new task still open and creates nothing.
	report = a.recurrenceJob(ctx, time.Date(2024, 1, 3, 0, 5, 0, 0, loc), nil)
	require.NotNil(t, report)
	assert.Zero(t, report.Created())
}

func TestNextCommand(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{args: []string{"--date", "2024-01-31", "--rule", "monthly"}, want: "2024-03-02"},
		{args: []string{"--date", "2024-01-05", "--rule", "Weekday"}, want: "2024-01-08"},
		{args: []string{"--date", "2024-01-01", "--rule", "weekly", "--interval", "2"}, want: "2024-01-15"},
	}

	for _, tt := range tests {
		cmd := nextCmd()
		var out strings.Builder
		cmd.SetOut(&out)
		cmd.SetArgs(tt.args)
		require.NoError(t, cmd.Execute())
		assert.Equal(t, tt.want, strings.TrimSpace(out.String()))
	}

	cmd := nextCmd()
	cmd.SetOut(&strings.Builder{})
	cmd.SetErr(&strings.Builder{})
	cmd.SetArgs([]string{"--date", "2024-01-01", "--rule", "hourly"})
	assert.Error(t, cmd.Execute())
}
