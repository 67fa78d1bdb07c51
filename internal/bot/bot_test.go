package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/lassestilvang/todo-kat-coder-pro-v1-sub000/internal/repository"
	"github.com/lassestilvang/todo-kat-coder-pro-v1-sub000/internal/service"
)

const ownerChat int64 = 100

type fakeSender struct {
	mu       sync.Mutex
	messages []tgbotapi.MessageConfig
	acks     int
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.messages = append(f.messages, msg)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks++
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.messages)
	return f.messages[len(f.messages)-1]
}

func newTestBot(t *testing.T) (*Bot, *fakeSender) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repository.NewDB(fmt.Sprintf("file:bot_%s?mode=memory&cache=shared", name), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	store := repository.NewStore(db)
	lists := repository.NewListRepository(db)
	svc := Services{
		Tasks:      service.NewTaskService(store.Tasks, lists, store.Labels, store.Audit, zerolog.Nop()),
		Labels:     service.NewLabelService(store.Labels, lists),
		Reminders:  service.NewReminderService(store.Tasks, lists),
		Recurrence: service.NewRecurrenceService(store, zerolog.Nop()),
	}

	sender := &fakeSender{}
	b := newBot(sender, ownerChat, svc, rate.NewLimiter(rate.Inf, 1), zerolog.Nop())
	b.now = func() time.Time { return time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC) }
	return b, sender
}

func command(chatID int64, text string) tgbotapi.Update {
	length := len(text)
	if i := strings.IndexByte(text, ' '); i > 0 {
		length = i
	}
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: chatID, Type: "private"},
		From:     &tgbotapi.User{ID: chatID, FirstName: "Ann"},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}},
	}}
}

func text(chatID int64, body string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text: body,
		Chat: &tgbotapi.Chat{ID: chatID, Type: "private"},
		From: &tgbotapi.User{ID: chatID},
	}}
}

func callback(chatID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		Data:    data,
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}},
	}}
}

func TestParseNewTaskArgs(t *testing.T) {
	input, err := parseNewTaskArgs("Gym; 2024-01-05; weekly 2; 2024-03-01; sport, #health")
	require.NoError(t, err)
	assert.Equal(t, "Gym", input.Title)
	assert.Equal(t, "2024-01-05", input.Date)
	assert.Equal(t, "weekly", input.RecurrenceType)
	require.NotNil(t, input.RecurrenceInterval)
	assert.Equal(t, 2, *input.RecurrenceInterval)
	assert.Equal(t, "2024-03-01", input.RecurrenceEndDate)
	assert.Equal(t, []string{"sport", "health"}, input.Labels)

	input, err = parseNewTaskArgs("Read;-;Daily")
	require.NoError(t, err)
	assert.Empty(t, input.Date)
	assert.Equal(t, "daily", input.RecurrenceType)
	assert.Nil(t, input.RecurrenceInterval)
	assert.Nil(t, input.Labels)

	for _, bad := range []string{
		"",
		" ; 2024-01-05",
		"x; ; fortnightly",
		"x; ; weekly 0",
		"x; ; weekly two",
		"x; ; ; 2024-03-01",
		"a;b;c;d;e;f",
	} {
		_, err := parseNewTaskArgs(bad)
		assert.Error(t, err, "args %q", bad)
	}
}

func TestParseCallback(t *testing.T) {
	tests := []struct {
		data      string
		action    string
		id        uint
		confirmed bool
		wantErr   bool
	}{
		{data: "complete:12", action: actionComplete, id: 12},
		{data: "delete:3", action: actionDelete, id: 3},
		{data: "confirm:complete:12", action: actionComplete, id: 12, confirmed: true},
		{data: "confirm:delete:4", action: actionDelete, id: 4, confirmed: true},
		{data: "cancel", action: cbCancel},
		{data: "confirm:explode:4", wantErr: true},
		{data: "complete:x", wantErr: true},
		{data: "complete:0", wantErr: true},
		{data: "other", wantErr: true},
	}

	for _, tt := range tests {
		action, id, confirmed, err := parseCallback(tt.data)
		if tt.wantErr {
			assert.Error(t, err, tt.data)
			continue
		}
		require.NoError(t, err, tt.data)
		assert.Equal(t, tt.action, action, tt.data)
		assert.Equal(t, tt.id, id, tt.data)
		assert.Equal(t, tt.confirmed, confirmed, tt.data)
	}
}

func TestTitleHelpers(t *testing.T) {
	assert.Equal(t, "Купить молоко", normalizeTitle("  купить молоко "))
	assert.Equal(t, "Очень длинн…", shortTitle("очень длинное название", 12))
	assert.Equal(t, "A b", shortTitle("a\nb", 10))
	assert.True(t, isSkipInput(btnSkip))
	assert.True(t, isSkipInput("-"))
	assert.True(t, isCancelDialogInput("Отмена"))
}

func TestForeignChatIgnored(t *testing.T) {
	b, sender := newTestBot(t)

	require.NoError(t, b.handleUpdate(context.Background(), command(999, "/tasks")))
	require.NoError(t, b.handleUpdate(context.Background(), callback(999, "complete:1")))
	assert.Empty(t, sender.messages)
	assert.Equal(t, 1, sender.acks)
}

func TestNewTaskCompleteAndRun(t *testing.T) {
	b, sender := newTestBot(t)
	ctx := context.Background()

	require.NoError(t, b.handleUpdate(ctx, command(ownerChat, "/newtask gym; 2024-01-05; daily 2; ; sport")))
	out := sender.last(t).Text
	assert.Contains(t, out, "Задача сохранена")
	assert.Contains(t, out, "каждые 2 дн.")

	tasks, err := b.svc.Tasks.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	id := tasks[0].ID

	require.NoError(t, b.handleUpdate(ctx, callback(ownerChat, fmt.Sprintf("complete:%d", id))))
	confirm := sender.last(t)
	assert.Contains(t, confirm.Text, "как выполненную?")
	markup, ok := confirm.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.NotNil(t, markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, fmt.Sprintf("confirm:complete:%d", id), *markup.InlineKeyboard[0][0].CallbackData)

	require.NoError(t, b.handleUpdate(ctx, callback(ownerChat, *markup.InlineKeyboard[0][0].CallbackData)))
	assert.Contains(t, sender.last(t).Text, "Следующее повторение")

	require.NoError(t, b.handleUpdate(ctx, command(ownerChat, "/run 2024-01-05")))
	assert.Contains(t, sender.last(t).Text, "Создано: 1")

	tasks, err = b.svc.Tasks.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "2024-01-07", tasks[0].Date)
	require.Len(t, tasks[0].Labels, 1)
}

func TestNewTaskConversation(t *testing.T) {
	b, sender := newTestBot(t)
	ctx := context.Background()

	require.NoError(t, b.handleUpdate(ctx, command(ownerChat, "/newtask")))
	require.NoError(t, b.handleUpdate(ctx, text(ownerChat, "Отчёт")))
	require.NoError(t, b.handleUpdate(ctx, text(ownerChat, "31.01.2024")))
	assert.Contains(t, sender.last(t).Text, "Не могу распознать дату")
	require.NoError(t, b.handleUpdate(ctx, text(ownerChat, "2024-01-31")))
	require.NoError(t, b.handleUpdate(ctx, text(ownerChat, "monthly")))
	assert.Contains(t, sender.last(t).Text, "До какой даты")
	require.NoError(t, b.handleUpdate(ctx, text(ownerChat, "к лету")))
	assert.Contains(t, sender.last(t).Text, "Не могу распознать дату")
	require.NoError(t, b.handleUpdate(ctx, text(ownerChat, "2024-06-30")))
	require.NoError(t, b.handleUpdate(ctx, text(ownerChat, btnSkip)))

	assert.Contains(t, sender.last(t).Text, "каждый месяц до 2024-06-30")
	assert.False(t, b.hasConversation(ownerChat))

	tasks, err := b.svc.Tasks.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "2024-01-31", tasks[0].Date)
	assert.Equal(t, "monthly", tasks[0].RecurrenceType)
	require.NotNil(t, tasks[0].RecurrenceEndDate)
	assert.Equal(t, "2024-06-30", *tasks[0].RecurrenceEndDate)
}

func TestNewTaskConversationWithoutRuleSkipsEndDate(t *testing.T) {
	b, sender := newTestBot(t)
	ctx := context.Background()

	require.NoError(t, b.handleUpdate(ctx, command(ownerChat, "/newtask")))
	require.NoError(t, b.handleUpdate(ctx, text(ownerChat, "Купить хлеб")))
	require.NoError(t, b.handleUpdate(ctx, text(ownerChat, btnSkip)))
	require.NoError(t, b.handleUpdate(ctx, text(ownerChat, btnSkip)))
	assert.Contains(t, sender.last(t).Text, "Метки")
	require.NoError(t, b.handleUpdate(ctx, text(ownerChat, "дом")))

	tasks, err := b.svc.Tasks.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.False(t, tasks[0].IsRecurring)
	assert.Nil(t, tasks[0].RecurrenceEndDate)
	assert.Equal(t, "2024-01-05", tasks[0].Date)
}

func TestDeleteAndErrors(t *testing.T) {
	b, sender := newTestBot(t)
	ctx := context.Background()

	require.NoError(t, b.handleUpdate(ctx, command(ownerChat, "/complete abc")))
	assert.Contains(t, sender.last(t).Text, "/complete 12")

	require.NoError(t, b.handleUpdate(ctx, command(ownerChat, "/delete 42")))
	assert.Contains(t, sender.last(t).Text, "не найдена")

	require.NoError(t, b.handleUpdate(ctx, command(ownerChat, "/newtask ; 2024-01-05")))
	assert.Contains(t, sender.last(t).Text, "Не понял задачу")

	require.NoError(t, b.handleUpdate(ctx, command(ownerChat, "/newtask Bad; 2024-02-01; daily; 2024-01-01")))
	assert.Contains(t, sender.last(t).Text, "Не удалось сохранить задачу")

	require.NoError(t, b.handleUpdate(ctx, command(ownerChat, "/newtask Trash")))
	tasks, err := b.svc.Tasks.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	require.NoError(t, b.handleUpdate(ctx, command(ownerChat, fmt.Sprintf("/delete %d", tasks[0].ID))))
	assert.Contains(t, sender.last(t).Text, "удалена")

	require.NoError(t, b.handleUpdate(ctx, command(ownerChat, "/tasks")))
	assert.Contains(t, sender.last(t).Text, "Открытых задач нет")
}

func TestNotifyReport(t *testing.T) {
	b, sender := newTestBot(t)
	ctx := context.Background()

	require.NoError(t, b.NotifyReport(ctx, &service.RecurrenceReport{Date: "2024-01-05"}))
	require.NoError(t, b.NotifyReport(ctx, &service.RecurrenceReport{
		Date:        "2024-01-05",
		Occurrences: []service.Occurrence{{Outcome: service.OutcomeDuplicate, Title: "x"}},
	}))
	assert.Empty(t, sender.messages)

	require.NoError(t, b.NotifyReport(ctx, &service.RecurrenceReport{
		Date:        "2024-01-05",
		Occurrences: []service.Occurrence{{Outcome: service.OutcomeCreated, Title: "gym", TaskID: 2, NextDate: "2024-01-06"}},
	}))
	msg := sender.last(t)
	assert.Equal(t, ownerChat, msg.ChatID)
	assert.Contains(t, msg.Text, "«gym» → 2024-01-06")
}

func TestSendDailySummary(t *testing.T) {
	b, sender := newTestBot(t)
	ctx := context.Background()

	require.NoError(t, b.handleUpdate(ctx, command(ownerChat, "/newtask Call mom")))
	require.NoError(t, b.handleUpdate(ctx, text(ownerChat, menuLabelToday)))

	msg := sender.last(t)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
	assert.Contains(t, msg.Text, "Call mom")
	assert.Contains(t, msg.Text, "05.01.2024")
}
