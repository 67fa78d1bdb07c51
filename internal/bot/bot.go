package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/lassestilvang/todo-kat-coder-pro-v1-sub000/internal/model"
	"github.com/lassestilvang/todo-kat-coder-pro-v1-sub000/internal/recurrence"
	"github.com/lassestilvang/todo-kat-coder-pro-v1-sub000/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTitle
	stageDate
	stageRule
	stageUntil
	stageLabels
)

const (
	cbCompletePrefix = "complete:"
	cbDeletePrefix   = "delete:"
	cbConfirmPrefix  = "confirm:"
	cbCancel         = "cancel"
)

const (
	actionComplete = "complete"
	actionDelete   = "delete"
)

const (
	btnSkip          = "⏭️ Пропустить"
	btnCancelDialog  = "⏪ Отменить ввод"
	noList           = "Без списка"
	menuLabelNewTask = "➕ Новая задача"
	menuLabelToday   = "🔥 Сегодня"
	menuLabelTasks   = "📋 Задачи"
	menuLabelHelp    = "ℹ️ Помощь"
)

type conversationState struct {
	stage conversationStage
	input service.TaskInput
}

// sender is the part of the Telegram API the bot talks through.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Services groups what the bot needs from the service layer.
type Services struct {
	Tasks      *service.TaskService
	Labels     *service.LabelService
	Reminders  *service.ReminderService
	Recurrence *service.RecurrenceService
}

// Bot serves a single owner chat.
type Bot struct {
	api           *tgbotapi.BotAPI
	client        sender
	chatID        int64
	svc           Services
	limiter       *rate.Limiter
	log           zerolog.Logger
	now           func() time.Time
	conversations map[int64]*conversationState
	mu            sync.Mutex
}

func New(token string, chatID int64, svc Services, log zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	b := newBot(api, chatID, svc, rate.NewLimiter(rate.Every(time.Second), 5), log)
	b.api = api
	b.log.Info().Str("account", api.Self.UserName).Msg("bot authorized")
	return b, nil
}

func newBot(client sender, chatID int64, svc Services, limiter *rate.Limiter, log zerolog.Logger) *Bot {
	return &Bot{
		client:        client,
		chatID:        chatID,
		svc:           svc,
		limiter:       limiter,
		log:           log.With().Str("component", "bot").Logger(),
		now:           time.Now,
		conversations: make(map[int64]*conversationState),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info().Int64("chat_id", b.chatID).Msg("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		if err := b.handleUpdate(ctx, update); err != nil {
			b.log.Error().Err(err).Int("update_id", update.UpdateID).Msg("handle update")
		}
	}

	return ctx.Err()
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	switch {
	case update.CallbackQuery != nil:
		return b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		if update.Message.Chat == nil || update.Message.Chat.ID != b.chatID {
			if update.Message.Chat != nil {
				b.log.Warn().Int64("chat_id", update.Message.Chat.ID).Msg("message from foreign chat ignored")
			}
			return nil
		}
		return b.handleMessage(ctx, update.Message)
	}
	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(chatID)
		return b.sendText(ctx, chatID, "⏪ Ввод задачи отменён.")
	}

	if msg.IsCommand() {
		b.log.Info().Str("command", msg.Command()).Str("args", msg.CommandArguments()).Msg("command received")
		return b.handleCommand(ctx, msg)
	}

	if handled, err := b.handleMenuAlias(ctx, msg); handled {
		return err
	}

	if b.hasConversation(chatID) {
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(ctx, chatID, "Я пока не понял сообщение. Набери /newtask, чтобы добавить задачу, или /help для списка команд.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.sendText(ctx, chatID, helpText)
	case "today":
		return b.SendDailySummary(ctx)
	case "tasks":
		return b.sendTaskList(ctx, chatID)
	case "newtask":
		if args == "" {
			b.setConversation(chatID, &conversationState{stage: stageTitle})
			return b.sendWithReplyMarkup(ctx, chatID, "🆕 Создаём новую задачу.\n<b>Шаг 1:</b> как её назвать?", cancelKeyboard())
		}
		input, err := parseNewTaskArgs(args)
		if err != nil {
			return b.sendText(ctx, chatID, fmt.Sprintf("Не понял задачу: %s\nФормат: <code>/newtask название; 2025-01-31; weekly 2; 2025-06-30; метка1, метка2</code>", escape(err.Error())))
		}
		return b.finishTaskCreation(ctx, chatID, input)
	case "complete":
		taskID, err := parseTaskIDArg(args)
		if err != nil {
			return b.sendText(ctx, chatID, "Укажи ID задачи числом: /complete 12")
		}
		return b.completeTask(ctx, chatID, taskID)
	case "delete":
		taskID, err := parseTaskIDArg(args)
		if err != nil {
			return b.sendText(ctx, chatID, "Укажи ID задачи числом: /delete 12")
		}
		return b.deleteTask(ctx, chatID, taskID)
	case "labels":
		return b.handleLabels(ctx, chatID)
	case "run":
		return b.handleRun(ctx, chatID, args)
	case "cancel":
		b.clearConversation(chatID)
		return b.sendText(ctx, chatID, "⏪ Ввод задачи отменён.")
	default:
		return b.sendText(ctx, chatID, "Команда не поддерживается. Загляни в /help.")
	}
}

const helpText = "ℹ️ <b>Подсказки</b>\n" +
	"• /today — задачи на сегодня, просроченные и повторяющиеся\n" +
	"• /tasks — все открытые задачи с кнопками\n" +
	"• /newtask — добавить задачу пошагово (название, дата, правило, дата окончания, метки)\n" +
	"• /newtask название; дата; правило [интервал]; до; метки — одной строкой\n" +
	"  правила: daily, weekly, weekday, monthly, yearly, custom\n" +
	"• /complete &lt;id&gt; — отметить задачу выполненной\n" +
	"• /delete &lt;id&gt; — удалить задачу\n" +
	"• /labels — метки и списки\n" +
	"• /run [ГГГГ-ММ-ДД] — создать следующие повторения вручную\n" +
	"• /cancel — отменить текущий ввод"

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	name := "друг"
	if msg.From != nil && strings.TrimSpace(msg.From.FirstName) != "" {
		name = strings.TrimSpace(msg.From.FirstName)
	}
	text := fmt.Sprintf("👋 Привет, %s!\n<b>Я ежедневный планировщик: слежу за задачами и сам создаю следующие повторения.</b>\n\n%s", escape(name), helpText)
	return b.sendText(ctx, msg.Chat.ID, text)
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	state := b.getConversation(chatID)
	if state == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageTitle:
		if text == "" {
			return b.sendWithReplyMarkup(ctx, chatID, "Название не может быть пустым.", cancelKeyboard())
		}
		state.input.Title = text
		state.stage = stageDate
		return b.sendWithReplyMarkup(ctx, chatID, "📆 На какую дату? Формат <code>2025-11-30</code> (или «Пропустить» для сегодня).", skipKeyboard())
	case stageDate:
		if !isSkipInput(text) {
			if _, err := recurrence.ParseDate(text); err != nil {
				return b.sendWithReplyMarkup(ctx, chatID, "Не могу распознать дату. Используй формат <code>2025-11-30</code> или «Пропустить».", skipKeyboard())
			}
			state.input.Date = text
		}
		state.stage = stageRule
		return b.sendWithReplyMarkup(ctx, chatID, "🔁 Как повторять? Например <code>weekly 2</code> (или «Пропустить»).", ruleKeyboard())
	case stageRule:
		if !isSkipInput(text) {
			kind, interval, err := parseRuleArg(text)
			if err != nil {
				return b.sendWithReplyMarkup(ctx, chatID, escape(err.Error()), ruleKeyboard())
			}
			state.input.RecurrenceType = kind
			state.input.RecurrenceInterval = interval
			state.stage = stageUntil
			return b.sendWithReplyMarkup(ctx, chatID, "🏁 До какой даты повторять? Формат <code>2025-12-31</code> (или «Пропустить» без конца).", skipKeyboard())
		}
		state.stage = stageLabels
		return b.sendWithReplyMarkup(ctx, chatID, "🏷 Метки через запятую (или «Пропустить»).", skipKeyboard())
	case stageUntil:
		if !isSkipInput(text) {
			if _, err := recurrence.ParseDate(text); err != nil {
				return b.sendWithReplyMarkup(ctx, chatID, "Не могу распознать дату. Используй формат <code>2025-12-31</code> или «Пропустить».", skipKeyboard())
			}
			state.input.RecurrenceEndDate = text
		}
		state.stage = stageLabels
		return b.sendWithReplyMarkup(ctx, chatID, "🏷 Метки через запятую (или «Пропустить»).", skipKeyboard())
	case stageLabels:
		if !isSkipInput(text) {
			state.input.Labels = splitLabels(text)
		}
		b.clearConversation(chatID)
		return b.finishTaskCreation(ctx, chatID, state.input)
	default:
		b.clearConversation(chatID)
		return b.sendText(ctx, chatID, "Диалог сброшен. Попробуй ещё раз через /newtask.")
	}
}

func (b *Bot) finishTaskCreation(ctx context.Context, chatID int64, input service.TaskInput) error {
	task, err := b.svc.Tasks.CreateTask(ctx, input, b.now())
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			return b.sendText(ctx, chatID, fmt.Sprintf("Не удалось сохранить задачу: %s", escape(err.Error())))
		}
		return err
	}

	b.log.Info().Uint("task_id", task.ID).Bool("recurring", task.IsRecurring).Msg("task created")

	var summary strings.Builder
	summary.WriteString("✅ <b>Задача сохранена</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>ID:</b> %d\n", task.ID))
	summary.WriteString(fmt.Sprintf("• <b>Название:</b> %s\n", escape(normalizeTitle(task.Title))))
	summary.WriteString(fmt.Sprintf("• <b>Дата:</b> %s\n", task.Date))
	if len(input.Labels) > 0 {
		summary.WriteString(fmt.Sprintf("• <b>Метки:</b> %s\n", escape(strings.Join(input.Labels, ", "))))
	}
	if task.IsRecurring {
		if rule, ok, err := recurrence.ParseRule(task.RecurrenceType, task.RecurrenceInterval, task.RecurrenceEndDate); err == nil && ok {
			summary.WriteString(fmt.Sprintf("• <b>Повтор:</b> %s\n", service.DescribeRule(rule)))
		}
	}

	return b.sendWithReplyMarkup(ctx, chatID, strings.TrimSpace(summary.String()), mainMenuKeyboard())
}

func (b *Bot) completeTask(ctx context.Context, chatID int64, taskID uint) error {
	existing, err := b.svc.Tasks.GetTask(ctx, taskID)
	if err != nil {
		return b.replyTaskError(ctx, chatID, err)
	}
	if existing.IsCompleted {
		return b.sendText(ctx, chatID, "Задача уже выполнена.")
	}

	task, err := b.svc.Tasks.CompleteTask(ctx, taskID, b.now())
	if err != nil {
		return b.replyTaskError(ctx, chatID, err)
	}

	b.log.Info().Uint("task_id", task.ID).Bool("recurring", task.IsRecurring).Msg("task completed")
	if task.IsRecurring {
		return b.sendText(ctx, chatID, fmt.Sprintf("♻️ Задача «%s» выполнена. Следующее повторение появится после ближайшего запуска.", escape(normalizeTitle(task.Title))))
	}
	return b.sendText(ctx, chatID, fmt.Sprintf("✅ Задача «%s» выполнена.", escape(normalizeTitle(task.Title))))
}

func (b *Bot) deleteTask(ctx context.Context, chatID int64, taskID uint) error {
	task, err := b.svc.Tasks.GetTask(ctx, taskID)
	if err != nil {
		return b.replyTaskError(ctx, chatID, err)
	}
	if err := b.svc.Tasks.DeleteTask(ctx, taskID); err != nil {
		return b.replyTaskError(ctx, chatID, err)
	}

	b.log.Info().Uint("task_id", taskID).Msg("task deleted")
	return b.sendText(ctx, chatID, fmt.Sprintf("🗑 Задача «%s» удалена.", escape(normalizeTitle(task.Title))))
}

func (b *Bot) replyTaskError(ctx context.Context, chatID int64, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return b.sendText(ctx, chatID, "Задача не найдена или уже удалена.")
	}
	b.log.Error().Err(err).Msg("task operation failed")
	return b.sendText(ctx, chatID, fmt.Sprintf("Ошибка: %s", escape(err.Error())))
}

func (b *Bot) handleLabels(ctx context.Context, chatID int64) error {
	labels, err := b.svc.Labels.Labels(ctx)
	if err != nil {
		return b.sendText(ctx, chatID, fmt.Sprintf("Не удалось получить метки: %s", escape(err.Error())))
	}
	lists, err := b.svc.Labels.Lists(ctx)
	if err != nil {
		return b.sendText(ctx, chatID, fmt.Sprintf("Не удалось получить списки: %s", escape(err.Error())))
	}
	if len(labels) == 0 && len(lists) == 0 {
		return b.sendText(ctx, chatID, "Меток и списков пока нет. Добавь их при создании задачи.")
	}

	var builder strings.Builder
	if len(lists) > 0 {
		builder.WriteString("📂 <b>Списки</b>\n")
		for _, list := range lists {
			builder.WriteString(fmt.Sprintf("• %s\n", escape(strings.TrimSpace(list.Name))))
		}
		builder.WriteByte('\n')
	}
	if len(labels) > 0 {
		builder.WriteString("🏷 <b>Метки</b>\n")
		for _, label := range labels {
			builder.WriteString(fmt.Sprintf("• #%s\n", escape(strings.TrimSpace(label.Name))))
		}
	}
	return b.sendText(ctx, chatID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handleRun(ctx context.Context, chatID int64, args string) error {
	date := b.now()
	if args != "" {
		parsed, err := recurrence.ParseDate(args)
		if err != nil {
			return b.sendText(ctx, chatID, "Дата должна быть в формате <code>2025-11-30</code>.")
		}
		date = parsed
	}

	report, err := b.svc.Recurrence.ProcessRecurringTasks(ctx, date)
	if err != nil {
		return b.sendText(ctx, chatID, fmt.Sprintf("Запуск не удался: %s", escape(err.Error())))
	}
	return b.sendText(ctx, chatID, service.FormatRecurrenceReport(report))
}

// SendDailySummary sends the daily overview to the owner chat.
func (b *Bot) SendDailySummary(ctx context.Context) error {
	text, err := b.svc.Reminders.DailySummary(ctx, b.now())
	if err != nil {
		return fmt.Errorf("build summary: %w", err)
	}
	return b.sendText(ctx, b.chatID, text)
}

// NotifyReport forwards a run report when it created or failed something.
func (b *Bot) NotifyReport(ctx context.Context, report *service.RecurrenceReport) error {
	if report == nil || (report.Created() == 0 && report.Failed() == 0) {
		return nil
	}
	return b.sendText(ctx, b.chatID, service.FormatRecurrenceReport(report))
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64) error {
	tasks, err := b.svc.Tasks.ListOpen(ctx)
	if err != nil {
		return b.sendText(ctx, chatID, fmt.Sprintf("Не удалось получить задачи: %s", escape(err.Error())))
	}
	if len(tasks) == 0 {
		return b.sendText(ctx, chatID, "Открытых задач нет. Добавь новую через /newtask.")
	}

	lists, _ := b.svc.Labels.Lists(ctx)
	listNames := make(map[uint]string)
	for _, list := range lists {
		listNames[list.ID] = list.Name
	}

	type listGroup struct {
		Name  string
		Tasks []model.Task
	}
	groups := make(map[string]*listGroup)
	order := make([]string, 0, len(tasks))
	for _, task := range tasks {
		name := listName(task.ListID, listNames)
		group, ok := groups[name]
		if !ok {
			group = &listGroup{Name: name}
			groups[name] = group
			order = append(order, name)
		}
		group.Tasks = append(group.Tasks, task)
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i] == noList {
			return false
		}
		if order[j] == noList {
			return true
		}
		return strings.Compare(order[i], order[j]) < 0
	})

	today := recurrence.FormatDate(b.now())
	var builder strings.Builder
	builder.WriteString("📋 <b>Открытые задачи</b>\n")
	builder.WriteString("Нажми на кнопку, чтобы отметить задачу выполненной или удалить её.\n\n")

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, name := range order {
		builder.WriteString(fmt.Sprintf("<b>%s</b>\n", escape(name)))
		for _, task := range groups[name].Tasks {
			builder.WriteString(service.FormatTask(task, nil, today))
			buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("✅ #%d · %s", task.ID, shortTitle(task.Title, 20)), fmt.Sprintf("%s%d", cbCompletePrefix, task.ID)),
				tgbotapi.NewInlineKeyboardButtonData("🗑", fmt.Sprintf("%s%d", cbDeletePrefix, task.ID)),
			))
		}
		builder.WriteByte('\n')
	}

	return b.sendWithReplyMarkup(ctx, chatID, strings.TrimSpace(builder.String()), tgbotapi.NewInlineKeyboardMarkup(buttons...))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	if _, err := b.client.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Warn().Err(err).Msg("callback ack")
	}
	chatID := cb.Message.Chat.ID
	if chatID != b.chatID {
		b.log.Warn().Int64("chat_id", chatID).Msg("callback from foreign chat ignored")
		return nil
	}

	action, taskID, confirmed, err := parseCallback(cb.Data)
	if err != nil {
		b.log.Debug().Str("data", cb.Data).Msg("unknown callback")
		return nil
	}
	b.log.Info().Str("action", action).Uint("task_id", taskID).Bool("confirmed", confirmed).Msg("callback received")

	if !confirmed {
		if action == cbCancel {
			return b.sendText(ctx, chatID, "Действие отменено.")
		}
		return b.askConfirmation(ctx, chatID, action, taskID)
	}
	if action == actionDelete {
		return b.deleteTask(ctx, chatID, taskID)
	}
	return b.completeTask(ctx, chatID, taskID)
}

func (b *Bot) askConfirmation(ctx context.Context, chatID int64, action string, taskID uint) error {
	task, err := b.svc.Tasks.GetTask(ctx, taskID)
	if err != nil {
		return b.replyTaskError(ctx, chatID, err)
	}

	question := "Отметить задачу «%s» (#%d) как выполненную?"
	if action == actionDelete {
		question = "Удалить задачу «%s» (#%d)?"
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✅ Подтвердить", fmt.Sprintf("%s%s:%d", cbConfirmPrefix, action, task.ID)),
		tgbotapi.NewInlineKeyboardButtonData("↩️ Отмена", cbCancel),
	))
	return b.sendWithReplyMarkup(ctx, chatID, fmt.Sprintf(question, escape(normalizeTitle(task.Title)), task.ID), markup)
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	chatID := msg.Chat.ID
	switch strings.TrimSpace(strings.ToLower(msg.Text)) {
	case strings.ToLower(menuLabelNewTask):
		b.setConversation(chatID, &conversationState{stage: stageTitle})
		return true, b.sendWithReplyMarkup(ctx, chatID, "🆕 Создаём новую задачу.\n<b>Шаг 1:</b> как её назвать?", cancelKeyboard())
	case strings.ToLower(menuLabelToday):
		return true, b.SendDailySummary(ctx)
	case strings.ToLower(menuLabelTasks):
		return true, b.sendTaskList(ctx, chatID)
	case strings.ToLower(menuLabelHelp):
		return true, b.sendText(ctx, chatID, helpText)
	default:
		return false, nil
	}
}

func (b *Bot) sendText(ctx context.Context, chatID int64, text string) error {
	return b.sendWithReplyMarkup(ctx, chatID, text, mainMenuKeyboard())
}

func (b *Bot) sendWithReplyMarkup(ctx context.Context, chatID int64, text string, markup interface{}) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.client.Send(msg)
	return err
}

func (b *Bot) setConversation(chatID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[chatID] = state
}

func (b *Bot) getConversation(chatID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[chatID]
}

func (b *Bot) hasConversation(chatID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[chatID]
	return ok
}

func (b *Bot) clearConversation(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, chatID)
}

// parseNewTaskArgs reads "title; date; rule [interval]; until; label, label".
// Only the title is required; "-" or an empty field skips a position.
func parseNewTaskArgs(args string) (service.TaskInput, error) {
	parts := strings.Split(args, ";")
	if len(parts) > 5 {
		return service.TaskInput{}, fmt.Errorf("too many fields: %d", len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
		if parts[i] == "-" {
			parts[i] = ""
		}
	}
	for len(parts) < 5 {
		parts = append(parts, "")
	}

	input := service.TaskInput{
		Title:             parts[0],
		Date:              parts[1],
		RecurrenceEndDate: parts[3],
		Labels:            splitLabels(parts[4]),
	}
	if input.Title == "" {
		return input, errors.New("title is required")
	}
	if parts[2] != "" {
		kind, interval, err := parseRuleArg(parts[2])
		if err != nil {
			return input, err
		}
		input.RecurrenceType = kind
		input.RecurrenceInterval = interval
	} else if input.RecurrenceEndDate != "" {
		return input, errors.New("end date without a recurrence rule")
	}
	return input, nil
}

// parseRuleArg reads "weekly" or "weekly 2".
func parseRuleArg(raw string) (string, *int, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 || len(fields) > 2 {
		return "", nil, fmt.Errorf("rule must look like \"weekly 2\": %q", raw)
	}
	kind, ok := recurrence.ParseKind(fields[0])
	if !ok {
		return "", nil, fmt.Errorf("unknown recurrence type %q", fields[0])
	}
	if len(fields) == 1 {
		return kind.String(), nil, nil
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil || n <= 0 {
		return "", nil, fmt.Errorf("interval must be a positive number: %q", fields[1])
	}
	return kind.String(), &n, nil
}

func splitLabels(raw string) []string {
	var labels []string
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimPrefix(strings.TrimSpace(name), "#")
		if name != "" {
			labels = append(labels, name)
		}
	}
	return labels
}

func parseTaskIDArg(raw string) (uint, error) {
	value, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(raw), "#"), 10, 64)
	if err != nil {
		return 0, err
	}
	if value == 0 {
		return 0, errors.New("task id must be positive")
	}
	return uint(value), nil
}

// parseCallback decodes inline button data. Confirmed actions carry
// "confirm:<action>:<id>".
func parseCallback(data string) (action string, taskID uint, confirmed bool, err error) {
	switch {
	case data == cbCancel:
		return cbCancel, 0, false, nil
	case strings.HasPrefix(data, cbCompletePrefix):
		taskID, err = parseTaskIDArg(strings.TrimPrefix(data, cbCompletePrefix))
		return actionComplete, taskID, false, err
	case strings.HasPrefix(data, cbDeletePrefix):
		taskID, err = parseTaskIDArg(strings.TrimPrefix(data, cbDeletePrefix))
		return actionDelete, taskID, false, err
	case strings.HasPrefix(data, cbConfirmPrefix):
		rest := strings.TrimPrefix(data, cbConfirmPrefix)
		action, rawID, found := strings.Cut(rest, ":")
		if !found || (action != actionComplete && action != actionDelete) {
			return "", 0, false, fmt.Errorf("bad confirmation %q", data)
		}
		taskID, err = parseTaskIDArg(rawID)
		return action, taskID, true, err
	default:
		return "", 0, false, fmt.Errorf("unknown callback %q", data)
	}
}

func listName(listID *uint, names map[uint]string) string {
	if listID == nil {
		return noList
	}
	if name := strings.TrimSpace(names[*listID]); name != "" {
		return name
	}
	return noList
}

func shortTitle(title string, maxLen int) string {
	clean := normalizeTitle(strings.ReplaceAll(title, "\n", " "))
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func escape(s string) string {
	return html.EscapeString(s)
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelNewTask),
			tgbotapi.NewKeyboardButton(menuLabelToday),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelTasks),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancelDialog)),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnSkip)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancelDialog)),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func ruleKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(recurrence.Daily.String()),
			tgbotapi.NewKeyboardButton(recurrence.Weekday.String()),
			tgbotapi.NewKeyboardButton(recurrence.Weekly.String()),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(recurrence.Monthly.String()),
			tgbotapi.NewKeyboardButton(recurrence.Yearly.String()),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func isSkipInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "-" || value == strings.ToLower(btnSkip) || value == "пропустить" || value == "skip"
}

func isCancelDialogInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "отменить ввод" || value == "отмена"
}
