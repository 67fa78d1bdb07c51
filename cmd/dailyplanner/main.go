package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/lassestilvang/todo-kat-coder-pro-v1-sub000/internal/bot"
	"github.com/lassestilvang/todo-kat-coder-pro-v1-sub000/internal/config"
	"github.com/lassestilvang/todo-kat-coder-pro-v1-sub000/internal/logging"
	"github.com/lassestilvang/todo-kat-coder-pro-v1-sub000/internal/recurrence"
	"github.com/lassestilvang/todo-kat-coder-pro-v1-sub000/internal/repository"
	"github.com/lassestilvang/todo-kat-coder-pro-v1-sub000/internal/service"
)

var Version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "dailyplanner",
		Short:         "Daily planner with recurring tasks",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (overrides CONFIG_FILE)")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(processCmd(&configPath))
	rootCmd.AddCommand(nextCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds everything the commands share.
type app struct {
	cfg      config.Config
	log      zerolog.Logger
	db       *gorm.DB
	store    *repository.Store
	services bot.Services
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	db, err := repository.NewDB(cfg.DatabaseURL, log)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}

	store := repository.NewStore(db)
	lists := repository.NewListRepository(db)
	return &app{
		cfg:   cfg,
		log:   log,
		db:    db,
		store: store,
		services: bot.Services{
			Tasks:      service.NewTaskService(store.Tasks, lists, store.Labels, store.Audit, log),
			Labels:     service.NewLabelService(store.Labels, lists),
			Reminders:  service.NewReminderService(store.Tasks, lists),
			Recurrence: service.NewRecurrenceService(store, log),
		},
	}, nil
}

func (a *app) Close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daily recurrence job and the Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	var telegramBot *bot.Bot
	if a.cfg.BotEnabled() {
		b, err := bot.New(a.cfg.TelegramToken, a.cfg.TelegramChatID, a.services, a.log)
		if err != nil {
			return fmt.Errorf("bot: %w", err)
		}
		telegramBot = b
	}

	scheduler := service.NewSchedulerService(time.Local, a.log)
	id, err := scheduler.ScheduleDaily(a.cfg.RecurrenceTime, func() {
		a.recurrenceJob(ctx, time.Now(), telegramBot)
	})
	if err != nil {
		return fmt.Errorf("schedule recurrence: %w", err)
	}

	if telegramBot != nil && a.cfg.SummaryInterval > 0 {
		if _, err := scheduler.ScheduleInterval(a.cfg.SummaryInterval, func() {
			jobCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := telegramBot.SendDailySummary(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.log.Warn().Err(err).Msg("send summary")
			}
		}); err != nil {
			return fmt.Errorf("schedule summary: %w", err)
		}
	}

	scheduler.Start()
	defer scheduler.Stop()
	a.log.Info().
		Str("recurrence_time", a.cfg.RecurrenceTime).
		Time("next_run", scheduler.Next(id)).
		Bool("bot", telegramBot != nil).
		Msg("daily planner started")

	if telegramBot != nil {
		if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("bot stopped: %w", err)
		}
	} else {
		<-ctx.Done()
	}

	a.log.Info().Msg("shutdown complete")
	return nil
}

// recurrenceJob is the daily scheduled run. It fires after midnight, so it
// processes the tasks dated on the day before now.
func (a *app) recurrenceJob(ctx context.Context, now time.Time, telegramBot *bot.Bot) *service.RecurrenceReport {
	jobCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	report, err := a.services.Recurrence.ProcessPreviousDay(jobCtx, now)
	if err != nil {
		a.log.Error().Err(err).Msg("recurrence run failed")
		return nil
	}
	if telegramBot != nil {
		if err := telegramBot.NotifyReport(jobCtx, report); err != nil {
			a.log.Warn().Err(err).Msg("send recurrence report")
		}
	}
	return report
}

func processCmd(configPath *string) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Generate the next occurrence of recurring tasks completed on a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := time.Now()
			if date != "" {
				parsed, err := recurrence.ParseDate(date)
				if err != nil {
					return err
				}
				ref = parsed
			}

			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.services.Recurrence.ProcessRecurringTasks(cmd.Context(), ref)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s on %s: due=%d created=%d skipped=%d failed=%d\n",
				report.RunID, report.Date, report.Due(), report.Created(), report.Skipped(), report.Failed())
			for _, occ := range report.Occurrences {
				line := fmt.Sprintf("  #%d %-9s %s", occ.SourceID, occ.Outcome, occ.NextDate)
				if occ.TaskID != 0 {
					line += fmt.Sprintf(" -> #%d", occ.TaskID)
				}
				if occ.Err != nil {
					line += ": " + occ.Err.Error()
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "reference date YYYY-MM-DD (default today)")
	return cmd
}

func nextCmd() *cobra.Command {
	var (
		date     string
		rule     string
		interval int
	)
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Print the date of the next occurrence for a rule",
		RunE: func(cmd *cobra.Command, args []string) error {
			current, err := recurrence.ParseDate(date)
			if err != nil {
				return err
			}
			kind, ok := recurrence.ParseKind(rule)
			if !ok {
				return fmt.Errorf("unknown rule %q", rule)
			}
			next, ok := recurrence.NextDate(current, kind, interval)
			if !ok {
				return fmt.Errorf("rule %q has no next date", rule)
			}
			fmt.Fprintln(cmd.OutOrStdout(), recurrence.FormatDate(next))
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "current date YYYY-MM-DD")
	cmd.Flags().StringVar(&rule, "rule", "", "daily, weekly, weekday, monthly, yearly or custom")
	cmd.Flags().IntVar(&interval, "interval", 1, "step count")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("rule")
	return cmd
}
