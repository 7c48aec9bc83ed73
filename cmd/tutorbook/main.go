package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Spok95/tutorbook/internal/api"
	"github.com/Spok95/tutorbook/internal/auth"
	"github.com/Spok95/tutorbook/internal/bot"
	"github.com/Spok95/tutorbook/internal/config"
	"github.com/Spok95/tutorbook/internal/db"
	"github.com/Spok95/tutorbook/internal/jobs"
	"github.com/Spok95/tutorbook/internal/logging"
	"github.com/Spok95/tutorbook/internal/observability"
)

const release = "tutorbook@dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logging.Init(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Closer()
	for _, w := range cfg.Warnings {
		lg.Base.Warn(w)
	}

	flush, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, release)
	if err != nil {
		lg.Base.Warn("sentry init failed", zap.Error(err))
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		lg.Base.Fatal("db open", zap.Error(err))
	}
	defer func() { _ = database.Close() }()

	if err := db.Ping(ctx, database); err != nil {
		lg.Base.Warn("db ping failed", zap.Error(err))
	}
	if err := db.Migrate(ctx, database); err != nil {
		lg.Base.Fatal("migrate", zap.Error(err))
	}
	if cfg.SeedAdmin() {
		seedAdmin(ctx, database, cfg, lg.Base)
	}

	api.New(api.Options{
		Addr:   cfg.HTTPAddr,
		APIKey: cfg.APIKey,
		DB:     database,
		Tokens: auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL),
		Log:    lg.Component("api"),
		Loc:    cfg.Location,
	}).Start(ctx)

	if cfg.TelegramToken != "" {
		startBot(ctx, database, cfg, lg)
	} else {
		lg.Base.Info("TELEGRAM_BOT_TOKEN is empty, parent portal disabled")
	}

	<-ctx.Done()
	lg.Base.Info("shutting down")
	// даём серверу и задачам завершиться
	time.Sleep(500 * time.Millisecond)
}

func seedAdmin(ctx context.Context, database *sql.DB, cfg *config.Config, lg *zap.Logger) {
	hash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		lg.Error("admin seed: hash password", zap.Error(err))
		return
	}
	p, err := db.EnsureAdmin(ctx, database, cfg.AdminEmail, hash, cfg.AdminFullName)
	if err != nil {
		lg.Error("admin seed", zap.Error(err))
		return
	}
	lg.Info("admin ensured", zap.String("user_id", p.ID.String()), zap.String("email", p.Email))
}

// startBot — родительский портал и фоновые рассылки; без бота задачам некуда слать сообщения.
func startBot(ctx context.Context, database *sql.DB, cfg *config.Config, lg *logging.Log) {
	botLog := lg.Component("bot")
	tgAPI, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		botLog.Error("telegram bot init failed", zap.Error(err))
		observability.CaptureErr(err)
		return
	}
	botLog.Info("telegram bot started", zap.String("username", tgAPI.Self.UserName))

	b := bot.New(tgAPI, database, botLog)
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := tgAPI.GetUpdatesChan(u)
	go func() {
		<-ctx.Done()
		tgAPI.StopReceivingUpdates()
	}()
	go b.Run(ctx, updates)

	jobLog := lg.Component("jobs")
	runner := jobs.New(ctx, cfg.Location, jobLog)
	if err := runner.Every(time.Minute, "broadcasts", jobs.DeliverBroadcasts(database, b, jobLog)); err != nil {
		jobLog.Error("schedule broadcasts", zap.Error(err))
	}
	if err := runner.Schedule(cfg.ReminderCron, "reminders",
		jobs.LessonReminders(database, b, cfg.Location, time.Now, jobLog)); err != nil {
		jobLog.Error("schedule reminders", zap.Error(err))
	}
	runner.Start()
}
