package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"session-manager/internal/bot"
	"session-manager/internal/config"
	"session-manager/internal/logger"
	"session-manager/internal/repository"
	"session-manager/internal/service"
	"session-manager/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	rootLogger := logger.New(cfg.LogLevel)

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		rootLogger.Fatal().Err(err).Msg("open database")
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	sessionRepo := repository.NewSessionRepository(db)
	dialer := telegram.NewDialer(cfg.APIID, cfg.APIHash, cfg.Device, rootLogger)

	loginSvc := service.NewLoginService(dialer, sessionRepo, cfg.Device, rootLogger)
	disconnectSvc := service.NewDisconnectService(dialer, sessionRepo, rootLogger)
	auditSvc := service.NewAuditService(dialer, sessionRepo, rootLogger)

	telegramBot, err := bot.New(cfg.TelegramToken, loginSvc, disconnectSvc, sessionRepo, &cfg, rootLogger)
	if err != nil {
		rootLogger.Fatal().Err(err).Msg("create bot")
	}

	scheduler := service.NewSchedulerService(time.Local)
	if cfg.AuditInterval > 0 {
		if _, err := scheduler.ScheduleInterval(cfg.AuditInterval, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			if _, _, err := auditSvc.Run(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				rootLogger.Error().Err(err).Msg("session audit")
			}
		}); err != nil {
			rootLogger.Fatal().Err(err).Msg("schedule session audit")
		}
		scheduler.Start()
		defer scheduler.Stop()
	} else {
		rootLogger.Warn().Msg("session audit disabled (AUDIT_INTERVAL_HOURS=0)")
	}

	rootLogger.Info().Msg("session manager bot started")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		rootLogger.Fatal().Err(err).Msg("bot stopped with error")
	}
	rootLogger.Info().Msg("shutdown complete")
}
