package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"worklog/internal/auth"
	"worklog/internal/config"
	"worklog/internal/lifecycle"
	"worklog/internal/notify"
	"worklog/internal/server"
	"worklog/internal/storage/sqldb"
	"worklog/internal/telemetry"
)

func main() {
	configFlag := flag.String("config", os.Getenv("WORKLOG_CONFIG"), "Path to YAML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	logger.Info("worklog task report service starting")

	if err := run(cfg, logger); err != nil {
		logger.Error("service stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(cfg config.Config, logger *slog.Logger) error {
	shutdownMetrics := func(context.Context) error { return nil }
	if cfg.Metrics.Stdout {
		shutdown, err := telemetry.InstallStdout(cfg.Metrics.Interval)
		if err != nil {
			return err
		}
		shutdownMetrics = shutdown
	}
	metrics, err := telemetry.New()
	if err != nil {
		return err
	}

	store, err := sqldb.Open(cfg.DB.Driver, cfg.DB.DSN, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	var notifier notify.Notifier = notify.LogNotifier{Logger: logger}
	if cfg.SMTPEnabled() {
		mailer, err := notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			Reviewer: cfg.SMTP.Reviewer,
			Records:  cfg.SMTP.Records,
		})
		if err != nil {
			return err
		}
		notifier = mailer
		logger.Info("mail notifications enabled", slog.String("host", cfg.SMTP.Host))
	}
	dispatcher := notify.NewDispatcher(notifier, logger, metrics, cfg.NotifyTimeout)

	tasks := lifecycle.NewManager(store, logger,
		lifecycle.WithNotifications(dispatcher),
		lifecycle.WithMetrics(metrics))

	tokens, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	accounts := auth.NewService(store, tokens, logger)

	if cfg.BootstrapEnabled() {
		if _, err := accounts.EnsureAdmin(context.Background(), auth.RegisterInput{
			EmpID:    cfg.Bootstrap.EmpID,
			Name:     cfg.Bootstrap.Name,
			Email:    cfg.Bootstrap.Email,
			Password: cfg.Bootstrap.Password,
		}); err != nil {
			return err
		}
	}

	srv := server.New(tasks, accounts, store, logger)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped unexpectedly", slog.String("error", err.Error()))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown server", slog.String("error", err.Error()))
	}
	dispatcher.Wait()
	if err := shutdownMetrics(ctx); err != nil {
		logger.Warn("failed to flush metrics", slog.String("error", err.Error()))
	}
	return nil
}

func parseLevel(raw string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo
	}
	return level
}
