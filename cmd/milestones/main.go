package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/milestone-calendar/internal/application"
	"github.com/example/milestone-calendar/internal/config"
	httptransport "github.com/example/milestone-calendar/internal/http"
	"github.com/example/milestone-calendar/internal/persistence/sqlstore"
	"github.com/example/milestone-calendar/internal/reminder"
	"github.com/example/milestone-calendar/internal/websocket"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("milestones API stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	storage, err := sqlstore.Open(ctx, sqlstore.DefaultConfig(cfg.Driver, cfg.DSN), logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := storage.Migrate(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	hub := websocket.NewHub(logger)
	defer hub.Close()

	scheduler, err := reminder.NewScheduler(
		storage.Reminders,
		&reminderEventSource{repo: storage.Events},
		hub,
		reminder.NewLogChannel(logger),
		reminder.Config{
			Preferences: reminder.Preferences{LeadMinutes: cfg.ReminderLeads},
			QuietHours:  cfg.QuietHours,
			MaxRetries:  cfg.MaxRetries,
			SweepSpec:   cfg.SweepSpec,
		},
		logger,
	)
	if err != nil {
		return fmt.Errorf("build reminder scheduler: %w", err)
	}
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start reminder scheduler: %w", err)
	}
	defer scheduler.Stop()

	cache, err := application.NewQueryCache(cfg.CacheCapacity, time.Now)
	if err != nil {
		return fmt.Errorf("build query cache: %w", err)
	}

	serviceConfig := application.DefaultEventServiceConfig()
	serviceConfig.ListTTL = cfg.ListTTL
	serviceConfig.StatsTTL = cfg.StatsTTL
	serviceConfig.HistoryTTL = cfg.HistoryTTL
	serviceConfig.ReminderChannel = hub.Name()
	serviceConfig.Location = cfg.Location
	serviceConfig.DefaultTimezone = cfg.DefaultTimezone

	service := application.NewEventService(
		newEventRepositoryAdapter(storage.Events),
		&reminderPlanner{scheduler: scheduler},
		cache,
		serviceConfig,
		time.Now,
		logger,
	)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Events:    httptransport.NewEventHandler(service, time.Now, logger),
		Calendar:  httptransport.NewCalendarHandler(service, time.Now, logger),
		WebSocket: websocket.Handler(hub, logger),
		Health:    httptransport.HealthHandler(storage, hub.ClientCount, logger),
		Middleware: []mux.MiddlewareFunc{
			httptransport.Recoverer(logger),
			httptransport.RequestLogger(logger),
			httptransport.RequireActor(logger),
		},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("milestones API listening", "addr", server.Addr, "driver", cfg.Driver)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
