package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"wheel_tracker/internal/alerts"
	"wheel_tracker/internal/api"
	"wheel_tracker/internal/config"
	"wheel_tracker/internal/logger"
	"wheel_tracker/internal/market"
	"wheel_tracker/internal/market/alpaca"
	"wheel_tracker/internal/positions"
	"wheel_tracker/internal/scheduler"
	"wheel_tracker/internal/storage"
	"wheel_tracker/internal/strategy"
	"wheel_tracker/internal/telegram"
	"wheel_tracker/internal/tracker"
	"wheel_tracker/internal/validation"
	"wheel_tracker/internal/watcher"
)

const VersionFile = "version.latest"

type oracleWithClock interface {
	market.PriceOracle
	watcher.ClockSource
}

func main() {
	cfg := config.Load()
	logger.Setup(cfg.LogFile, int64(cfg.MaxLogSizeMB), cfg.MaxLogBackups)
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.StateFile)
	if err != nil {
		log.Fatalf("Failed to open state file %s: %v", cfg.StateFile, err)
	}

	svc := positions.NewService(store)
	svc.SetCheck(validation.CheckPosition)

	var oracle oracleWithClock = market.Disabled{}
	if cfg.MarketDataEnabled() {
		provider := alpaca.NewProvider(alpaca.Options{
			APIKey:    cfg.AlpacaKey,
			APISecret: cfg.AlpacaSecret,
			BaseURL:   cfg.AlpacaBaseURL,
			DataURL:   cfg.AlpacaDataURL,
		})
		oracle = market.NewCachedOracle(provider, cfg.PriceCacheTTL, cfg.PriceFetchConcurrency)
	} else {
		logger.Warnf("Alpaca credentials missing: prices unavailable, alerts will not fire")
	}

	tr := tracker.New(svc, strategy.NewStore(store.Settings()), oracle, alerts.NewEngine())

	bot := telegram.NewClient(cfg.TelegramToken, cfg.TelegramChatID)
	w := watcher.New(cfg, tr, oracle, bot)

	if bot.Enabled() {
		go bot.StartListener(ctx, w.HandleCommand, w.HandleCallback)
	}

	runner := scheduler.New(ctx)
	entry, err := runner.Add(cfg.PollSchedule, w.Poll)
	if err != nil {
		log.Fatalf("Invalid WHEEL_POLL_SCHEDULE %q: %v", cfg.PollSchedule, err)
	}
	runner.Start()

	var srv *http.Server
	errCh := make(chan error, 1)
	if cfg.HTTPAddr != "" {
		gin.SetMode(gin.ReleaseMode)
		srv = &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: api.NewRouter(tr),
		}
		go func() {
			log.Printf("HTTP API listening on %s", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	log.Printf("Wheel Watcher %s Initialized", readVersion())
	log.Printf("Alert schedule: %s (cooldown %s, market hours only: %t)",
		cfg.PollSchedule, cfg.AlertCooldown, cfg.MarketHoursOnly)

	w.SendStartupNotification(ctx)
	w.Poll(ctx) // Run once immediately on start
	log.Printf("Next check scheduled for: %s", runner.Next(entry).In(config.CetLoc).Format("2006-01-02 15:04:05 MST"))

	select {
	case <-ctx.Done():
		log.Println("⚠️ Watcher Shutting Down: System signal received.")
	case err := <-errCh:
		log.Printf("ERROR: HTTP server failed: %v", err)
	}

	w.SendShutdownNotification()
	runner.Stop()
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP shutdown: %v", err)
		}
	}
	log.Println("🛑 Main loop stopped")
}

func readVersion() string {
	version, err := os.ReadFile(VersionFile)
	if err != nil {
		return "v0.0.0-dev"
	}
	return strings.TrimSpace(string(version))
}
