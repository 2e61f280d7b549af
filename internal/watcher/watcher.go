package watcher

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"wheel_tracker/internal/config"
	"wheel_tracker/internal/logger"
	"wheel_tracker/internal/models"
	"wheel_tracker/internal/telegram"
	"wheel_tracker/internal/tracker"
)

var startTime = time.Now()

// DismissPrefix prefixes the callback data of the "Dismiss 24h" button.
const DismissPrefix = "DISMISS_"

// Notifier is the outbound side of the bot.
type Notifier interface {
	Notify(text string)
	SendInteractiveMessage(text string, buttons []telegram.Button)
}

// ClockSource reports whether the market is open.
type ClockSource interface {
	GetClock() (*models.Clock, error)
}

type Watcher struct {
	tracker  *tracker.Tracker
	clock    ClockSource
	notifier Notifier
	config   *config.Config
	commands []CommandDoc
	now      func() time.Time

	mu         sync.Mutex
	lastAlerts map[string]time.Time // alert id -> last sent, to prevent alert fatigue
}

func New(cfg *config.Config, tr *tracker.Tracker, clock ClockSource, notifier Notifier) *Watcher {
	return &Watcher{
		tracker:    tr,
		clock:      clock,
		notifier:   notifier,
		config:     cfg,
		now:        time.Now,
		lastAlerts: make(map[string]time.Time),
		commands: []CommandDoc{
			{"/ping", "Connectivity check", "/ping"},
			{"/positions", "List positions, optionally filtered", "/positions [ticker] [put|call] [open|closed|assigned]"},
			{"/position", "Position detail with its alerts", "/position <id>"},
			{"/add", "Record a new option sale", "/add ticker=XYZ type=put strike=100 premium=2.00 contracts=1 open=2024-01-02 exp=2024-02-16"},
			{"/edit", "Change fields; an empty value clears", "/edit <id> close_fees=0.65 notes=rolled down"},
			{"/close", "Close a position", "/close <id> [paid=0.50] [fees=0.65] [date=2024-01-20]"},
			{"/delete", "Remove a position", "/delete <id>"},
			{"/metrics", "Portfolio P/L, premium and capital", "/metrics"},
			{"/cycles", "Wheel cycle summaries", "/cycles"},
			{"/alerts", "Ranked strategy alerts", "/alerts [all]"},
			{"/dismiss", "Hide a position's alerts for 24h", "/dismiss <id>"},
			{"/undismiss", "Show a position's alerts again", "/undismiss <id>"},
			{"/clearalerts", "Clear every dismissal", "/clearalerts"},
			{"/strategy", "Show or change alert thresholds", "/strategy [standard | custom <roll%> <close%>]"},
			{"/price", "Latest trade price", "/price <ticker>"},
			{"/market", "Market clock", "/market"},
		},
	}
}

// Poll runs one alert sweep: gate on market hours, evaluate, and push every
// alert not already sent within the cooldown window.
func (w *Watcher) Poll(ctx context.Context) {
	sent, err := w.poll(ctx)
	if err != nil {
		log.Printf("ERROR: alert sweep failed: %v", err)
		return
	}
	if sent > 0 {
		log.Printf("Alert sweep: %d notification(s) sent", sent)
	}
}

func (w *Watcher) poll(ctx context.Context) (int, error) {
	if w.config.MarketHoursOnly {
		clock, err := w.clock.GetClock()
		if err != nil {
			logger.Warnf("market clock unavailable, sweeping anyway: %v", err)
		} else if !clock.IsOpen {
			logger.Debugf("Market closed, skipping alert sweep")
			return 0, nil
		}
	}

	active, err := w.tracker.Alerts(ctx, false)
	if err != nil {
		return 0, err
	}

	now := w.now()
	w.mu.Lock()
	for id, at := range w.lastAlerts {
		if now.Sub(at) >= w.config.AlertCooldown {
			delete(w.lastAlerts, id)
		}
	}
	var due []models.StrategyAlert
	for _, a := range active {
		if _, recent := w.lastAlerts[a.ID]; recent {
			continue
		}
		w.lastAlerts[a.ID] = now
		due = append(due, a)
	}
	w.mu.Unlock()

	for _, a := range due {
		buttons := []telegram.Button{
			{Text: "🔕 Dismiss 24h", CallbackData: DismissPrefix + a.PositionID},
		}
		w.notifier.SendInteractiveMessage(formatAlert(a), buttons)
	}
	return len(due), nil
}

// SendStartupNotification reports the book size once the process is up.
func (w *Watcher) SendStartupNotification(ctx context.Context) {
	open, err := w.tracker.Positions.List(ctx, models.PositionFilter{Status: models.StatusOpen})
	if err != nil {
		log.Printf("Startup Warning: Could not list positions: %v", err)
	}
	th := w.tracker.Strategy.Thresholds(ctx)
	w.notifier.Notify(fmt.Sprintf("🚀 *SYSTEM START: Wheel Watcher online*\nOpen positions: %d | Roll %s%% / Close %s%%",
		len(open), th.RollThreshold.String(), th.CloseThreshold.String()))
}

func (w *Watcher) SendShutdownNotification() {
	w.notifier.Notify("🛑 SYSTEM SHUTDOWN: Signal received.")
}
