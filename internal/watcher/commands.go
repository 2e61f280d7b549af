package watcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"wheel_tracker/internal/models"
	"wheel_tracker/internal/storage"
	"wheel_tracker/internal/strategy"
	"wheel_tracker/internal/validation"
)

type CommandDoc struct {
	Name        string
	Description string
	Example     string
}

const commandTimeout = 30 * time.Second

// Short names accepted by /add, /edit and /close.
var fieldAliases = map[string]string{
	"type":   "option_type",
	"open":   "open_date",
	"exp":    "expiration_date",
	"expiry": "expiration_date",
	"close":  "close_date",
	"date":   "close_date",
	"paid":   "premium_paid_to_close",
	"cycle":  "wheel_cycle_name",
	"basis":  "stock_cost_basis",
	"shares": "stock_quantity",
}

// HandleCommand processes inbound Telegram commands safely.
func (w *Watcher) HandleCommand(cmd string) string {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	// Strip a @botname suffix from group chats.
	name := strings.ToLower(strings.SplitN(parts[0], "@", 2)[0])

	switch name {
	case "/ping":
		return fmt.Sprintf("Pong 🏓 (up %s)", time.Since(startTime).Round(time.Second))
	case "/help", "/start":
		return w.getHelp()
	case "/positions", "/list":
		return w.handlePositionsCommand(ctx, parts[1:])
	case "/position":
		if len(parts) < 2 {
			return "Usage: /position <id>"
		}
		return w.handlePositionCommand(ctx, parts[1])
	case "/add":
		return w.handleAddCommand(ctx, parts[1:])
	case "/edit":
		if len(parts) < 3 {
			return "Usage: /edit <id> field=value ..."
		}
		return w.handleEditCommand(ctx, parts[1], parts[2:])
	case "/close":
		if len(parts) < 2 {
			return "Usage: /close <id> [paid=0.50] [fees=0.65] [date=2024-01-20]"
		}
		return w.handleCloseCommand(ctx, parts[1], parts[2:])
	case "/delete":
		if len(parts) < 2 {
			return "Usage: /delete <id>"
		}
		return w.handleDeleteCommand(ctx, parts[1])
	case "/metrics", "/portfolio":
		return w.getMetrics(ctx)
	case "/cycles":
		return w.getCycles(ctx)
	case "/alerts":
		all := len(parts) > 1 && strings.EqualFold(parts[1], "all")
		return w.getAlerts(ctx, all)
	case "/dismiss":
		if len(parts) < 2 {
			return "Usage: /dismiss <id>"
		}
		return w.handleDismissCommand(ctx, parts[1])
	case "/undismiss":
		if len(parts) < 2 {
			return "Usage: /undismiss <id>"
		}
		return w.handleUndismissCommand(ctx, parts[1])
	case "/clearalerts":
		if err := w.tracker.Strategy.ClearDismissals(ctx); err != nil {
			return errorReply(err)
		}
		return "✅ All dismissals cleared."
	case "/strategy":
		return w.handleStrategyCommand(ctx, parts[1:])
	case "/price":
		if len(parts) < 2 {
			return "Usage: /price <ticker>"
		}
		return w.getPrice(ctx, parts[1])
	case "/market":
		return w.getMarketStatus()
	default:
		return "Unknown command. Try /help."
	}
}

func (w *Watcher) getHelp() string {
	var sb strings.Builder
	sb.WriteString("🎡 *WHEEL WATCHER COMMANDS*\n\n")
	for _, cmd := range w.commands {
		sb.WriteString(fmt.Sprintf("🔹 *%s*\n%s\n`%s`\n\n", cmd.Name, cmd.Description, cmd.Example))
	}
	return sb.String()
}

func (w *Watcher) handlePositionsCommand(ctx context.Context, args []string) string {
	var filter models.PositionFilter
	for _, a := range args {
		switch v := strings.ToLower(a); {
		case models.OptionType(v).Valid():
			filter.OptionType = models.OptionType(v)
		case models.PositionStatus(v).Valid():
			filter.Status = models.PositionStatus(v)
		default:
			filter.Ticker = a
		}
	}
	list, err := w.tracker.Positions.List(ctx, filter)
	if err != nil {
		return errorReply(err)
	}
	return formatPositionList(list)
}

func (w *Watcher) handlePositionCommand(ctx context.Context, ref string) string {
	id, err := w.resolveID(ctx, ref)
	if err != nil {
		return errorReply(err)
	}
	p, err := w.tracker.Positions.Get(ctx, id)
	if err != nil {
		return errorReply(err)
	}
	list, err := w.tracker.PositionAlerts(ctx, id)
	if err != nil {
		return errorReply(err)
	}
	dismissed := w.tracker.Strategy.Dismissed(ctx)[id]
	return formatPositionDetail(*p, list, dismissed)
}

func (w *Watcher) handleAddCommand(ctx context.Context, args []string) string {
	raw, err := parseFields(args, "open_fees")
	if err != nil {
		return errorReply(err)
	}
	input, err := validation.ParseCreate(raw)
	if err != nil {
		return errorReply(err)
	}
	p, err := w.tracker.Positions.Create(ctx, input)
	if err != nil {
		return errorReply(err)
	}
	return "✅ Position added\n" + formatPositionLine(*p)
}

func (w *Watcher) handleEditCommand(ctx context.Context, ref string, args []string) string {
	id, err := w.resolveID(ctx, ref)
	if err != nil {
		return errorReply(err)
	}
	raw, err := parseFields(args, "")
	if err != nil {
		return errorReply(err)
	}
	return w.applyPatch(ctx, id, raw, "✏️ Position updated")
}

func (w *Watcher) handleCloseCommand(ctx context.Context, ref string, args []string) string {
	id, err := w.resolveID(ctx, ref)
	if err != nil {
		return errorReply(err)
	}
	raw, err := parseFields(args, "close_fees")
	if err != nil {
		return errorReply(err)
	}
	if _, ok := raw["close_date"]; !ok {
		raw["close_date"] = w.now().Format(validation.DateLayout)
	}
	return w.applyPatch(ctx, id, raw, "🏁 Position closed")
}

func (w *Watcher) applyPatch(ctx context.Context, id string, raw map[string]string, title string) string {
	pt, err := validation.ParsePatch(raw)
	if err != nil {
		return errorReply(err)
	}
	p, err := w.tracker.Positions.Update(ctx, id, pt)
	if err != nil {
		return errorReply(err)
	}
	return title + "\n" + formatPositionLine(*p)
}

func (w *Watcher) handleDeleteCommand(ctx context.Context, ref string) string {
	id, err := w.resolveID(ctx, ref)
	if err != nil {
		return errorReply(err)
	}
	if err := w.tracker.Positions.Delete(ctx, id); err != nil {
		return errorReply(err)
	}
	// A dismissal for a deleted position would otherwise linger for 24h.
	if err := w.tracker.Strategy.Undismiss(ctx, id); err != nil {
		log.Printf("WARN: could not drop dismissal for deleted position %s: %v", id, err)
	}
	log.Printf("Position deleted via Telegram: %s", id)
	return fmt.Sprintf("🗑️ Position %s deleted.", shortID(id))
}

func (w *Watcher) handleDismissCommand(ctx context.Context, ref string) string {
	id, err := w.resolveID(ctx, ref)
	if err != nil {
		return errorReply(err)
	}
	if err := w.tracker.Strategy.Dismiss(ctx, id); err != nil {
		return errorReply(err)
	}
	return fmt.Sprintf("🔕 Alerts for %s dismissed for 24h.", shortID(id))
}

func (w *Watcher) handleUndismissCommand(ctx context.Context, ref string) string {
	id, err := w.resolveID(ctx, ref)
	if err != nil {
		// The position may be gone; still allow clearing by full id.
		id = ref
	}
	if err := w.tracker.Strategy.Undismiss(ctx, id); err != nil {
		return errorReply(err)
	}
	w.forget(id)
	return fmt.Sprintf("🔔 Alerts for %s restored.", shortID(id))
}

func (w *Watcher) handleStrategyCommand(ctx context.Context, args []string) string {
	if len(args) == 0 {
		return formatStrategy(w.tracker.Strategy.Config(ctx))
	}
	switch strings.ToLower(args[0]) {
	case string(models.StrategyStandard):
		if err := w.tracker.Strategy.SetStrategy(ctx, models.StrategyStandard); err != nil {
			return errorReply(err)
		}
	case string(models.StrategyCustom):
		if len(args) == 1 {
			if err := w.tracker.Strategy.SetStrategy(ctx, models.StrategyCustom); err != nil {
				return errorReply(err)
			}
			break
		}
		if len(args) < 3 {
			return "Usage: /strategy custom <roll%> <close%>"
		}
		roll, err1 := decimal.NewFromString(strings.TrimSuffix(args[1], "%"))
		closeAt, err2 := decimal.NewFromString(strings.TrimSuffix(args[2], "%"))
		if err1 != nil || err2 != nil {
			return "⚠️ Thresholds must be numbers, e.g. /strategy custom 4 60"
		}
		if err := w.tracker.Strategy.SetCustomThresholds(ctx, roll, closeAt); err != nil {
			return errorReply(err)
		}
	default:
		return "Usage: /strategy [standard | custom <roll%> <close%>]"
	}
	return "✅ Strategy updated\n" + formatStrategy(w.tracker.Strategy.Config(ctx))
}

// HandleCallback processes button clicks from Telegram.
func (w *Watcher) HandleCallback(callbackID, data string) string {
	if !strings.HasPrefix(data, DismissPrefix) {
		return "⚠️ Invalid callback data."
	}
	id := strings.TrimPrefix(data, DismissPrefix)
	if id == "" {
		return "⚠️ Invalid callback data."
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	// Buttons can outlive their position; a stale one must not leave a dismissal behind.
	if _, err := w.tracker.Positions.Get(ctx, id); err != nil {
		return errorReply(err)
	}
	if err := w.tracker.Strategy.Dismiss(ctx, id); err != nil {
		return errorReply(err)
	}
	log.Printf("Alert dismissed via button (callback %s): %s", callbackID, id)
	return fmt.Sprintf("🔕 Alerts for %s dismissed for 24h.", shortID(id))
}

// resolveID accepts a full id or a unique prefix, so listings can show short ids.
func (w *Watcher) resolveID(ctx context.Context, ref string) (string, error) {
	if p, err := w.tracker.Positions.Get(ctx, ref); err == nil {
		return p.ID, nil
	}
	all, err := w.tracker.Positions.List(ctx, models.PositionFilter{})
	if err != nil {
		return "", err
	}
	var match string
	for _, p := range all {
		if strings.HasPrefix(p.ID, ref) {
			if match != "" {
				return "", fmt.Errorf("id %q is ambiguous", ref)
			}
			match = p.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("position %s: %w", ref, storage.ErrNotFound)
	}
	return match, nil
}

// forget clears the cooldown for a position so a restored alert can fire at once.
func (w *Watcher) forget(positionID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id := range w.lastAlerts {
		if strings.HasPrefix(id, positionID+":") {
			delete(w.lastAlerts, id)
		}
	}
}

// parseFields reads key=value tokens. A bare token continues the previous value,
// so "notes=rolled down" keeps its space. fees= maps to feeField.
func parseFields(args []string, feeField string) (map[string]string, error) {
	raw := make(map[string]string)
	last := ""
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok {
			if last == "" {
				return nil, fmt.Errorf("expected field=value, got %q", a)
			}
			raw[last] += " " + a
			continue
		}
		k = strings.ToLower(strings.TrimSpace(k))
		if full, ok := fieldAliases[k]; ok {
			k = full
		}
		if k == "fees" && feeField != "" {
			k = feeField
		}
		raw[k] = v
		last = k
	}
	return raw, nil
}

func errorReply(err error) string {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		var sb strings.Builder
		sb.WriteString("⚠️ Invalid input:\n")
		for _, f := range verr.Fields {
			sb.WriteString(fmt.Sprintf("• `%s`: %s\n", f.Field, f.Message))
		}
		return sb.String()
	case errors.Is(err, storage.ErrNotFound):
		return "⚠️ Position not found."
	case errors.Is(err, strategy.ErrInvalidThreshold), errors.Is(err, strategy.ErrUnknownStrategy):
		return "⚠️ " + err.Error()
	default:
		log.Printf("Command error: %v", err)
		return "⚠️ Error: " + err.Error()
	}
}
