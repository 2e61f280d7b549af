package watcher

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"wheel_tracker/internal/config"
	"wheel_tracker/internal/models"
	"wheel_tracker/internal/portfolio"
	"wheel_tracker/internal/positions"
	"wheel_tracker/internal/telegram"
	"wheel_tracker/internal/validation"
)

const shortIDLen = 8

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

func (w *Watcher) getMarketStatus() string {
	clock, err := w.clock.GetClock()
	if err != nil {
		log.Printf("Error fetching market clock: %v", err)
		return "⚠️ Error: Could not fetch market status."
	}

	status := "CLOSED 🔴"
	nextSession := "Next Open"
	eventTime := clock.NextOpen
	if clock.IsOpen {
		status = "OPEN 🟢"
		nextSession = "Closes"
		eventTime = clock.NextClose
	}
	until := eventTime.Sub(w.now()).Round(time.Minute)

	return fmt.Sprintf("🏛️ *MARKET STATUS*\nState: %s\n%s: %s (in %s)",
		status, nextSession, eventTime.In(config.CetLoc).Format("15:04 MST"), until)
}

func (w *Watcher) getPrice(ctx context.Context, ticker string) string {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	price, ok := w.tracker.Oracle.GetPrice(ctx, ticker)
	if !ok {
		return fmt.Sprintf("⚠️ No price available for %s.", telegram.EscapeMarkdown(ticker))
	}
	return fmt.Sprintf("💲 *%s*: $%s", telegram.EscapeMarkdown(ticker), price.StringFixed(2))
}

func (w *Watcher) getMetrics(ctx context.Context) string {
	m, err := w.tracker.Metrics(ctx)
	if err != nil {
		return errorReply(err)
	}
	return formatMetrics(m)
}

func (w *Watcher) getCycles(ctx context.Context) string {
	cycles, err := w.tracker.Cycles(ctx)
	if err != nil {
		return errorReply(err)
	}
	return formatCycles(cycles)
}

func (w *Watcher) getAlerts(ctx context.Context, includeDismissed bool) string {
	list, err := w.tracker.Alerts(ctx, includeDismissed)
	if err != nil {
		return errorReply(err)
	}
	if len(list) == 0 {
		return "✅ No active alerts."
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🔔 *ALERTS* (%d)\n\n", len(list)))
	for _, a := range list {
		sb.WriteString(formatAlert(a))
		sb.WriteString("\n\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func urgencyIcon(u models.Urgency) string {
	switch u {
	case models.UrgencyHigh:
		return "🔴"
	case models.UrgencyMedium:
		return "🟠"
	default:
		return "🟡"
	}
}

func formatAlert(a models.StrategyAlert) string {
	return fmt.Sprintf("%s *%s* [%s]\n%s\nID: `%s`",
		urgencyIcon(a.Urgency), telegram.EscapeMarkdown(a.Title), strings.ToUpper(string(a.Urgency)),
		telegram.EscapeMarkdown(a.Message), shortID(a.PositionID))
}

func plIcon(v decimal.Decimal) string {
	if v.IsNegative() {
		return "🔴"
	}
	return "🟢"
}

func money(v decimal.Decimal) string {
	return "$" + portfolio.RoundCents(v).StringFixed(2)
}

func nullMoney(v decimal.NullDecimal) string {
	if !v.Valid {
		return "-"
	}
	return money(v.Decimal)
}

func formatPositionLine(p models.Position) string {
	line := fmt.Sprintf("`%s` *%s* %d× $%s %s exp %s [%s]",
		shortID(p.ID), p.Ticker, p.Contracts, p.Strike.StringFixed(2), p.OptionType,
		p.ExpirationDate.Format(validation.DateLayout), p.Status)
	if p.RealizedPL.Valid {
		line += fmt.Sprintf(" P/L %s%s", plIcon(p.RealizedPL.Decimal), money(p.RealizedPL.Decimal))
	}
	return line
}

func formatPositionList(list []models.Position) string {
	if len(list) == 0 {
		return "📭 No positions."
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📋 *POSITIONS* (%d)\n", len(list)))
	for _, p := range list {
		sb.WriteString(formatPositionLine(p))
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatPositionDetail(p models.Position, list []models.StrategyAlert, dismissed bool) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📄 *%s %s $%s* [%s]\n", p.Ticker, strings.ToUpper(string(p.OptionType)), p.Strike.StringFixed(2), p.Status))
	sb.WriteString(fmt.Sprintf("ID: `%s`\n", p.ID))
	if p.WheelCycleName != "" {
		sb.WriteString(fmt.Sprintf("Cycle: %s\n", telegram.EscapeMarkdown(p.WheelCycleName)))
	}
	sb.WriteString(fmt.Sprintf("Contracts: %d | Premium: $%s (gross %s)\n",
		p.Contracts, p.Premium.StringFixed(2), money(positions.GrossPremium(p))))
	sb.WriteString(fmt.Sprintf("Opened: %s | Expires: %s\n",
		p.OpenDate.Format(validation.DateLayout), p.ExpirationDate.Format(validation.DateLayout)))
	if p.CloseDate != nil {
		sb.WriteString(fmt.Sprintf("Closed: %s | Paid to close: %s\n",
			p.CloseDate.Format(validation.DateLayout), nullMoney(p.PremiumPaidToClose)))
	}
	sb.WriteString(fmt.Sprintf("Fees: %s\n", money(positions.Fees(p))))
	if p.StockOwned || p.Assigned {
		sb.WriteString(fmt.Sprintf("Stock: %s sh @ %s", p.StockQuantity.Decimal.String(), nullMoney(p.StockCostBasis)))
		if p.StockSaleDate != nil {
			sb.WriteString(fmt.Sprintf(", sold %s @ %s", p.StockSaleDate.Format(validation.DateLayout), nullMoney(p.StockSalePrice)))
		}
		sb.WriteString("\n")
	}
	if p.RealizedPL.Valid {
		sb.WriteString(fmt.Sprintf("Realized P/L: %s%s (premium %s, stock %s)\n", plIcon(p.RealizedPL.Decimal),
			money(p.RealizedPL.Decimal), nullMoney(p.PremiumRealizedPL), nullMoney(p.StockRealizedPL)))
	}
	if p.UnrealizedPL.Valid {
		sb.WriteString(fmt.Sprintf("Unrealized P/L: %s\n", money(p.UnrealizedPL.Decimal)))
	}
	if p.Notes != "" {
		sb.WriteString(fmt.Sprintf("Notes: %s\n", telegram.EscapeMarkdown(p.Notes)))
	}

	if len(list) > 0 {
		sb.WriteString("\n")
		if dismissed {
			sb.WriteString("_Alerts dismissed for 24h_\n")
		}
		for _, a := range list {
			sb.WriteString(formatAlert(a))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func formatMetrics(m models.PortfolioMetrics) string {
	var sb strings.Builder
	sb.WriteString("📊 *PORTFOLIO*\n")
	sb.WriteString(fmt.Sprintf("Positions: %d (open %d, closed %d, assigned %d)\n\n",
		m.TotalPositions, m.OpenPositions, m.ClosedPositions, m.AssignedPositions))
	sb.WriteString(fmt.Sprintf("Realized: %s%s\n", plIcon(m.RealizedPL), money(m.RealizedPL)))
	sb.WriteString(fmt.Sprintf("  ↳ premium %s | stock %s\n", money(m.PremiumRealizedPL), money(m.StockRealizedPL)))
	sb.WriteString(fmt.Sprintf("Unrealized: %s%s\n", plIcon(m.UnrealizedPL), money(m.UnrealizedPL)))
	sb.WriteString(fmt.Sprintf("  ↳ premium %s | stock %s\n", money(m.PremiumUnrealizedPL), money(m.StockUnrealizedPL)))
	sb.WriteString(fmt.Sprintf("*Total P/L: %s%s*\n\n", plIcon(m.TotalPL), money(m.TotalPL)))
	sb.WriteString(fmt.Sprintf("Premium collected: %s (open %s, closed %s)\n",
		money(m.TotalPremiumCollected), money(m.OpenPremiumCollected), money(m.ClosedPremiumCollected)))
	sb.WriteString(fmt.Sprintf("Capital allocated: %s\n", money(m.CapitalAllocated)))
	sb.WriteString(fmt.Sprintf("Fees: %s", money(m.TotalFees)))
	return sb.String()
}

func formatCycles(cycles []models.WheelCycle) string {
	if len(cycles) == 0 {
		return "📭 No wheel cycles."
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🎡 *WHEEL CYCLES* (%d)\n\n", len(cycles)))
	for _, c := range cycles {
		icon := "🔄"
		if c.Status == models.CycleCompleted {
			icon = "✅"
		}
		sb.WriteString(fmt.Sprintf("%s *%s* %s%s\n", icon, telegram.EscapeMarkdown(c.Name), plIcon(c.TotalPL), money(c.TotalPL)))
		sb.WriteString(fmt.Sprintf("  ↳ %d positions (open %d, assigned %d) | premium %s | since %s\n",
			c.TotalPositions, c.OpenPositions, c.AssignedPositions, money(c.TotalPremiumCollected),
			c.FirstOpenDate.Format(validation.DateLayout)))
	}
	sb.WriteString(fmt.Sprintf("\nTotal: %s", money(portfolio.SumPL(cycles))))
	return sb.String()
}

func formatStrategy(cfg models.UserStrategyConfig) string {
	th := cfg.Thresholds()
	return fmt.Sprintf("⚙️ *STRATEGY*: %s\nRoll at: %s%% above strike\nClose at: %s%% of premium captured\nDismissed: %d",
		cfg.ActiveStrategy, th.RollThreshold.String(), th.CloseThreshold.String(), len(cfg.DismissedAlerts))
}
