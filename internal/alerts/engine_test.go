package alerts

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"wheel_tracker/internal/models"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func price(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d(s), Valid: true}
}

var standard = models.StrategyThresholds{RollThreshold: d("3"), CloseThreshold: d("75")}

func openPut(id string) models.Position {
	return models.Position{
		ID:         id,
		Ticker:     "XYZ",
		OptionType: models.OptionPut,
		Contracts:  1,
		Strike:     d("100"),
		Premium:    d("2.00"),
		OpenFees:   decimal.NullDecimal{Decimal: d("1"), Valid: true},
		Status:     models.StatusOpen,
	}
}

func newTestEngine() *Engine {
	return &Engine{Now: func() time.Time { return time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC) }}
}

func TestEvaluatePosition_RollHigh(t *testing.T) {
	e := newTestEngine()

	got := e.EvaluatePosition(Input{Position: openPut("p1"), StockPrice: price("104")}, standard)

	if len(got) != 1 {
		t.Fatalf("Expected 1 alert, got %d", len(got))
	}
	a := got[0]
	if a.Type != models.AlertRoll || a.Urgency != models.UrgencyHigh {
		t.Errorf("Expected high roll alert, got %s/%s", a.Type, a.Urgency)
	}
	if !a.TargetPrice.Decimal.Equal(d("103")) {
		t.Errorf("Expected target 103, got %s", a.TargetPrice.Decimal)
	}
	if !a.DistancePct.Equal(d("4")) {
		t.Errorf("Expected distance 4%%, got %s", a.DistancePct)
	}
}

func TestEvaluatePosition_RollUrgencyBands(t *testing.T) {
	e := newTestEngine()
	cases := []struct {
		price string
		want  models.Urgency
	}{
		{"103", models.UrgencyLow},
		{"103.24", models.UrgencyLow},
		{"103.25", models.UrgencyMedium},
		{"103.99", models.UrgencyMedium},
		{"104", models.UrgencyHigh},
	}
	for _, tc := range cases {
		got := e.EvaluatePosition(Input{Position: openPut("p1"), StockPrice: price(tc.price)}, standard)
		if len(got) != 1 || got[0].Type != models.AlertRoll {
			t.Fatalf("price %s: expected one roll alert, got %+v", tc.price, got)
		}
		if got[0].Urgency != tc.want {
			t.Errorf("price %s: expected %s, got %s", tc.price, tc.want, got[0].Urgency)
		}
	}
}

func TestEvaluatePosition_Warning(t *testing.T) {
	e := newTestEngine()

	got := e.EvaluatePosition(Input{Position: openPut("p1"), StockPrice: price("102.6")}, standard)

	if len(got) != 1 {
		t.Fatalf("Expected 1 alert, got %d", len(got))
	}
	if got[0].Type != models.AlertWarning || got[0].Urgency != models.UrgencyLow {
		t.Errorf("Expected low warning, got %s/%s", got[0].Type, got[0].Urgency)
	}
	if !got[0].DistancePct.Equal(d("2.6")) {
		t.Errorf("Expected distance 2.6%%, got %s", got[0].DistancePct)
	}

	// Band floor is inclusive, below it nothing fires.
	if got := e.EvaluatePosition(Input{Position: openPut("p1"), StockPrice: price("102.5")}, standard); len(got) != 1 {
		t.Errorf("Expected warning at 102.5, got %d alerts", len(got))
	}
	if got := e.EvaluatePosition(Input{Position: openPut("p1"), StockPrice: price("102.49")}, standard); len(got) != 0 {
		t.Errorf("Expected no alert at 102.49, got %+v", got)
	}
}

func TestEvaluatePosition_NonOpenNeverAlerts(t *testing.T) {
	e := newTestEngine()

	p := openPut("p1")
	closedAt := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	p.CloseDate = &closedAt

	got := e.EvaluatePosition(Input{Position: p, StockPrice: price("150"), OptionPrice: price("0.01")}, standard)
	if len(got) != 0 {
		t.Errorf("Closed position produced alerts: %+v", got)
	}

	p = openPut("p2")
	p.Assigned = true
	p.StockOwned = true
	if got := e.EvaluatePosition(Input{Position: p, StockPrice: price("150")}, standard); len(got) != 0 {
		t.Errorf("Assigned position produced alerts: %+v", got)
	}
}

func TestEvaluatePosition_NoPriceNoAlert(t *testing.T) {
	e := newTestEngine()
	if got := e.EvaluatePosition(Input{Position: openPut("p1")}, standard); len(got) != 0 {
		t.Errorf("Expected no alerts without prices, got %+v", got)
	}
}

func TestEvaluatePosition_Close(t *testing.T) {
	e := newTestEngine()

	// target = 2.00 * 25 / 100 = 0.50
	got := e.EvaluatePosition(Input{Position: openPut("p1"), OptionPrice: price("0.50")}, standard)
	if len(got) != 1 || got[0].Type != models.AlertClose {
		t.Fatalf("Expected close alert, got %+v", got)
	}
	if got[0].Urgency != models.UrgencyMedium {
		t.Errorf("Expected medium at 75%% profit, got %s", got[0].Urgency)
	}

	// 80% profit -> high
	got = e.EvaluatePosition(Input{Position: openPut("p1"), OptionPrice: price("0.40")}, standard)
	if len(got) != 1 || got[0].Urgency != models.UrgencyHigh {
		t.Errorf("Expected high close alert at 80%% profit, got %+v", got)
	}

	if got := e.EvaluatePosition(Input{Position: openPut("p1"), OptionPrice: price("0.51")}, standard); len(got) != 0 {
		t.Errorf("Expected no close alert above target, got %+v", got)
	}
}

func TestEvaluatePosition_RollAndCloseTogether(t *testing.T) {
	e := newTestEngine()

	got := e.EvaluatePosition(Input{Position: openPut("p1"), StockPrice: price("104"), OptionPrice: price("0.10")}, standard)

	if len(got) != 2 {
		t.Fatalf("Expected roll and close alerts, got %d", len(got))
	}
	roll := 0
	for _, a := range got {
		if a.Type == models.AlertRoll || a.Type == models.AlertWarning {
			roll++
		}
	}
	if roll != 1 {
		t.Errorf("Expected exactly one roll-family alert, got %d", roll)
	}
}

func TestEvaluate_RankingAndDismissal(t *testing.T) {
	e := newTestEngine()

	a := openPut("a")
	a.Ticker = "AAA"
	b := openPut("b")
	b.Ticker = "BBB"
	c := openPut("c")
	c.Ticker = "CCC"
	dd := openPut("d")
	dd.Ticker = "DDD"

	prices := map[string]decimal.Decimal{
		"AAA": d("102.7"), // warning, low, 2.7
		"BBB": d("105"),   // roll, high, 5
		"CCC": d("103.5"), // roll, medium, 3.5
		"DDD": d("106"),   // roll, high, 6
	}

	got := e.Evaluate([]models.Position{a, b, c, dd}, prices, nil, standard)

	wantOrder := []string{"d", "b", "c", "a"}
	if len(got) != len(wantOrder) {
		t.Fatalf("Expected %d alerts, got %d", len(wantOrder), len(got))
	}
	for i, id := range wantOrder {
		if got[i].PositionID != id {
			t.Fatalf("Position %d: expected %s, got %s", i, id, got[i].PositionID)
		}
	}
	for i := 1; i < len(got); i++ {
		prev, cur := got[i-1], got[i]
		if prev.Urgency.Rank() > cur.Urgency.Rank() {
			t.Errorf("Urgency order violated at %d", i)
		}
		if prev.Urgency == cur.Urgency && prev.DistancePct.Abs().LessThan(cur.DistancePct.Abs()) {
			t.Errorf("Distance order violated at %d", i)
		}
	}

	active := Active(got, map[string]bool{"b": true})
	if len(active) != 3 {
		t.Errorf("Expected 3 active alerts, got %d", len(active))
	}
	for _, al := range active {
		if al.PositionID == "b" {
			t.Errorf("Dismissed alert still active")
		}
	}

	// The per-position view ignores dismissals.
	if detail := ForPosition(got, "b"); len(detail) != 1 {
		t.Errorf("Expected detail view to keep dismissed alert, got %d", len(detail))
	}
}
