package fraud

import (
	"context"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestEvaluate_CleanTransaction(t *testing.T) {
	e := NewEngine()
	e.now = fixedClock(time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC))

	a := e.Evaluate(context.Background(), Transaction{
		ID:        "tx_1",
		UserID:    "user1",
		Amount:    50,
		Merchant:  "Grocery Store",
		Location:  "Local Store",
		Timestamp: time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC),
	})

	if a.Suspicious() {
		t.Fatalf("expected no alerts, got %d", len(a.Alerts))
	}
	if a.AggregateScore != 0 {
		t.Errorf("aggregate score = %v, want 0", a.AggregateScore)
	}
}

func TestEvaluate_HighValueLateNightRiskyMerchant(t *testing.T) {
	now := time.Date(2025, 3, 10, 23, 15, 0, 0, time.UTC)
	e := NewEngine()
	e.now = fixedClock(now)

	a := e.Evaluate(context.Background(), Transaction{
		ID:        "tx_1",
		UserID:    "user1",
		Amount:    600,
		Merchant:  "Best Buy",
		Timestamp: now,
	})

	want := map[AlertKind]Severity{
		AlertHighValue:      SeverityHigh,
		AlertLocationRisk:   SeverityHigh,
		AlertSuspiciousTime: SeverityMedium,
		AlertMerchantRisk:   SeverityHigh,
	}
	if len(a.Alerts) != len(want) {
		t.Fatalf("got %d alerts, want %d: %+v", len(a.Alerts), len(want), a.Alerts)
	}
	for _, alert := range a.Alerts {
		sev, ok := want[alert.Kind]
		if !ok {
			t.Errorf("unexpected alert kind %q", alert.Kind)
			continue
		}
		if alert.Severity != sev {
			t.Errorf("alert %q severity = %q, want %q", alert.Kind, alert.Severity, sev)
		}
	}

	// (90 + 85 + 60 + 80) / 4
	if a.AggregateScore != 78.75 {
		t.Errorf("aggregate score = %v, want 78.75", a.AggregateScore)
	}
	if len(a.Recommendations()) != 4 {
		t.Errorf("got %d recommendations, want 4", len(a.Recommendations()))
	}
}

func TestEvaluate_MediumValue(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	e := NewEngine()
	e.now = fixedClock(now)

	a := e.Evaluate(context.Background(), Transaction{
		ID: "tx_1", UserID: "user1", Amount: 250, Merchant: "Grocery Store",
		Location: "Local Store", Timestamp: now,
	})

	if len(a.Alerts) != 1 {
		t.Fatalf("got %d alerts, want 1: %+v", len(a.Alerts), a.Alerts)
	}
	alert := a.Alerts[0]
	if alert.Kind != AlertHighValue || alert.Severity != SeverityMedium || alert.RiskScore != 60 {
		t.Errorf("unexpected alert: %+v", alert)
	}
	if alert.Message != "Medium-value transaction detected: $250 at Grocery Store. This exceeds our medium-value threshold of $200." {
		t.Errorf("unexpected message: %q", alert.Message)
	}
}

func TestEvaluate_RapidTransactions(t *testing.T) {
	base := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	e := NewEngine()
	e.now = fixedClock(base)

	mk := func(id string, at time.Time) Transaction {
		return Transaction{ID: id, UserID: "user1", Amount: 10, Merchant: "Grocery Store",
			Location: "Local Store", Timestamp: at}
	}

	// First transaction counts only itself.
	a := e.Evaluate(context.Background(), mk("tx_1", base))
	if a.Suspicious() {
		t.Fatalf("first transaction: expected no alerts, got %+v", a.Alerts)
	}

	// Second within the hour trips the medium frequency alert.
	a = e.Evaluate(context.Background(), mk("tx_2", base.Add(5*time.Minute)))
	if len(a.Alerts) != 1 || a.Alerts[0].Kind != AlertRapidActivity || a.Alerts[0].Severity != SeverityMedium {
		t.Fatalf("second transaction: unexpected alerts %+v", a.Alerts)
	}
	if a.Alerts[0].RiskScore != 50 {
		t.Errorf("risk score = %v, want 50", a.Alerts[0].RiskScore)
	}

	// Third within the hour escalates to high.
	a = e.Evaluate(context.Background(), mk("tx_3", base.Add(10*time.Minute)))
	if len(a.Alerts) != 1 || a.Alerts[0].Severity != SeverityHigh || a.Alerts[0].RiskScore != 80 {
		t.Fatalf("third transaction: unexpected alerts %+v", a.Alerts)
	}
	if a.Alerts[0].Message != "Multiple transactions (3) detected within the last hour." {
		t.Errorf("unexpected message: %q", a.Alerts[0].Message)
	}
}

func TestEvaluate_FrequencyIgnoresOldTransactions(t *testing.T) {
	base := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	e := NewEngine()
	e.now = fixedClock(base.Add(3 * time.Hour))

	for _, at := range []time.Time{base, base.Add(time.Minute), base.Add(2 * time.Minute)} {
		e.Evaluate(context.Background(), Transaction{
			ID: "old", UserID: "user1", Amount: 10, Merchant: "Grocery Store", Timestamp: at,
		})
	}

	// Two hours later only the new transaction falls in the window.
	a := e.Evaluate(context.Background(), Transaction{
		ID: "tx_new", UserID: "user1", Amount: 10, Merchant: "Grocery Store",
		Timestamp: base.Add(3 * time.Hour),
	})
	for _, alert := range a.Alerts {
		if alert.Kind == AlertRapidActivity {
			t.Errorf("unexpected frequency alert: %+v", alert)
		}
	}
}

func TestEvaluate_FrequencyWindowAnchoredAtEvaluationTime(t *testing.T) {
	base := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	e := NewEngine()
	e.now = fixedClock(base)

	// Backdated timestamps cluster within an hour of each other, but all
	// fall outside the trailing hour as of now, so no frequency alert.
	for i, at := range []time.Time{
		base.Add(-3 * time.Hour),
		base.Add(-3*time.Hour + time.Minute),
		base.Add(-3*time.Hour + 2*time.Minute),
	} {
		a := e.Evaluate(context.Background(), Transaction{
			ID: "tx_" + string(rune('a'+i)), UserID: "user1", Amount: 10,
			Merchant: "Grocery Store", Location: "Local Store", Timestamp: at,
		})
		for _, alert := range a.Alerts {
			if alert.Kind == AlertRapidActivity {
				t.Errorf("backdated transaction %d: unexpected frequency alert %+v", i, alert)
			}
		}
	}
}

func TestEvaluate_HistoryRetentionPrunes(t *testing.T) {
	base := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	e := NewEngine()
	e.now = fixedClock(base)

	e.Evaluate(context.Background(), Transaction{
		ID: "tx_old", UserID: "user1", Amount: 10, Merchant: "Grocery Store", Timestamp: base,
	})

	// Advance past the retention window; the old entry must be gone.
	e.now = fixedClock(base.Add(historyRetention + time.Hour))
	e.Evaluate(context.Background(), Transaction{
		ID: "tx_new", UserID: "user1", Amount: 10, Merchant: "Grocery Store",
		Timestamp: base.Add(historyRetention + time.Hour),
	})

	e.mu.Lock()
	n := len(e.histories["user1"].transactions)
	e.mu.Unlock()
	if n != 1 {
		t.Errorf("history length = %d, want 1", n)
	}
}

func TestEvaluate_SuspiciousLocation(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	e := NewEngine()
	e.now = fixedClock(now)

	a := e.Evaluate(context.Background(), Transaction{
		ID: "tx_1", UserID: "user1", Amount: 50, Merchant: "Corner Shop",
		Location: "Overseas ATM", Timestamp: now,
	})

	if len(a.Alerts) != 1 || a.Alerts[0].Kind != AlertLocationRisk {
		t.Fatalf("unexpected alerts: %+v", a.Alerts)
	}
	if a.Alerts[0].RiskScore != 85 {
		t.Errorf("risk score = %v, want 85", a.Alerts[0].RiskScore)
	}
}

func TestEvaluate_MerchantRiskFromDescription(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	e := NewEngine()
	e.now = fixedClock(now)

	a := e.Evaluate(context.Background(), Transaction{
		ID: "tx_1", UserID: "user1", Amount: 50, Merchant: "Corner Shop",
		Description: "gaming credits", Location: "Local Store", Timestamp: now,
	})

	if len(a.Alerts) != 1 || a.Alerts[0].Kind != AlertMerchantRisk {
		t.Fatalf("unexpected alerts: %+v", a.Alerts)
	}
}

func TestEvaluate_MissingLocationTreatedAsUnknown(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	e := NewEngine()
	e.now = fixedClock(now)

	// No location reads as "unknown", which the location check flags.
	a := e.Evaluate(context.Background(), Transaction{
		ID: "tx_1", UserID: "user1", Amount: 50, Merchant: "Grocery Store", Timestamp: now,
	})

	if len(a.Alerts) != 1 || a.Alerts[0].Kind != AlertLocationRisk {
		t.Fatalf("unexpected alerts: %+v", a.Alerts)
	}
	if a.Alerts[0].RiskScore != 85 {
		t.Errorf("risk score = %v, want 85", a.Alerts[0].RiskScore)
	}
}

func TestEvaluate_CustomThresholds(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	e := NewEngine(WithThresholds(1000, 800, 10))
	e.now = fixedClock(now)

	// An empty location reads as "unknown" and trips the location check,
	// so supply a benign one to isolate the thresholds.
	a := e.Evaluate(context.Background(), Transaction{
		ID: "tx_1", UserID: "user1", Amount: 600, Merchant: "Grocery Store",
		Location: "Local Store", Timestamp: now,
	})
	if a.Suspicious() {
		t.Errorf("expected no alerts with raised thresholds, got %+v", a.Alerts)
	}
}

func TestEvaluate_RecordsToStore(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	e := NewEngine(WithStore(store))
	e.now = fixedClock(now)

	a := e.Evaluate(context.Background(), Transaction{
		ID: "tx_1", UserID: "user1", Amount: 600, Merchant: "Grocery Store", Timestamp: now,
	})

	// Recording is asynchronous.
	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := store.ListByUser(context.Background(), "user1", 10)
		if err != nil {
			t.Fatalf("ListByUser: %v", err)
		}
		if len(got) == 1 {
			if got[0].ID != a.ID {
				t.Errorf("recorded assessment ID = %q, want %q", got[0].ID, a.ID)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("assessment was never recorded")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestMemoryStore_ListMostRecentFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := store.Record(ctx, &Assessment{ID: id, UserID: "user1"}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := store.ListByUser(ctx, "user1", 2)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(got) != 2 || got[0].ID != "c" || got[1].ID != "b" {
		t.Errorf("unexpected listing: %+v", got)
	}
}
