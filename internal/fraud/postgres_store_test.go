//go:build integration

package fraud

import (
	"context"
	"testing"
	"time"

	"github.com/mbd888/teller/internal/testutil"
)

func setupTestDB(t *testing.T) (*PostgresStore, func()) {
	t.Helper()

	db, cleanup := testutil.PGTest(t)
	return NewPostgresStore(db), cleanup
}

func TestPostgresFraud_RecordAndList(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	first := &Assessment{
		ID:            "risk_test001",
		UserID:        "user1",
		TransactionID: "tx_test001",
		Alerts: []Alert{{
			Kind:              AlertHighValue,
			Message:           "High-value transaction detected: $600 at Best Buy. This exceeds our high-value threshold of $500.",
			Severity:          SeverityHigh,
			RiskScore:         90,
			RecommendedAction: "Please verify if this transaction was authorized by you. If not, contact our fraud department immediately.",
		}},
		AggregateScore: 90,
		EvaluatedAt:    now.Add(-time.Minute),
	}
	second := &Assessment{
		ID:             "risk_test002",
		UserID:         "user1",
		TransactionID:  "tx_test002",
		AggregateScore: 0,
		EvaluatedAt:    now,
	}

	if err := store.Record(ctx, first); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := store.Record(ctx, second); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, err := store.ListByUser(ctx, "user1", 10)
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d assessments, want 2", len(got))
	}
	if got[0].ID != "risk_test002" {
		t.Errorf("expected most recent first, got %q", got[0].ID)
	}
	if len(got[1].Alerts) != 1 || got[1].Alerts[0].Kind != AlertHighValue {
		t.Errorf("alerts did not round-trip: %+v", got[1].Alerts)
	}

	other, err := store.ListByUser(ctx, "user2", 10)
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("expected no assessments for user2, got %d", len(other))
	}
}
