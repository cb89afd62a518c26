// Package fraud implements heuristic risk evaluation of transactions.
//
// Each transaction is checked against 5 independent heuristics: high value,
// rapid transactions, location risk, suspicious time, and merchant risk.
// Every heuristic raises at most one alert with a score in [0, 100]; the
// aggregate score is the arithmetic mean of the alerts that fired (0 when
// none did). Evaluation is additive only; it never mutates balances or
// pending state.
package fraud

import (
	"context"
	"time"
)

// AlertKind identifies the heuristic that raised an alert.
type AlertKind string

const (
	AlertHighValue      AlertKind = "high_value"
	AlertRapidActivity  AlertKind = "rapid_transactions"
	AlertLocationRisk   AlertKind = "location_risk"
	AlertSuspiciousTime AlertKind = "suspicious_time"
	AlertMerchantRisk   AlertKind = "merchant_risk"
)

// Severity grades an alert.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Transaction carries the data needed to evaluate one transaction.
// Populated by the caller, no extra lookups during evaluation.
type Transaction struct {
	ID          string
	UserID      string
	Amount      float64
	Direction   string // "credit" or "debit"
	Description string
	Merchant    string
	Location    string
	Category    string
	Timestamp   time.Time
}

// Alert is one heuristic's finding that a transaction is risky.
type Alert struct {
	Kind              AlertKind `json:"kind"`
	Message           string    `json:"message"`
	Severity          Severity  `json:"severity"`
	RiskScore         float64   `json:"riskScore"`
	RecommendedAction string    `json:"recommendedAction"`
}

// Assessment is the result of evaluating a single transaction.
type Assessment struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	TransactionID  string    `json:"transactionId"`
	Alerts         []Alert   `json:"alerts"`
	AggregateScore float64   `json:"aggregateScore"`
	EvaluatedAt    time.Time `json:"evaluatedAt"`
}

// Suspicious reports whether any heuristic fired.
func (a *Assessment) Suspicious() bool {
	return len(a.Alerts) > 0
}

// Recommendations returns the recommended action of each alert, in order.
func (a *Assessment) Recommendations() []string {
	if len(a.Alerts) == 0 {
		return nil
	}
	out := make([]string, len(a.Alerts))
	for i, alert := range a.Alerts {
		out[i] = alert.RecommendedAction
	}
	return out
}

// Store persists assessments for an audit trail.
type Store interface {
	Record(ctx context.Context, assessment *Assessment) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*Assessment, error)
}
