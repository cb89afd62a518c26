package fraud

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mbd888/teller/internal/idgen"
	"github.com/mbd888/teller/internal/logging"
	"github.com/mbd888/teller/internal/metrics"
)

const (
	defaultHighValueThreshold   = 500
	defaultMediumValueThreshold = 200
	defaultFrequencyThreshold   = 3

	// Per-user history window bounds. Transactions older than the
	// retention period no longer affect any heuristic, so they are
	// pruned on each append.
	historyRetention = 24 * time.Hour
	historyCap       = 1000
)

var suspiciousLocations = []string{
	"overseas", "high-risk", "unknown", "mall", "shopping center",
	"best buy", "electronics store",
}

var highRiskMerchants = []string{
	"best buy", "electronics", "gaming", "jewelry", "luxury",
}

type userHistory struct {
	transactions []Transaction
}

// Engine evaluates transactions against the fraud heuristics and keeps a
// bounded in-memory window of recent transactions per user for the
// frequency check.
type Engine struct {
	store Store // optional audit trail, may be nil

	highValue   float64
	mediumValue float64
	frequency   int

	now func() time.Time

	mu        sync.Mutex
	histories map[string]*userHistory
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithThresholds overrides the value and frequency thresholds.
func WithThresholds(high, medium float64, frequency int) EngineOption {
	return func(e *Engine) {
		e.highValue = high
		e.mediumValue = medium
		e.frequency = frequency
	}
}

// WithStore attaches an audit store. Recording is best-effort and never
// blocks or fails an evaluation.
func WithStore(store Store) EngineOption {
	return func(e *Engine) { e.store = store }
}

// NewEngine creates a fraud engine with default thresholds.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		highValue:   defaultHighValueThreshold,
		mediumValue: defaultMediumValueThreshold,
		frequency:   defaultFrequencyThreshold,
		now:         time.Now,
		histories:   make(map[string]*userHistory),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate records the transaction in the user's history window and runs
// every heuristic against it. The transaction itself counts toward the
// frequency check.
func (e *Engine) Evaluate(ctx context.Context, tx Transaction) *Assessment {
	if tx.Timestamp.IsZero() {
		tx.Timestamp = e.now()
	}

	recent := e.appendHistory(tx)

	var alerts []Alert
	if a := e.checkHighValue(tx); a != nil {
		alerts = append(alerts, *a)
	}
	if a := e.checkFrequency(tx, recent); a != nil {
		alerts = append(alerts, *a)
	}
	if a := checkLocationRisk(tx); a != nil {
		alerts = append(alerts, *a)
	}
	if a := checkSuspiciousTime(tx); a != nil {
		alerts = append(alerts, *a)
	}
	if a := checkMerchantRisk(tx); a != nil {
		alerts = append(alerts, *a)
	}

	var aggregate float64
	for _, a := range alerts {
		aggregate += a.RiskScore
	}
	if len(alerts) > 0 {
		aggregate /= float64(len(alerts))
	}

	assessment := &Assessment{
		ID:             idgen.WithPrefix("risk_"),
		UserID:         tx.UserID,
		TransactionID:  tx.ID,
		Alerts:         alerts,
		AggregateScore: aggregate,
		EvaluatedAt:    e.now(),
	}

	for _, a := range alerts {
		metrics.FraudAlertsTotal.WithLabelValues(string(a.Kind), string(a.Severity)).Inc()
	}

	if e.store != nil {
		go func(as Assessment) {
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := e.store.Record(rctx, &as); err != nil {
				logging.L(ctx).Warn("failed to record fraud assessment",
					"assessment_id", as.ID, "error", err)
			}
		}(*assessment)
	}

	return assessment
}

// appendHistory adds tx to the user's window, prunes anything older than
// the retention period, and returns the count of transactions in the
// trailing hour. The window is anchored at evaluation time, so backdated
// timestamps do not shift it.
func (e *Engine) appendHistory(tx Transaction) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	h := e.histories[tx.UserID]
	if h == nil {
		h = &userHistory{}
		e.histories[tx.UserID] = h
	}
	h.transactions = append(h.transactions, tx)

	cutoff := e.now().Add(-historyRetention)
	kept := h.transactions[:0]
	for _, t := range h.transactions {
		if t.Timestamp.After(cutoff) {
			kept = append(kept, t)
		}
	}
	h.transactions = kept
	if len(h.transactions) > historyCap {
		h.transactions = h.transactions[len(h.transactions)-historyCap:]
	}

	oneHourAgo := e.now().Add(-time.Hour)
	count := 0
	for _, t := range h.transactions {
		if t.Timestamp.After(oneHourAgo) {
			count++
		}
	}
	return count
}

func (e *Engine) checkHighValue(tx Transaction) *Alert {
	merchant := tx.Merchant
	if merchant == "" {
		merchant = "unknown merchant"
	}
	if tx.Amount > e.highValue {
		return &Alert{
			Kind: AlertHighValue,
			Message: fmt.Sprintf("High-value transaction detected: $%s at %s. This exceeds our high-value threshold of $%s.",
				formatAmount(tx.Amount), merchant, formatAmount(e.highValue)),
			Severity:          SeverityHigh,
			RiskScore:         90,
			RecommendedAction: "Please verify if this transaction was authorized by you. If not, contact our fraud department immediately.",
		}
	}
	if tx.Amount > e.mediumValue {
		return &Alert{
			Kind: AlertHighValue,
			Message: fmt.Sprintf("Medium-value transaction detected: $%s at %s. This exceeds our medium-value threshold of $%s.",
				formatAmount(tx.Amount), merchant, formatAmount(e.mediumValue)),
			Severity:          SeverityMedium,
			RiskScore:         60,
			RecommendedAction: "Please verify if this transaction was authorized by you.",
		}
	}
	return nil
}

func (e *Engine) checkFrequency(tx Transaction, recent int) *Alert {
	if recent >= e.frequency {
		return &Alert{
			Kind:              AlertRapidActivity,
			Message:           fmt.Sprintf("Multiple transactions (%d) detected within the last hour.", recent),
			Severity:          SeverityHigh,
			RiskScore:         80,
			RecommendedAction: "Please review these transactions to ensure they are all authorized.",
		}
	}
	if float64(recent) >= float64(e.frequency)*0.5 {
		return &Alert{
			Kind:              AlertRapidActivity,
			Message:           fmt.Sprintf("Multiple transactions (%d) detected within the last hour.", recent),
			Severity:          SeverityMedium,
			RiskScore:         50,
			RecommendedAction: "Please review these transactions to ensure they are all authorized.",
		}
	}
	return nil
}

func checkLocationRisk(tx Transaction) *Alert {
	location := strings.ToLower(tx.Location)
	if location == "" {
		location = "unknown"
	}
	merchant := strings.ToLower(tx.Merchant)
	if merchant == "" {
		merchant = "unknown merchant"
	}

	for _, risk := range suspiciousLocations {
		if strings.Contains(location, risk) || strings.Contains(merchant, risk) {
			display := tx.Merchant
			if display == "" {
				display = "unknown merchant"
			}
			return &Alert{
				Kind:              AlertLocationRisk,
				Message:           fmt.Sprintf("Transaction at %s (%s) may be in a high-risk area.", display, location),
				Severity:          SeverityHigh,
				RiskScore:         85,
				RecommendedAction: "Please verify if this transaction was authorized by you. If not, contact our fraud department immediately.",
			}
		}
	}
	return nil
}

func checkSuspiciousTime(tx Transaction) *Alert {
	hour := tx.Timestamp.Hour()
	if hour >= 22 || hour < 6 {
		return &Alert{
			Kind:              AlertSuspiciousTime,
			Message:           fmt.Sprintf("Transaction occurred during unusual hours (%d:00). This is outside normal business hours.", hour),
			Severity:          SeverityMedium,
			RiskScore:         60,
			RecommendedAction: "Please verify if this transaction was authorized by you.",
		}
	}
	return nil
}

func checkMerchantRisk(tx Transaction) *Alert {
	merchant := strings.ToLower(tx.Merchant)
	if merchant == "" {
		merchant = "unknown merchant"
	}
	description := strings.ToLower(tx.Description)

	for _, risk := range highRiskMerchants {
		if strings.Contains(merchant, risk) || strings.Contains(description, risk) {
			display := tx.Merchant
			if display == "" {
				display = "unknown merchant"
			}
			return &Alert{
				Kind:              AlertMerchantRisk,
				Message:           fmt.Sprintf("Transaction at %s may require additional verification due to the merchant type.", display),
				Severity:          SeverityHigh,
				RiskScore:         80,
				RecommendedAction: "Please verify if this transaction was authorized by you. If not, contact our fraud department immediately.",
			}
		}
	}
	return nil
}

// formatAmount renders an amount without trailing zeros, so $600 shows
// as "600" and $49.90 as "49.9".
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
