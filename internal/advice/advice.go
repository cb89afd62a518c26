// Package advice routes financial-advice queries to an external advisory
// service when one is configured, with a deterministic local fallback.
//
// The external call is a single composed step from the caller's point of
// view: any failure (timeout, transport error, non-success payload,
// malformed response) resolves to canned local guidance, never to an
// error. The fallback cannot fail.
package advice

import (
	"context"
	"time"

	"github.com/mbd888/teller/internal/transactions"
)

// Request carries a query plus optional transaction context forwarded to
// the external advisory service.
type Request struct {
	Query       string                     `json:"query"`
	UserID      string                     `json:"userId,omitempty"`
	History     []transactions.Transaction `json:"transactionHistory,omitempty"`
	Amount      float64                    `json:"amount,omitempty"`
	Type        string                     `json:"type,omitempty"`
	Description string                     `json:"description,omitempty"`
}

// Result is the advisory answer. Source reports whether it came from the
// external service or the local fallback.
type Result struct {
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
	Source  string         `json:"source"`
}

const (
	SourceExternal = "external"
	SourceLocal    = "local"
)

// Service is anything that can answer an advisory request. The external
// HTTP client implements it; tests substitute fakes.
type Service interface {
	Advise(ctx context.Context, req Request) (*Result, error)
}

const defaultTimeout = 10 * time.Second
