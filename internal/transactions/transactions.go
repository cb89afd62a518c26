// Package transactions implements the mock account ledger and the
// two-phase transfer workflow.
//
// Money movement never commits on a single utterance. Transfers and bill
// payments are first proposed, which validates the amount against the
// current balance and parks a pending entry under a generated id; the
// caller must then confirm or cancel that id. Balances only change on
// confirm or on a direct (non-two-phase) record.
package transactions

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidAmount     = errors.New("transaction amount must be greater than 0")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrPendingNotFound   = errors.New("invalid or expired transaction id")
)

// Direction of a committed transaction.
type Direction string

const (
	Credit Direction = "credit"
	Debit  Direction = "debit"
)

// PendingKind distinguishes the two proposal flows.
type PendingKind string

const (
	KindTransfer    PendingKind = "transfer"
	KindBillPayment PendingKind = "bill_payment"
)

// Transaction is an immutable committed ledger entry.
type Transaction struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Amount      float64   `json:"amount"`
	Direction   Direction `json:"direction"`
	Description string    `json:"description"`
	Merchant    string    `json:"merchant"`
	Location    string    `json:"location"`
	Category    string    `json:"category"`
	Timestamp   time.Time `json:"timestamp"`
}

// Pending is a proposed transaction awaiting confirmation. It holds
// everything needed to render the confirmation prompt and to commit the
// debit later.
type Pending struct {
	ID          string      `json:"id"`
	UserID      string      `json:"userId"`
	Kind        PendingKind `json:"kind"`
	Amount      float64     `json:"amount"`
	FromAccount string      `json:"fromAccount,omitempty"`
	ToAccount   string      `json:"toAccount,omitempty"`
	Biller      string      `json:"biller,omitempty"`
	AccountNo   string      `json:"accountNumber,omitempty"`
	Description string      `json:"description,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	ExpiresAt   time.Time   `json:"expiresAt"`
}

func (p *Pending) expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt)
}

// Receipt is returned by Confirm: the committed record plus the balance
// after the debit.
type Receipt struct {
	Transaction Transaction `json:"transaction"`
	NewBalance  float64     `json:"newBalance"`
}

// Store persists committed transactions for an audit trail. The in-memory
// ledger remains authoritative; recording is best-effort.
type Store interface {
	Record(ctx context.Context, tx *Transaction) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*Transaction, error)
}
