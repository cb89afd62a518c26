package transactions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mbd888/teller/internal/idgen"
	"github.com/mbd888/teller/internal/logging"
	"github.com/mbd888/teller/internal/metrics"
	"github.com/mbd888/teller/internal/syncutil"
)

const defaultPendingTTL = 15 * time.Minute

type account struct {
	balance float64
	history []Transaction
	pending map[string]*Pending
	seeded  bool
}

// Workflow manages per-user balances, histories and pending proposals.
// Operations on the same user are serialized through a striped lock so a
// propose/confirm race cannot double-spend; different users proceed in
// parallel.
type Workflow struct {
	initialBalance float64
	pendingTTL     time.Duration
	store          Store // optional audit trail, may be nil
	now            func() time.Time

	locks *syncutil.ShardedMutex

	mu       sync.Mutex
	accounts map[string]*account
}

// WorkflowOption configures a Workflow.
type WorkflowOption func(*Workflow)

// WithPendingTTL sets how long a proposal stays confirmable. Zero means
// pending entries never expire.
func WithPendingTTL(ttl time.Duration) WorkflowOption {
	return func(w *Workflow) { w.pendingTTL = ttl }
}

// WithAuditStore attaches a store that receives every committed
// transaction. Writes are asynchronous and never fail the commit.
func WithAuditStore(store Store) WorkflowOption {
	return func(w *Workflow) { w.store = store }
}

// NewWorkflow creates a workflow where every user starts at initialBalance.
func NewWorkflow(initialBalance float64, opts ...WorkflowOption) *Workflow {
	w := &Workflow{
		initialBalance: initialBalance,
		pendingTTL:     defaultPendingTTL,
		now:            time.Now,
		locks:          new(syncutil.ShardedMutex),
		accounts:       make(map[string]*account),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Workflow) account(userID string) *account {
	w.mu.Lock()
	defer w.mu.Unlock()
	acct, ok := w.accounts[userID]
	if !ok {
		acct = &account{
			balance: w.initialBalance,
			pending: make(map[string]*Pending),
		}
		w.accounts[userID] = acct
	}
	return acct
}

// CheckBalance returns the user's current balance.
func (w *Workflow) CheckBalance(_ context.Context, userID string) float64 {
	unlock := w.locks.Lock(userID)
	defer unlock()
	return w.account(userID).balance
}

// ProposeTransfer validates and parks a transfer proposal. Balance is
// unchanged until the proposal is confirmed.
func (w *Workflow) ProposeTransfer(_ context.Context, userID, from, to string, amount float64, description string) (*Pending, error) {
	unlock := w.locks.Lock(userID)
	defer unlock()

	acct := w.account(userID)
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if amount > acct.balance {
		return nil, ErrInsufficientFunds
	}

	now := w.now()
	p := &Pending{
		ID:          idgen.WithPrefix("tx_"),
		UserID:      userID,
		Kind:        KindTransfer,
		Amount:      amount,
		FromAccount: from,
		ToAccount:   to,
		Description: description,
		CreatedAt:   now,
	}
	if w.pendingTTL > 0 {
		p.ExpiresAt = now.Add(w.pendingTTL)
	}
	acct.pending[p.ID] = p

	metrics.TransactionsTotal.WithLabelValues("proposed").Inc()
	metrics.PendingTransactions.Inc()
	return p, nil
}

// ProposeBillPayment validates and parks a bill payment proposal.
func (w *Workflow) ProposeBillPayment(_ context.Context, userID, biller, accountNo string, amount float64, description string) (*Pending, error) {
	unlock := w.locks.Lock(userID)
	defer unlock()

	acct := w.account(userID)
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if amount > acct.balance {
		return nil, ErrInsufficientFunds
	}

	now := w.now()
	p := &Pending{
		ID:          idgen.WithPrefix("tx_"),
		UserID:      userID,
		Kind:        KindBillPayment,
		Amount:      amount,
		Biller:      biller,
		AccountNo:   accountNo,
		Description: description,
		CreatedAt:   now,
	}
	if w.pendingTTL > 0 {
		p.ExpiresAt = now.Add(w.pendingTTL)
	}
	acct.pending[p.ID] = p

	metrics.TransactionsTotal.WithLabelValues("proposed").Inc()
	metrics.PendingTransactions.Inc()
	return p, nil
}

// Confirm commits a pending proposal: debits the balance, appends the
// record to history and removes the pending entry. The balance is
// re-checked because it may have dropped since the proposal.
func (w *Workflow) Confirm(ctx context.Context, userID, pendingID string) (*Receipt, error) {
	unlock := w.locks.Lock(userID)
	defer unlock()

	acct := w.account(userID)
	p, ok := acct.pending[pendingID]
	if !ok {
		return nil, ErrPendingNotFound
	}
	now := w.now()
	if p.expired(now) {
		delete(acct.pending, pendingID)
		metrics.TransactionsTotal.WithLabelValues("expired").Inc()
		metrics.PendingTransactions.Dec()
		return nil, ErrPendingNotFound
	}
	if p.Amount > acct.balance {
		delete(acct.pending, pendingID)
		metrics.TransactionsTotal.WithLabelValues("rejected").Inc()
		metrics.PendingTransactions.Dec()
		return nil, ErrInsufficientFunds
	}

	tx := Transaction{
		ID:          p.ID,
		UserID:      userID,
		Amount:      p.Amount,
		Direction:   Debit,
		Description: pendingDescription(p),
		Merchant:    pendingMerchant(p),
		Location:    pendingLocation(p),
		Category:    pendingCategory(p),
		Timestamp:   now,
	}

	acct.balance -= p.Amount
	acct.history = append(acct.history, tx)
	delete(acct.pending, pendingID)

	metrics.TransactionsTotal.WithLabelValues("confirmed").Inc()
	metrics.PendingTransactions.Dec()
	w.audit(ctx, tx)

	return &Receipt{Transaction: tx, NewBalance: acct.balance}, nil
}

// Cancel discards a pending proposal.
func (w *Workflow) Cancel(_ context.Context, userID, pendingID string) error {
	unlock := w.locks.Lock(userID)
	defer unlock()

	acct := w.account(userID)
	p, ok := acct.pending[pendingID]
	if !ok {
		return ErrPendingNotFound
	}
	delete(acct.pending, pendingID)
	metrics.PendingTransactions.Dec()
	if p.expired(w.now()) {
		metrics.TransactionsTotal.WithLabelValues("expired").Inc()
		return ErrPendingNotFound
	}
	metrics.TransactionsTotal.WithLabelValues("cancelled").Inc()
	return nil
}

// RecordDirect applies an immediate credit or debit without the two-phase
// flow, used for non-transfer activity.
func (w *Workflow) RecordDirect(ctx context.Context, userID string, amount float64, direction Direction, description, category, merchant, location string) (*Transaction, error) {
	unlock := w.locks.Lock(userID)
	defer unlock()

	acct := w.account(userID)
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if direction == Debit && amount > acct.balance {
		return nil, ErrInsufficientFunds
	}

	if merchant == "" {
		merchant = description
	}
	if location == "" {
		location = "Unknown"
	}
	if category == "" {
		category = "Uncategorized"
	}

	tx := Transaction{
		ID:          idgen.WithPrefix("tx_"),
		UserID:      userID,
		Amount:      amount,
		Direction:   direction,
		Description: description,
		Merchant:    merchant,
		Location:    location,
		Category:    category,
		Timestamp:   w.now(),
	}

	if direction == Credit {
		acct.balance += amount
	} else {
		acct.balance -= amount
	}
	acct.history = append(acct.history, tx)

	metrics.TransactionsTotal.WithLabelValues("confirmed").Inc()
	w.audit(ctx, tx)

	return &tx, nil
}

// History returns the user's transactions, most recent first. A user with
// no activity gets a small seeded sample so the display flow has content.
func (w *Workflow) History(_ context.Context, userID string, limit int) []Transaction {
	unlock := w.locks.Lock(userID)
	defer unlock()

	acct := w.account(userID)
	if len(acct.history) == 0 && !acct.seeded {
		acct.history = sampleHistory(userID, w.now())
		acct.seeded = true
	}

	out := make([]Transaction, len(acct.history))
	copy(out, acct.history)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (w *Workflow) audit(ctx context.Context, tx Transaction) {
	if w.store == nil {
		return
	}
	go func() {
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := w.store.Record(rctx, &tx); err != nil {
			logging.L(ctx).Warn("failed to record transaction",
				"transaction_id", tx.ID, "error", err)
		}
	}()
}

func sampleHistory(userID string, now time.Time) []Transaction {
	return []Transaction{
		{
			ID:          idgen.WithPrefix("tx_"),
			UserID:      userID,
			Amount:      100.00,
			Direction:   Debit,
			Description: "Grocery Store",
			Merchant:    "Grocery Store",
			Location:    "Local Store",
			Category:    "Shopping",
			Timestamp:   now.Add(-24 * time.Hour),
		},
		{
			ID:          idgen.WithPrefix("tx_"),
			UserID:      userID,
			Amount:      500.00,
			Direction:   Credit,
			Description: "Salary Deposit",
			Merchant:    "Employer",
			Location:    "Direct Deposit",
			Category:    "Income",
			Timestamp:   now.Add(-48 * time.Hour),
		},
		{
			ID:          idgen.WithPrefix("tx_"),
			UserID:      userID,
			Amount:      50.00,
			Direction:   Debit,
			Description: "Restaurant",
			Merchant:    "Local Restaurant",
			Location:    "Downtown",
			Category:    "Dining",
			Timestamp:   now.Add(-72 * time.Hour),
		},
	}
}

func pendingDescription(p *Pending) string {
	switch p.Kind {
	case KindBillPayment:
		if p.Description != "" {
			return "Bill Payment to " + p.Biller + " - " + p.Description
		}
		return "Bill Payment to " + p.Biller
	default:
		if p.Description != "" {
			return "Transfer to " + p.ToAccount + " - " + p.Description
		}
		return "Transfer to " + p.ToAccount
	}
}

func pendingMerchant(p *Pending) string {
	if p.Kind == KindBillPayment {
		return p.Biller
	}
	return p.ToAccount
}

func pendingLocation(p *Pending) string {
	if p.Kind == KindBillPayment {
		return "Online Payment"
	}
	return "Online Transfer"
}

func pendingCategory(p *Pending) string {
	if p.Kind == KindBillPayment {
		return "Bills"
	}
	return "Transfer"
}
