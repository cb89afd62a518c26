package verification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mbd888/teller/internal/idgen"
	"github.com/mbd888/teller/internal/metrics"
)

// Option configures the gate.
type Option func(*Gate)

// WithMaxAttempts overrides the attempt cap shared by both channels.
func WithMaxAttempts(n int) Option {
	return func(g *Gate) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithOTPTTL overrides the one-time code expiry.
func WithOTPTTL(ttl time.Duration) Option {
	return func(g *Gate) {
		if ttl > 0 {
			g.otpTTL = ttl
		}
	}
}

// WithQuestion replaces the default security question/answer pair.
func WithQuestion(question, answer string) Option {
	return func(g *Gate) {
		g.question = question
		g.answer = answer
	}
}

// Defaults for the gate.
const (
	DefaultMaxAttempts = 3
	DefaultOTPTTL      = 5 * time.Minute
	DefaultQuestion    = "In which city were you born?"
	DefaultAnswer      = "New York"
)

// Gate owns verification sessions and decides whether a user may proceed.
type Gate struct {
	store       Store
	maxAttempts int
	otpTTL      time.Duration
	question    string
	answer      string
	now         func() time.Time
}

// NewGate creates a verification gate backed by the given session store.
func NewGate(store Store, opts ...Option) *Gate {
	g := &Gate{
		store:       store,
		maxAttempts: DefaultMaxAttempts,
		otpTTL:      DefaultOTPTTL,
		question:    DefaultQuestion,
		answer:      DefaultAnswer,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Challenge is the result of starting a verification session.
type Challenge struct {
	SessionID string `json:"sessionId"`
	Kind      Kind   `json:"kind"`
	Prompt    string `json:"prompt"`
	Code      string `json:"code,omitempty"` // OTP only; delivered out-of-band in a real system
}

// Initiate starts a security-question session for the user.
func (g *Gate) Initiate(ctx context.Context, userID string) (*Challenge, error) {
	session := &Session{
		ID:        idgen.WithPrefix("vs_"),
		UserID:    userID,
		Kind:      KindSecurityQuestion,
		Question:  g.question,
		answer:    g.answer,
		CreatedAt: g.now(),
	}
	if err := g.store.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create verification session: %w", err)
	}

	return &Challenge{
		SessionID: session.ID,
		Kind:      KindSecurityQuestion,
		Prompt:    "Please answer the following security question: " + g.question,
	}, nil
}

// Verify checks a security-question answer. The comparison is case-insensitive
// exact match. On success the session is destroyed and the caller marks the
// user verified. A wrong answer counts against the shared attempt cap;
// exhausting it destroys the session.
func (g *Gate) Verify(ctx context.Context, sessionID, answer string) error {
	session, err := g.store.Get(ctx, sessionID)
	if err != nil {
		return ErrSessionNotFound
	}
	if session.Kind != KindSecurityQuestion {
		return ErrSessionWrongKind
	}

	if strings.EqualFold(strings.TrimSpace(answer), session.answer) {
		_ = g.store.Delete(ctx, sessionID)
		metrics.VerificationsTotal.WithLabelValues(string(KindSecurityQuestion), "success").Inc()
		return nil
	}

	session.Attempts++
	if session.Attempts > g.maxAttempts {
		_ = g.store.Delete(ctx, sessionID)
		metrics.VerificationsTotal.WithLabelValues(string(KindSecurityQuestion), "exhausted").Inc()
		return ErrTooManyAttempts
	}
	if err := g.store.Update(ctx, session); err != nil {
		return fmt.Errorf("update verification session: %w", err)
	}
	metrics.VerificationsTotal.WithLabelValues(string(KindSecurityQuestion), "failure").Inc()
	return ErrIncorrectAnswer
}

// GenerateOTP starts a one-time-code session for the user.
func (g *Gate) GenerateOTP(ctx context.Context, userID string) (*Challenge, error) {
	code := idgen.Code(6)
	session := &Session{
		ID:        idgen.WithPrefix("otp_"),
		UserID:    userID,
		Kind:      KindOTP,
		code:      code,
		ExpiresAt: g.now().Add(g.otpTTL),
		CreatedAt: g.now(),
	}
	if err := g.store.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create otp session: %w", err)
	}

	return &Challenge{
		SessionID: session.ID,
		Kind:      KindOTP,
		Prompt:    fmt.Sprintf("Your one-time code is: %s. It will expire in %s.", code, g.otpTTL),
		Code:      code,
	}, nil
}

// VerifyOTP checks a one-time code. Every call increments the attempt counter.
// Expiry is checked lazily here, not by a background sweep; an expired or
// exhausted session is destroyed and verification must be restarted.
func (g *Gate) VerifyOTP(ctx context.Context, sessionID, code string) error {
	session, err := g.store.Get(ctx, sessionID)
	if err != nil {
		return ErrSessionNotFound
	}
	if session.Kind != KindOTP {
		return ErrSessionWrongKind
	}

	if session.Expired(g.now()) {
		_ = g.store.Delete(ctx, sessionID)
		metrics.VerificationsTotal.WithLabelValues(string(KindOTP), "expired").Inc()
		return ErrSessionExpired
	}

	session.Attempts++
	if session.Attempts > g.maxAttempts {
		_ = g.store.Delete(ctx, sessionID)
		metrics.VerificationsTotal.WithLabelValues(string(KindOTP), "exhausted").Inc()
		return ErrTooManyAttempts
	}

	if strings.TrimSpace(code) == session.code {
		_ = g.store.Delete(ctx, sessionID)
		metrics.VerificationsTotal.WithLabelValues(string(KindOTP), "success").Inc()
		return nil
	}

	if err := g.store.Update(ctx, session); err != nil {
		return fmt.Errorf("update otp session: %w", err)
	}
	metrics.VerificationsTotal.WithLabelValues(string(KindOTP), "failure").Inc()
	return ErrIncorrectCode
}
