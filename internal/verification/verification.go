// Package verification implements the identity gate that every conversation
// must pass before any banking operation is allowed.
//
// Two channels are supported: a security-question challenge and a one-time
// code with an expiry. Both channels share the same attempt cap; exhausting
// it destroys the session and verification must be restarted. A session is
// destroyed on success, on attempt exhaustion, or lazily on expiry; there is
// no background sweep.
package verification

import (
	"context"
	"errors"
	"time"
)

var (
	ErrSessionNotFound  = errors.New("verification session not found or expired")
	ErrIncorrectAnswer  = errors.New("incorrect answer")
	ErrIncorrectCode    = errors.New("incorrect code")
	ErrTooManyAttempts  = errors.New("too many failed attempts")
	ErrSessionExpired   = errors.New("verification session expired")
	ErrSessionWrongKind = errors.New("verification session is for a different channel")
)

// Kind is the verification channel of a session.
type Kind string

const (
	KindSecurityQuestion Kind = "security_question"
	KindOTP              Kind = "otp"
)

// Session tracks one in-progress identity challenge. At most one session is
// active per user at a time; the coordinator enforces that.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Kind      Kind      `json:"kind"`
	Question  string    `json:"question,omitempty"`
	answer    string    // never serialized
	code      string    // never serialized
	Attempts  int       `json:"attempts"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// Expired reports whether the session's deadline has passed.
// Security-question sessions carry a zero deadline and never expire.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Store persists verification sessions.
type Store interface {
	Create(ctx context.Context, session *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, session *Session) error
	Delete(ctx context.Context, id string) error
}
