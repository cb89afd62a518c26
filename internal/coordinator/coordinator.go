// Package coordinator wires the verification gate, intent classifier,
// fraud engine, transaction workflow and advisory router into a single
// message-handling entry point.
//
// Verification strictly precedes intent classification: an unverified user
// gets a challenge (or has their message treated as a challenge answer)
// for every message, with no exceptions. Only verified users reach the
// business handlers.
package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mbd888/teller/internal/advice"
	"github.com/mbd888/teller/internal/fraud"
	"github.com/mbd888/teller/internal/intent"
	"github.com/mbd888/teller/internal/logging"
	"github.com/mbd888/teller/internal/metrics"
	"github.com/mbd888/teller/internal/syncutil"
	"github.com/mbd888/teller/internal/traces"
	"github.com/mbd888/teller/internal/transactions"
	"github.com/mbd888/teller/internal/verification"
)

// Response is the uniform reply for every handled message.
type Response struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Broadcaster pushes events to connected realtime clients. Optional.
type Broadcaster interface {
	Broadcast(event string, payload any)
}

// userSession tracks the per-user conversation state the coordinator owns:
// whether the user is verified and which verification session, if any, is
// open. At most one verification session is open per user.
type userSession struct {
	verified    bool
	verifiedAt  time.Time
	sessionID   string
	sessionKind verification.Kind
}

// Coordinator routes user messages to the component that can answer them.
type Coordinator struct {
	gate       *verification.Gate
	classifier *intent.Classifier
	engine     *fraud.Engine
	workflow   *transactions.Workflow
	advisor    *advice.Router

	broadcaster Broadcaster   // may be nil
	verifiedTTL time.Duration // zero means verified status never expires
	now         func() time.Time

	locks *syncutil.ShardedMutex

	mu       sync.Mutex
	sessions map[string]*userSession
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithVerifiedTTL bounds how long a user stays verified. Zero keeps the
// status for the process lifetime.
func WithVerifiedTTL(ttl time.Duration) Option {
	return func(c *Coordinator) { c.verifiedTTL = ttl }
}

// WithBroadcaster attaches a realtime event sink.
func WithBroadcaster(b Broadcaster) Option {
	return func(c *Coordinator) { c.broadcaster = b }
}

// New creates a Coordinator over its collaborators.
func New(gate *verification.Gate, classifier *intent.Classifier, engine *fraud.Engine,
	workflow *transactions.Workflow, advisor *advice.Router, opts ...Option) *Coordinator {
	c := &Coordinator{
		gate:       gate,
		classifier: classifier,
		engine:     engine,
		workflow:   workflow,
		advisor:    advisor,
		now:        time.Now,
		locks:      new(syncutil.ShardedMutex),
		sessions:   make(map[string]*userSession),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) session(userID string) *userSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[userID]
	if !ok {
		s = &userSession{}
		c.sessions[userID] = s
	}
	return s
}

// Handle processes one user message and always returns a response; internal
// failures surface as success=false with the cause in the error field,
// never as a panic or raw error.
func (c *Coordinator) Handle(ctx context.Context, userID, text string) Response {
	unlock := c.locks.Lock(userID)
	defer unlock()

	ctx = logging.WithUserID(ctx, userID)
	ctx, span := traces.StartSpan(ctx, "coordinator.handle", traces.UserID(userID))
	defer span.End()

	s := c.session(userID)

	if s.verified && c.verifiedTTL > 0 && c.now().Sub(s.verifiedAt) > c.verifiedTTL {
		s.verified = false
	}

	if s.verified {
		result := c.classifier.Classify(text)
		span.SetAttributes(traces.Intent(string(result.Kind)))
		metrics.MessagesTotal.WithLabelValues(string(result.Kind)).Inc()
		logging.L(ctx).Info("message classified",
			"intent", result.Kind, "confidence", result.Confidence)

		switch result.Kind {
		case intent.KindTransaction:
			return c.handleTransaction(ctx, userID, text)
		case intent.KindAdvice:
			return c.handleAdvice(ctx, userID, text)
		case intent.KindFraud:
			return c.handleFraud(ctx, text)
		case intent.KindVerification:
			return Response{
				Success: true,
				Message: "You are already verified. How can I help you?",
				Data:    map[string]any{"isVerified": true},
			}
		default:
			return c.handleInquiry(ctx, userID, text)
		}
	}

	metrics.MessagesTotal.WithLabelValues("verification").Inc()

	// A challenge is already open: the message is the answer or code.
	if s.sessionID != "" {
		return c.handleVerificationReply(ctx, s, text)
	}

	// First contact: issue the security question.
	challenge, err := c.gate.Initiate(ctx, userID)
	if err != nil {
		return internalError(err)
	}
	s.sessionID = challenge.SessionID
	s.sessionKind = challenge.Kind
	return Response{
		Success: true,
		Message: challenge.Prompt,
		Data: map[string]any{
			"sessionId":        challenge.SessionID,
			"verificationStep": string(challenge.Kind),
		},
	}
}

// RequestOTP switches an unverified user to the one-time-code channel,
// replacing any open challenge. Already-verified users are told so.
func (c *Coordinator) RequestOTP(ctx context.Context, userID string) Response {
	unlock := c.locks.Lock(userID)
	defer unlock()

	s := c.session(userID)
	if s.verified {
		return Response{
			Success: true,
			Message: "You are already verified. How can I help you?",
			Data:    map[string]any{"isVerified": true},
		}
	}

	challenge, err := c.gate.GenerateOTP(ctx, userID)
	if err != nil {
		return internalError(err)
	}
	s.sessionID = challenge.SessionID
	s.sessionKind = challenge.Kind
	return Response{
		Success: true,
		Message: challenge.Prompt,
		Data: map[string]any{
			"sessionId": challenge.SessionID,
			"type":      string(challenge.Kind),
		},
	}
}

// Verified reports whether the user currently counts as verified.
// It takes the same per-user lock as Handle so that reads of the session
// fields never overlap a concurrent verification in flight.
func (c *Coordinator) Verified(userID string) bool {
	unlock := c.locks.Lock(userID)
	defer unlock()

	c.mu.Lock()
	s, ok := c.sessions[userID]
	c.mu.Unlock()
	if !ok || !s.verified {
		return false
	}
	if c.verifiedTTL > 0 && c.now().Sub(s.verifiedAt) > c.verifiedTTL {
		return false
	}
	return true
}

func (c *Coordinator) handleVerificationReply(ctx context.Context, s *userSession, text string) Response {
	var err error
	if s.sessionKind == verification.KindOTP {
		err = c.gate.VerifyOTP(ctx, s.sessionID, text)
	} else {
		err = c.gate.Verify(ctx, s.sessionID, text)
	}

	if err == nil {
		s.sessionID = ""
		s.sessionKind = ""
		s.verified = true
		s.verifiedAt = c.now()
		logging.L(ctx).Info("user verified")
		return Response{
			Success: true,
			Message: "Verification successful. How can I help you?",
			Data:    map[string]any{"isVerified": true},
		}
	}

	switch {
	case errors.Is(err, verification.ErrIncorrectAnswer):
		return Response{
			Success: false,
			Message: "Incorrect answer. Please try again.",
			Error:   "INCORRECT_ANSWER",
		}
	case errors.Is(err, verification.ErrIncorrectCode):
		return Response{
			Success: false,
			Message: "Invalid OTP. Please try again.",
			Error:   "INCORRECT_CODE",
		}
	case errors.Is(err, verification.ErrTooManyAttempts):
		msg := "Too many failed attempts. Please restart verification."
		if s.sessionKind == verification.KindOTP {
			msg = "Too many failed attempts. Please request a new OTP."
		}
		s.sessionID = ""
		s.sessionKind = ""
		return Response{
			Success: false,
			Message: msg,
			Error:   "TOO_MANY_ATTEMPTS",
		}
	case errors.Is(err, verification.ErrSessionExpired):
		s.sessionID = ""
		s.sessionKind = ""
		return Response{
			Success: false,
			Message: "OTP has expired. Please request a new one.",
			Error:   "SESSION_EXPIRED",
		}
	case errors.Is(err, verification.ErrSessionNotFound):
		s.sessionID = ""
		s.sessionKind = ""
		return Response{
			Success: false,
			Message: "Invalid or expired OTP session",
			Error:   "SESSION_NOT_FOUND",
		}
	default:
		return internalError(err)
	}
}

func internalError(err error) Response {
	return Response{
		Success: false,
		Message: "An error occurred while processing your request",
		Error:   err.Error(),
	}
}
