// Package intent implements deterministic keyword-based classification of
// free-text banking messages.
//
// Classification runs a prioritized sequence of hand-authored override rules
// (fraud signals, advice requests, history requests, bill payments, transfers)
// before falling back to weighted keyword scoring against the registered
// patterns. Rule ordering is significant: an earlier override always wins.
package intent

// Kind is the classified purpose of a user message.
type Kind string

const (
	KindInquiry      Kind = "inquiry"
	KindTransaction  Kind = "transaction"
	KindFraud        Kind = "fraud"
	KindAdvice       Kind = "advice"
	KindVerification Kind = "verification"
)

// Result is the outcome of classifying a single message.
type Result struct {
	Kind       Kind     `json:"kind"`
	Confidence float64  `json:"confidence"`
	Keywords   []string `json:"keywords"`
}

// pattern is a registered fallback scoring pattern.
type pattern struct {
	name       string
	kind       Kind
	confidence float64
	keywords   []string
}

// fallbackPatterns are scored only when no override rule fires. Order matters
// for tie-breaking: the first pattern reaching the highest score wins, so
// classification stays deterministic.
var fallbackPatterns = []pattern{
	{
		name:       "balance",
		kind:       KindInquiry,
		confidence: 0.9,
		keywords:   []string{"balance", "account", "check", "show", "how much"},
	},
	{
		name:       "fraud",
		kind:       KindFraud,
		confidence: 0.95,
		keywords: []string{
			"suspicious", "fraud", "unauthorized", "strange", "unusual",
			"activity", "suspicious activity", "unusual activity", "purchase",
			"transaction", "made a purchase", "bought", "at", "am", "pm",
			"check for", "verify", "confirm", "validate",
		},
	},
	{
		name:       "transaction",
		kind:       KindTransaction,
		confidence: 0.9,
		keywords: []string{
			"transaction", "history", "recent", "spending", "transfer",
			"send money", "pay bill", "payment", "transfer money", "send",
			"pay", "bill", "confirm", "cancel", "show me", "list", "view",
			"transactions", "recent transactions", "latest transactions",
		},
	},
	{
		name:       "advice",
		kind:       KindAdvice,
		confidence: 0.8,
		keywords: []string{
			"how to", "help", "advice", "recommend", "suggest", "set up", "setup",
			"save", "saving", "invest", "budget", "financial", "how can i", "how do i",
			"spending", "trends", "analysis", "analyze", "patterns", "spend",
		},
	},
	{
		name:       "verification",
		kind:       KindVerification,
		confidence: 0.9,
		keywords: []string{
			"verify", "verification", "identity", "security", "authenticate",
			"login", "sign in", "signin",
		},
	},
}
