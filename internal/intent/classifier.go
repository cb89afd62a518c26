package intent

import "strings"

// exactMatchBoost is applied when the whole message equals a pattern keyword.
const exactMatchBoost = 1.2

// Classifier maps free text to an intent with a confidence score.
// It holds no mutable state; classification is pure and deterministic.
type Classifier struct {
	patterns []pattern
}

// NewClassifier creates a classifier with the built-in intent patterns.
func NewClassifier() *Classifier {
	return &Classifier{patterns: fallbackPatterns}
}

// Classify evaluates the override rules in priority order, then falls back to
// weighted keyword scoring. Identical input always yields an identical result.
func (c *Classifier) Classify(text string) Result {
	lower := strings.ToLower(text)

	// Rule 1: fraud-signal override short-circuits everything else.
	if containsAny(lower, "suspicious", "unusual", "fraud", "unauthorized",
		"check for", "verify", "report", "security", "protection") ||
		(strings.Contains(lower, "check") && strings.Contains(lower, "activity")) ||
		(strings.Contains(lower, "verify") && strings.Contains(lower, "transaction")) {
		return Result{
			Kind:       KindFraud,
			Confidence: 0.95,
			Keywords:   []string{"suspicious", "unusual", "activity", "fraud", "security", "protection"},
		}
	}

	// Rule 2: advice requests.
	if containsAny(lower, "how to", "help", "advice", "recommend", "suggest",
		"save", "saving", "invest", "budget", "financial") {
		return Result{
			Kind:       KindAdvice,
			Confidence: 0.9,
			Keywords:   []string{"help", "advice", "recommend", "suggest", "save", "invest", "budget"},
		}
	}

	// Rule 3: transaction history requests.
	if (strings.Contains(lower, "show") && containsAny(lower, "recent", "latest", "transactions")) ||
		strings.Contains(lower, "transaction history") ||
		strings.Contains(lower, "my transactions") {
		return Result{
			Kind:       KindTransaction,
			Confidence: 0.95,
			Keywords:   []string{"show", "recent", "latest", "transactions", "history"},
		}
	}

	// Rule 4: bill payments need both an amount and a payee to resolve.
	if containsAny(lower, "pay", "payment", "bill") {
		amount, okAmount := ExtractAmount(text)
		payee, okPayee := ExtractPayee(text)
		if okAmount && amount > 0 && okPayee {
			return Result{
				Kind:       KindTransaction,
				Confidence: 0.95,
				Keywords:   []string{"pay", "bill", "payment", payee},
			}
		}
	}

	// Rule 5: high-value transfers (currency amount of 1000 or more).
	if containsAny(lower, "transfer", "send") && strings.Contains(lower, "$") {
		if amount, ok := ExtractAmount(text); ok && amount >= 1000 {
			return Result{
				Kind:       KindTransaction,
				Confidence: 0.95,
				Keywords:   []string{"transfer", "send", "high-value"},
			}
		}
	}

	// Rule 6: generic transfers.
	if containsAny(lower, "transfer", "send money", "move") ||
		(strings.Contains(lower, "to") && strings.Contains(lower, "account")) {
		return Result{
			Kind:       KindTransaction,
			Confidence: 0.95,
			Keywords:   []string{"transfer", "send", "move", "account"},
		}
	}

	// Rule 7: weighted keyword scoring over the registered patterns.
	return c.scoreFallback(lower)
}

// scoreFallback scores each pattern by matched/total keywords weighted by the
// pattern's base confidence, boosted when the whole message is an exact
// keyword match. Patterns are evaluated in registration order and only a
// strictly higher score replaces the current best, so ties resolve the same
// way every time.
func (c *Classifier) scoreFallback(lower string) Result {
	var best *pattern
	bestConfidence := 0.0
	var bestKeywords []string

	for i := range c.patterns {
		p := &c.patterns[i]

		var matched []string
		for _, kw := range p.keywords {
			if strings.Contains(lower, kw) {
				matched = append(matched, kw)
			}
		}
		if len(matched) == 0 {
			continue
		}

		confidence := float64(len(matched)) / float64(len(p.keywords)) * p.confidence
		for _, kw := range p.keywords {
			if lower == kw {
				confidence *= exactMatchBoost
				break
			}
		}

		if confidence > bestConfidence {
			bestConfidence = confidence
			best = p
			bestKeywords = matched
		}
	}

	if best == nil {
		return Result{Kind: KindInquiry, Confidence: 0.5, Keywords: []string{}}
	}
	return Result{Kind: best.kind, Confidence: bestConfidence, Keywords: bestKeywords}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
