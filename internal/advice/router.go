package advice

import (
	"context"
	"strings"

	"github.com/mbd888/teller/internal/circuitbreaker"
	"github.com/mbd888/teller/internal/logging"
	"github.com/mbd888/teller/internal/metrics"
)

const breakerKey = "advisory"

// Router answers advisory requests. When an external service is
// configured it is tried first behind a circuit breaker; on any failure
// the router answers from the local canned playbook instead. Advise never
// returns an error.
type Router struct {
	external Service // may be nil
	breaker  *circuitbreaker.Breaker
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithExternal attaches an external advisory service.
func WithExternal(svc Service) RouterOption {
	return func(r *Router) { r.external = svc }
}

// WithBreaker overrides the default circuit breaker.
func WithBreaker(b *circuitbreaker.Breaker) RouterOption {
	return func(r *Router) { r.breaker = b }
}

// NewRouter creates an advisory router.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		breaker: circuitbreaker.New(3, 0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Advise answers the request, preferring the external service when it is
// configured, reachable and healthy.
func (r *Router) Advise(ctx context.Context, req Request) *Result {
	if r.external != nil && r.breaker.Allow(breakerKey) {
		result, err := r.external.Advise(ctx, req)
		if err == nil {
			r.breaker.RecordSuccess(breakerKey)
			return result
		}
		r.breaker.RecordFailure(breakerKey)
		metrics.AdvisoryFallbacksTotal.Inc()
		logging.L(ctx).Warn("external advisory failed, using local fallback", "error", err)
	}
	return localAdvice(req.Query)
}

// localAdvice returns canned guidance keyed off the query topic.
func localAdvice(query string) *Result {
	q := strings.ToLower(query)

	switch {
	case strings.Contains(q, "invest"):
		return &Result{
			Source: SourceLocal,
			Message: "Here are some investment recommendations:\n" +
				"1. Diversify your portfolio across different asset classes\n" +
				"2. Consider index funds for long-term growth\n" +
				"3. Start with a retirement account (IRA/401k)\n" +
				"4. Research before investing in individual stocks\n" +
				"5. Consider your risk tolerance and time horizon",
			Data: adviceData(query),
		}
	case strings.Contains(q, "save") || strings.Contains(q, "saving"):
		return &Result{
			Source: SourceLocal,
			Message: "Here are some saving strategies:\n" +
				"1. Follow the 50/30/20 rule (50% needs, 30% wants, 20% savings)\n" +
				"2. Set up automatic transfers to savings\n" +
				"3. Create an emergency fund (3-6 months of expenses)\n" +
				"4. Look for high-yield savings accounts\n" +
				"5. Track your spending to identify saving opportunities",
			Data: adviceData(query),
		}
	case strings.Contains(q, "budget") || strings.Contains(q, "spending"):
		return &Result{
			Source: SourceLocal,
			Message: "Here are some budgeting tips:\n" +
				"1. Track all your expenses for a month\n" +
				"2. Categorize your spending\n" +
				"3. Set realistic spending limits\n" +
				"4. Use budgeting apps to stay on track\n" +
				"5. Review and adjust your budget regularly",
			Data: adviceData(query),
		}
	default:
		return &Result{
			Source: SourceLocal,
			Message: "Here are some general financial tips:\n" +
				"1. Build an emergency fund\n" +
				"2. Pay off high-interest debt first\n" +
				"3. Start saving for retirement early\n" +
				"4. Review your insurance coverage\n" +
				"5. Create a financial plan\n\n" +
				"Would you like specific advice about:\n" +
				"- Investing\n" +
				"- Saving\n" +
				"- Budgeting\n" +
				"- Debt management\n" +
				"- Retirement planning",
			Data: adviceData(query),
		}
	}
}

func adviceData(query string) map[string]any {
	return map[string]any{
		"type":  "advice",
		"query": query,
		"suggestions": []string{
			"Would you like to know more about investing?",
			"Would you like to learn about saving strategies?",
			"Would you like help with budgeting?",
		},
	}
}
