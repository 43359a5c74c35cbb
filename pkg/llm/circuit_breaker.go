package llm

import (
	"context"
	"time"

	"github.com/cruxhq/crux/pkg/resilience"
	"github.com/cruxhq/crux/pkg/scenario"
)

// CircuitBreakerGenerator wraps a ResponseGenerator with rate-limit circuit
// breaking so a throttled provider fails fast instead of stalling the game.
type CircuitBreakerGenerator struct {
	inner   ResponseGenerator
	breaker *resilience.CircuitBreaker
}

func NewCircuitBreakerGenerator(inner ResponseGenerator, breaker *resilience.CircuitBreaker) *CircuitBreakerGenerator {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(3, 30*time.Second)
	}
	return &CircuitBreakerGenerator{inner: inner, breaker: breaker}
}

func (g *CircuitBreakerGenerator) Name() string { return g.inner.Name() }

func (g *CircuitBreakerGenerator) Respond(ctx context.Context, history []scenario.Entry, profile Profile) (string, error) {
	if !g.breaker.Allow() {
		return "", resilience.RateLimitError{Provider: g.Name(), Message: "degraded"}
	}
	text, err := g.inner.Respond(ctx, history, profile)
	if err != nil {
		g.breaker.OnError(err)
		return "", err
	}
	g.breaker.OnSuccess()
	return text, nil
}

func (g *CircuitBreakerGenerator) Evaluate(ctx context.Context, history []scenario.Entry, profile Profile) (Evaluation, error) {
	if !g.breaker.Allow() {
		return Evaluation{}, resilience.RateLimitError{Provider: g.Name(), Message: "degraded"}
	}
	eval, err := g.inner.Evaluate(ctx, history, profile)
	if err != nil {
		g.breaker.OnError(err)
		return Evaluation{}, err
	}
	g.breaker.OnSuccess()
	return eval, nil
}

var _ ResponseGenerator = (*CircuitBreakerGenerator)(nil)
