// Package evaluator holds the scoring sources behind a uniform gateway.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"NewsConsensus/internal/domain"
	"NewsConsensus/internal/logging"
	"NewsConsensus/internal/ports"
)

// Registry keeps evaluators in registration order.
type Registry struct {
	order      []string
	evaluators map[string]ports.Evaluator
	logger     *slog.Logger
}

// NewRegistry builds an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{evaluators: map[string]ports.Evaluator{}, logger: logging.OrDiscard(logger)}
}

// Register adds or replaces an evaluator; a replacement keeps its original position.
func (r *Registry) Register(ev ports.Evaluator) {
	if r.evaluators == nil {
		r.evaluators = map[string]ports.Evaluator{}
	}
	name := ev.Name()
	if _, exists := r.evaluators[name]; !exists {
		r.order = append(r.order, name)
	}
	r.evaluators[name] = ev
}

// Resolve returns an evaluator by name or an error if it is absent.
func (r *Registry) Resolve(name string) (ports.Evaluator, error) {
	if ev, ok := r.evaluators[name]; ok {
		return ev, nil
	}
	return nil, fmt.Errorf("evaluator %s is not registered", name)
}

// Evaluators lists registered evaluators in order.
func (r *Registry) Evaluators() []ports.Evaluator {
	out := make([]ports.Evaluator, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.evaluators[name])
	}
	return out
}

// Roster is the number of registered evaluators.
func (r *Registry) Roster() int { return len(r.order) }

// Verifier returns the named evaluator if it can verify a consensus.
func (r *Registry) Verifier(name string) (ports.Verifier, bool) {
	v, ok := r.evaluators[name].(ports.Verifier)
	return v, ok
}

// Reviewer returns the named evaluator if it can critique a score.
func (r *Registry) Reviewer(name string) (ports.PeerReviewer, bool) {
	v, ok := r.evaluators[name].(ports.PeerReviewer)
	return v, ok
}

// EvaluateAll runs every evaluator concurrently and returns results in registration order.
// A failed evaluator yields an unscored result.
func (r *Registry) EvaluateAll(ctx context.Context, article domain.Article) domain.ResultSet {
	evaluators := r.Evaluators()
	results := make(domain.ResultSet, len(evaluators))

	var wg sync.WaitGroup
	for i, ev := range evaluators {
		wg.Add(1)
		go func(i int, ev ports.Evaluator) {
			defer wg.Done()
			res, err := ev.Evaluate(ctx, article)
			if err != nil {
				r.logger.Warn("evaluator failed", "evaluator", ev.Name(), "article_id", article.ID, "error", err)
				res = domain.EvaluatorResult{}
			}
			res.Evaluator = ev.Name()
			res.Weight = ev.Weight()
			results[i] = res
		}(i, ev)
	}
	wg.Wait()

	return results
}

// HealthCheck pings every evaluator that supports it. Evaluators without a health
// check count as healthy. It returns the per-evaluator errors and the healthy count.
func (r *Registry) HealthCheck(ctx context.Context) (map[string]error, int) {
	evaluators := r.Evaluators()
	errs := make([]error, len(evaluators))

	var wg sync.WaitGroup
	for i, ev := range evaluators {
		hc, ok := ev.(ports.HealthChecker)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(i int, hc ports.HealthChecker) {
			defer wg.Done()
			errs[i] = hc.Ping(ctx)
		}(i, hc)
	}
	wg.Wait()

	status := make(map[string]error, len(evaluators))
	healthy := 0
	for i, ev := range evaluators {
		status[ev.Name()] = errs[i]
		if errs[i] == nil {
			healthy++
			continue
		}
		r.logger.Warn("evaluator unhealthy", "evaluator", ev.Name(), "error", errs[i])
	}
	return status, healthy
}
