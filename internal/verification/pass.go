// Package verification cross-checks a computed consensus with two randomly chosen evaluators.
package verification

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"

	"NewsConsensus/internal/domain"
	"NewsConsensus/internal/logging"
	"NewsConsensus/internal/ports"
)

// Resolver returns the verifier backing a named evaluator, if it can answer prompts.
type Resolver func(name string) (ports.Verifier, bool)

// Outcome is the detailed result of a verification pass.
type Outcome struct {
	Consensus     int
	FullyVerified bool
	Verifiers     []string
	Responses     []domain.Verification
}

// Pass picks two verifiers and reconciles their answers.
type Pass struct {
	resolve Resolver
	rng     *rand.Rand
	logger  *slog.Logger
}

// NewPass wires the verifier lookup and the random source.
func NewPass(resolve Resolver, rng *rand.Rand, logger *slog.Logger) *Pass {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Pass{resolve: resolve, rng: rng, logger: logging.OrDiscard(logger)}
}

// Verify returns the adjusted consensus and whether it was fully verified.
func (p *Pass) Verify(ctx context.Context, results domain.ResultSet, consensus int) (int, bool) {
	out := p.VerifyDetailed(ctx, results, consensus)
	return out.Consensus, out.FullyVerified
}

// VerifyDetailed is Verify plus the individual verifier answers.
func (p *Pass) VerifyDetailed(ctx context.Context, results domain.ResultSet, consensus int) Outcome {
	valid := results.Valid()

	var pool []string
	verifiers := map[string]ports.Verifier{}
	for _, r := range valid {
		if p.resolve == nil {
			break
		}
		if v, ok := p.resolve(r.Evaluator); ok && v != nil {
			pool = append(pool, r.Evaluator)
			verifiers[r.Evaluator] = v
		}
	}

	if len(pool) < 2 {
		p.logger.Warn("not enough evaluators to verify consensus", "available", len(pool))
		return Outcome{Consensus: consensus}
	}

	picked := p.pickTwo(pool)
	p.logger.Debug("cross-verifying consensus", "verifiers", picked, "consensus", consensus)

	req := domain.VerificationRequest{Scores: valid, Consensus: consensus}
	answers := make([]*domain.Verification, len(picked))

	var wg sync.WaitGroup
	for i, name := range picked {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			resp, err := verifiers[name].VerifyConsensus(ctx, req)
			if err != nil {
				p.logger.Warn("verifier did not respond", "evaluator", name, "error", err)
				return
			}
			resp.Evaluator = name
			answers[i] = &resp
		}(i, name)
	}
	wg.Wait()

	var responses []domain.Verification
	for _, a := range answers {
		if a != nil {
			responses = append(responses, *a)
		}
	}

	out := Outcome{Consensus: consensus, Verifiers: picked, Responses: responses}
	switch {
	case len(responses) == 2 && responses[0].Matches && responses[1].Matches:
		out.FullyVerified = true
		p.logger.Info("consensus verified", "verifiers", picked, "consensus", consensus)
	case len(responses) == 2:
		adjusted := domain.RoundHalfUp((responses[0].VerifiedConsensus + responses[1].VerifiedConsensus) / 2)
		out.Consensus = adjusted
		p.logger.Warn("verification mismatch, adjusting consensus", "from", consensus, "to", adjusted)
	default:
		out.FullyVerified = len(responses) > 0
	}
	return out
}

func (p *Pass) pickTwo(pool []string) []string {
	idx := p.rng.Perm(len(pool))
	return []string{pool[idx[0]], pool[idx[1]]}
}
