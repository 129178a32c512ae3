// Package pairing builds random evaluator pairs for the peer review round.
package pairing

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"

	"NewsConsensus/internal/domain"
	"NewsConsensus/internal/logging"
	"NewsConsensus/internal/ports"
)

// DefaultAgreementThreshold is the largest score gap still counted as agreement.
const DefaultAgreementThreshold = 1.0

// Shuffler is the slice of *rand.Rand the scheduler needs.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

var _ Shuffler = (*rand.Rand)(nil)

// Scheduler pairs evaluators, always including the arbiter.
type Scheduler struct {
	arbiter   string
	threshold float64
	rng       Shuffler
	eligible  func(name string) bool
	logger    *slog.Logger
}

// NewScheduler builds a scheduler; a negative threshold selects DefaultAgreementThreshold.
func NewScheduler(arbiter string, threshold float64, rng Shuffler, logger *slog.Logger) *Scheduler {
	if threshold < 0 || math.IsNaN(threshold) {
		threshold = DefaultAgreementThreshold
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Scheduler{arbiter: arbiter, threshold: threshold, rng: rng, logger: logging.OrDiscard(logger)}
}

// WithEligibility restricts pairing to evaluators for which fn reports true.
// Evaluators that cannot take part in a peer review are left out of the pool.
func (s *Scheduler) WithEligibility(fn func(name string) bool) *Scheduler {
	s.eligible = fn
	return s
}

// MakePairs returns the ordered pairs with their agreement outcome.
func (s *Scheduler) MakePairs(results domain.ResultSet) []domain.PeerPair {
	valid := results.Valid()
	if s.eligible != nil {
		kept := valid[:0:0]
		for _, r := range valid {
			if s.eligible(r.Evaluator) {
				kept = append(kept, r)
			}
		}
		valid = kept
	}

	hasArbiter := false
	var pool []string
	for _, r := range valid {
		if r.Evaluator == s.arbiter {
			hasArbiter = true
			continue
		}
		pool = append(pool, r.Evaluator)
	}
	s.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	var pairs []domain.PeerPair
	if hasArbiter && len(pool) > 0 {
		pairs = append(pairs, s.pair(valid, s.arbiter, pool[0]))
		pool = pool[1:]
	}
	for len(pool) >= 2 {
		pairs = append(pairs, s.pair(valid, pool[0], pool[1]))
		pool = pool[2:]
	}
	if len(pool) == 1 && hasArbiter {
		pairs = append(pairs, s.pair(valid, s.arbiter, pool[0]))
	}

	s.logger.Debug("peer pairs built", "pairs", len(pairs), "arbiter_present", hasArbiter)
	return pairs
}

// Classify labels a score gap as agreement or disagreement.
func (s *Scheduler) Classify(a, b float64) domain.PairOutcome {
	if math.Abs(a-b) <= s.threshold {
		return domain.OutcomeAgreement
	}
	return domain.OutcomeDisagreement
}

func (s *Scheduler) pair(results domain.ResultSet, a, b string) domain.PeerPair {
	ra, _ := results.Lookup(a)
	rb, _ := results.Lookup(b)
	return domain.PeerPair{A: a, B: b, Outcome: s.Classify(ra.Score, rb.Score)}
}

// ReviewerResolver returns the reviewer capability of a named evaluator.
type ReviewerResolver func(name string) (ports.PeerReviewer, bool)

// Reviewer runs the peer edit pass over the first pairs.
type Reviewer struct {
	resolve ReviewerResolver
	logger  *slog.Logger
}

// NewReviewer wires the reviewer lookup.
func NewReviewer(resolve ReviewerResolver, logger *slog.Logger) *Reviewer {
	return &Reviewer{resolve: resolve, logger: logging.OrDiscard(logger)}
}

// Review asks the second member of a pair to critique the first, for at most
// limit pairs. Pairs without a usable reviewer do not count towards limit.
// Reviews are informational; failures are skipped.
func (r *Reviewer) Review(ctx context.Context, pairs []domain.PeerPair, results domain.ResultSet, limit int) []domain.PeerReview {
	if r == nil || r.resolve == nil || limit <= 0 {
		return nil
	}
	var reviews []domain.PeerReview
	attempts := 0
	for _, p := range pairs {
		if attempts >= limit {
			break
		}
		reviewed, ok := results.Lookup(p.A)
		if !ok {
			continue
		}
		reviewer, ok := r.resolve(p.B)
		if !ok {
			r.logger.Debug("pair has no reviewer, moving on", "reviewer", p.B)
			continue
		}
		attempts++
		review, err := reviewer.ReviewScore(ctx, domain.ReviewRequest{
			Reviewed:  p.A,
			Score:     reviewed.Score,
			Rationale: reviewed.Rationale,
		})
		if err != nil {
			r.logger.Warn("peer review failed", "reviewer", p.B, "reviewed", p.A, "error", err)
			continue
		}
		review.Reviewer = p.B
		review.Reviewed = p.A
		reviews = append(reviews, review)
	}
	return reviews
}
