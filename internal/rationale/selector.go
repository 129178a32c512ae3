// Package rationale picks which evaluator's explanation is surfaced downstream,
// rotating across evaluators by historical usage.
package rationale

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"unicode/utf8"

	"NewsConsensus/internal/domain"
	"NewsConsensus/internal/logging"
	"NewsConsensus/internal/ports"
)

const (
	// DefaultMinLength is the rationale length a candidate must exceed.
	DefaultMinLength = 20
	// DefaultFallback is reported when no rationale qualifies.
	DefaultFallback = "ChatGPT"
)

// Options tunes candidate qualification.
type Options struct {
	MinLength int
	Fallback  string
}

// Selector chooses the least-used qualifying evaluator and records the use.
type Selector struct {
	store     ports.UsageStore
	rng       *rand.Rand
	minLength int
	fallback  string
	logger    *slog.Logger

	mu sync.Mutex
}

// NewSelector wires the usage store and random source.
func NewSelector(store ports.UsageStore, rng *rand.Rand, opts Options, logger *slog.Logger) *Selector {
	if opts.MinLength <= 0 {
		opts.MinLength = DefaultMinLength
	}
	if strings.TrimSpace(opts.Fallback) == "" {
		opts.Fallback = DefaultFallback
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Selector{
		store:     store,
		rng:       rng,
		minLength: opts.MinLength,
		fallback:  opts.Fallback,
		logger:    logging.OrDiscard(logger),
	}
}

// Select returns the chosen evaluator and its rationale text.
func (s *Selector) Select(ctx context.Context, results domain.ResultSet) (string, string) {
	candidates := s.candidates(results)
	if len(candidates) == 0 {
		s.logger.Debug("no rationale qualifies, using fallback", "fallback", s.fallback)
		return s.fallback, ""
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	table := s.load(ctx)

	minUses := -1
	var tied []domain.EvaluatorResult
	for _, c := range candidates {
		uses := table[c.Evaluator].Uses
		switch {
		case minUses < 0 || uses < minUses:
			minUses = uses
			tied = []domain.EvaluatorResult{c}
		case uses == minUses:
			tied = append(tied, c)
		}
	}

	chosen := tied[0]
	if len(tied) > 1 {
		chosen = tied[s.rng.IntN(len(tied))]
	}

	usage := table[chosen.Evaluator]
	usage.Uses++
	table[chosen.Evaluator] = usage

	if s.store != nil {
		if err := s.store.Save(ctx, table); err != nil {
			s.logger.Warn("persist rationale usage", "error", err)
		}
	}

	s.logger.Info("rationale selected", "evaluator", chosen.Evaluator, "uses", usage.Uses)
	return chosen.Evaluator, chosen.Rationale
}

func (s *Selector) candidates(results domain.ResultSet) []domain.EvaluatorResult {
	var out []domain.EvaluatorResult
	for _, r := range results {
		if utf8.RuneCountInString(strings.TrimSpace(r.Rationale)) > s.minLength {
			out = append(out, r)
		}
	}
	return out
}

func (s *Selector) load(ctx context.Context) domain.UsageTable {
	if s.store == nil {
		return domain.UsageTable{}
	}
	table, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Warn("load rationale usage, starting empty", "error", err)
		return domain.UsageTable{}
	}
	if table == nil {
		return domain.UsageTable{}
	}
	return table.Clone()
}
