package evaluator

import (
	"context"

	"NewsConsensus/internal/domain"
	"NewsConsensus/internal/ports"
)

// DefaultSourceScore is the reliability score given to a news aggregator when none is configured.
const DefaultSourceScore = 85.0

// StaticEvaluator reports a fixed source-reliability score for every article.
// It writes no rationale, so it never competes with prose from the LLM evaluators.
type StaticEvaluator struct {
	name   string
	weight float64
	score  float64
}

var _ ports.Evaluator = (*StaticEvaluator)(nil)

func NewStaticEvaluator(name string, weight, score float64) *StaticEvaluator {
	if score <= 0 {
		score = DefaultSourceScore
	}
	return &StaticEvaluator{name: name, weight: weight, score: score}
}

func (s *StaticEvaluator) Name() string { return s.name }

func (s *StaticEvaluator) Weight() float64 { return s.weight }

func (s *StaticEvaluator) Evaluate(_ context.Context, _ domain.Article) (domain.EvaluatorResult, error) {
	return domain.EvaluatorResult{
		Evaluator: s.name,
		Score:     s.score,
		Scored:    true,
		Weight:    s.weight,
	}, nil
}
