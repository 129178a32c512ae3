package evaluator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"NewsConsensus/internal/domain"
	"NewsConsensus/internal/logging"
	"NewsConsensus/internal/ports"
)

// LLMEvaluator turns a chat completer into a scoring, verifying and reviewing evaluator.
type LLMEvaluator struct {
	name      string
	weight    float64
	completer ports.Completer
	logger    *slog.Logger
}

var (
	_ ports.Evaluator     = (*LLMEvaluator)(nil)
	_ ports.Verifier      = (*LLMEvaluator)(nil)
	_ ports.PeerReviewer  = (*LLMEvaluator)(nil)
	_ ports.HealthChecker = (*LLMEvaluator)(nil)
)

// NewLLMEvaluator wraps completer under the given evaluator name.
func NewLLMEvaluator(name string, weight float64, completer ports.Completer, logger *slog.Logger) *LLMEvaluator {
	return &LLMEvaluator{
		name:      name,
		weight:    weight,
		completer: completer,
		logger:    logging.OrDiscard(logger).With("evaluator", name),
	}
}

func (e *LLMEvaluator) Name() string { return e.name }

func (e *LLMEvaluator) Weight() float64 { return e.weight }

// Evaluate asks the model for a 0-100 shareability score.
func (e *LLMEvaluator) Evaluate(ctx context.Context, article domain.Article) (domain.EvaluatorResult, error) {
	result := domain.EvaluatorResult{Evaluator: e.name, Weight: e.weight}
	if e.completer == nil {
		return result, fmt.Errorf("evaluator %s has no completer", e.name)
	}

	text, err := e.completer.Complete(ctx, scoringPrompt(article))
	if err != nil {
		return result, fmt.Errorf("score article with %s: %w", e.name, err)
	}

	var reply scoreReply
	if err := decodeReply(text, &reply); err != nil {
		return result, fmt.Errorf("parse %s score: %w", e.name, err)
	}

	result.Score = float64(*reply.Score)
	result.Scored = true
	result.Rationale = cleanText(reply.Rationale)
	e.logger.Debug("article scored", "article_id", article.ID, "score", result.Score)
	return result, nil
}

// VerifyConsensus asks the model to re-check a computed consensus.
// Missing fields default to the computed value and a match.
func (e *LLMEvaluator) VerifyConsensus(ctx context.Context, req domain.VerificationRequest) (domain.Verification, error) {
	if e.completer == nil {
		return domain.Verification{}, fmt.Errorf("evaluator %s has no completer", e.name)
	}
	text, err := e.completer.Complete(ctx, verificationPrompt(req))
	if err != nil {
		return domain.Verification{}, fmt.Errorf("verify consensus with %s: %w", e.name, err)
	}

	var reply verificationReply
	if err := decodeReply(text, &reply); err != nil {
		return domain.Verification{}, fmt.Errorf("parse %s verification: %w", e.name, err)
	}

	v := domain.Verification{
		Evaluator:         e.name,
		VerifiedConsensus: float64(req.Consensus),
		Matches:           true,
		Note:              cleanText(reply.Note),
	}
	if reply.VerifiedConsensus != nil {
		v.VerifiedConsensus = float64(*reply.VerifiedConsensus)
	}
	if reply.Matches != nil {
		v.Matches = bool(*reply.Matches)
	}
	return v, nil
}

// ReviewScore critiques another evaluator's score.
func (e *LLMEvaluator) ReviewScore(ctx context.Context, req domain.ReviewRequest) (domain.PeerReview, error) {
	if e.completer == nil {
		return domain.PeerReview{}, fmt.Errorf("evaluator %s has no completer", e.name)
	}
	text, err := e.completer.Complete(ctx, reviewPrompt(req))
	if err != nil {
		return domain.PeerReview{}, fmt.Errorf("review %s with %s: %w", req.Reviewed, e.name, err)
	}

	var reply reviewReply
	if err := decodeReply(text, &reply); err != nil {
		return domain.PeerReview{}, fmt.Errorf("parse %s review: %w", e.name, err)
	}

	review := domain.PeerReview{
		Reviewer:       e.name,
		Reviewed:       req.Reviewed,
		SuggestedScore: float64(*reply.SuggestedScore),
		Critique:       cleanText(reply.Critique),
	}
	if reply.AcceptOriginal != nil {
		review.AcceptOriginal = bool(*reply.AcceptOriginal)
	}
	return review, nil
}

// Ping sends a trivial prompt. A completer with its own health check is asked directly.
func (e *LLMEvaluator) Ping(ctx context.Context) error {
	if e.completer == nil {
		return errors.New("no completer configured")
	}
	if hc, ok := e.completer.(ports.HealthChecker); ok {
		return hc.Ping(ctx)
	}
	if _, err := e.completer.Complete(ctx, pingPrompt); err != nil {
		return fmt.Errorf("ping %s: %w", e.name, err)
	}
	return nil
}
