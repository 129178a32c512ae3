package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"NewsConsensus/internal/consensus"
	"NewsConsensus/internal/domain"
	"NewsConsensus/internal/logging"
	"NewsConsensus/internal/pairing"
	"NewsConsensus/internal/ports"
	"NewsConsensus/internal/rationale"
	"NewsConsensus/internal/verification"
)

// ErrNoScores is returned for an article no evaluator could score.
var ErrNoScores = errors.New("no evaluator produced a score")

// EvaluatorGateway fans an article out to every configured evaluator.
type EvaluatorGateway interface {
	EvaluateAll(ctx context.Context, article domain.Article) domain.ResultSet
	HealthCheck(ctx context.Context) (map[string]error, int)
	Roster() int
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source     ports.ArticleSource
	Repository ports.ReportRepository
	Gate       ports.ContentGate
	Evaluators EvaluatorGateway
	Engine     *consensus.Engine
	Verifier   *verification.Pass
	Pairing    *pairing.Scheduler
	Reviewer   *pairing.Reviewer
	Selector   *rationale.Selector
	Publishers []ports.Publisher
	Logger     *slog.Logger

	ArticleLimit   int
	MaxPeerReviews int
	Now            func() time.Time
}

// Pipeline implements the fetch, score, verify and publish workflow.
type Pipeline struct {
	source     ports.ArticleSource
	repository ports.ReportRepository
	gate       ports.ContentGate
	evaluators EvaluatorGateway
	engine     *consensus.Engine
	verifier   *verification.Pass
	pairing    *pairing.Scheduler
	reviewer   *pairing.Reviewer
	selector   *rationale.Selector
	publishers []ports.Publisher
	logger     *slog.Logger

	articleLimit   int
	maxPeerReviews int
	now            func() time.Time
}

// RunSummary counts what a single pass did.
type RunSummary struct {
	RunID     string
	Expected  int
	Fetched   int
	Fresh     int
	Published int
	Skipped   int
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	engine := deps.Engine
	if engine == nil {
		engine = consensus.NewEngine(consensus.DefaultTrimThreshold, deps.Logger)
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		source:         deps.Source,
		repository:     deps.Repository,
		gate:           deps.Gate,
		evaluators:     deps.Evaluators,
		engine:         engine,
		verifier:       deps.Verifier,
		pairing:        deps.Pairing,
		reviewer:       deps.Reviewer,
		selector:       deps.Selector,
		publishers:     deps.Publishers,
		logger:         logging.OrDiscard(deps.Logger),
		articleLimit:   deps.ArticleLimit,
		maxPeerReviews: deps.MaxPeerReviews,
		now:            now,
	}
}

// ProcessDay fetches the day's articles and scores, publishes and stores each new one.
// Failures on a single article are logged and the batch continues.
func (p *Pipeline) ProcessDay(ctx context.Context, day time.Time) (RunSummary, error) {
	summary := RunSummary{RunID: uuid.NewString()}
	if p.source == nil || p.evaluators == nil {
		return summary, nil
	}
	log := p.logger.With("run_id", summary.RunID)

	_, summary.Expected = p.evaluators.HealthCheck(ctx)
	log.Info("run started", "day", day.Format("2006-01-02"), "healthy_evaluators", summary.Expected, "roster", p.evaluators.Roster())

	articles, err := p.source.FetchDaily(ctx, day)
	if err != nil {
		return summary, fmt.Errorf("fetch daily: %w", err)
	}
	summary.Fetched = len(articles)

	fresh, err := p.filterProcessed(ctx, articles)
	if err != nil {
		return summary, err
	}
	if p.articleLimit > 0 && len(fresh) > p.articleLimit {
		fresh = fresh[:p.articleLimit]
	}
	summary.Fresh = len(fresh)

	for _, article := range fresh {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		alog := log.With("article_id", article.ID)

		report, err := p.ScoreArticle(ctx, summary.RunID, article, summary.Expected)
		if err != nil {
			alog.Warn("article skipped", "title", article.Title, "error", err)
			summary.Skipped++
			continue
		}

		p.publish(ctx, alog, report)

		if p.repository != nil {
			if err := p.repository.SaveReport(ctx, report); err != nil {
				alog.Error("persist report", "error", err)
				summary.Skipped++
				continue
			}
		}
		summary.Published++
	}

	log.Info("run finished", "fetched", summary.Fetched, "fresh", summary.Fresh, "published", summary.Published, "skipped", summary.Skipped)
	return summary, nil
}

// ScoreArticle runs gate, evaluators, peer review, consensus, verification,
// rationale selection and penalty for one article.
func (p *Pipeline) ScoreArticle(ctx context.Context, runID string, article domain.Article, expected int) (domain.Report, error) {
	log := p.logger.With("run_id", runID, "article_id", article.ID)

	verdict := p.checkGate(ctx, log, article)

	results := p.evaluators.EvaluateAll(ctx, article)
	record := p.engine.Compute(results, expected)
	if record.EvaluatorCount == 0 {
		return domain.Report{}, ErrNoScores
	}

	var (
		pairs   []domain.PeerPair
		reviews []domain.PeerReview
	)
	if p.pairing != nil {
		pairs = p.pairing.MakePairs(results)
		reviews = p.reviewer.Review(ctx, pairs, results, p.maxPeerReviews)
	}

	var responses []domain.Verification
	if p.verifier != nil {
		outcome := p.verifier.VerifyDetailed(ctx, results, record.RawConsensus)
		record.ApplyVerification(outcome.Consensus, outcome.FullyVerified)
		responses = outcome.Responses
	} else {
		record.ApplyVerification(record.RawConsensus, false)
	}

	var chosen, text string
	if p.selector != nil {
		chosen, text = p.selector.Select(ctx, results.Valid())
	}

	if verdict.Flagged {
		record.ApplyPenalty(verdict.Penalty, verdict.Reason)
	}

	log.Info("article scored",
		"raw", record.RawConsensus,
		"verified", record.VerifiedConsensus,
		"final", record.FinalConsensus,
		"fully_verified", record.Verified,
		"evaluators", record.EvaluatorCount,
	)

	return domain.Report{
		RunID:             runID,
		Article:           article,
		Consensus:         record,
		Results:           results,
		Pairs:             pairs,
		Reviews:           reviews,
		Verifications:     responses,
		SelectedEvaluator: chosen,
		SelectedRationale: text,
		Roster:            p.evaluators.Roster(),
		ProcessedAt:       p.now().UTC(),
	}, nil
}

func (p *Pipeline) filterProcessed(ctx context.Context, articles []domain.Article) ([]domain.Article, error) {
	if p.repository == nil || len(articles) == 0 {
		return articles, nil
	}
	ids := make([]string, len(articles))
	for i, art := range articles {
		ids[i] = art.ID
	}
	skip, err := p.repository.AlreadyProcessed(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load processed: %w", err)
	}
	fresh := make([]domain.Article, 0, len(articles))
	for _, art := range articles {
		if !skip[art.ID] {
			fresh = append(fresh, art)
		}
	}
	return fresh, nil
}

func (p *Pipeline) checkGate(ctx context.Context, log *slog.Logger, article domain.Article) domain.GateVerdict {
	if p.gate == nil || article.URL == "" {
		return domain.GateVerdict{}
	}
	verdict, err := p.gate.Check(ctx, article.URL)
	if err != nil {
		log.Warn("content gate failed, no penalty", "url", article.URL, "error", err)
		return domain.GateVerdict{}
	}
	if verdict.Flagged {
		log.Info("content gate flagged article", "reason", verdict.Reason, "penalty", verdict.Penalty)
	}
	return verdict
}

func (p *Pipeline) publish(ctx context.Context, log *slog.Logger, report domain.Report) {
	for _, pub := range p.publishers {
		if err := pub.Publish(ctx, report); err != nil {
			log.Warn("publish report", "publisher", fmt.Sprintf("%T", pub), "error", err)
		}
	}
}
