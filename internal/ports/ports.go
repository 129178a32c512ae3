package ports

import (
	"context"
	"time"

	"NewsConsensus/internal/domain"
)

// ArticleSource pulls fresh articles from upstream news providers.
type ArticleSource interface {
	FetchDaily(ctx context.Context, day time.Time) ([]domain.Article, error)
}

// ReportRepository persists processed articles for deduplication/history.
type ReportRepository interface {
	AlreadyProcessed(ctx context.Context, ids []string) (map[string]bool, error)
	SaveReport(ctx context.Context, report domain.Report) error
	RecentReports(ctx context.Context, limit int) ([]domain.Report, error)
}

// Completer sends a single prompt to an LLM chat endpoint and returns the reply text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Evaluator scores an article; one per configured scoring source.
type Evaluator interface {
	Name() string
	Weight() float64
	Evaluate(ctx context.Context, article domain.Article) (domain.EvaluatorResult, error)
}

// Verifier re-checks a computed consensus.
type Verifier interface {
	VerifyConsensus(ctx context.Context, req domain.VerificationRequest) (domain.Verification, error)
}

// PeerReviewer critiques another evaluator's score.
type PeerReviewer interface {
	ReviewScore(ctx context.Context, req domain.ReviewRequest) (domain.PeerReview, error)
}

// HealthChecker reports whether the backing service answers at all.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// ContentGate flags paywalled or low-content articles before scoring.
type ContentGate interface {
	Check(ctx context.Context, url string) (domain.GateVerdict, error)
}

// UsageStore persists the rationale usage tracker.
type UsageStore interface {
	Load(ctx context.Context) (domain.UsageTable, error)
	Save(ctx context.Context, table domain.UsageTable) error
}

// Publisher writes a finished report to a spreadsheet, chat or display surface.
type Publisher interface {
	Publish(ctx context.Context, report domain.Report) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
