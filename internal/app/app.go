package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"NewsConsensus/internal/config"
	"NewsConsensus/internal/consensus"
	"NewsConsensus/internal/domain"
	"NewsConsensus/internal/evaluator"
	"NewsConsensus/internal/infrastructure/console"
	"NewsConsensus/internal/infrastructure/contentgate"
	"NewsConsensus/internal/infrastructure/httpapi"
	"NewsConsensus/internal/infrastructure/llm"
	"NewsConsensus/internal/infrastructure/ml"
	"NewsConsensus/internal/infrastructure/news"
	"NewsConsensus/internal/infrastructure/scheduler"
	"NewsConsensus/internal/infrastructure/storage"
	"NewsConsensus/internal/infrastructure/telegram"
	"NewsConsensus/internal/logging"
	"NewsConsensus/internal/pairing"
	"NewsConsensus/internal/ports"
	"NewsConsensus/internal/rationale"
	"NewsConsensus/internal/scanner"
	"NewsConsensus/internal/usecase"
	"NewsConsensus/internal/verification"
)

// Independent PCG streams so each random consumer can be reproduced on its own.
const (
	streamVerification uint64 = iota + 1
	streamPairing
	streamRationale
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	db       *sql.DB
	rdb      *redis.Client
	registry *evaluator.Registry
	reports  ports.ReportRepository
	usage    ports.UsageStore
	pipeline *usecase.Pipeline
}

// EvaluatorStatus is one line of the health report.
type EvaluatorStatus struct {
	Name   string
	Weight float64
	Err    error
}

// New opens storage and builds every adapter named in cfg.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	a := &Application{cfg: cfg, logger: baseLogger}

	db, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	a.db = db
	a.reports = storage.NewReportRepository(db, cfg.Database.Driver)

	if err := a.openTracker(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}

	registry, err := buildRegistry(cfg, baseLogger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.registry = registry

	scanners := scanner.NewRegistry()
	scanners.Register(news.NewNewsAPIScanner(nil, baseLogger.With("component", "scanner.newsapi")))
	scanners.Register(news.NewNewsDataScanner(nil, baseLogger.With("component", "scanner.newsdata")))
	source := news.NewStrategySource(scanners, cfg.Sources, baseLogger.With("component", "source"))

	var gate ports.ContentGate
	if cfg.ContentGate.Enabled {
		gate = contentgate.New(cfg.ContentGate, baseLogger.With("component", "contentgate"))
	}

	var publishers []ports.Publisher
	if cfg.Console.Enabled {
		publishers = append(publishers, console.NewPublisher(os.Stdout))
	}
	if cfg.Notifications.Telegram.Enabled() {
		publishers = append(publishers, telegram.NewNotifier(cfg.Notifications.Telegram))
	}

	cc := cfg.Consensus
	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Source:     source,
		Repository: a.reports,
		Gate:       gate,
		Evaluators: registry,
		Engine:     consensus.NewEngine(cc.TrimThreshold, baseLogger.With("component", "consensus")),
		Verifier: verification.NewPass(registry.Verifier,
			newRand(cc.Seed, streamVerification), baseLogger.With("component", "verification")),
		Pairing: pairing.NewScheduler(cc.Arbiter, cc.AgreementThreshold,
			newRand(cc.Seed, streamPairing), baseLogger.With("component", "pairing")).
			WithEligibility(func(name string) bool {
				_, ok := registry.Reviewer(name)
				return ok
			}),
		Reviewer: pairing.NewReviewer(registry.Reviewer, baseLogger.With("component", "review")),
		Selector: rationale.NewSelector(a.usage, newRand(cc.Seed, streamRationale),
			rationale.Options{MinLength: cc.RationaleMinLength, Fallback: cc.FallbackEvaluator},
			baseLogger.With("component", "rationale")),
		Publishers:     publishers,
		Logger:         baseLogger.With("component", "pipeline"),
		ArticleLimit:   cc.ArticleLimit,
		MaxPeerReviews: cc.MaxPeerReviews,
	})

	return a, nil
}

func (a *Application) openTracker(ctx context.Context) error {
	tc := a.cfg.Tracker
	switch tc.Backend {
	case config.TrackerRedis:
		rdb := redis.NewClient(&redis.Options{Addr: tc.RedisAddr, DB: tc.RedisDB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return fmt.Errorf("ping redis %s: %w", tc.RedisAddr, err)
		}
		a.rdb = rdb
		a.usage = storage.NewRedisUsageStore(rdb, tc.RedisKey)
	case config.TrackerMemory:
		a.usage = storage.NewMemoryUsageStore()
	default:
		a.usage = storage.NewSQLUsageStore(a.db, a.cfg.Database.Driver)
	}
	return nil
}

func buildRegistry(cfg config.Config, logger *slog.Logger) (*evaluator.Registry, error) {
	registry := evaluator.NewRegistry(logger.With("component", "evaluators"))
	for _, ec := range cfg.Evaluators {
		ev, err := buildEvaluator(ec, ec.WeightFor(cfg.Consensus.Arbiter), logger)
		if err != nil {
			return nil, err
		}
		registry.Register(ev)
	}
	return registry, nil
}

func buildEvaluator(ec config.EvaluatorConfig, weight float64, logger *slog.Logger) (ports.Evaluator, error) {
	log := logger.With("component", "evaluator", "evaluator", ec.Name)
	switch ec.Provider {
	case config.ProviderOpenAI:
		return evaluator.NewLLMEvaluator(ec.Name, weight, llm.NewOpenAIClient(ec), log), nil
	case config.ProviderAnthropic:
		return evaluator.NewLLMEvaluator(ec.Name, weight, llm.NewAnthropicClient(ec), log), nil
	case config.ProviderGemini:
		return evaluator.NewLLMEvaluator(ec.Name, weight, llm.NewGeminiClient(ec), log), nil
	case config.ProviderHTTP:
		return ml.NewClient(ec, weight), nil
	case config.ProviderStatic:
		return evaluator.NewStaticEvaluator(ec.Name, weight, ec.Score), nil
	default:
		return nil, fmt.Errorf("evaluator %s: unknown provider %q: %w", ec.Name, ec.Provider, config.ErrInvalid)
	}
}

func newRand(seed, stream uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, stream))
}

// Run performs a single pipeline pass for today in the scheduler timezone.
func (a *Application) Run(ctx context.Context) (usecase.RunSummary, error) {
	now := time.Now().In(a.cfg.Scheduler.Location())
	return a.pipeline.ProcessDay(ctx, now)
}

// Serve runs recurring passes and the status API until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	sched := usecase.NewScheduler(
		scheduler.NewTicker(a.cfg.Scheduler.Interval),
		a.pipeline,
		a.cfg.Scheduler.Location(),
		a.logger.With("component", "scheduler"),
	)
	router := httpapi.NewRouter(httpapi.Deps{
		Reports: a.reports,
		Usage:   a.usage,
		Logger:  a.logger.With("component", "http"),
	})
	server := httpapi.NewServer(a.cfg.HTTP.Addr, router, a.logger.With("component", "http"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := sched.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		return sched.Stop(stopCtx)
	})
	g.Go(func() error { return server.Run(gctx) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Health pings every evaluator and returns their status in registry order.
func (a *Application) Health(ctx context.Context) ([]EvaluatorStatus, int) {
	errs, healthy := a.registry.HealthCheck(ctx)
	evaluators := a.registry.Evaluators()
	out := make([]EvaluatorStatus, 0, len(evaluators))
	for _, ev := range evaluators {
		out = append(out, EvaluatorStatus{Name: ev.Name(), Weight: ev.Weight(), Err: errs[ev.Name()]})
	}
	return out, healthy
}

// UsageRow is one evaluator's rationale usage.
type UsageRow struct {
	Evaluator string
	domain.Usage
}

// Usage returns the rationale usage table sorted by evaluator name.
func (a *Application) Usage(ctx context.Context) ([]UsageRow, error) {
	table, err := a.usage.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rationale usage: %w", err)
	}
	rows := make([]UsageRow, 0, len(table))
	for name, u := range table {
		rows = append(rows, UsageRow{Evaluator: name, Usage: u})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Evaluator < rows[j].Evaluator })
	return rows, nil
}

// Close releases storage connections.
func (a *Application) Close() error {
	var errs []error
	if a.rdb != nil {
		errs = append(errs, a.rdb.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
