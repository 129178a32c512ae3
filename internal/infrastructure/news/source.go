package news

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"NewsConsensus/internal/config"
	"NewsConsensus/internal/domain"
	"NewsConsensus/internal/ports"
	"NewsConsensus/internal/scanner"
)

// StrategySource implements ArticleSource via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	sources  []config.SourceConfig
	logger   *slog.Logger
}

var _ ports.ArticleSource = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry with config-defined sources.
func NewStrategySource(reg *scanner.Registry, sources []config.SourceConfig, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		sources:  sources,
		logger:   log,
	}
}

// FetchDaily runs every configured source and drops articles whose lower-cased
// title was already seen. A failing source is skipped unless all of them fail.
func (s *StrategySource) FetchDaily(ctx context.Context, day time.Time) ([]domain.Article, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	s.debug("fetch daily", "sources", len(s.sources), "day", day.Format("2006-01-02"))

	var (
		aggregated []domain.Article
		errs       []error
		seen       = map[string]bool{}
	)
	for _, src := range s.sources {
		strategy, err := s.registry.Resolve(src.Kind)
		if err != nil {
			errs = append(errs, fmt.Errorf("source %s: %w", src.Name, err))
			continue
		}

		results, err := strategy.Scan(ctx, scanner.Request{
			Day:        day,
			SourceName: src.Name,
			Endpoint:   src.Endpoint,
			APIKey:     src.APIKey,
			Queries:    src.Queries,
			Language:   src.Language,
			Category:   src.Category,
			PageSize:   src.PageSize,
		})
		if err != nil {
			s.warn("source failed", "source", src.Name, "error", err)
			errs = append(errs, err)
			continue
		}

		kept := 0
		for _, a := range results {
			key := strings.ToLower(strings.TrimSpace(a.Title))
			if key == "" || key == "[removed]" || a.URL == "" || seen[key] {
				continue
			}
			seen[key] = true
			if a.Source == "" {
				a.Source = src.Name
			}
			aggregated = append(aggregated, a)
			kept++
		}
		s.debug("source produced articles", "source", src.Name, "fetched", len(results), "kept", kept)
	}

	if len(errs) > 0 && len(errs) == len(s.sources) {
		return nil, fmt.Errorf("all sources failed: %w", errors.Join(errs...))
	}

	s.debug("strategy source done", "total_articles", len(aggregated))
	return aggregated, nil
}

func (s *StrategySource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *StrategySource) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
