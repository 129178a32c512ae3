package scanner

import (
	"context"
	"fmt"
	"sort"
	"time"

	"NewsConsensus/internal/domain"
)

// Request carries all parameters required to query one configured news source.
type Request struct {
	Day        time.Time
	SourceName string
	Endpoint   string
	APIKey     string
	Queries    []string
	Language   string
	Category   string
	PageSize   int
}

// Scanner captures a single provider implementation (NewsAPI, NewsData, etc.).
type Scanner interface {
	Kind() string
	Scan(ctx context.Context, req Request) ([]domain.Article, error)
}

// Registry keeps a mapping from provider kinds to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Kind()] = scanner
}

// Resolve returns a scanner by kind or an error if it is absent.
func (r *Registry) Resolve(kind string) (Scanner, error) {
	if scanner, ok := r.scanners[kind]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", kind)
}

// Kinds lists registered kinds, sorted.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.scanners))
	for k := range r.scanners {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
