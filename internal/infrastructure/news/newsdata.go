package news

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"NewsConsensus/internal/domain"
	"NewsConsensus/internal/logging"
	"NewsConsensus/internal/scanner"
)

// NewsDataScanner queries newsdata.io /api/1/news.
type NewsDataScanner struct {
	client *http.Client
	logger *slog.Logger
}

var _ scanner.Scanner = (*NewsDataScanner)(nil)

func NewNewsDataScanner(client *http.Client, logger *slog.Logger) *NewsDataScanner {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &NewsDataScanner{client: client, logger: logging.OrDiscard(logger)}
}

func (s *NewsDataScanner) Kind() string { return "newsdata" }

type newsDataResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Title       string   `json:"title"`
		Link        string   `json:"link"`
		Description string   `json:"description"`
		SourceID    string   `json:"source_id"`
		Creator     []string `json:"creator"`
		PubDate     string   `json:"pubDate"`
	} `json:"results"`
}

// Scan joins the configured queries into a single OR query.
func (s *NewsDataScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Article, error) {
	if req.APIKey == "" {
		return nil, fmt.Errorf("%s: api key is not configured", req.SourceName)
	}

	params := url.Values{}
	params.Set("apikey", req.APIKey)
	if len(req.Queries) > 0 {
		params.Set("q", strings.Join(req.Queries, " OR "))
	}
	if req.Language != "" {
		params.Set("language", req.Language)
	}
	if req.Category != "" {
		params.Set("category", req.Category)
	}
	if req.PageSize > 0 {
		params.Set("size", strconv.Itoa(req.PageSize))
	}

	var resp newsDataResponse
	if err := getJSON(ctx, s.client, req.Endpoint, params, &resp); err != nil {
		return nil, fmt.Errorf("scan %s: %w", req.SourceName, err)
	}
	if resp.Status != "" && resp.Status != "success" {
		return nil, fmt.Errorf("scan %s: status %s", req.SourceName, resp.Status)
	}

	articles := make([]domain.Article, 0, len(resp.Results))
	for _, a := range resp.Results {
		author := ""
		if len(a.Creator) > 0 {
			author = a.Creator[0]
		}
		articles = append(articles, domain.Article{
			ID:          domain.ArticleID(a.Link),
			Title:       strings.TrimSpace(a.Title),
			Description: strings.TrimSpace(a.Description),
			URL:         a.Link,
			Publisher:   a.SourceID,
			Author:      author,
			Source:      req.SourceName,
			PublishedAt: parseTime(a.PubDate),
		})
	}
	s.logger.Debug("newsdata scanned", "source", req.SourceName, "count", len(articles))
	return articles, nil
}
