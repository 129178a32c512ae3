// Package news implements scanners for upstream news APIs.
package news

import (
	"context"
	"encoding/json"
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

// NewsAPIScanner queries newsapi.org /v2/everything once per configured query.
type NewsAPIScanner struct {
	client *http.Client
	logger *slog.Logger
}

var _ scanner.Scanner = (*NewsAPIScanner)(nil)

func NewNewsAPIScanner(client *http.Client, logger *slog.Logger) *NewsAPIScanner {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &NewsAPIScanner{client: client, logger: logging.OrDiscard(logger)}
}

func (s *NewsAPIScanner) Kind() string { return "newsapi" }

type newsAPIResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Author      string `json:"author"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

// Scan runs every query; a failing query is logged and skipped.
func (s *NewsAPIScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Article, error) {
	if req.APIKey == "" {
		return nil, fmt.Errorf("%s: api key is not configured", req.SourceName)
	}

	var (
		articles []domain.Article
		lastErr  error
		ok       int
	)
	for _, q := range req.Queries {
		params := url.Values{}
		params.Set("q", q)
		params.Set("sortBy", "publishedAt")
		params.Set("apiKey", req.APIKey)
		if req.Language != "" {
			params.Set("language", req.Language)
		}
		if req.PageSize > 0 {
			params.Set("pageSize", strconv.Itoa(req.PageSize))
		}

		var resp newsAPIResponse
		if err := getJSON(ctx, s.client, req.Endpoint, params, &resp); err != nil {
			s.logger.Warn("newsapi query failed", "source", req.SourceName, "query", q, "error", err)
			lastErr = err
			continue
		}
		if resp.Status != "" && resp.Status != "ok" {
			lastErr = fmt.Errorf("newsapi status %s: %s", resp.Status, resp.Message)
			s.logger.Warn("newsapi query rejected", "source", req.SourceName, "query", q, "error", lastErr)
			continue
		}
		ok++

		for _, a := range resp.Articles {
			articles = append(articles, domain.Article{
				ID:          domain.ArticleID(a.URL),
				Title:       strings.TrimSpace(a.Title),
				Description: strings.TrimSpace(a.Description),
				URL:         a.URL,
				Publisher:   a.Source.Name,
				Author:      a.Author,
				Source:      req.SourceName,
				PublishedAt: parseTime(a.PublishedAt),
			})
		}
	}

	if ok == 0 && lastErr != nil {
		return nil, fmt.Errorf("scan %s: %w", req.SourceName, lastErr)
	}
	return articles, nil
}

func getJSON(ctx context.Context, client *http.Client, endpoint string, params url.Values, v any) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	for k, vals := range params {
		for _, val := range vals {
			q.Add(k, val)
		}
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
