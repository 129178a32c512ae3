package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"NewsConsensus/internal/config"
	"NewsConsensus/internal/domain"
	"NewsConsensus/internal/ports"
)

// Client scores articles through a self-hosted HTTP scoring service.
type Client struct {
	name     string
	weight   float64
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.Evaluator = (*Client)(nil)
var _ ports.HealthChecker = (*Client)(nil)

// NewClient creates a reusable HTTP client for one configured evaluator.
func NewClient(cfg config.EvaluatorConfig, weight float64) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		name:     cfg.Name,
		weight:   weight,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string { return c.name }

func (c *Client) Weight() float64 { return c.weight }

// Evaluate sends title and description for scoring.
func (c *Client) Evaluate(ctx context.Context, article domain.Article) (domain.EvaluatorResult, error) {
	result := domain.EvaluatorResult{Evaluator: c.name, Weight: c.weight}

	payload := map[string]any{
		"title":       article.Title,
		"description": article.Description,
		"url":         article.URL,
	}

	var resp struct {
		Score     *float64 `json:"score"`
		Rationale string   `json:"rationale"`
	}
	if err := c.do(ctx, http.MethodPost, "/score", payload, &resp); err != nil {
		return result, err
	}
	if resp.Score == nil {
		return result, fmt.Errorf("%s returned no score", c.name)
	}

	result.Score = *resp.Score
	result.Scored = true
	result.Rationale = strings.TrimSpace(resp.Rationale)
	return result, nil
}

// Ping calls GET /healthz on the scoring service.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload any, v any) error {
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			return fmt.Errorf("unexpected status %s, close body: %v", resp.Status, closeErr)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if v == nil {
		if err := resp.Body.Close(); err != nil {
			return fmt.Errorf("close response body: %w", err)
		}
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		_ = resp.Body.Close()
		return fmt.Errorf("decode response: %w", err)
	}

	if err := resp.Body.Close(); err != nil {
		return fmt.Errorf("close response body: %w", err)
	}

	return nil
}
