package llm

import (
	"context"
	"fmt"
	"strings"

	"NewsConsensus/internal/config"
	"NewsConsensus/internal/ports"
)

const (
	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 300
)

// AnthropicClient implements ports.Completer against the Messages API.
type AnthropicClient struct {
	endpoint  string
	model     string
	apiKey    string
	maxTokens int
	transport transport
}

var _ ports.Completer = (*AnthropicClient)(nil)

func NewAnthropicClient(cfg config.EvaluatorConfig, opts ...Option) *AnthropicClient {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicMaxTokens
	}
	return &AnthropicClient{
		endpoint:  cfg.Endpoint,
		model:     cfg.Model,
		apiKey:    cfg.APIKey,
		maxTokens: maxTokens,
		transport: newTransport(cfg.Name, cfg.Timeout, cfg.Retries, opts),
	}
}

type anthropicRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (c *AnthropicClient) Complete(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("%s client misconfigured", c.transport.provider)
	}

	var resp anthropicResponse
	err := c.transport.postJSON(ctx, c.endpoint, map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": anthropicVersion,
	}, anthropicRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
	}, &resp)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "" || block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}
