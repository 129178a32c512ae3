package llm

import (
	"context"
	"fmt"
	"strings"

	"NewsConsensus/internal/config"
	"NewsConsensus/internal/ports"
)

// OpenAIClient implements ports.Completer backed by OpenAI-compatible chat APIs
// (OpenAI, xAI Grok, Perplexity).
type OpenAIClient struct {
	endpoint  string
	model     string
	apiKey    string
	maxTokens int
	transport transport
}

var _ ports.Completer = (*OpenAIClient)(nil)

// NewOpenAIClient builds a client from configuration.
func NewOpenAIClient(cfg config.EvaluatorConfig, opts ...Option) *OpenAIClient {
	return &OpenAIClient{
		endpoint:  cfg.Endpoint,
		model:     cfg.Model,
		apiKey:    cfg.APIKey,
		maxTokens: cfg.MaxTokens,
		transport: newTransport(cfg.Name, cfg.Timeout, cfg.Retries, opts),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete posts the prompt as a single user message.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("openai client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("%s client misconfigured", c.transport.provider)
	}

	var resp chatResponse
	err := c.transport.postJSON(ctx, c.endpoint, map[string]string{
		"Authorization": "Bearer " + c.apiKey,
	}, chatRequest{
		Model:     c.model,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens: c.maxTokens,
	}, &resp)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}
