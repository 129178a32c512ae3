package llm

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"NewsConsensus/internal/config"
	"NewsConsensus/internal/ports"
)

// GeminiClient implements ports.Completer against generateContent.
type GeminiClient struct {
	endpoint  string
	model     string
	apiKey    string
	transport transport
}

var _ ports.Completer = (*GeminiClient)(nil)

func NewGeminiClient(cfg config.EvaluatorConfig, opts ...Option) *GeminiClient {
	return &GeminiClient{
		endpoint:  strings.TrimRight(cfg.Endpoint, "/"),
		model:     cfg.Model,
		apiKey:    cfg.APIKey,
		transport: newTransport(cfg.Name, cfg.Timeout, cfg.Retries, opts),
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" || c.endpoint == "" {
		return "", fmt.Errorf("%s client misconfigured", c.transport.provider)
	}

	var resp geminiResponse
	err := c.transport.postJSON(ctx, c.url(), nil, geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	}, &resp)
	if err != nil {
		return "", err
	}

	if len(resp.Candidates) == 0 {
		return "", ErrEmptyResponse
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

// url accepts either a models base URL or a full :generateContent URL.
func (c *GeminiClient) url() string {
	base := c.endpoint
	if !strings.Contains(base, ":generateContent") {
		base = base + "/" + c.model + ":generateContent"
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "key=" + url.QueryEscape(c.apiKey)
}
