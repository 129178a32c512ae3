package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrEmptyResponse is returned when a provider answers 2xx without any text.
var ErrEmptyResponse = errors.New("llm returned empty response")

const maxResponseBytes = 1 << 20

// Option tweaks the HTTP behaviour shared by all clients.
type Option func(*transport)

// WithHTTPClient replaces the default client, e.g. in tests.
func WithHTTPClient(c *http.Client) Option {
	return func(t *transport) { t.http = c }
}

// WithBackoff sets the initial retry delay.
func WithBackoff(d time.Duration) Option {
	return func(t *transport) { t.backoff = d }
}

type transport struct {
	provider string
	http     *http.Client
	attempts int
	backoff  time.Duration
}

func newTransport(provider string, timeout time.Duration, retries int, opts []Option) transport {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	t := transport{
		provider: provider,
		http:     &http.Client{Timeout: timeout},
		attempts: retries + 1,
		backoff:  2 * time.Second,
	}
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

func (t transport) postJSON(ctx context.Context, url string, headers map[string]string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", t.provider, err)
	}

	status, raw, err := doWithRetry(ctx, t.attempts, t.backoff, func() (int, []byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return 0, nil, fmt.Errorf("new request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, val := range headers {
			req.Header.Set(k, val)
		}

		resp, err := t.http.Do(req)
		if err != nil {
			return 0, nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		return resp.StatusCode, data, err
	})
	if err != nil {
		return fmt.Errorf("%s request: %w", t.provider, err)
	}
	if status >= http.StatusBadRequest {
		if len(raw) > 1024 {
			raw = raw[:1024]
		}
		return fmt.Errorf("%s error %d: %s", t.provider, status, strings.TrimSpace(string(raw)))
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s response: %w", t.provider, err)
	}
	return nil
}
