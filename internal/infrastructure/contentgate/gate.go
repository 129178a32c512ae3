// Package contentgate flags paywalled or thin articles before they are scored.
package contentgate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"NewsConsensus/internal/config"
	"NewsConsensus/internal/domain"
	"NewsConsensus/internal/logging"
	"NewsConsensus/internal/ports"
)

const maxPageBytes = 4 << 20

var paywallSelectors = strings.Join([]string{
	".paywall",
	"[class*='paywall']",
	"[id*='paywall']",
	"[data-paywall]",
	".subscriber-only",
	".premium-content",
	"[class*='regwall']",
}, ", ")

var paywallPhrases = []string{
	"subscribe to continue reading",
	"subscribe to read",
	"this article is for subscribers",
	"already a subscriber",
	"to continue reading, subscribe",
}

// Gate fetches an article page and decides whether its score should be penalised.
type Gate struct {
	client    *http.Client
	domains   []string
	minWords  int
	penalty   float64
	userAgent string
	logger    *slog.Logger
}

var _ ports.ContentGate = (*Gate)(nil)

// New builds a gate from configuration.
func New(cfg config.ContentGateConfig, logger *slog.Logger) *Gate {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	domains := make([]string, 0, len(cfg.PaywallDomains))
	for _, d := range cfg.PaywallDomains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			domains = append(domains, strings.TrimPrefix(d, "www."))
		}
	}
	return &Gate{
		client:    &http.Client{Timeout: timeout},
		domains:   domains,
		minWords:  cfg.MinWords,
		penalty:   cfg.Penalty,
		userAgent: cfg.UserAgent,
		logger:    logging.OrDiscard(logger),
	}
}

// Check returns a verdict for rawURL. Fetch or parse failures are returned as
// errors; callers treat them as "not flagged".
func (g *Gate) Check(ctx context.Context, rawURL string) (domain.GateVerdict, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return domain.GateVerdict{}, fmt.Errorf("parse article url %q: %w", rawURL, errOrInvalid(err))
	}

	if d, ok := g.paywallDomain(u.Hostname()); ok {
		return g.flag("paywall domain " + d), nil
	}

	page, err := g.fetch(ctx, rawURL)
	if err != nil {
		return domain.GateVerdict{}, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return domain.GateVerdict{}, fmt.Errorf("parse page: %w", err)
	}
	if reason, ok := paywallMarker(doc); ok {
		return g.flag(reason), nil
	}

	if g.minWords > 0 {
		words, err := mainTextWords(page, u)
		if err != nil {
			g.logger.Debug("readability failed, counting body text", "url", rawURL, "error", err)
			words = len(strings.Fields(doc.Find("body").Text()))
		}
		if words < g.minWords {
			return g.flag(fmt.Sprintf("thin content (%d words)", words)), nil
		}
	}

	return domain.GateVerdict{}, nil
}

func (g *Gate) flag(reason string) domain.GateVerdict {
	return domain.GateVerdict{Flagged: true, Penalty: g.penalty, Reason: reason}
}

func (g *Gate) paywallDomain(host string) (string, bool) {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	for _, d := range g.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return d, true
		}
	}
	return "", false
}

func (g *Gate) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch page: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	return body, nil
}

func paywallMarker(doc *goquery.Document) (string, bool) {
	if doc.Find(paywallSelectors).Length() > 0 {
		return "paywall markup", true
	}

	found := false
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		compact := strings.Join(strings.Fields(s.Text()), "")
		if strings.Contains(compact, `"isAccessibleForFree":false`) || strings.Contains(compact, `"isAccessibleForFree":"False"`) {
			found = true
			return false
		}
		return true
	})
	if found {
		return "structured data marks article as not free", true
	}

	text := strings.ToLower(doc.Find("body").Text())
	for _, phrase := range paywallPhrases {
		if strings.Contains(text, phrase) {
			return "paywall prompt: " + phrase, true
		}
	}
	return "", false
}

func mainTextWords(page []byte, u *url.URL) (int, error) {
	parser := readability.NewParser()
	article, err := parser.Parse(bytes.NewReader(page), u)
	if err != nil {
		return 0, fmt.Errorf("extract main text: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return 0, fmt.Errorf("parse main text: %w", err)
	}
	return len(strings.Fields(doc.Text())), nil
}

func errOrInvalid(err error) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("missing host")
}
