package telegram

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"
	"time"

	"NewsConsensus/internal/config"
	"NewsConsensus/internal/domain"
	"NewsConsensus/internal/ports"
)

const defaultEndpoint = "https://api.telegram.org"

// Notifier sends report messages to a Telegram chat via bot API.
type Notifier struct {
	endpoint string
	botToken string
	chatID   string
	client   *http.Client
}

var _ ports.Publisher = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(cfg config.TelegramConfig) *Notifier {
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Notifier{
		endpoint: endpoint,
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Publish posts an HTML message describing the report.
func (n *Notifier) Publish(ctx context.Context, report domain.Report) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.endpoint, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", Message(report))
	form.Set("parse_mode", "HTML")
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}

// Message renders the report as Telegram HTML.
func Message(report domain.Report) string {
	c := report.Consensus
	var b strings.Builder

	fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(report.Article.Title))
	if report.Article.Publisher != "" {
		fmt.Fprintf(&b, "<i>%s</i>\n", html.EscapeString(report.Article.Publisher))
	}
	fmt.Fprintf(&b, "Consensus: <b>%d%%</b> | AI Radar: %s\n", c.FinalConsensus, html.EscapeString(c.Summary(report.Roster)))
	if c.Penalty > 0 {
		fmt.Fprintf(&b, "Penalty: -%.0f (%s)\n", c.Penalty, html.EscapeString(c.PenaltyReason))
	}
	if report.SelectedRationale != "" {
		fmt.Fprintf(&b, "\n%s: %s\n", html.EscapeString(report.SelectedEvaluator), html.EscapeString(report.SelectedRationale))
	}
	if report.Article.URL != "" {
		fmt.Fprintf(&b, "\n%s", html.EscapeString(report.Article.URL))
	}
	return strings.TrimRight(b.String(), "\n")
}
