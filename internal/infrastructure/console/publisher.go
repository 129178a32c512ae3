// Package console prints finished reports as styled terminal cards.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"NewsConsensus/internal/domain"
	"NewsConsensus/internal/ports"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA"))
	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))
	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#4CAF50"))
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1).
			Width(78)
)

// Publisher writes one card per report.
type Publisher struct {
	mu  sync.Mutex
	out io.Writer
}

var _ ports.Publisher = (*Publisher)(nil)

// NewPublisher writes to out, or stdout when out is nil.
func NewPublisher(out io.Writer) *Publisher {
	if out == nil {
		out = os.Stdout
	}
	return &Publisher{out: out}
}

func (p *Publisher) Publish(_ context.Context, report domain.Report) error {
	card := boxStyle.Render(Render(report))

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := fmt.Fprintln(p.out, card); err != nil {
		return fmt.Errorf("write report card: %w", err)
	}
	return nil
}

// Render formats the card body without the border.
func Render(report domain.Report) string {
	c := report.Consensus

	consensus := fmt.Sprintf("%d%%", c.FinalConsensus)
	if c.Verified {
		consensus = okStyle.Render(consensus)
	} else {
		consensus = warnStyle.Render(consensus)
	}

	lines := []string{
		titleStyle.Render(report.Article.Title),
		labelStyle.Render(publisherLine(report.Article)),
		fmt.Sprintf("%s %s   %s %s",
			labelStyle.Render("Consensus:"), consensus,
			labelStyle.Render("AI Radar:"), c.Summary(report.Roster)),
	}

	scores := make([]string, 0, len(report.Results))
	for _, r := range report.Results {
		if r.Valid() {
			scores = append(scores, fmt.Sprintf("%s %.0f", r.Evaluator, r.Score))
		} else {
			scores = append(scores, r.Evaluator+" –")
		}
	}
	if len(scores) > 0 {
		lines = append(lines, labelStyle.Render("Scores: ")+strings.Join(scores, " · "))
	}
	if len(c.Dropped) > 0 {
		lines = append(lines, labelStyle.Render("Trimmed: ")+strings.Join(c.Dropped, ", "))
	}
	if c.Penalty > 0 {
		lines = append(lines, warnStyle.Render(fmt.Sprintf("Penalty -%.0f: %s", c.Penalty, c.PenaltyReason)))
	}
	if report.SelectedRationale != "" {
		lines = append(lines, labelStyle.Render("Why ("+report.SelectedEvaluator+"): ")+report.SelectedRationale)
	}
	if report.Article.URL != "" {
		lines = append(lines, report.Article.URL)
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func publisherLine(a domain.Article) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{a.Publisher, a.Author} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	if !a.PublishedAt.IsZero() {
		parts = append(parts, a.PublishedAt.Format("2006-01-02"))
	}
	return strings.Join(parts, " · ")
}
