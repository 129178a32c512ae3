package evaluator

import (
	"fmt"
	"strconv"
	"strings"

	"NewsConsensus/internal/domain"
)

const scoringTemplate = `Rate this news article for LinkedIn shareability (0-100%%).

SCORING CRITERIA:
- Credibility & sourcing (named sources, evidence)
- Accuracy & verification (verifiable facts)
- Objectivity & bias (multiple perspectives, neutral tone)
- Structure & clarity (headline accuracy, logical flow)
- Timeliness & relevance (current, newsworthy)
- Journalistic ethics (avoids manipulation)

Title: %s
Description: %s

Return JSON only: {"score": <0-100>, "rationale": "<2-3 sentence explanation>"}`

const verificationTemplate = `Verify this consensus calculation:

Individual Scores: %s
Calculated Consensus: %d%%
Number of LLMs: %d

Check if the average is correct. Return JSON: {"verified_consensus": <your calculation>, "matches": <true/false>, "note": "<any discrepancy>"}`

const reviewTemplate = `Review this news article evaluation and suggest edits:

Original Score: %s%%
Original Rationale: %s

Provide your critique and suggested adjusted score (if any).
Return JSON: {"suggested_score": <0-100>, "critique": "<brief critique>", "accept_original": <true/false>}`

const pingPrompt = `Reply with the single word: ok`

func scoringPrompt(a domain.Article) string {
	return fmt.Sprintf(scoringTemplate, strings.TrimSpace(a.Title), strings.TrimSpace(a.Description))
}

func verificationPrompt(req domain.VerificationRequest) string {
	valid := req.Scores.Valid()
	parts := make([]string, 0, len(valid))
	for _, r := range valid {
		parts = append(parts, fmt.Sprintf("%s=%s%%", r.Evaluator, formatScore(r.Score)))
	}
	return fmt.Sprintf(verificationTemplate, strings.Join(parts, ", "), req.Consensus, len(valid))
}

func reviewPrompt(req domain.ReviewRequest) string {
	return fmt.Sprintf(reviewTemplate, formatScore(req.Score), strings.TrimSpace(req.Rationale))
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
