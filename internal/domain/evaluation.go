package domain

import (
	"fmt"
	"math"
	"time"
)

// EvaluatorResult is one evaluator's verdict on one article.
type EvaluatorResult struct {
	Evaluator string
	Score     float64
	Scored    bool
	Rationale string
	Weight    float64
}

// Valid reports whether the result carries a usable score.
func (r EvaluatorResult) Valid() bool {
	if !r.Scored {
		return false
	}
	if math.IsNaN(r.Score) || math.IsInf(r.Score, 0) {
		return false
	}
	return r.Score >= 0
}

// EffectiveWeight returns the weight used for averaging; negative or NaN weights count as zero.
func (r EvaluatorResult) EffectiveWeight() float64 {
	if math.IsNaN(r.Weight) || math.IsInf(r.Weight, 0) || r.Weight < 0 {
		return 0
	}
	return r.Weight
}

// ResultSet holds every evaluator result for a single article in registry order.
type ResultSet []EvaluatorResult

// Valid returns the results with usable scores, preserving order.
func (rs ResultSet) Valid() ResultSet {
	out := make(ResultSet, 0, len(rs))
	for _, r := range rs {
		if r.Valid() {
			out = append(out, r)
		}
	}
	return out
}

// Names lists evaluator names in order.
func (rs ResultSet) Names() []string {
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = r.Evaluator
	}
	return names
}

// Lookup finds the result produced by the named evaluator.
func (rs ResultSet) Lookup(name string) (EvaluatorResult, bool) {
	for _, r := range rs {
		if r.Evaluator == name {
			return r, true
		}
	}
	return EvaluatorResult{}, false
}

// ConsensusRecord is the aggregated outcome for one article.
type ConsensusRecord struct {
	RawConsensus      int
	VerifiedConsensus int
	FinalConsensus    int
	Verified          bool
	Confidence        float64
	StdDev            float64
	Contributors      []string
	Dropped           []string
	EvaluatorCount    int
	ExpectedCount     int
	Penalty           float64
	PenaltyReason     string
}

// ApplyVerification records the cross-verification outcome.
func (c *ConsensusRecord) ApplyVerification(value int, verified bool) {
	c.VerifiedConsensus = clampPercent(value)
	c.Verified = verified
	c.FinalConsensus = c.VerifiedConsensus
}

// ApplyPenalty subtracts the content penalty from the verified consensus, floored at zero.
func (c *ConsensusRecord) ApplyPenalty(penalty float64, reason string) {
	if math.IsNaN(penalty) || penalty < 0 {
		penalty = 0
	}
	c.VerifiedConsensus = clampPercent(c.VerifiedConsensus)
	c.Penalty = penalty
	c.PenaltyReason = reason
	c.FinalConsensus = RoundHalfUp(math.Max(0, float64(c.VerifiedConsensus)-penalty))
}

// Summary renders the "4/5 ✓ (77%)" column used by publishers.
func (c ConsensusRecord) Summary(roster int) string {
	mark := "?"
	if c.Verified {
		mark = "✓"
	}
	return fmt.Sprintf("%d/%d %s (%.0f%%)", c.EvaluatorCount, roster, mark, c.Confidence)
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// RoundHalfUp rounds to the nearest integer with .5 going up.
func RoundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

// Usage is one evaluator's rationale usage counter.
type Usage struct {
	Uses            int `json:"uses"`
	TotalEngagement int `json:"total_engagement"`
}

// UsageTable is the persisted rationale usage tracker state.
type UsageTable map[string]Usage

// Clone returns an independent copy of the table.
func (t UsageTable) Clone() UsageTable {
	out := make(UsageTable, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// PairOutcome classifies how close two paired evaluators scored.
type PairOutcome string

const (
	OutcomeAgreement    PairOutcome = "agreement"
	OutcomeDisagreement PairOutcome = "disagreement"
)

// PeerPair is one pairing round entry.
type PeerPair struct {
	A       string
	B       string
	Outcome PairOutcome
}

// Verification is a single verifier's answer about a computed consensus.
type Verification struct {
	Evaluator         string
	VerifiedConsensus float64
	Matches           bool
	Note              string
}

// VerificationRequest is what a verifier is asked to check.
type VerificationRequest struct {
	Scores    ResultSet
	Consensus int
}

// ReviewRequest asks one evaluator to critique another's score.
type ReviewRequest struct {
	Reviewed  string
	Score     float64
	Rationale string
}

// PeerReview is a reviewer's critique of a paired evaluator's score.
type PeerReview struct {
	Reviewer       string
	Reviewed       string
	SuggestedScore float64
	Critique       string
	AcceptOriginal bool
}

// Report bundles everything publishers need about one processed article.
type Report struct {
	RunID             string
	Article           Article
	Consensus         ConsensusRecord
	Results           ResultSet
	Pairs             []PeerPair
	Reviews           []PeerReview
	Verifications     []Verification
	SelectedEvaluator string
	SelectedRationale string
	Roster            int
	ProcessedAt       time.Time
}
