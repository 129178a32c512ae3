// Package consensus aggregates per-evaluator scores into a single article score.
package consensus

import (
	"log/slog"
	"math"
	"sort"

	"NewsConsensus/internal/domain"
	"NewsConsensus/internal/logging"
)

// DefaultTrimThreshold is the number of valid scores from which the extremes are dropped.
const DefaultTrimThreshold = 4

// Engine computes trimmed weighted averages with a dispersion-based confidence.
type Engine struct {
	trimThreshold int
	logger        *slog.Logger
}

// NewEngine builds an engine; trimThreshold <= 0 selects DefaultTrimThreshold.
func NewEngine(trimThreshold int, logger *slog.Logger) *Engine {
	if trimThreshold <= 0 {
		trimThreshold = DefaultTrimThreshold
	}
	return &Engine{trimThreshold: trimThreshold, logger: logging.OrDiscard(logger)}
}

// Compute aggregates results. expectedCount <= 0 means the expected roster size is unknown.
func (e *Engine) Compute(results domain.ResultSet, expectedCount int) domain.ConsensusRecord {
	valid := results.Valid()
	record := domain.ConsensusRecord{ExpectedCount: expectedCount}
	if len(valid) == 0 {
		e.logger.Warn("no valid evaluator scores", "expected", expectedCount)
		return record
	}

	record.Contributors = valid.Names()
	record.EvaluatorCount = len(valid)

	kept := valid
	if len(valid) >= e.trimThreshold {
		sorted := make(domain.ResultSet, len(valid))
		copy(sorted, valid)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score < sorted[j].Score })

		low, high := sorted[0], sorted[len(sorted)-1]
		kept = sorted[1 : len(sorted)-1]
		record.Dropped = []string{low.Evaluator, high.Evaluator}
		e.logger.Debug("outliers dropped",
			"low", low.Evaluator, "low_score", low.Score,
			"high", high.Evaluator, "high_score", high.Score)
	}

	record.RawConsensus = WeightedAverage(kept)
	record.StdDev = PopulationStdDev(valid)
	record.Confidence = Confidence(record.StdDev)
	record.VerifiedConsensus = record.RawConsensus
	record.FinalConsensus = record.RawConsensus

	if expectedCount > 0 && expectedCount != len(valid) {
		e.logger.Warn("evaluator count changed",
			"expected", expectedCount, "actual", len(valid), "contributors", record.Contributors)
	}

	e.logger.Info("consensus computed",
		"consensus", record.RawConsensus,
		"confidence", math.Round(record.Confidence),
		"std_dev", record.StdDev,
		"contributors", record.Contributors)

	return record
}

// WeightedAverage returns round-half-up(Σ score×weight / Σ weight), or 0 when the total weight is 0.
func WeightedAverage(results domain.ResultSet) int {
	var sum, total float64
	for _, r := range results {
		w := r.EffectiveWeight()
		sum += r.Score * w
		total += w
	}
	if total == 0 {
		return 0
	}
	return domain.RoundHalfUp(sum / total)
}

// PopulationStdDev is the standard deviation (divide by N) of the scores around their unweighted mean.
func PopulationStdDev(results domain.ResultSet) float64 {
	if len(results) == 0 {
		return 0
	}
	var mean float64
	for _, r := range results {
		mean += r.Score
	}
	mean /= float64(len(results))

	var variance float64
	for _, r := range results {
		d := r.Score - mean
		variance += d * d
	}
	variance /= float64(len(results))
	return math.Sqrt(variance)
}

// Confidence maps a standard deviation onto 0..100.
func Confidence(stdDev float64) float64 {
	return math.Max(0, 100-2*stdDev)
}
