package consensus

import (
	"math"
	"reflect"
	"testing"

	"NewsConsensus/internal/domain"
)

func scored(name string, score, weight float64) domain.EvaluatorResult {
	return domain.EvaluatorResult{Evaluator: name, Score: score, Scored: true, Weight: weight}
}

func sampleResults() domain.ResultSet {
	return domain.ResultSet{
		scored("ChatGPT", 80, 1),
		scored("Claude", 70, 1),
		scored("Gemini", 90, 1),
		scored("Grok", 60, 1),
		scored("Perplexity", 85, 2),
	}
}

func TestComputeTrimsAndWeights(t *testing.T) {
	t.Parallel()

	record := NewEngine(0, nil).Compute(sampleResults(), 5)

	if record.RawConsensus != 80 {
		t.Fatalf("expected consensus 80, got %d", record.RawConsensus)
	}
	if !reflect.DeepEqual(record.Dropped, []string{"Grok", "Gemini"}) {
		t.Fatalf("unexpected dropped: %v", record.Dropped)
	}
	wantContrib := []string{"ChatGPT", "Claude", "Gemini", "Grok", "Perplexity"}
	if !reflect.DeepEqual(record.Contributors, wantContrib) {
		t.Fatalf("unexpected contributors: %v", record.Contributors)
	}
	if record.EvaluatorCount != 5 {
		t.Fatalf("expected 5 evaluators, got %d", record.EvaluatorCount)
	}
	if record.VerifiedConsensus != 80 || record.FinalConsensus != 80 {
		t.Fatalf("verified/final should start at raw: %+v", record)
	}
}

func TestComputeConfidenceExample(t *testing.T) {
	t.Parallel()

	record := NewEngine(0, nil).Compute(sampleResults(), 0)

	// squared deviations from the mean 77: 9+49+169+289+64 = 580, /5 = 116
	wantStd := math.Sqrt(116)
	if math.Abs(record.StdDev-wantStd) > 1e-9 {
		t.Fatalf("std dev = %v, want %v", record.StdDev, wantStd)
	}
	if math.Abs(record.Confidence-78.46) > 0.01 {
		t.Fatalf("confidence = %v, want ~78.46", record.Confidence)
	}
}

func TestComputeNoTrimBelowThreshold(t *testing.T) {
	t.Parallel()

	results := domain.ResultSet{
		scored("A", 10, 1),
		scored("B", 20, 1),
		scored("C", 90, 1),
	}
	record := NewEngine(0, nil).Compute(results, 0)

	if len(record.Dropped) != 0 {
		t.Fatalf("expected no trimming, dropped %v", record.Dropped)
	}
	if record.RawConsensus != 40 {
		t.Fatalf("expected 40, got %d", record.RawConsensus)
	}
}

func TestComputeTrimsOneInstanceOfTies(t *testing.T) {
	t.Parallel()

	results := domain.ResultSet{
		scored("A", 50, 1),
		scored("B", 50, 1),
		scored("C", 70, 1),
		scored("D", 90, 1),
		scored("E", 90, 1),
	}
	record := NewEngine(0, nil).Compute(results, 0)

	if !reflect.DeepEqual(record.Dropped, []string{"A", "E"}) {
		t.Fatalf("expected first low and last high dropped, got %v", record.Dropped)
	}
	// kept: B(50) C(70) D(90)
	if record.RawConsensus != 70 {
		t.Fatalf("expected 70, got %d", record.RawConsensus)
	}
}

func TestComputeSkipsInvalidScores(t *testing.T) {
	t.Parallel()

	results := domain.ResultSet{
		scored("A", 60, 1),
		{Evaluator: "B", Scored: false, Weight: 1},
		scored("C", math.NaN(), 1),
		scored("D", -5, 1),
		scored("E", 80, 1),
	}
	record := NewEngine(0, nil).Compute(results, 5)

	if !reflect.DeepEqual(record.Contributors, []string{"A", "E"}) {
		t.Fatalf("unexpected contributors %v", record.Contributors)
	}
	if record.RawConsensus != 70 {
		t.Fatalf("expected 70, got %d", record.RawConsensus)
	}
}

func TestComputeEmpty(t *testing.T) {
	t.Parallel()

	record := NewEngine(0, nil).Compute(domain.ResultSet{{Evaluator: "A"}}, 5)

	if record.RawConsensus != 0 || record.Confidence != 0 || record.EvaluatorCount != 0 {
		t.Fatalf("expected zero record, got %+v", record)
	}
	if len(record.Contributors) != 0 {
		t.Fatalf("expected no contributors, got %v", record.Contributors)
	}
}

func TestComputeIdenticalScoresFullConfidence(t *testing.T) {
	t.Parallel()

	results := domain.ResultSet{scored("A", 7, 1), scored("B", 7, 1), scored("C", 7, 3), scored("D", 7, 1)}
	record := NewEngine(0, nil).Compute(results, 0)

	if record.Confidence != 100 {
		t.Fatalf("expected confidence 100, got %v", record.Confidence)
	}
	if record.RawConsensus != 7 {
		t.Fatalf("expected 7, got %d", record.RawConsensus)
	}
}

func TestWeightedAverageNormalisesByWeight(t *testing.T) {
	t.Parallel()

	// percentage scheme: 16% per model, 10% per news source
	results := domain.ResultSet{
		scored("ChatGPT", 90, 0.16),
		scored("Claude", 80, 0.16),
		scored("NewsAPI", 85, 0.10),
	}
	// (14.4 + 12.8 + 8.5) / 0.42 = 85.0
	if got := WeightedAverage(results); got != 85 {
		t.Fatalf("expected 85, got %d", got)
	}
}

func TestWeightedAverageRoundsHalfUp(t *testing.T) {
	t.Parallel()

	cases := []struct {
		results domain.ResultSet
		want    int
	}{
		{domain.ResultSet{scored("A", 70, 1), scored("B", 71, 1)}, 71},
		{domain.ResultSet{scored("A", 72, 1), scored("B", 73, 1)}, 73},
		{domain.ResultSet{scored("A", 2, 1), scored("B", 3, 1)}, 3},
		{domain.ResultSet{scored("A", 70, 0), scored("B", 71, 0)}, 0},
		{domain.ResultSet{scored("A", 70, -1), scored("B", 80, 1)}, 80},
	}
	for _, tc := range cases {
		if got := WeightedAverage(tc.results); got != tc.want {
			t.Fatalf("WeightedAverage(%v) = %d, want %d", tc.results, got, tc.want)
		}
	}
}

func TestConfidenceMonotonic(t *testing.T) {
	t.Parallel()

	prev := Confidence(0)
	if prev != 100 {
		t.Fatalf("confidence at zero spread = %v", prev)
	}
	for sd := 0.5; sd <= 80; sd += 0.5 {
		c := Confidence(sd)
		if c > prev {
			t.Fatalf("confidence increased at sd=%v: %v > %v", sd, c, prev)
		}
		if c < 0 {
			t.Fatalf("confidence negative at sd=%v", sd)
		}
		prev = c
	}
}

func TestTrimPropertyExactlyOneMinAndMax(t *testing.T) {
	t.Parallel()

	engine := NewEngine(0, nil)
	for n := 1; n <= 9; n++ {
		results := make(domain.ResultSet, n)
		for i := 0; i < n; i++ {
			results[i] = scored(string(rune('A'+i)), float64((i*37)%11), 1)
		}
		record := engine.Compute(results, 0)
		if n >= DefaultTrimThreshold && len(record.Dropped) != 2 {
			t.Fatalf("n=%d: expected two dropped, got %v", n, record.Dropped)
		}
		if n < DefaultTrimThreshold && len(record.Dropped) != 0 {
			t.Fatalf("n=%d: expected none dropped, got %v", n, record.Dropped)
		}
	}
}
