package pairing

import (
	"context"
	"errors"
	"math/rand/v2"
	"reflect"
	"testing"

	"NewsConsensus/internal/domain"
	"NewsConsensus/internal/ports"
)

// fixedOrder rearranges the shuffled slice so that position i ends up holding
// the element originally at index order[i].
type fixedOrder struct{ order []int }

func (f fixedOrder) Shuffle(n int, swap func(i, j int)) {
	current := make([]int, n)
	for i := range current {
		current[i] = i
	}
	for i := 0; i < n && i < len(f.order); i++ {
		for j := i; j < n; j++ {
			if current[j] == f.order[i] {
				if j != i {
					swap(i, j)
					current[i], current[j] = current[j], current[i]
				}
				break
			}
		}
	}
}

func roster(scores map[string]float64, names ...string) domain.ResultSet {
	out := make(domain.ResultSet, 0, len(names))
	for _, n := range names {
		out = append(out, domain.EvaluatorResult{Evaluator: n, Score: scores[n], Scored: true, Weight: 1})
	}
	return out
}

func TestMakePairsExample(t *testing.T) {
	t.Parallel()

	scores := map[string]float64{"A": 7, "B": 10, "C": 8, "D": 8, "E": 8}
	results := roster(scores, "A", "B", "C", "D", "E")
	// pool before shuffle: [A B C D]; desired [C A D B]
	s := NewScheduler("E", 1, fixedOrder{order: []int{2, 0, 3, 1}}, nil)

	pairs := s.MakePairs(results)
	want := []domain.PeerPair{
		{A: "E", B: "C", Outcome: domain.OutcomeAgreement},
		{A: "A", B: "D", Outcome: domain.OutcomeAgreement},
		{A: "E", B: "B", Outcome: domain.OutcomeDisagreement},
	}
	if !reflect.DeepEqual(pairs, want) {
		t.Fatalf("unexpected pairs:\n got %+v\nwant %+v", pairs, want)
	}
}

func TestMakePairsEvenPoolUsesArbiterOnce(t *testing.T) {
	t.Parallel()

	results := roster(map[string]float64{}, "A", "B", "C", "Arb")
	s := NewScheduler("Arb", 1, rand.New(rand.NewPCG(1, 2)), nil)

	pairs := s.MakePairs(results)
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(pairs))
	}
	if pairs[0].A != "Arb" {
		t.Fatalf("arbiter must lead the first pair: %+v", pairs[0])
	}
	assertNoRepeats(t, pairs, "Arb")
}

func TestMakePairsWithoutArbiter(t *testing.T) {
	t.Parallel()

	results := roster(map[string]float64{}, "A", "B", "C")
	s := NewScheduler("Perplexity", 1, rand.New(rand.NewPCG(1, 2)), nil)

	pairs := s.MakePairs(results)
	if len(pairs) != 1 {
		t.Fatalf("expected one pair and one unpaired evaluator, got %+v", pairs)
	}
}

func TestMakePairsArbiterAlone(t *testing.T) {
	t.Parallel()

	results := roster(map[string]float64{}, "Perplexity")
	s := NewScheduler("Perplexity", 1, nil, nil)

	if pairs := s.MakePairs(results); len(pairs) != 0 {
		t.Fatalf("expected no pairs, got %+v", pairs)
	}
}

func TestMakePairsIgnoresInvalid(t *testing.T) {
	t.Parallel()

	results := roster(map[string]float64{}, "A", "B", "Perplexity")
	results = append(results, domain.EvaluatorResult{Evaluator: "C"})
	s := NewScheduler("Perplexity", 1, rand.New(rand.NewPCG(9, 9)), nil)

	for _, p := range s.MakePairs(results) {
		if p.A == "C" || p.B == "C" {
			t.Fatalf("evaluator without score was paired: %+v", p)
		}
	}
}

func TestMakePairsPropertyArbiterAlwaysIncluded(t *testing.T) {
	t.Parallel()

	names := []string{"ChatGPT", "Claude", "Gemini", "Grok", "Perplexity", "NewsAPI", "NewsData"}
	rng := rand.New(rand.NewPCG(42, 24))
	for n := 2; n <= len(names); n++ {
		results := roster(map[string]float64{}, names[:n]...)
		s := NewScheduler("ChatGPT", 1, rng, nil)
		for i := 0; i < 25; i++ {
			pairs := s.MakePairs(results)
			if len(pairs) == 0 || pairs[0].A != "ChatGPT" {
				t.Fatalf("n=%d: arbiter missing from first pair: %+v", n, pairs)
			}
			assertNoRepeats(t, pairs, "ChatGPT")
			covered := map[string]bool{}
			for _, p := range pairs {
				covered[p.A], covered[p.B] = true, true
			}
			if len(covered) != n {
				t.Fatalf("n=%d: not every evaluator paired: %+v", n, pairs)
			}
		}
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	s := NewScheduler("", -1, nil, nil)
	cases := []struct {
		a, b float64
		want domain.PairOutcome
	}{
		{80, 80, domain.OutcomeAgreement},
		{80, 81, domain.OutcomeAgreement},
		{8.5, 7.5, domain.OutcomeAgreement},
		{80, 82, domain.OutcomeDisagreement},
		{7.2, 8.9, domain.OutcomeDisagreement},
	}
	for _, tc := range cases {
		if got := s.Classify(tc.a, tc.b); got != tc.want {
			t.Fatalf("Classify(%v,%v) = %s, want %s", tc.a, tc.b, got, tc.want)
		}
	}
}

type fakeReviewer struct {
	review domain.PeerReview
	err    error
	got    []domain.ReviewRequest
}

func (f *fakeReviewer) ReviewScore(_ context.Context, req domain.ReviewRequest) (domain.PeerReview, error) {
	f.got = append(f.got, req)
	return f.review, f.err
}

func TestReviewerLimitsAndSkipsFailures(t *testing.T) {
	t.Parallel()

	ok := &fakeReviewer{review: domain.PeerReview{SuggestedScore: 75, Critique: "thin sourcing", AcceptOriginal: false}}
	broken := &fakeReviewer{err: errors.New("timeout")}
	reviewers := map[string]ports.PeerReviewer{"B": ok, "D": broken, "F": ok}

	r := NewReviewer(func(name string) (ports.PeerReviewer, bool) {
		v, found := reviewers[name]
		return v, found
	}, nil)

	results := domain.ResultSet{
		{Evaluator: "A", Score: 80, Scored: true, Rationale: "solid"},
		{Evaluator: "C", Score: 60, Scored: true},
		{Evaluator: "E", Score: 70, Scored: true},
	}
	pairs := []domain.PeerPair{{A: "A", B: "B"}, {A: "C", B: "D"}, {A: "E", B: "F"}}

	reviews := r.Review(context.Background(), pairs, results, 2)
	if len(reviews) != 1 {
		t.Fatalf("expected one successful review within limit, got %+v", reviews)
	}
	if reviews[0].Reviewer != "B" || reviews[0].Reviewed != "A" || reviews[0].SuggestedScore != 75 {
		t.Fatalf("unexpected review: %+v", reviews[0])
	}
	if len(ok.got) != 1 || ok.got[0].Score != 80 || ok.got[0].Rationale != "solid" {
		t.Fatalf("reviewer got wrong request: %+v", ok.got)
	}
}

func TestMakePairsHonoursEligibility(t *testing.T) {
	t.Parallel()

	results := roster(map[string]float64{}, "ChatGPT", "Claude", "NewsAPI", "Gemini", "NewsData", "Perplexity")
	static := map[string]bool{"NewsAPI": true, "NewsData": true}
	s := NewScheduler("Perplexity", 1, rand.New(rand.NewPCG(9, 9)), nil).
		WithEligibility(func(name string) bool { return !static[name] })

	pairs := s.MakePairs(results)
	if len(pairs) != 2 || pairs[0].A != "Perplexity" {
		t.Fatalf("unexpected pairs %+v", pairs)
	}
	for _, p := range pairs {
		if static[p.A] || static[p.B] {
			t.Fatalf("ineligible evaluator paired: %+v", pairs)
		}
	}
	assertNoRepeats(t, pairs, "Perplexity")
}

func TestReviewerMovesPastPairsWithoutReviewer(t *testing.T) {
	t.Parallel()

	ok := &fakeReviewer{review: domain.PeerReview{SuggestedScore: 70, AcceptOriginal: true}}
	r := NewReviewer(func(name string) (ports.PeerReviewer, bool) {
		if name == "Claude" {
			return ok, true
		}
		return nil, false
	}, nil)

	results := domain.ResultSet{
		{Evaluator: "Perplexity", Score: 80, Scored: true},
		{Evaluator: "ChatGPT", Score: 72, Scored: true},
	}
	pairs := []domain.PeerPair{{A: "Perplexity", B: "NewsAPI"}, {A: "ChatGPT", B: "Claude"}}

	reviews := r.Review(context.Background(), pairs, results, 1)
	if len(reviews) != 1 || reviews[0].Reviewer != "Claude" || reviews[0].Reviewed != "ChatGPT" {
		t.Fatalf("expected the second pair to be reviewed, got %+v", reviews)
	}
}

func assertNoRepeats(t *testing.T, pairs []domain.PeerPair, arbiter string) {
	t.Helper()
	count := map[string]int{}
	for _, p := range pairs {
		count[p.A]++
		count[p.B]++
	}
	for name, c := range count {
		if name != arbiter && c > 1 {
			t.Fatalf("%s appears %d times in %+v", name, c, pairs)
		}
		if name == arbiter && c > 2 {
			t.Fatalf("arbiter appears %d times", c)
		}
	}
}
