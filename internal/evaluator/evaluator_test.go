package evaluator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"NewsConsensus/internal/domain"
)

type scriptedCompleter struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (s *scriptedCompleter) Complete(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	return s.reply, s.err
}

func TestEvaluateParsesFencedJSON(t *testing.T) {
	t.Parallel()

	c := &scriptedCompleter{reply: "Sure!\n```json\n{\"score\": 82, \"rationale\": \"<b>Named</b> sources &amp; data.\"}\n```"}
	ev := NewLLMEvaluator("Claude", 1, c, nil)

	res, err := ev.Evaluate(context.Background(), domain.Article{ID: "a1", Title: "Chip export rules", Description: "New limits"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !res.Scored || res.Score != 82 || res.Evaluator != "Claude" || res.Weight != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Rationale != "Named sources & data." {
		t.Fatalf("rationale not sanitised: %q", res.Rationale)
	}
	if !strings.Contains(c.prompts[0], "Title: Chip export rules") || !strings.Contains(c.prompts[0], "0-100%") {
		t.Fatalf("unexpected prompt: %s", c.prompts[0])
	}
}

func TestEvaluateAcceptsPercentStrings(t *testing.T) {
	t.Parallel()

	ev := NewLLMEvaluator("Grok", 1, &scriptedCompleter{reply: `{"score": "77%", "rationale": "ok"}`}, nil)
	res, err := ev.Evaluate(context.Background(), domain.Article{})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.Score != 77 {
		t.Fatalf("score = %v, want 77", res.Score)
	}
}

func TestEvaluateRejectsUnusableReplies(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"no json":        "I cannot rate this.",
		"missing score":  `{"rationale": "no number here"}`,
		"negative score": `{"score": -4}`,
	}
	for name, reply := range cases {
		ev := NewLLMEvaluator("Gemini", 1, &scriptedCompleter{reply: reply}, nil)
		res, err := ev.Evaluate(context.Background(), domain.Article{})
		if !errors.Is(err, ErrNoScore) {
			t.Fatalf("%s: expected ErrNoScore, got %v", name, err)
		}
		if res.Scored {
			t.Fatalf("%s: result must be unscored", name)
		}
	}
}

func TestEvaluatePropagatesTransportError(t *testing.T) {
	t.Parallel()

	boom := errors.New("deadline exceeded")
	ev := NewLLMEvaluator("ChatGPT", 1, &scriptedCompleter{err: boom}, nil)
	if _, err := ev.Evaluate(context.Background(), domain.Article{}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
}

func TestVerifyConsensusDefaults(t *testing.T) {
	t.Parallel()

	c := &scriptedCompleter{reply: `{"note": "looks right"}`}
	ev := NewLLMEvaluator("Claude", 1, c, nil)

	v, err := ev.VerifyConsensus(context.Background(), domain.VerificationRequest{
		Scores: domain.ResultSet{
			{Evaluator: "ChatGPT", Score: 80, Scored: true},
			{Evaluator: "Claude", Score: 72.5, Scored: true},
			{Evaluator: "Gemini"},
		},
		Consensus: 76,
	})
	if err != nil {
		t.Fatalf("VerifyConsensus: %v", err)
	}
	if !v.Matches || v.VerifiedConsensus != 76 || v.Note != "looks right" {
		t.Fatalf("unexpected verification: %+v", v)
	}
	prompt := c.prompts[0]
	if !strings.Contains(prompt, "ChatGPT=80%, Claude=72.5%") || !strings.Contains(prompt, "Number of LLMs: 2") {
		t.Fatalf("unexpected prompt: %s", prompt)
	}
}

func TestVerifyConsensusMismatch(t *testing.T) {
	t.Parallel()

	ev := NewLLMEvaluator("Grok", 1, &scriptedCompleter{reply: `{"verified_consensus": "74", "matches": "false"}`}, nil)
	v, err := ev.VerifyConsensus(context.Background(), domain.VerificationRequest{Consensus: 80})
	if err != nil {
		t.Fatalf("VerifyConsensus: %v", err)
	}
	if v.Matches || v.VerifiedConsensus != 74 {
		t.Fatalf("unexpected verification: %+v", v)
	}
}

func TestReviewScore(t *testing.T) {
	t.Parallel()

	c := &scriptedCompleter{reply: `{"suggested_score": 70, "critique": "Single source.", "accept_original": false}`}
	ev := NewLLMEvaluator("Perplexity", 2, c, nil)

	review, err := ev.ReviewScore(context.Background(), domain.ReviewRequest{Reviewed: "Gemini", Score: 85, Rationale: "Strong data"})
	if err != nil {
		t.Fatalf("ReviewScore: %v", err)
	}
	if review.Reviewer != "Perplexity" || review.Reviewed != "Gemini" || review.SuggestedScore != 70 || review.AcceptOriginal {
		t.Fatalf("unexpected review: %+v", review)
	}
	if !strings.Contains(c.prompts[0], "Original Score: 85%") {
		t.Fatalf("unexpected prompt: %s", c.prompts[0])
	}
}

func TestStaticEvaluatorDefaults(t *testing.T) {
	t.Parallel()

	ev := NewStaticEvaluator("NewsAPI", 0.10, 0)
	res, err := ev.Evaluate(context.Background(), domain.Article{})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.Score != DefaultSourceScore || !res.Valid() || res.Weight != 0.10 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Rationale != "" {
		t.Fatalf("static evaluator must not write a rationale, got %q", res.Rationale)
	}
}

type failingEvaluator struct{ name string }

func (f failingEvaluator) Name() string    { return f.name }
func (f failingEvaluator) Weight() float64 { return 1 }
func (f failingEvaluator) Evaluate(context.Context, domain.Article) (domain.EvaluatorResult, error) {
	return domain.EvaluatorResult{Score: 99, Scored: true}, errors.New("503")
}

func TestRegistryEvaluateAllKeepsOrderAndMarksFailures(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(nil)
	reg.Register(NewLLMEvaluator("ChatGPT", 1, &scriptedCompleter{reply: `{"score": 80}`}, nil))
	reg.Register(failingEvaluator{name: "Claude"})
	reg.Register(NewStaticEvaluator("NewsAPI", 0.5, 90))
	reg.Register(NewLLMEvaluator("ChatGPT", 3, &scriptedCompleter{reply: `{"score": 81}`}, nil))

	results := reg.EvaluateAll(context.Background(), domain.Article{ID: "x"})
	if got := strings.Join(results.Names(), ","); got != "ChatGPT,Claude,NewsAPI" {
		t.Fatalf("order = %s", got)
	}
	if results[0].Score != 81 || results[0].Weight != 3 {
		t.Fatalf("replacement not applied: %+v", results[0])
	}
	if results[1].Valid() {
		t.Fatalf("failed evaluator must be unscored: %+v", results[1])
	}
	if len(results.Valid()) != 2 || reg.Roster() != 3 {
		t.Fatalf("unexpected valid count %d or roster %d", len(results.Valid()), reg.Roster())
	}
}

func TestRegistryCapabilities(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(nil)
	reg.Register(NewLLMEvaluator("Claude", 1, &scriptedCompleter{reply: "ok"}, nil))
	reg.Register(NewLLMEvaluator("Gemini", 1, &scriptedCompleter{err: errors.New("401")}, nil))
	reg.Register(NewStaticEvaluator("NewsData", 1, 85))

	if _, ok := reg.Verifier("NewsData"); ok {
		t.Fatalf("static evaluator must not verify")
	}
	if _, ok := reg.Reviewer("Claude"); !ok {
		t.Fatalf("LLM evaluator must review")
	}
	if _, err := reg.Resolve("Grok"); err == nil {
		t.Fatalf("expected missing evaluator error")
	}

	status, healthy := reg.HealthCheck(context.Background())
	if healthy != 2 {
		t.Fatalf("healthy = %d, want 2", healthy)
	}
	if status["Gemini"] == nil || status["Claude"] != nil || status["NewsData"] != nil {
		t.Fatalf("unexpected status: %v", status)
	}
}
