package verification

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"

	"NewsConsensus/internal/domain"
	"NewsConsensus/internal/ports"
)

type fakeVerifier struct {
	mu     sync.Mutex
	resp   domain.Verification
	err    error
	called int
	seen   domain.VerificationRequest
}

func (f *fakeVerifier) VerifyConsensus(_ context.Context, req domain.VerificationRequest) (domain.Verification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.called++
	f.seen = req
	return f.resp, f.err
}

func resolverFor(m map[string]*fakeVerifier) Resolver {
	return func(name string) (ports.Verifier, bool) {
		v, ok := m[name]
		if !ok {
			return nil, false
		}
		return v, true
	}
}

func results(names ...string) domain.ResultSet {
	out := make(domain.ResultSet, 0, len(names))
	for i, n := range names {
		out = append(out, domain.EvaluatorResult{Evaluator: n, Score: float64(70 + i), Scored: true, Weight: 1})
	}
	return out
}

func newPass(m map[string]*fakeVerifier) *Pass {
	return NewPass(resolverFor(m), rand.New(rand.NewPCG(7, 11)), nil)
}

func TestVerifyNeedsTwoEvaluators(t *testing.T) {
	t.Parallel()

	v := &fakeVerifier{resp: domain.Verification{Matches: true}}
	pass := newPass(map[string]*fakeVerifier{"A": v})

	got, ok := pass.Verify(context.Background(), results("A"), 80)
	if got != 80 || ok {
		t.Fatalf("expected (80,false), got (%d,%v)", got, ok)
	}
	if v.called != 0 {
		t.Fatalf("verifier should not be called")
	}
}

func TestVerifyBothMatch(t *testing.T) {
	t.Parallel()

	a := &fakeVerifier{resp: domain.Verification{VerifiedConsensus: 80, Matches: true}}
	b := &fakeVerifier{resp: domain.Verification{VerifiedConsensus: 80, Matches: true}}
	pass := newPass(map[string]*fakeVerifier{"A": a, "B": b})

	got, ok := pass.Verify(context.Background(), results("A", "B"), 80)
	if got != 80 || !ok {
		t.Fatalf("expected (80,true), got (%d,%v)", got, ok)
	}
	if a.seen.Consensus != 80 || len(a.seen.Scores) != 2 {
		t.Fatalf("verifier received incomplete request: %+v", a.seen)
	}
}

func TestVerifyMismatchAverages(t *testing.T) {
	t.Parallel()

	a := &fakeVerifier{resp: domain.Verification{VerifiedConsensus: 78, Matches: false}}
	b := &fakeVerifier{resp: domain.Verification{VerifiedConsensus: 81, Matches: true}}
	pass := newPass(map[string]*fakeVerifier{"A": a, "B": b})

	out := pass.VerifyDetailed(context.Background(), results("A", "B"), 80)
	if out.Consensus != 80 || out.FullyVerified {
		t.Fatalf("expected (80,false) from round-half-up of 79.5, got (%d,%v)", out.Consensus, out.FullyVerified)
	}
	if len(out.Responses) != 2 {
		t.Fatalf("expected two responses, got %d", len(out.Responses))
	}

	a.resp.VerifiedConsensus = 60
	b.resp.VerifiedConsensus = 70
	got, ok := pass.Verify(context.Background(), results("A", "B"), 80)
	if got != 65 || ok {
		t.Fatalf("expected (65,false), got (%d,%v)", got, ok)
	}
}

func TestVerifyPartialResponse(t *testing.T) {
	t.Parallel()

	a := &fakeVerifier{resp: domain.Verification{VerifiedConsensus: 50, Matches: false}}
	b := &fakeVerifier{err: errors.New("timeout")}
	pass := newPass(map[string]*fakeVerifier{"A": a, "B": b})

	got, ok := pass.Verify(context.Background(), results("A", "B"), 80)
	if got != 80 || !ok {
		t.Fatalf("expected (80,true) with a single responder, got (%d,%v)", got, ok)
	}
}

func TestVerifyNoResponses(t *testing.T) {
	t.Parallel()

	a := &fakeVerifier{err: errors.New("down")}
	b := &fakeVerifier{err: errors.New("down")}
	pass := newPass(map[string]*fakeVerifier{"A": a, "B": b})

	got, ok := pass.Verify(context.Background(), results("A", "B"), 80)
	if got != 80 || ok {
		t.Fatalf("expected (80,false), got (%d,%v)", got, ok)
	}
}

func TestVerifyPoolSkipsStaticAndInvalid(t *testing.T) {
	t.Parallel()

	a := &fakeVerifier{resp: domain.Verification{Matches: true}}
	b := &fakeVerifier{resp: domain.Verification{Matches: true}}
	c := &fakeVerifier{resp: domain.Verification{Matches: true}}
	pass := newPass(map[string]*fakeVerifier{"A": a, "B": b, "C": c})

	rs := results("A", "NewsAPI", "B")
	rs = append(rs, domain.EvaluatorResult{Evaluator: "C", Weight: 1})

	for i := 0; i < 20; i++ {
		out := pass.VerifyDetailed(context.Background(), rs, 75)
		if !out.FullyVerified {
			t.Fatalf("expected verification to succeed")
		}
		for _, name := range out.Verifiers {
			if name != "A" && name != "B" {
				t.Fatalf("unexpected verifier picked: %s", name)
			}
		}
	}
	if c.called != 0 {
		t.Fatalf("evaluator without a score must not verify")
	}
}

func TestVerifyPicksTwoDistinct(t *testing.T) {
	t.Parallel()

	m := map[string]*fakeVerifier{}
	for _, n := range []string{"A", "B", "C", "D", "E"} {
		m[n] = &fakeVerifier{resp: domain.Verification{Matches: true}}
	}
	pass := newPass(m)
	seen := map[string]bool{}

	for i := 0; i < 50; i++ {
		out := pass.VerifyDetailed(context.Background(), results("A", "B", "C", "D", "E"), 70)
		if len(out.Verifiers) != 2 || out.Verifiers[0] == out.Verifiers[1] {
			t.Fatalf("expected two distinct verifiers, got %v", out.Verifiers)
		}
		seen[out.Verifiers[0]] = true
		seen[out.Verifiers[1]] = true
	}
	if len(seen) != 5 {
		t.Fatalf("expected every evaluator to be picked eventually, saw %v", seen)
	}
}
