package ml

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"NewsConsensus/internal/config"
	"NewsConsensus/internal/domain"
)

func TestClientEvaluate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/score":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["title"] != "Quantum chips" {
				t.Errorf("unexpected payload %v", body)
			}
			_, _ = w.Write([]byte(`{"score": 64.5, "rationale": " Solid primary sources. "}`))
		case "/healthz":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(config.EvaluatorConfig{Name: "Local", Endpoint: srv.URL + "/"}, 0.5)
	res, err := c.Evaluate(context.Background(), domain.Article{Title: "Quantum chips"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !res.Valid() || res.Score != 64.5 || res.Weight != 0.5 || res.Rationale != "Solid primary sources." {
		t.Fatalf("unexpected result %+v", res)
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestClientEvaluateFailures(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer down" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"rationale": "forgot the score"}`))
	}))
	defer srv.Close()

	for _, key := range []string{"down", "ok"} {
		c := NewClient(config.EvaluatorConfig{Name: "Local", Endpoint: srv.URL, APIKey: key}, 1)
		res, err := c.Evaluate(context.Background(), domain.Article{})
		if err == nil || res.Scored {
			t.Fatalf("key %s: expected failure, got %+v", key, res)
		}
	}
}
