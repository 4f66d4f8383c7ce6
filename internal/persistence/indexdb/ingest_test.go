package indexdb

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestIngestIndexBatches(t *testing.T) {
	var (
		mu     sync.Mutex
		kinds  []string
		tokens []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Events []struct {
				Kind   string          `json:"kind"`
				Source string          `json:"source"`
				Raw    json.RawMessage `json:"payload"`
			} `json:"events"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		tokens = append(tokens, r.Header.Get("x-idlecraft-index-token"))
		for _, ev := range body.Events {
			if ev.Source != "ci" {
				http.Error(w, "bad source", http.StatusBadRequest)
				return
			}
			kinds = append(kinds, ev.Kind)
		}
	}))
	defer srv.Close()

	idx, err := OpenIngest(IngestConfig{Endpoint: srv.URL, Token: "secret", Source: "ci", BatchSize: 2, FlushInterval: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("OpenIngest: %v", err)
	}
	idx.RecordRun(RunRow{RunID: "r1", Goal: "gp:100"})
	idx.RecordPhase(PhaseRow{RunID: "r1"})
	idx.RecordStep(StepRow{RunID: "r1"})
	idx.RecordFailure(FailureRow{RunID: "r1", Code: "E_DEAD_END"})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"run", "phase", "step", "failure"}
	if len(kinds) != len(want) {
		t.Fatalf("kinds: %v", kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("kinds: %v", kinds)
		}
	}
	for _, tok := range tokens {
		if tok != "secret" {
			t.Fatalf("missing token header")
		}
	}
	if dropped, failed := idx.Stats(); dropped != 0 || failed != 0 {
		t.Fatalf("stats: dropped=%d failed=%d", dropped, failed)
	}
}

func TestOpenIngestRequiresEndpoint(t *testing.T) {
	if _, err := OpenIngest(IngestConfig{Source: "x"}); err == nil {
		t.Fatalf("expected error for empty endpoint")
	}
	if _, err := OpenIngest(IngestConfig{Endpoint: "http://127.0.0.1:1"}); err == nil {
		t.Fatalf("expected error for empty source")
	}
}
