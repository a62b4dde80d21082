package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func scoringServer(t *testing.T, scores map[string]float64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rerankRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		entries := make([]rerankResponseEntry, len(req.Texts))
		for i, text := range req.Texts {
			entries[i] = rerankResponseEntry{Index: i, Score: scores[text]}
		}
		json.NewEncoder(w).Encode(entries)
	}))
}

func TestRerank_OrdersByCrossEncoderScore(t *testing.T) {
	server := scoringServer(t, map[string]float64{
		"weak":   -4.0,
		"strong": 7.5,
		"middle": 1.0,
	})
	defer server.Close()

	client := NewCrossEncoderClient(server.URL, time.Second)
	candidates := []Candidate{
		{ChunkID: "c1", Text: "weak"},
		{ChunkID: "c2", Text: "strong"},
		{ChunkID: "c3", Text: "middle"},
	}

	ranked, err := client.Rerank(context.Background(), "query", candidates, 0)
	if err != nil {
		t.Fatalf("Rerank failed: %v", err)
	}

	if len(ranked) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(ranked))
	}
	if ranked[0].ChunkID != "c2" || ranked[1].ChunkID != "c3" || ranked[2].ChunkID != "c1" {
		t.Errorf("Wrong order: %v", ranked)
	}

	// Min-max normalization pins the extremes.
	if ranked[0].Score != 1.0 {
		t.Errorf("Top score should normalize to 1.0, got %f", ranked[0].Score)
	}
	if ranked[2].Score != 0.0 {
		t.Errorf("Bottom score should normalize to 0.0, got %f", ranked[2].Score)
	}
}

func TestRerank_TruncatesToTopK(t *testing.T) {
	server := scoringServer(t, map[string]float64{"a": 3, "b": 2, "c": 1, "d": 0})
	defer server.Close()

	client := NewCrossEncoderClient(server.URL, time.Second)
	candidates := []Candidate{
		{ChunkID: "c1", Text: "a"},
		{ChunkID: "c2", Text: "b"},
		{ChunkID: "c3", Text: "c"},
		{ChunkID: "c4", Text: "d"},
	}

	ranked, err := client.Rerank(context.Background(), "query", candidates, 2)
	if err != nil {
		t.Fatalf("Rerank failed: %v", err)
	}

	if len(ranked) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(ranked))
	}
	if ranked[0].ChunkID != "c1" {
		t.Errorf("Expected c1 first, got %s", ranked[0].ChunkID)
	}
}

func TestRerank_NeverInventsCandidates(t *testing.T) {
	server := scoringServer(t, map[string]float64{"a": 1, "b": 2})
	defer server.Close()

	client := NewCrossEncoderClient(server.URL, time.Second)
	candidates := []Candidate{
		{ChunkID: "c1", Text: "a"},
		{ChunkID: "c2", Text: "b"},
	}

	ranked, err := client.Rerank(context.Background(), "query", candidates, 5)
	if err != nil {
		t.Fatalf("Rerank failed: %v", err)
	}

	known := map[string]bool{"c1": true, "c2": true}
	for _, r := range ranked {
		if !known[r.ChunkID] {
			t.Errorf("Reranker returned unknown chunk %s", r.ChunkID)
		}
		if r.Index < 0 || r.Index >= len(candidates) {
			t.Errorf("Reranker returned out-of-range index %d", r.Index)
		}
	}
}

func TestRerank_EqualScoresGetHalf(t *testing.T) {
	server := scoringServer(t, map[string]float64{"same1": 2.5, "same2": 2.5})
	defer server.Close()

	client := NewCrossEncoderClient(server.URL, time.Second)
	candidates := []Candidate{
		{ChunkID: "c1", Text: "same1"},
		{ChunkID: "c2", Text: "same2"},
	}

	ranked, err := client.Rerank(context.Background(), "query", candidates, 0)
	if err != nil {
		t.Fatalf("Rerank failed: %v", err)
	}

	for _, r := range ranked {
		if r.Score != 0.5 {
			t.Errorf("Expected 0.5 for equal raw scores, got %f", r.Score)
		}
	}
	// Stable sort keeps insertion order on ties.
	if ranked[0].ChunkID != "c1" {
		t.Errorf("Expected stable order on ties, got %s first", ranked[0].ChunkID)
	}
}

func TestRerank_EmptyCandidates(t *testing.T) {
	client := NewCrossEncoderClient("http://localhost:0", time.Second)

	ranked, err := client.Rerank(context.Background(), "query", nil, 5)
	if err != nil {
		t.Fatalf("Rerank failed: %v", err)
	}
	if len(ranked) != 0 {
		t.Errorf("Expected no results, got %d", len(ranked))
	}
}

func TestRerank_ServiceErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewCrossEncoderClient(server.URL, time.Second)
	_, err := client.Rerank(context.Background(), "query", []Candidate{{ChunkID: "c1", Text: "a"}}, 1)
	if err == nil {
		t.Fatal("Expected error from failing service")
	}
}

func TestRerank_IncompleteResponseRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]rerankResponseEntry{{Index: 0, Score: 1.0}})
	}))
	defer server.Close()

	client := NewCrossEncoderClient(server.URL, time.Second)
	candidates := []Candidate{
		{ChunkID: "c1", Text: "a"},
		{ChunkID: "c2", Text: "b"},
	}

	if _, err := client.Rerank(context.Background(), "query", candidates, 2); err == nil {
		t.Fatal("Expected error for incomplete scoring response")
	}
}
