package eval

import (
	"context"
	"math"
	"testing"

	"github.com/mosaiclab/unisearch/internal/models"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRecallAtK(t *testing.T) {
	judgments := map[string]int{"a": 1, "b": 1, "c": 0}
	hits := []models.Hit{{DocID: "a"}, {DocID: "c"}, {DocID: "x"}}
	if got := RecallAtK(hits, judgments); !almostEqual(got, 0.5) {
		t.Errorf("RecallAtK = %f, want 0.5", got)
	}

	if got := RecallAtK(nil, judgments); got != 0 {
		t.Errorf("empty hits recall = %f", got)
	}
	if got := RecallAtK(hits, map[string]int{"z": 0}); got != 0 {
		t.Errorf("no relevant docs recall = %f", got)
	}
}

func TestReciprocalRank(t *testing.T) {
	judgments := map[string]int{"b": 1}
	hits := []models.Hit{{DocID: "a"}, {DocID: "x"}, {DocID: "b"}}
	if got := ReciprocalRank(hits, judgments); !almostEqual(got, 1.0/3) {
		t.Errorf("ReciprocalRank = %f, want 1/3", got)
	}
	if got := ReciprocalRank(hits, map[string]int{"q": 1}); got != 0 {
		t.Errorf("no relevant hit rank = %f", got)
	}
}

func TestRun(t *testing.T) {
	// q1 finds its relevant doc at rank 1, q2 at rank 2, q3 not at all.
	answers := map[string][]models.Hit{
		"one":   {{DocID: "d1", Score: 2}, {DocID: "d9", Score: 1}},
		"two":   {{DocID: "d9", Score: 2}, {DocID: "d2", Score: 1}},
		"three": {{DocID: "d9", Score: 2}, {DocID: "d8", Score: 1}},
	}
	search := func(ctx context.Context, query string, k int) ([]models.Hit, error) {
		return answers[query], nil
	}

	queries := models.Queries{"q1": "one", "q2": "two", "q3": "three", "q4": "unjudged"}
	qrels := models.Qrels{
		"q1": {"d1": 1},
		"q2": {"d2": 1},
		"q3": {"d3": 1},
	}

	m, err := Run(context.Background(), search, queries, qrels, 10, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	if m.Queries != 3 {
		t.Errorf("Queries = %d, want 3 (unjudged skipped)", m.Queries)
	}
	if !almostEqual(m.Recall, 2.0/3) {
		t.Errorf("Recall = %f, want 2/3", m.Recall)
	}
	if !almostEqual(m.MRR, (1.0+0.5+0)/3) {
		t.Errorf("MRR = %f, want 0.5", m.MRR)
	}
}

func TestRun_NoJudgedQueries(t *testing.T) {
	search := func(ctx context.Context, query string, k int) ([]models.Hit, error) {
		return nil, nil
	}
	_, err := Run(context.Background(), search, models.Queries{"q": "x"}, models.Qrels{}, 5, false, nil)
	if err == nil {
		t.Fatal("expected error with no judged queries")
	}
}
