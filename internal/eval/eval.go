// Package eval scores a retrieval backend against relevance judgments using
// standard rank metrics.
package eval

import (
	"context"
	"fmt"
	"sort"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/mosaiclab/unisearch/internal/models"
)

// SearchFunc is any retrieval backend under evaluation.
type SearchFunc func(ctx context.Context, query string, k int) ([]models.Hit, error)

// Metrics aggregates scores over an evaluated query set.
type Metrics struct {
	K       int
	Queries int
	// Recall is mean recall@K: the judged-relevant fraction found in the
	// top K, averaged over queries.
	Recall float64
	// MRR is the mean reciprocal rank of the first relevant hit.
	MRR float64
}

func (m Metrics) String() string {
	return fmt.Sprintf("queries=%d recall@%d=%.4f mrr=%.4f", m.Queries, m.K, m.Recall, m.MRR)
}

// RecallAtK returns the fraction of judged-relevant documents present in
// hits. Judgments with a non-positive grade do not count as relevant.
func RecallAtK(hits []models.Hit, judgments map[string]int) float64 {
	relevant := 0
	for _, grade := range judgments {
		if grade > 0 {
			relevant++
		}
	}
	if relevant == 0 {
		return 0
	}
	found := 0
	for _, hit := range hits {
		if judgments[hit.DocID] > 0 {
			found++
		}
	}
	return float64(found) / float64(relevant)
}

// ReciprocalRank returns 1/rank of the first relevant hit, or 0 when none of
// the hits is relevant.
func ReciprocalRank(hits []models.Hit, judgments map[string]int) float64 {
	for i, hit := range hits {
		if judgments[hit.DocID] > 0 {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}

// Run evaluates search over every judged query at cutoff k. Queries without
// judgments are skipped; query order is fixed by sorting ids so repeated runs
// report identical numbers. Set showProgress for an interactive progress bar.
func Run(ctx context.Context, search SearchFunc, queries models.Queries, qrels models.Qrels, k int, showProgress bool, logger *zap.Logger) (Metrics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	ids := make([]string, 0, len(queries))
	for id := range queries {
		if _, ok := qrels[id]; ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) == 0 {
		return Metrics{}, fmt.Errorf("no queries with relevance judgments")
	}

	var bar *progressbar.ProgressBar
	if showProgress {
		bar = progressbar.Default(int64(len(ids)), "evaluating")
	}

	var sumRecall, sumRR float64
	for _, id := range ids {
		hits, err := search(ctx, queries[id], k)
		if err != nil {
			return Metrics{}, fmt.Errorf("query %s: %w", id, err)
		}
		sumRecall += RecallAtK(hits, qrels[id])
		sumRR += ReciprocalRank(hits, qrels[id])
		if bar != nil {
			bar.Add(1)
		}
	}

	m := Metrics{
		K:       k,
		Queries: len(ids),
		Recall:  sumRecall / float64(len(ids)),
		MRR:     sumRR / float64(len(ids)),
	}
	logger.Info("evaluation complete",
		zap.Int("queries", m.Queries),
		zap.Int("k", m.K),
		zap.Float64("recall", m.Recall),
		zap.Float64("mrr", m.MRR))
	return m, nil
}
