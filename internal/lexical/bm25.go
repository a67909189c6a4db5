package lexical

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/mosaiclab/unisearch/internal/models"
	"github.com/mosaiclab/unisearch/internal/storage"
)

// Default BM25 hyperparameters.
const (
	DefaultK1 = 0.9
	DefaultB  = 0.4
)

type posting struct {
	doc int // position in docIDs
	tf  int
}

// BM25Engine is an in-process BM25 searcher over an in-memory inverted index.
// Unlike the bleve backend, its k1 and b hyperparameters take effect on every
// subsequent search.
type BM25Engine struct {
	docIDs   []string
	docLens  []int
	postings map[string][]posting
	avgLen   float64
	k1       float64
	b        float64
}

// BuildBM25 builds the inverted index from the corpus in store.
func BuildBM25(ctx context.Context, store storage.DocStore) (*BM25Engine, error) {
	e := &BM25Engine{
		postings: make(map[string][]posting),
		k1:       DefaultK1,
		b:        DefaultB,
	}

	err := store.Iterate(ctx, func(doc models.Document) error {
		terms := Tokenize(doc.Title + " " + doc.Body)
		pos := len(e.docIDs)
		e.docIDs = append(e.docIDs, doc.ID)
		e.docLens = append(e.docLens, len(terms))

		tf := make(map[string]int, len(terms))
		for _, term := range terms {
			tf[term]++
		}
		for term, count := range tf {
			e.postings[term] = append(e.postings[term], posting{doc: pos, tf: count})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var total int
	for _, l := range e.docLens {
		total += l
	}
	if len(e.docLens) > 0 {
		e.avgLen = float64(total) / float64(len(e.docLens))
	}
	return e, nil
}

// Search scores documents with BM25 and returns up to k hits, descending.
func (e *BM25Engine) Search(ctx context.Context, query string, k int) ([]models.Hit, error) {
	terms := Tokenize(query)
	if len(terms) == 0 || len(e.docIDs) == 0 || k <= 0 {
		return nil, nil
	}

	n := float64(len(e.docIDs))
	scores := make(map[int]float64)
	for _, term := range terms {
		plist, ok := e.postings[term]
		if !ok {
			continue
		}
		df := float64(len(plist))
		idf := math.Log((n-df+0.5)/(df+0.5) + 1)
		for _, p := range plist {
			tf := float64(p.tf)
			dl := float64(e.docLens[p.doc])
			scores[p.doc] += idf * (tf * (e.k1 + 1)) / (tf + e.k1*(1-e.b+e.b*dl/e.avgLen))
		}
	}

	hits := make([]models.Hit, 0, len(scores))
	for doc, score := range scores {
		hits = append(hits, models.Hit{DocID: e.docIDs[doc], Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocID < hits[j].DocID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// SetSimilarity sets the BM25 saturation and length-normalization constants.
func (e *BM25Engine) SetSimilarity(k1, b float64) error {
	e.k1 = k1
	e.b = b
	return nil
}

// Close is a no-op for BM25Engine.
func (e *BM25Engine) Close() error {
	return nil
}

// Tokenize lowercases text and splits it on non-alphanumeric runes.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
