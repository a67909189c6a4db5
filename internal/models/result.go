package models

// Hit is a single ranked retrieval result from either backend.
type Hit struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
}

// Queries maps query ID to query text.
type Queries map[string]string

// Qrels maps query ID to relevant doc IDs with graded relevance judgments.
type Qrels map[string]map[string]int
