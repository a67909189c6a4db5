// Package models defines core data structures for documents, queries, and search hits.
package models

import "strings"

// Document is a corpus entry. ID is unique across the corpus and documents are
// immutable once ingested.
type Document struct {
	ID    string `json:"_id"`
	Title string `json:"title"`
	Body  string `json:"text"`
}

// MergedText returns the trimmed title and body joined by a newline when both
// are non-empty, else whichever is non-empty. This is the text handed to the
// embedding model; it is derived at encode time and never persisted.
func (d Document) MergedText() string {
	title := strings.TrimSpace(d.Title)
	body := strings.TrimSpace(d.Body)
	if title != "" && body != "" {
		return title + "\n" + body
	}
	if title != "" {
		return title
	}
	return body
}
