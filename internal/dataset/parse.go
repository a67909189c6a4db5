package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mosaiclab/unisearch/internal/models"
)

// maxLineBytes bounds the scanner buffer. FEVER Wikipedia abstracts stay well
// under this; it guards against a corrupt line swallowing the file.
const maxLineBytes = 4 << 20

// jsonlRecord accepts the field aliases seen across BEIR dumps: "_id"/"id"
// for the identifier and "text"/"contents" for the body.
type jsonlRecord struct {
	ID       string `json:"_id"`
	AltID    string `json:"id"`
	Title    string `json:"title"`
	Text     string `json:"text"`
	Contents string `json:"contents"`
}

func (r jsonlRecord) document() models.Document {
	id := r.ID
	if id == "" {
		id = r.AltID
	}
	body := r.Text
	if body == "" {
		body = r.Contents
	}
	return models.Document{ID: id, Title: r.Title, Body: body}
}

// ReadCorpus streams documents from a JSONL corpus file, invoking fn once per
// line. Blank lines are skipped; records without an id are rejected.
func ReadCorpus(path string, fn func(models.Document) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open corpus: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec jsonlRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return fmt.Errorf("corpus line %d: %w", lineNo, err)
		}
		doc := rec.document()
		if doc.ID == "" {
			return fmt.Errorf("corpus line %d: record has no id", lineNo)
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read corpus: %w", err)
	}
	return nil
}

// ReadQueries loads a JSONL queries file into an id-to-text map.
func ReadQueries(path string) (models.Queries, error) {
	queries := make(models.Queries)
	err := ReadCorpus(path, func(doc models.Document) error {
		queries[doc.ID] = doc.MergedText()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return queries, nil
}

// ReadQrels loads a TSV relevance file (query-id, corpus-id, score). The
// header row and malformed lines are skipped.
func ReadQrels(path string) (models.Qrels, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open qrels: %w", err)
	}
	defer file.Close()

	qrels := make(models.Qrels)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			continue
		}
		score, err := strconv.Atoi(strings.TrimSpace(fields[2]))
		if err != nil {
			continue
		}
		qid, did := fields[0], fields[1]
		if qrels[qid] == nil {
			qrels[qid] = make(map[string]int)
		}
		qrels[qid][did] = score
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read qrels: %w", err)
	}
	return qrels, nil
}

// TestQueries filters queries down to those with relevance judgments, i.e.
// the test split of the benchmark.
func TestQueries(queries models.Queries, qrels models.Qrels) models.Queries {
	out := make(models.Queries, len(qrels))
	for id, text := range queries {
		if _, ok := qrels[id]; ok {
			out[id] = text
		}
	}
	return out
}

// FirstTestQuery returns the first query in file order that carries relevance
// judgments. File order keeps the choice stable across runs.
func FirstTestQuery(queriesPath string, qrels models.Qrels) (id, text string, err error) {
	err = ReadCorpus(queriesPath, func(doc models.Document) error {
		if _, ok := qrels[doc.ID]; ok && id == "" {
			id = doc.ID
			text = doc.MergedText()
		}
		return nil
	})
	if err != nil {
		return "", "", err
	}
	if id == "" {
		return "", "", fmt.Errorf("no query in %s has relevance judgments", queriesPath)
	}
	return id, text, nil
}
