// Package dataset fetches and parses the BEIR FEVER distribution: a zipped
// corpus of JSONL documents and queries with TSV relevance judgments.
package dataset

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// Paths locates the three dataset files inside a cache directory.
type Paths struct {
	Corpus  string
	Queries string
	Qrels   string
}

// LocalPaths returns the expected file layout under cacheDir, mirroring the
// archive layout.
func LocalPaths(cacheDir string) Paths {
	return Paths{
		Corpus:  filepath.Join(cacheDir, "corpus.jsonl"),
		Queries: filepath.Join(cacheDir, "queries.jsonl"),
		Qrels:   filepath.Join(cacheDir, "qrels", "test.tsv"),
	}
}

// Complete reports whether all dataset files are present.
func (p Paths) Complete() bool {
	for _, path := range []string{p.Corpus, p.Queries, p.Qrels} {
		if info, err := os.Stat(path); err != nil || info.Size() == 0 {
			return false
		}
	}
	return true
}

// EnsureFEVER makes the dataset available under cacheDir, downloading and
// extracting the archive from url only when a file is missing. Repeated calls
// with a warm cache do no network I/O.
func EnsureFEVER(ctx context.Context, cacheDir, url string, logger *zap.Logger) (Paths, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	paths := LocalPaths(cacheDir)
	if paths.Complete() {
		logger.Debug("dataset cache is warm", zap.String("dir", cacheDir))
		return paths, nil
	}

	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return Paths{}, fmt.Errorf("create cache dir: %w", err)
	}

	archive, err := download(ctx, url, cacheDir, logger)
	if err != nil {
		return Paths{}, err
	}
	defer os.Remove(archive)

	if err := extract(archive, cacheDir, logger); err != nil {
		return Paths{}, err
	}
	if !paths.Complete() {
		return Paths{}, fmt.Errorf("archive %s is missing expected dataset files", url)
	}
	return paths, nil
}

// download fetches the archive to a temporary file in dir and returns its
// path.
func download(ctx context.Context, url, dir string, logger *zap.Logger) (string, error) {
	logger.Info("downloading dataset", zap.String("url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s: unexpected status %s", url, resp.Status)
	}

	tmp, err := os.CreateTemp(dir, "fever-*.zip")
	if err != nil {
		return "", fmt.Errorf("create temp archive: %w", err)
	}
	defer tmp.Close()

	bar := progressbar.DefaultBytes(resp.ContentLength, "downloading")
	if _, err := io.Copy(io.MultiWriter(tmp, bar), resp.Body); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write archive: %w", err)
	}
	return tmp.Name(), nil
}

// extract unpacks the dataset files from the archive into dir. Archive entry
// names carry a dataset prefix ("fever/corpus.jsonl"); entries are matched by
// their path relative to that prefix.
func extract(archive, dir string, logger *zap.Logger) error {
	reader, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer reader.Close()

	wanted := map[string]string{
		"corpus.jsonl":   filepath.Join(dir, "corpus.jsonl"),
		"queries.jsonl":  filepath.Join(dir, "queries.jsonl"),
		"qrels/test.tsv": filepath.Join(dir, "qrels", "test.tsv"),
	}

	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		rel := stripDatasetPrefix(entry.Name)
		dest, ok := wanted[rel]
		if !ok {
			continue
		}
		if err := extractEntry(entry, dest); err != nil {
			return err
		}
		logger.Debug("extracted", zap.String("entry", entry.Name), zap.String("dest", dest))
		delete(wanted, rel)
	}

	if len(wanted) > 0 {
		missing := make([]string, 0, len(wanted))
		for rel := range wanted {
			missing = append(missing, rel)
		}
		return fmt.Errorf("archive is missing entries: %s", strings.Join(missing, ", "))
	}
	return nil
}

// stripDatasetPrefix drops the leading archive directory ("fever/") from an
// entry name.
func stripDatasetPrefix(name string) string {
	name = strings.TrimPrefix(name, "./")
	if i := strings.Index(name, "/"); i >= 0 {
		switch name[:i] {
		case "corpus.jsonl", "queries.jsonl", "qrels":
			return name
		default:
			return name[i+1:]
		}
	}
	return name
}

func extractEntry(entry *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("create dir for %s: %w", dest, err)
	}
	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open archive entry %s: %w", entry.Name, err)
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("extract %s: %w", entry.Name, err)
	}
	return nil
}
