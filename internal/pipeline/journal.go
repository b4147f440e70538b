// Package pipeline implements the batch ingestion workflow: the bounded
// fetch/parse queue, the intermediate journal, record merging, and the
// orchestrator loop that drives one batch file at a time.
package pipeline

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/gdeltlens/news-pipeline/internal/news"
)

// journalLine is the wire shape of one journal entry: one JSON object per
// line, error null on success.
type journalLine struct {
	URL      string   `json:"url"`
	Title    *string  `json:"title"`
	Text     *string  `json:"text"`
	Summary  *string  `json:"summary"`
	Keywords []string `json:"keywords"`
	Error    *string  `json:"error"`
}

// Journal is the append-only intermediate log of parse results. Each append is
// a single atomic write of one complete line, safe for concurrent use by the
// consumer workers, so partial progress survives a crash.
type Journal struct {
	path string
	mu   sync.Mutex
	f    *os.File
}

// CreateJournal opens the journal for appending, truncating any leftover file
// from an earlier attempt at the same batch.
func CreateJournal(path string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create journal %s: %w", path, err)
	}
	return &Journal{path: path, f: f}, nil
}

// Append writes one parse result as a single NDJSON line.
func (j *Journal) Append(res news.ParseResult) error {
	line := encodeLine(res)
	data, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("marshal journal line: %w", err)
	}
	data = append(data, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.f.Write(data); err != nil {
		return fmt.Errorf("append journal line: %w", err)
	}
	return nil
}

// Close flushes and closes the journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.f.Close(); err != nil {
		return fmt.Errorf("close journal: %w", err)
	}
	return nil
}

// ReadJournal loads the journal back into a URL-keyed map. Corrupt lines are
// skipped and counted rather than failing the read.
func ReadJournal(path string) (map[string]news.ParseResult, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open journal %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	results := make(map[string]news.ParseResult)
	skipped := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var line journalLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			skipped++
			continue
		}
		results[line.URL] = decodeLine(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("scan journal %s: %w", path, err)
	}
	return results, skipped, nil
}

func encodeLine(res news.ParseResult) journalLine {
	line := journalLine{URL: res.URL}
	if res.Failure != nil {
		msg := res.Failure.String()
		line.Error = &msg
		return line
	}
	if res.Article != nil {
		line.Title = &res.Article.Title
		line.Text = &res.Article.Text
		line.Summary = &res.Article.Summary
		line.Keywords = res.Article.Keywords
	}
	return line
}

func decodeLine(line journalLine) news.ParseResult {
	res := news.ParseResult{URL: line.URL}
	if line.Error != nil {
		res.Failure = &news.Failure{Kind: news.FailureKind(*line.Error)}
		return res
	}
	art := news.ParsedArticle{Keywords: line.Keywords}
	if line.Title != nil {
		art.Title = *line.Title
	}
	if line.Text != nil {
		art.Text = *line.Text
	}
	if line.Summary != nil {
		art.Summary = *line.Summary
	}
	res.Article = &art
	return res
}
