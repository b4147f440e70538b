package batch

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gdeltlens/news-pipeline/internal/news"
)

// ReadRows parses a downloaded batch file into source rows. Rows with an empty
// SOURCEURL are dropped; malformed numeric cells degrade to zero values rather
// than dropping the row.
func ReadRows(path string) ([]news.SourceRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open batch file: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read batch header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"SQLDATE", "NumMentions", "SOURCEURL", "latitude", "longitude"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("batch file missing column %q", required)
		}
	}

	var rows []news.SourceRow
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read batch row: %w", err)
		}
		url := strings.TrimSpace(cell(record, col["SOURCEURL"]))
		if url == "" {
			continue
		}
		rows = append(rows, news.SourceRow{
			Date:        strings.TrimSpace(cell(record, col["SQLDATE"])),
			NumMentions: parseInt(cell(record, col["NumMentions"])),
			SourceURL:   url,
			Latitude:    parseFloat(cell(record, col["latitude"])),
			Longitude:   parseFloat(cell(record, col["longitude"])),
		})
	}
	return rows, nil
}

// DistinctURLs returns the deduplicated URLs of the rows in first-seen order.
func DistinctURLs(rows []news.SourceRow) []string {
	seen := make(map[string]struct{}, len(rows))
	var urls []string
	for _, row := range rows {
		if _, ok := seen[row.SourceURL]; ok {
			continue
		}
		seen[row.SourceURL] = struct{}{}
		urls = append(urls, row.SourceURL)
	}
	return urls
}

func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return record[i]
}

func parseInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func parseFloat(s string) *float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &f
}
