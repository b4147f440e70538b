package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gdeltlens/news-pipeline/internal/news"
)

// Merger joins source rows with the parse journal and attaches summary
// embeddings. It holds no mutable state across calls: merging the same inputs
// twice yields identical records.
type Merger struct {
	embedder news.Embedder
	logger   *zap.Logger
}

// NewMerger wires a Merger. The embedder is constructed once at startup and
// passed in rather than lazily materialized inside the merge path.
func NewMerger(embedder news.Embedder, logger *zap.Logger) *Merger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{embedder: embedder, logger: logger}
}

// Merge produces exactly one EnrichedRecord per source row. Duplicate URLs
// fan back out to every originating row. A row whose URL never produced a
// journal entry is flagged with a no-match marker rather than dropped.
func (m *Merger) Merge(
	ctx context.Context,
	rows []news.SourceRow,
	parsed map[string]news.ParseResult,
) []news.EnrichedRecord {
	records := make([]news.EnrichedRecord, 0, len(rows))
	for _, row := range rows {
		rec := news.EnrichedRecord{
			Date:        normalizeDate(row.Date),
			NumMentions: row.NumMentions,
			SourceURL:   row.SourceURL,
			Latitude:    row.Latitude,
			Longitude:   row.Longitude,
		}

		res, ok := parsed[row.SourceURL]
		switch {
		case !ok:
			m.logger.Warn("URL missing from parse journal; recording row with no-match flag",
				zap.String("url", row.SourceURL))
			rec.Error = string(news.FailureNoMatch)
		case res.Failure != nil:
			rec.URL = res.URL
			rec.Error = res.Failure.String()
		default:
			art := res.Article
			rec.URL = res.URL
			rec.Title = &art.Title
			rec.Text = &art.Text
			rec.Summary = &art.Summary
			rec.Keywords = art.Keywords

			if strings.TrimSpace(art.Summary) != "" {
				if vec, ok := m.embedder.Embed(ctx, art.Summary); ok {
					rec.SummaryEmbedding = vec
				} else {
					m.logger.Warn("Failed to generate summary embedding",
						zap.String("url", row.SourceURL))
					rec.EmbeddingError = string(news.FailureEmbed)
				}
			}
			// Empty summary: embedding not attempted, field stays absent.
		}

		records = append(records, rec)
	}
	return records
}

// normalizeDate renders GDELT's YYYYMMDD integers as YYYY-MM-DD; anything
// already formatted (or unparseable) passes through unchanged.
func normalizeDate(date string) string {
	if len(date) != 8 {
		return date
	}
	t, err := time.Parse("20060102", date)
	if err != nil {
		return date
	}
	return t.Format("2006-01-02")
}
