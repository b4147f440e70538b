// Package news defines core types shared across the ingestion pipeline and the
// query service.
package news

import "fmt"

// FailureKind classifies a per-item failure absorbed by the pipeline.
type FailureKind string

// Failure kinds recorded on degraded records.
const (
	FailureFetch   FailureKind = "download_failed"
	FailureParse   FailureKind = "parse_error"
	FailureNoMatch FailureKind = "no_ndjson_match"
	FailureEmbed   FailureKind = "embedding_generation_failed"
)

// Failure is a tagged per-item error carried as data instead of being raised.
// Detail is optional and holds the underlying error class and message.
type Failure struct {
	Kind   FailureKind
	Detail string
}

// NewFailure builds a Failure with a formatted detail string.
func NewFailure(kind FailureKind, err error) *Failure {
	if err == nil {
		return &Failure{Kind: kind}
	}
	return &Failure{Kind: kind, Detail: fmt.Sprintf("%T: %v", err, err)}
}

// String renders the failure the way it is stored on records, e.g.
// "parse_error: *errors.errorString: unexpected EOF".
func (f *Failure) String() string {
	if f == nil {
		return ""
	}
	if f.Detail == "" {
		return string(f.Kind)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
}

// SourceRow is one input record from a batch file. SourceURL is the join key
// to fetched content; rows with an empty SourceURL are dropped before fetch.
type SourceRow struct {
	Date        string
	NumMentions int
	SourceURL   string
	Latitude    *float64
	Longitude   *float64
}

// FetchResult is the outcome of fetching one URL. Either HTML is populated
// (together with the charset that decoded it) or Failure is set; it is consumed
// immediately by the parse stage and never persisted.
type FetchResult struct {
	URL     string
	HTML    string
	Charset string
	Failure *Failure
}

// Absent reports whether the fetch produced no usable document.
func (r FetchResult) Absent() bool {
	return r.Failure != nil
}

// ParsedArticle holds the content fields extracted from one page.
type ParsedArticle struct {
	Title    string
	Text     string
	Summary  string
	Keywords []string
}

// ParseResult pairs a URL with either a ParsedArticle or a Failure, never both.
// One ParseResult per distinct URL is appended to the intermediate journal.
type ParseResult struct {
	URL     string
	Article *ParsedArticle
	Failure *Failure
}

// EnrichedRecord is the unit persisted to the document store: one per
// SourceRow, merged with parsed content and an optional summary embedding.
// Field names follow the store schema the query service reads.
type EnrichedRecord struct {
	Date        string   `bson:"SQLDATE" json:"SQLDATE"`
	NumMentions int      `bson:"NumMentions" json:"NumMentions"`
	SourceURL   string   `bson:"SOURCEURL" json:"SOURCEURL"`
	Latitude    *float64 `bson:"latitude" json:"latitude"`
	Longitude   *float64 `bson:"longitude" json:"longitude"`

	URL      string   `bson:"url,omitempty" json:"url,omitempty"`
	Title    *string  `bson:"title" json:"title"`
	Text     *string  `bson:"text" json:"text"`
	Summary  *string  `bson:"summary" json:"summary"`
	Keywords []string `bson:"keywords" json:"keywords"`

	SummaryEmbedding []float32 `bson:"summary_embedding,omitempty" json:"summary_embedding,omitempty"`
	EmbeddingError   string    `bson:"embedding_error,omitempty" json:"embedding_error,omitempty"`
	Error            string    `bson:"error,omitempty" json:"error,omitempty"`
}

// BatchState is the lifecycle state of one remote batch file.
type BatchState string

// Batch lifecycle states. A file transitions to archived only after all of its
// derived records were persisted; any earlier failure returns it to discovered.
const (
	BatchDiscovered  BatchState = "discovered"
	BatchDownloading BatchState = "downloading"
	BatchProcessing  BatchState = "processing"
	BatchArchived    BatchState = "archived"
	BatchFailed      BatchState = "failed"
)

// KeywordQuery parameterizes a keyword search over the document store.
type KeywordQuery struct {
	Query    string
	DateFrom string
	DateTo   string
	Limit    int
	FetchAll bool
}

// VectorQuery parameterizes a similarity search over summary embeddings.
type VectorQuery struct {
	Vector []float32
	Limit  int
}

// SearchResult is the projected document shape both search endpoints return.
type SearchResult struct {
	ID        string   `json:"_id"`
	Title     *string  `json:"title"`
	Summary   *string  `json:"summary"`
	URL       string   `json:"url,omitempty"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Date      string   `json:"SQLDATE,omitempty"`
	SourceURL string   `json:"SOURCEURL,omitempty"`
	Score     float64  `json:"score,omitempty"`
}

// SearchPage is a page of search results plus the applied limit, if any.
type SearchPage struct {
	Results      []SearchResult
	Count        int
	LimitApplied *int
}
