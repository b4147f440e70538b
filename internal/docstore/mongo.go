// Package docstore implements the MongoDB-backed document store behind the
// pipeline's persistence step and the query service's search endpoints.
package docstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/gdeltlens/news-pipeline/internal/news"
)

// Vector search tuning: weak matches below the score floor are dropped, and
// the candidate pool is kept well above the requested limit for recall.
const (
	vectorScoreFloor  = 0.7
	minNumCandidates  = 2000
	candidateMultiple = 4
)

// Store is a news.DocStore over a single MongoDB collection with Atlas Search
// indexes: a keyword index over all fields and a vector index over
// summary_embedding.
type Store struct {
	client       *mongo.Client
	coll         *mongo.Collection
	keywordIndex string
	vectorIndex  string
	logger       *zap.Logger
}

var _ news.DocStore = (*Store)(nil)

// NewMongoStore connects, pings, and returns a ready store. Connection
// failure is fatal to the caller by design: the store is a hard dependency of
// both the pipeline and the query service.
func NewMongoStore(ctx context.Context, uri, database, collection, keywordIndex, vectorIndex string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	logger.Info("Connected to document store",
		zap.String("database", database), zap.String("collection", collection))
	return &Store{
		client:       client,
		coll:         client.Database(database).Collection(collection),
		keywordIndex: keywordIndex,
		vectorIndex:  vectorIndex,
		logger:       logger,
	}, nil
}

// InsertBatch persists all records of one batch as a single bulk write.
func (s *Store) InsertBatch(ctx context.Context, records []news.EnrichedRecord) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]interface{}, len(records))
	for i := range records {
		docs[i] = records[i]
	}
	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// storedDoc is the projected shape both search pipelines return.
type storedDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	Title     *string            `bson:"title"`
	Summary   *string            `bson:"summary"`
	URL       string             `bson:"url"`
	Latitude  *float64           `bson:"latitude"`
	Longitude *float64           `bson:"longitude"`
	Date      string             `bson:"SQLDATE"`
	SourceURL string             `bson:"SOURCEURL"`
	Score     float64            `bson:"score"`
}

func (d storedDoc) toResult() news.SearchResult {
	return news.SearchResult{
		ID:        d.ID.Hex(),
		Title:     d.Title,
		Summary:   d.Summary,
		URL:       d.URL,
		Latitude:  d.Latitude,
		Longitude: d.Longitude,
		Date:      d.Date,
		SourceURL: d.SourceURL,
		Score:     d.Score,
	}
}

var searchProjection = bson.D{
	{Key: "_id", Value: 1},
	{Key: "title", Value: 1},
	{Key: "summary", Value: 1},
	{Key: "url", Value: 1},
	{Key: "latitude", Value: 1},
	{Key: "longitude", Value: 1},
	{Key: "SQLDATE", Value: 1},
	{Key: "SOURCEURL", Value: 1},
	{Key: "score", Value: 1},
}

// KeywordSearch runs an Atlas $search aggregation. Only geolocated documents
// are returned; date bounds apply to the string SQLDATE field, which sorts
// correctly because dates are normalized to YYYY-MM-DD at ingest.
func (s *Store) KeywordSearch(ctx context.Context, q news.KeywordQuery) (news.SearchPage, error) {
	var pipeline mongo.Pipeline

	if q.Query != "" {
		pipeline = append(pipeline,
			bson.D{{Key: "$search", Value: bson.D{
				{Key: "index", Value: s.keywordIndex},
				{Key: "text", Value: bson.D{
					{Key: "query", Value: q.Query},
					{Key: "path", Value: bson.D{{Key: "wildcard", Value: "*"}}},
					{Key: "fuzzy", Value: bson.D{}},
				}},
			}}},
			bson.D{{Key: "$addFields", Value: bson.D{
				{Key: "score", Value: bson.D{{Key: "$meta", Value: "searchScore"}}},
			}}},
		)
	}

	match := bson.D{
		{Key: "latitude", Value: bson.D{{Key: "$ne", Value: nil}}},
		{Key: "longitude", Value: bson.D{{Key: "$ne", Value: nil}}},
	}
	if q.DateFrom != "" || q.DateTo != "" {
		dateRange := bson.D{}
		if q.DateFrom != "" {
			dateRange = append(dateRange, bson.E{Key: "$gte", Value: q.DateFrom})
		}
		if q.DateTo != "" {
			dateRange = append(dateRange, bson.E{Key: "$lte", Value: q.DateTo})
		}
		match = append(match, bson.E{Key: "SQLDATE", Value: dateRange})
	}
	pipeline = append(pipeline, bson.D{{Key: "$match", Value: match}})

	if q.Query != "" {
		pipeline = append(pipeline, bson.D{{Key: "$sort", Value: bson.D{{Key: "score", Value: -1}}}})
	}
	pipeline = append(pipeline, bson.D{{Key: "$project", Value: searchProjection}})
	if !q.FetchAll && q.Limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: q.Limit}})
	}

	results, err := s.aggregate(ctx, pipeline)
	if err != nil {
		return news.SearchPage{}, fmt.Errorf("keyword search: %w", err)
	}

	page := news.SearchPage{Results: results, Count: len(results)}
	if !q.FetchAll && q.Limit > 0 && len(results) >= q.Limit {
		limit := q.Limit
		page.LimitApplied = &limit
	}
	return page, nil
}

// VectorSearch runs an Atlas $vectorSearch aggregation over summary
// embeddings and drops weak matches below the score floor.
func (s *Store) VectorSearch(ctx context.Context, q news.VectorQuery) (news.SearchPage, error) {
	numCandidates := q.Limit * candidateMultiple
	if numCandidates < minNumCandidates {
		numCandidates = minNumCandidates
	}

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$vectorSearch", Value: bson.D{
			{Key: "index", Value: s.vectorIndex},
			{Key: "path", Value: "summary_embedding"},
			{Key: "queryVector", Value: q.Vector},
			{Key: "numCandidates", Value: numCandidates},
			{Key: "limit", Value: q.Limit},
		}}},
		bson.D{{Key: "$addFields", Value: bson.D{
			{Key: "score", Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}},
		}}},
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "score", Value: bson.D{{Key: "$gt", Value: vectorScoreFloor}}},
		}}},
		bson.D{{Key: "$project", Value: searchProjection}},
	}

	results, err := s.aggregate(ctx, pipeline)
	if err != nil {
		return news.SearchPage{}, fmt.Errorf("vector search: %w", err)
	}
	return news.SearchPage{Results: results, Count: len(results)}, nil
}

func (s *Store) aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]news.SearchResult, error) {
	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []storedDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	results := make([]news.SearchResult, 0, len(docs))
	for _, d := range docs {
		results = append(results, d.toResult())
	}
	return results, nil
}

// Ping reports whether the store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
