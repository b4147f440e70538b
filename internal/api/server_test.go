package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gdeltlens/news-pipeline/internal/metrics"
	"github.com/gdeltlens/news-pipeline/internal/news"
)

func TestMain(m *testing.M) {
	metrics.Init()
	m.Run()
}

// fakeDocStore records the last query and returns canned pages.
type fakeDocStore struct {
	lastKeyword *news.KeywordQuery
	lastVector  *news.VectorQuery
	page        news.SearchPage
	searchErr   error
	pingErr     error
}

func (s *fakeDocStore) InsertBatch(context.Context, []news.EnrichedRecord) error { return nil }

func (s *fakeDocStore) KeywordSearch(_ context.Context, q news.KeywordQuery) (news.SearchPage, error) {
	s.lastKeyword = &q
	return s.page, s.searchErr
}

func (s *fakeDocStore) VectorSearch(_ context.Context, q news.VectorQuery) (news.SearchPage, error) {
	s.lastVector = &q
	return s.page, s.searchErr
}

func (s *fakeDocStore) Ping(context.Context) error  { return s.pingErr }
func (s *fakeDocStore) Close(context.Context) error { return nil }

type fakeEmbedder struct {
	fail bool
}

func (e fakeEmbedder) Embed(_ context.Context, text string) ([]float32, bool) {
	if e.fail || text == "" {
		return nil, false
	}
	return make([]float32, 768), true
}

func get(t *testing.T, srv *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodePage(t *testing.T, rec *httptest.ResponseRecorder) pageResponse {
	t.Helper()
	var page pageResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	return page
}

func TestGetNewsDefaults(t *testing.T) {
	t.Parallel()

	store := &fakeDocStore{}
	srv := NewServer(store, fakeEmbedder{}, nil)

	rec := get(t, srv, "/api/news")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, store.lastKeyword)
	require.Equal(t, "", store.lastKeyword.Query)
	require.Equal(t, 2000, store.lastKeyword.Limit)
	require.False(t, store.lastKeyword.FetchAll)

	page := decodePage(t, rec)
	require.NotNil(t, page.Results)
	require.Zero(t, page.Count)
}

func TestGetNewsPassesFilters(t *testing.T) {
	t.Parallel()

	store := &fakeDocStore{}
	srv := NewServer(store, fakeEmbedder{}, nil)

	rec := get(t, srv, "/api/news?q=flood&from=2024-01-01&to=2024-02-01&limit=150")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "flood", store.lastKeyword.Query)
	require.Equal(t, "2024-01-01", store.lastKeyword.DateFrom)
	require.Equal(t, "2024-02-01", store.lastKeyword.DateTo)
	require.Equal(t, 150, store.lastKeyword.Limit)
}

func TestGetNewsLimitClamped(t *testing.T) {
	t.Parallel()

	store := &fakeDocStore{}
	srv := NewServer(store, fakeEmbedder{}, nil)

	get(t, srv, "/api/news?limit=5")
	require.Equal(t, 100, store.lastKeyword.Limit)

	get(t, srv, "/api/news?limit=999999")
	require.Equal(t, 2000, store.lastKeyword.Limit)

	get(t, srv, "/api/news?limit=bogus")
	require.Equal(t, 2000, store.lastKeyword.Limit)
}

func TestGetNewsFetchAllOnlyWithoutFilters(t *testing.T) {
	t.Parallel()

	store := &fakeDocStore{}
	srv := NewServer(store, fakeEmbedder{}, nil)

	get(t, srv, "/api/news?fetchAll=true")
	require.True(t, store.lastKeyword.FetchAll)

	get(t, srv, "/api/news?fetchAll=true&q=flood")
	require.False(t, store.lastKeyword.FetchAll)

	get(t, srv, "/api/news?fetchAll=true&from=2024-01-01")
	require.False(t, store.lastKeyword.FetchAll)
}

func TestGetNewsLimitApplied(t *testing.T) {
	t.Parallel()

	limit := 100
	store := &fakeDocStore{page: news.SearchPage{
		Results:      make([]news.SearchResult, 100),
		Count:        100,
		LimitApplied: &limit,
	}}
	srv := NewServer(store, fakeEmbedder{}, nil)

	page := decodePage(t, get(t, srv, "/api/news?limit=100"))
	require.Equal(t, 100, page.Count)
	require.NotNil(t, page.LimitApplied)
	require.Equal(t, 100, *page.LimitApplied)
}

func TestResponsesAlwaysCarryLimitApplied(t *testing.T) {
	t.Parallel()

	// No truncation: the key must still be present, as null.
	store := &fakeDocStore{}
	srv := NewServer(store, fakeEmbedder{}, nil)

	for _, target := range []string{"/api/news", "/api/vector_search?q=storm"} {
		rec := get(t, srv, target)
		require.Equal(t, http.StatusOK, rec.Code)

		var raw map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
		require.Contains(t, raw, "limit_applied")
		require.Equal(t, "null", string(raw["limit_applied"]))
	}
}

func TestGetNewsStoreErrorIs500(t *testing.T) {
	t.Parallel()

	store := &fakeDocStore{searchErr: errors.New("atlas down")}
	srv := NewServer(store, fakeEmbedder{}, nil)

	rec := get(t, srv, "/api/news?q=flood")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetNewsNilStoreIs503(t *testing.T) {
	t.Parallel()

	srv := NewServer(nil, fakeEmbedder{}, nil)
	rec := get(t, srv, "/api/news")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestVectorSearchRequiresQuery(t *testing.T) {
	t.Parallel()

	srv := NewServer(&fakeDocStore{}, fakeEmbedder{}, nil)
	rec := get(t, srv, "/api/vector_search")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVectorSearchClampsLimit(t *testing.T) {
	t.Parallel()

	store := &fakeDocStore{}
	srv := NewServer(store, fakeEmbedder{}, nil)

	get(t, srv, "/api/vector_search?q=storm")
	require.Equal(t, 500, store.lastVector.Limit)
	require.Len(t, store.lastVector.Vector, 768)

	get(t, srv, "/api/vector_search?q=storm&limit=5")
	require.Equal(t, 50, store.lastVector.Limit)

	get(t, srv, "/api/vector_search?q=storm&limit=100000")
	require.Equal(t, 500, store.lastVector.Limit)
}

func TestVectorSearchEmbeddingFailureIs500(t *testing.T) {
	t.Parallel()

	srv := NewServer(&fakeDocStore{}, fakeEmbedder{fail: true}, nil)
	rec := get(t, srv, "/api/vector_search?q=storm")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestVectorSearchNilEmbedderIs503(t *testing.T) {
	t.Parallel()

	srv := NewServer(&fakeDocStore{}, nil, nil)
	rec := get(t, srv, "/api/vector_search?q=storm")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthAndReadiness(t *testing.T) {
	t.Parallel()

	srv := NewServer(&fakeDocStore{}, fakeEmbedder{}, nil)
	require.Equal(t, http.StatusOK, get(t, srv, "/healthz").Code)
	require.Equal(t, http.StatusOK, get(t, srv, "/readyz").Code)

	down := NewServer(&fakeDocStore{pingErr: errors.New("no mongo")}, fakeEmbedder{}, nil)
	require.Equal(t, http.StatusServiceUnavailable, get(t, down, "/readyz").Code)
}

func TestRequestIDHeaderSet(t *testing.T) {
	t.Parallel()

	srv := NewServer(&fakeDocStore{}, fakeEmbedder{}, nil)
	rec := get(t, srv, "/healthz")
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
