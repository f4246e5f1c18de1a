package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hyperjump/kensaku/internal/cache"
	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/embedding/embeddingtest"
	"github.com/hyperjump/kensaku/internal/scanner"
	"github.com/hyperjump/kensaku/internal/search"
	"github.com/hyperjump/kensaku/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var vectors = map[string][]float32{
	"query": {1, 0},
	"north": {1, 0},
	"east":  {0, 1},
}

func newTestServer(t *testing.T, c *cache.Cache, emb *embeddingtest.StaticEmbedder) http.Handler {
	t.Helper()
	if emb == nil {
		emb = embeddingtest.NewStaticEmbedder(2, vectors)
	}
	cfg := config.Default()
	engine := search.NewEngine(scanner.New(), emb,
		search.WithCache(c),
		search.WithThreshold(cfg.Search.ThresholdOrDefault()))
	return NewServer(engine, c, cfg, zap.NewNop()).Routes()
}

func writeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "north.txt"), []byte("north"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "east.txt"), []byte("east"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".secret"), []byte("north"), 0644))
	return root
}

func do(t *testing.T, h http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	rec := do(t, newTestServer(t, nil, nil), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleSearch(t *testing.T) {
	root := writeTree(t)
	rec := do(t, newTestServer(t, nil, nil), http.MethodPost, "/api/v1/search",
		map[string]interface{}{"query": "query", "path": root})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp searchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "query", resp.Query)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, filepath.Join(root, "north.txt"), resp.Results[0].Path)
	assert.InDelta(t, 1.0, resp.Results[0].Score, 1e-6)
	assert.Equal(t, 1, resp.Total)
	assert.Empty(t, resp.Skipped)
}

func TestHandleSearch_explicitThreshold(t *testing.T) {
	root := writeTree(t)
	rec := do(t, newTestServer(t, nil, nil), http.MethodPost, "/api/v1/search",
		map[string]interface{}{"query": "query", "path": root, "threshold": -1})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp searchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Results, 2)
}

func TestHandleSearch_badRequests(t *testing.T) {
	h := newTestServer(t, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/search", map[string]string{"query": "no source"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "search.request.invalid")
}

func TestHandleSearch_embeddingFailure(t *testing.T) {
	emb := embeddingtest.NewStaticEmbedder(2, vectors)
	emb.EmbedBatchFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, assert.AnError
	}
	rec := do(t, newTestServer(t, nil, emb), http.MethodPost, "/api/v1/search",
		map[string]interface{}{"query": "query", "path": writeTree(t)})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "embedding.call.failure")
}

func TestHandleSearch_fromCacheWithoutCache(t *testing.T) {
	rec := do(t, newTestServer(t, nil, nil), http.MethodPost, "/api/v1/search",
		map[string]interface{}{"query": "query", "from_cache": true})
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestHandleSearch_corruptCacheEntry(t *testing.T) {
	store := storage.NewMemoryStore(0)
	c := cache.New(store)
	require.NoError(t, store.Put(context.Background(), c.Key("north"), "north", []byte("not json")))

	rec := do(t, newTestServer(t, c, nil), http.MethodPost, "/api/v1/search",
		map[string]interface{}{"query": "query", "path": writeTree(t)})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "cache.entry.invalid")
}

func TestHandleCacheEntries(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := storage.NewRedisStore(context.Background(), storage.RedisOptions{Addr: mr.Addr()})
	require.NoError(t, err)
	c := cache.New(store)
	t.Cleanup(func() { _ = c.Close() })
	h := newTestServer(t, c, nil)

	rec := do(t, h, http.MethodGet, "/api/v1/cache/entries", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":0,"keys":[]}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/v1/search", map[string]interface{}{"query": "query", "path": writeTree(t)})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/cache/entries", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Count int      `json:"count"`
		Keys  []string `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.ElementsMatch(t, []string{c.Key("north"), c.Key("east")}, body.Keys)
}

func TestHandleCacheEntries_notConfigured(t *testing.T) {
	rec := do(t, newTestServer(t, nil, nil), http.MethodGet, "/api/v1/cache/entries", nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestHandleStatus(t *testing.T) {
	c := cache.New(storage.NewMemoryStore(0))
	rec := do(t, newTestServer(t, c, nil), http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	emb := body["embedding"].(map[string]interface{})
	assert.EqualValues(t, 2, emb["dimensions"])
	cacheInfo := body["cache"].(map[string]interface{})
	assert.Equal(t, true, cacheInfo["enabled"])
	assert.EqualValues(t, 0, cacheInfo["entries"])
	assert.EqualValues(t, 0.5, body["threshold"])
}
