package server

import (
	"encoding/json"
	"net/http"

	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/storage"
	"github.com/hyperjump/kensaku/pkg/searcherr"
	"go.uber.org/zap"
)

type searchResult struct {
	Path  string  `json:"path"`
	Score float64 `json:"score"`
}

type skippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

type searchResponse struct {
	ID        string         `json:"id"`
	Query     string         `json:"query"`
	Results   []searchResult `json:"results"`
	Skipped   []skippedFile  `json:"skipped"`
	Total     int            `json:"total"`
	QueryTime int64          `json:"query_time_ms"`
}

func newSearchResponse(resp *models.SearchResponse) searchResponse {
	out := searchResponse{
		ID:        resp.ID,
		Query:     resp.Query,
		Results:   make([]searchResult, len(resp.Results)),
		Skipped:   make([]skippedFile, len(resp.Skipped)),
		Total:     resp.Total,
		QueryTime: resp.QueryTime,
	}
	for i, r := range resp.Results {
		out.Results[i] = searchResult{Path: r.Path, Score: r.Score}
	}
	for i, d := range resp.Skipped {
		out.Skipped[i] = skippedFile{Path: d.Path, Reason: d.Reason}
	}
	return out
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request",
		zap.String("query", query.Query),
		zap.String("path", query.Path),
		zap.Bool("from_cache", query.FromCache))
	response, err := s.engine.Search(r.Context(), &query)
	if err != nil {
		s.fail(w, "search failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, newSearchResponse(response))
}

func (s *Server) handleCacheEntries(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		s.respondError(w, http.StatusNotImplemented, "cache not configured")
		return
	}
	entries, err := s.cache.List(r.Context(), s.engine.Dimensions())
	if err != nil {
		s.fail(w, "cache listing failed", err)
		return
	}
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(keys),
		"keys":  keys,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	emb := s.config.Embedding
	resp := map[string]interface{}{
		"embedding": map[string]interface{}{
			"provider":   emb.Provider,
			"dimensions": s.engine.Dimensions(),
		},
	}
	cacheInfo := map[string]interface{}{
		"backend": s.config.Cache.Backend,
		"enabled": s.cache != nil,
	}
	if s.cache != nil {
		n, err := s.cache.Count(r.Context())
		if err != nil {
			s.fail(w, "status: count cache entries failed", err)
			return
		}
		cacheInfo["entries"] = n
		if path := storage.Path(s.config.Cache); path != "" {
			cacheInfo["path"] = path
			if diskBytes, err := storage.CacheDiskUsage(path); err == nil {
				cacheInfo["disk_usage_bytes"] = diskBytes
			}
		}
	}
	resp["cache"] = cacheInfo
	resp["threshold"] = s.config.Search.ThresholdOrDefault()
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) fail(w http.ResponseWriter, msg string, err error) {
	status := searcherr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err), zap.String("code", string(searcherr.CodeOf(err))))
	} else {
		s.logger.Debug(msg, zap.Error(err))
	}
	s.respondJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  string(searcherr.CodeOf(err)),
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
