package models

// ScoredItem pairs a corpus item with its similarity to the query.
type ScoredItem struct {
	Item  CorpusItem `json:"item"`
	Score float64    `json:"score"`
}

// SearchResult is the wire form of a ranked hit.
type SearchResult struct {
	Path  string  `json:"path"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	ID        string           `json:"id"`
	Query     string           `json:"query"`
	Results   []*SearchResult  `json:"results"`
	Skipped   []ScanDiagnostic `json:"skipped,omitempty"`
	Total     int              `json:"total"`
	Scanned   int              `json:"scanned"`
	QueryTime int64            `json:"query_time_ms"`

	// Ranked keeps the full scored items for in-process callers.
	Ranked []ScoredItem `json:"-"`
}

// NewSearchResults converts ranked items into wire results, ranks starting at 1.
func NewSearchResults(items []ScoredItem) []*SearchResult {
	out := make([]*SearchResult, len(items))
	for i, it := range items {
		out[i] = &SearchResult{Path: it.Item.Path, Score: it.Score, Rank: i + 1}
	}
	return out
}
