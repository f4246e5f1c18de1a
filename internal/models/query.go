package models

import (
	"math"

	"github.com/hyperjump/kensaku/pkg/searcherr"
)

// SearchQuery is a request to rank a corpus against a query string.
// Exactly one corpus source applies: Path is scanned, or FromCache enumerates
// the persisted cache.
type SearchQuery struct {
	Query     string   `json:"query"`
	Path      string   `json:"path,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
	FromCache bool     `json:"from_cache,omitempty"`
}

// Validate ensures the query names a corpus source and a usable threshold.
// An empty query string is allowed.
func (q *SearchQuery) Validate() error {
	if q.Path == "" && !q.FromCache {
		return searcherr.New(searcherr.CodeSearchRequestInvalid, "either path or from_cache is required")
	}
	if q.Path != "" && q.FromCache {
		return searcherr.New(searcherr.CodeSearchRequestInvalid, "path and from_cache are mutually exclusive")
	}
	if q.Threshold != nil && (math.IsNaN(*q.Threshold) || math.IsInf(*q.Threshold, 0)) {
		return searcherr.New(searcherr.CodeSearchRequestInvalid, "threshold must be a finite number")
	}
	return nil
}

// ThresholdOr returns the query threshold, or def when none was given.
func (q *SearchQuery) ThresholdOr(def float64) float64 {
	if q.Threshold != nil {
		return *q.Threshold
	}
	return def
}
