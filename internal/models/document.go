// Package models defines the corpus, cache and search result types.
package models

// CorpusItem is one searchable text and, once embedded, its vector.
// Embedding is either nil or fully populated with the run's dimension.
type CorpusItem struct {
	Path      string    `json:"path"`
	Content   string    `json:"-"`
	Embedding []float32 `json:"-"`
}

// Embedded reports whether the item carries a vector.
func (c CorpusItem) Embedded() bool {
	return len(c.Embedding) > 0
}

// Corpus is an ordered collection of items. Order is traversal order.
type Corpus []CorpusItem

// Texts returns the contents of the corpus in order.
func (c Corpus) Texts() []string {
	texts := make([]string, len(c))
	for i, item := range c {
		texts[i] = item.Content
	}
	return texts
}

// CacheEntry is one persisted embedding. Key is derived from Text alone.
type CacheEntry struct {
	Key       string    `json:"key"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
}

// ScanDiagnostic records a file the scanner skipped and why.
type ScanDiagnostic struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}
