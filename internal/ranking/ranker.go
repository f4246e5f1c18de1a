// Package ranking scores corpus items against a query vector and keeps the relevant ones.
package ranking

import (
	"sort"

	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/vector"
)

// Score returns the cosine similarity between the query and every item, in corpus order.
// Items without an embedding score 0.
func Score(query []float32, items models.Corpus) []models.ScoredItem {
	scored := make([]models.ScoredItem, len(items))
	for i, item := range items {
		scored[i] = models.ScoredItem{Item: item, Score: vector.Cosine(query, item.Embedding)}
	}
	return scored
}

// SortByScore orders items by descending score. Equal scores keep their input order.
func SortByScore(items []models.ScoredItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})
}

// Filter keeps the items whose score is strictly greater than threshold, preserving order.
func Filter(items []models.ScoredItem, threshold float64) []models.ScoredItem {
	out := make([]models.ScoredItem, 0, len(items))
	for _, it := range items {
		if it.Score > threshold {
			out = append(out, it)
		}
	}
	return out
}

// Rank scores items against query, sorts them by descending similarity and
// drops those not strictly above threshold. The input corpus is not modified.
func Rank(query []float32, items models.Corpus, threshold float64) []models.ScoredItem {
	scored := Score(query, items)
	SortByScore(scored)
	return Filter(scored, threshold)
}
