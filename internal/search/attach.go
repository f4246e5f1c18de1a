package search

import (
	"fmt"

	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/pkg/searcherr"
)

// AttachEmbeddings pairs corpus items with vectors by position and returns a
// new corpus. The input corpus is left untouched. A length mismatch means the
// embedder broke its contract and no partial corpus is returned.
func AttachEmbeddings(corpus models.Corpus, vectors [][]float32) (models.Corpus, error) {
	if len(corpus) != len(vectors) {
		return nil, searcherr.New(searcherr.CodeEmbeddingResultMismatch,
			fmt.Sprintf("%d vectors for %d corpus items", len(vectors), len(corpus)))
	}
	out := make(models.Corpus, len(corpus))
	for i, item := range corpus {
		out[i] = models.CorpusItem{
			Path:      item.Path,
			Content:   item.Content,
			Embedding: vectors[i],
		}
	}
	return out, nil
}
