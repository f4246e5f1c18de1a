package ranking

import (
	"fmt"
	"testing"

	"github.com/hyperjump/kensaku/internal/models"
)

func benchCorpus(n, dim int) models.Corpus {
	corpus := make(models.Corpus, n)
	for i := range corpus {
		vec := make([]float32, dim)
		vec[0] = float32(i) / float32(n)
		vec[i%dim] += 0.5
		corpus[i] = models.CorpusItem{Path: fmt.Sprintf("/bench/%04d.txt", i), Embedding: vec}
	}
	return corpus
}

func BenchmarkRank(b *testing.B) {
	corpus := benchCorpus(1000, 384)
	query := make([]float32, 384)
	query[0] = 1.0
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Rank(query, corpus, 0.5)
	}
}
