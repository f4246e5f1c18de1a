package embedding

import (
	"context"
	"math"

	"github.com/hyperjump/kensaku/pkg/utils"
)

// MockEmbedder returns deterministic unit vectors derived from a hash of the
// text, so identical text always embeds identically. It carries no meaning.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns a MockEmbedder of the given dimensions (384 when not positive).
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions}
}

func (e *MockEmbedder) embed(text string) []float32 {
	h := HashString(text)
	emb := make([]float32, e.dimensions)
	for i := range emb {
		emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	utils.NormalizeL2(emb)
	return emb
}

// EmbedBatch embeds every text. It fails only when ctx is done.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.embed(text)
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op.
func (e *MockEmbedder) Close() error {
	return nil
}
