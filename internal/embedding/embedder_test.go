package embedding_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/embedding"
	"github.com/hyperjump/kensaku/internal/embedding/embeddingtest"
	"github.com/hyperjump/kensaku/pkg/searcherr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckBatch(t *testing.T) {
	tests := []struct {
		name  string
		texts []string
		vecs  [][]float32
		dim   int
		ok    bool
	}{
		{"matching", []string{"a", "b"}, [][]float32{{1, 0}, {0, 1}}, 2, true},
		{"empty batch", nil, nil, 2, true},
		{"too few", []string{"a", "b"}, [][]float32{{1, 0}}, 2, false},
		{"too many", []string{"a"}, [][]float32{{1, 0}, {0, 1}}, 2, false},
		{"wrong dimension", []string{"a"}, [][]float32{{1, 0, 0}}, 2, false},
		{"ragged without dim", []string{"a", "b"}, [][]float32{{1, 0}, {1}}, 0, false},
		{"empty vector", []string{"a"}, [][]float32{{}}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := embedding.CheckBatch(tt.texts, tt.vecs, tt.dim)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, searcherr.HasCode(err, searcherr.CodeEmbeddingResultMismatch))
		})
	}
}

func TestBatch_wrapsProviderFailure(t *testing.T) {
	boom := errors.New("model unavailable")
	e := embeddingtest.NewStaticEmbedder(2, nil)
	e.EmbedBatchFunc = func(context.Context, []string) ([][]float32, error) { return nil, boom }

	_, err := embedding.Batch(context.Background(), e, []string{"x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, searcherr.HasCode(err, searcherr.CodeEmbeddingCallFailure))
	assert.Equal(t, 3, searcherr.ExitCode(err))
}

func TestBatch_rejectsShortResult(t *testing.T) {
	e := embeddingtest.NewStaticEmbedder(2, nil)
	e.EmbedBatchFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1, 0}}, nil
	}
	_, err := embedding.Batch(context.Background(), e, []string{"a", "b", "c"})
	require.Error(t, err)
	assert.True(t, searcherr.HasCode(err, searcherr.CodeEmbeddingResultMismatch))
	assert.Equal(t, 1, e.Calls())
}

func TestEmbedOne(t *testing.T) {
	e := embeddingtest.NewStaticEmbedder(2, map[string][]float32{"q": {0.6, 0.8}})
	v, err := embedding.EmbedOne(context.Background(), e, "q")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.6, 0.8}, v)
	assert.Equal(t, [][]string{{"q"}}, e.Batches())
}

func TestMockEmbedder(t *testing.T) {
	e := embedding.NewMockEmbedder(16)
	vecs, err := e.EmbedBatch(context.Background(), []string{"same", "same", "other"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, vecs[0], vecs[1])
	assert.NotEqual(t, vecs[0], vecs[2])

	var sum float64
	for _, x := range vecs[0] {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
	assert.Equal(t, 16, e.Dimensions())
	assert.NoError(t, e.Close())
}

func TestMockEmbedder_defaultDimensions(t *testing.T) {
	assert.Equal(t, 384, embedding.NewMockEmbedder(0).Dimensions())
}

func TestNew(t *testing.T) {
	e, err := embedding.New(config.EmbeddingConfig{Provider: config.ProviderMock, Dimensions: 8}, nil)
	require.NoError(t, err)
	assert.Equal(t, 8, e.Dimensions())

	oa, err := embedding.New(config.EmbeddingConfig{
		Provider:   config.ProviderOpenAI,
		BaseURL:    "http://127.0.0.1:1/v1",
		Model:      "all-minilm",
		Dimensions: 384,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 384, oa.Dimensions())

	_, err = embedding.New(config.EmbeddingConfig{Provider: "word2vec"}, nil)
	require.Error(t, err)
	assert.Equal(t, 2, searcherr.ExitCode(err))
}

func TestNew_onnxMissingModel(t *testing.T) {
	_, err := embedding.New(config.EmbeddingConfig{
		Provider:   config.ProviderONNX,
		ModelPath:  "/nonexistent/model.onnx",
		Dimensions: 384,
		MaxTokens:  16,
	}, nil)
	require.Error(t, err)
	assert.True(t, searcherr.HasCode(err, searcherr.CodeEmbeddingSetupFailure))
}
