// Package embedding defines the embedding contract and its providers.
package embedding

import (
	"context"
	"fmt"
	"os"

	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/pkg/searcherr"
	"github.com/hyperjump/kensaku/pkg/utils"
	"go.uber.org/zap"
)

// Embedder produces vector embeddings for text. EmbedBatch returns exactly one
// vector per input, in input order, all of length Dimensions().
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// EmbedOne embeds a single text as a one-item batch.
func EmbedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := Batch(ctx, e, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Batch calls e.EmbedBatch once and validates the result. Provider failures
// become embedding.call.failure errors; malformed results become
// embedding.result.mismatch errors.
func Batch(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	vecs, err := e.EmbedBatch(ctx, texts)
	if err != nil {
		if searcherr.IsEmbedding(err) {
			return nil, err
		}
		return nil, searcherr.Wrap(err, searcherr.CodeEmbeddingCallFailure, "embedding call failed",
			searcherr.Field("batch_size", len(texts)))
	}
	if err := CheckBatch(texts, vecs, e.Dimensions()); err != nil {
		return nil, err
	}
	return vecs, nil
}

// CheckBatch verifies there is one non-empty vector per text and that all
// vectors share one dimension, equal to dim when dim is positive.
func CheckBatch(texts []string, vecs [][]float32, dim int) error {
	if len(vecs) != len(texts) {
		return searcherr.New(searcherr.CodeEmbeddingResultMismatch,
			fmt.Sprintf("embedder returned %d vectors for %d texts", len(vecs), len(texts)),
			searcherr.Field("expected", len(texts)), searcherr.Field("got", len(vecs)))
	}
	want := dim
	for i, v := range vecs {
		if want <= 0 {
			want = len(v)
		}
		if len(v) == 0 || len(v) != want {
			return searcherr.New(searcherr.CodeEmbeddingResultMismatch,
				fmt.Sprintf("vector %d has dimension %d, want %d", i, len(v), want),
				searcherr.Field("index", i))
		}
	}
	return nil
}

// New builds the embedder selected by cfg.Provider.
func New(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	logger = utils.OrNop(logger)
	switch cfg.Provider {
	case config.ProviderMock:
		return NewMockEmbedder(cfg.Dimensions), nil
	case config.ProviderOpenAI:
		token := os.Getenv(cfg.APIKeyEnv)
		e, err := NewOpenAIEmbedder(cfg.BaseURL, cfg.Model, token, cfg.Dimensions, logger)
		if err != nil {
			return nil, searcherr.Wrap(err, searcherr.CodeEmbeddingSetupFailure, "create openai embedder")
		}
		return e, nil
	case config.ProviderONNX, "":
		e, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			return nil, searcherr.Wrap(err, searcherr.CodeEmbeddingSetupFailure, "create onnx embedder",
				searcherr.FieldPath(cfg.ModelPath))
		}
		return e, nil
	default:
		return nil, searcherr.New(searcherr.CodeConfigValidateInvalid, fmt.Sprintf("unknown embedding provider %q", cfg.Provider))
	}
}
