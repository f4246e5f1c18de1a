package embedding

import (
	"context"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint, such as
// OpenAI itself or a local Ollama server.
type OpenAIEmbedder struct {
	embedder   embeddings.Embedder
	dimensions int
	logger     *zap.Logger
}

// NewOpenAIEmbedder creates an embedder for model served at baseURL. An empty
// token is sent as "none" for local services that do not authenticate.
func NewOpenAIEmbedder(baseURL, model, token string, dimensions int, logger *zap.Logger) (*OpenAIEmbedder, error) {
	if token == "" {
		token = "none"
	}
	client, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithToken(token),
		openai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, err
	}
	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, err
	}
	return &OpenAIEmbedder{
		embedder:   embedder,
		dimensions: dimensions,
		logger:     logger.With(zap.String("component", "openai-embedder"), zap.String("model", model)),
	}, nil
}

// EmbedBatch sends texts as one embedding request.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings", zap.Int("count", len(texts)))
	vecs, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("failed to generate embeddings", zap.Int("count", len(texts)), zap.Error(err))
		return nil, err
	}
	return vecs, nil
}

// Dimensions returns the configured embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op; the HTTP client holds no resources.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
