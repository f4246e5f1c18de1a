// Package embeddingtest provides embedding test doubles.
package embeddingtest

import (
	"context"
	"sync"
)

// StaticEmbedder maps known texts to fixed vectors and records every batch it
// receives. Unknown texts embed to the zero vector.
type StaticEmbedder struct {
	Vectors map[string][]float32
	Dim     int

	// EmbedBatchFunc overrides the default behavior when set.
	EmbedBatchFunc func(ctx context.Context, texts []string) ([][]float32, error)

	mu      sync.Mutex
	batches [][]string
	closed  bool
}

// NewStaticEmbedder returns a StaticEmbedder of dimension dim.
func NewStaticEmbedder(dim int, vectors map[string][]float32) *StaticEmbedder {
	if vectors == nil {
		vectors = map[string][]float32{}
	}
	return &StaticEmbedder{Vectors: vectors, Dim: dim}
}

// EmbedBatch records the batch and returns the mapped vectors.
func (s *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	s.batches = append(s.batches, append([]string(nil), texts...))
	fn := s.EmbedBatchFunc
	s.mu.Unlock()

	if fn != nil {
		return fn(ctx, texts)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := s.Vectors[text]; ok {
			out[i] = append([]float32(nil), v...)
			continue
		}
		out[i] = make([]float32, s.Dim)
	}
	return out, nil
}

// Dimensions returns Dim.
func (s *StaticEmbedder) Dimensions() int {
	return s.Dim
}

// Close marks the embedder closed.
func (s *StaticEmbedder) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Calls returns how many EmbedBatch calls were made.
func (s *StaticEmbedder) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

// Batches returns a copy of every batch received, in call order.
func (s *StaticEmbedder) Batches() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.batches))
	for i, b := range s.batches {
		out[i] = append([]string(nil), b...)
	}
	return out
}

// Embedded returns the total number of texts embedded across all calls.
func (s *StaticEmbedder) Embedded() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

// Closed reports whether Close was called.
func (s *StaticEmbedder) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Reset clears the recorded batches.
func (s *StaticEmbedder) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = nil
}
