// Package openai implements the embedding and LLM ports against the OpenAI
// API using the official Go SDK.
//
// Both services retry rate-limited requests (HTTP 429) with exponential
// backoff; any other API error fails immediately.
package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	openaigo "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/SkyMychal/SmartSPD-v2/internal/core/domain"
	"github.com/SkyMychal/SmartSPD-v2/internal/core/ports/driven"
)

const (
	// EmbeddingModel is the OpenAI model used for generating embeddings.
	EmbeddingModel = "text-embedding-3-small"

	// EmbeddingDimension is the vector dimension for text-embedding-3-small.
	EmbeddingDimension = 1536

	// defaultEmbedBatch bounds texts per API request. OpenAI accepts up to
	// 2048, but smaller batches reduce tokens-per-minute pressure.
	defaultEmbedBatch = 500
)

// EmbeddingClient implements driven.EmbeddingService.
type EmbeddingClient struct {
	client    openaigo.Client
	batchSize int
}

var _ driven.EmbeddingService = (*EmbeddingClient)(nil)

// NewEmbedding creates an embedding service. apiKey must be non-empty.
func NewEmbedding(apiKey string, batchSize int) (*EmbeddingClient, error) {
	if apiKey == "" {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if batchSize <= 0 {
		batchSize = defaultEmbedBatch
	}
	return &EmbeddingClient{
		client:    openaigo.NewClient(option.WithAPIKey(apiKey)),
		batchSize: batchSize,
	}, nil
}

// Embed generates a vector embedding for the given text.
func (e *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding response was empty")
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *EmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var all [][]float32
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		vectors, err := e.embedWithRetry(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d-%d: %w", start, end, err)
		}
		all = append(all, vectors...)
	}
	return all, nil
}

// Dimensions returns the embedding vector size.
func (e *EmbeddingClient) Dimensions() int {
	return EmbeddingDimension
}

// ModelName returns the name of the embedding model being used.
func (e *EmbeddingClient) ModelName() string {
	return EmbeddingModel
}

// Close releases resources. The HTTP client holds none.
func (e *EmbeddingClient) Close() error {
	return nil
}

// embedWithRetry calls the embeddings endpoint, retrying rate limits with
// exponential backoff.
func (e *EmbeddingClient) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32

	operation := func() error {
		resp, err := e.client.Embeddings.New(ctx, openaigo.EmbeddingNewParams{
			Input: openaigo.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: EmbeddingModel,
		})
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		vectors = make([][]float32, len(resp.Data))
		for i, data := range resp.Data {
			vectors[i] = toFloat32(data.Embedding)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return vectors, nil
}

// isRateLimitError checks if the error is a rate limit error (HTTP 429).
func isRateLimitError(err error) bool {
	var apiErr *openaigo.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// toFloat32 converts the API's float64 vectors for storage.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
