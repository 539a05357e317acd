package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/shibuya/kanshi/pkg/utils"
)

const (
	// DefaultModel is the embedding model used when none is configured.
	DefaultModel = string(openai.LargeEmbedding3)

	defaultMaxRetries = 3
	defaultRetryDelay = 2 * time.Second
)

// OpenAIEmbedder embeds text through the OpenAI embeddings API with retry and
// an LRU cache keyed by input text.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	cache      *Cache
	maxRetries int
	retryDelay time.Duration
}

// NewOpenAIEmbedder creates an embedder for the given model and dimensions.
// cacheSize <= 0 disables caching.
func NewOpenAIEmbedder(apiKey, model string, dimensions, cacheSize int) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	var cache *Cache
	if cacheSize > 0 {
		cache = NewCache(cacheSize)
	}
	return &OpenAIEmbedder{
		client:     openai.NewClient(apiKey),
		model:      model,
		dimensions: dimensions,
		cache:      cache,
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
	}, nil
}

// Embed returns the embedding for one text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in one API call, serving cached entries without a
// request. Newlines are collapsed to spaces before embedding.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var pending []string
	var pendingIdx []int

	for i, text := range texts {
		cleaned := strings.ReplaceAll(text, "\n", " ")
		if e.cache != nil {
			if emb, ok := e.cache.Get(cleaned); ok {
				results[i] = emb
				continue
			}
		}
		pending = append(pending, cleaned)
		pendingIdx = append(pendingIdx, i)
	}
	if len(pending) == 0 {
		return results, nil
	}

	embeddings, err := e.request(ctx, pending)
	if err != nil {
		return nil, err
	}
	for j, emb := range embeddings {
		results[pendingIdx[j]] = emb
		if e.cache != nil {
			e.cache.Set(pending[j], emb)
		}
	}
	return results, nil
}

func (e *OpenAIEmbedder) request(ctx context.Context, inputs []string) ([][]float32, error) {
	req := openai.EmbeddingRequestStrings{
		Input:      inputs,
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: e.dimensions,
	}

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(utils.Backoff(e.retryDelay, attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := e.client.CreateEmbeddings(ctx, req)
		if err != nil {
			lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
			continue
		}
		if len(resp.Data) != len(inputs) {
			lastErr = fmt.Errorf("attempt %d: expected %d embeddings, got %d", attempt+1, len(inputs), len(resp.Data))
			continue
		}

		out := make([][]float32, len(inputs))
		for _, d := range resp.Data {
			out[d.Index] = d.Embedding
		}
		return out, nil
	}
	return nil, fmt.Errorf("embedding failed after %d attempts: %w", e.maxRetries+1, lastErr)
}

// Model returns the configured embedding model name.
func (e *OpenAIEmbedder) Model() string {
	return e.model
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for the API-backed embedder.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
