package embedding

import "fmt"

// New creates an embedder for the configured provider. Supported providers are
// "openai" and "mock".
func New(provider, apiKey, model string, dimensions, cacheSize int) (Embedder, error) {
	switch provider {
	case "", "openai":
		return NewOpenAIEmbedder(apiKey, model, dimensions, cacheSize)
	case "mock":
		return NewMockEmbedder(dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", provider)
	}
}
