package embedder

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

const (
	defaultEmbeddingModel = "text-embedding-3-small"
	defaultDimensions     = 1536
	defaultBatchSize      = 100
)

// OpenAIEmbedder is a Client backed by the OpenAI embeddings API or any
// compatible service via a custom BaseURL.
type OpenAIEmbedder struct {
	client *openai.Client
	config Config
}

var _ Client = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder builds the client. Zero-valued config fields fall
// back to text-embedding-3-small defaults.
func NewOpenAIEmbedder(config Config) (*OpenAIEmbedder, error) {
	if config.Model == "" {
		config.Model = defaultEmbeddingModel
	}
	if config.Dimensions <= 0 {
		config.Dimensions = defaultDimensions
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaultBatchSize
	}

	var client *openai.Client
	if config.BaseURL != "" {
		apiKey := config.APIKey
		if apiKey == "" {
			apiKey = "dummy-key"
		}
		clientConfig := openai.DefaultConfig(apiKey)
		clientConfig.BaseURL = config.BaseURL
		client = openai.NewClientWithConfig(clientConfig)
	} else {
		if config.APIKey == "" {
			return nil, fmt.Errorf("embedding provider requires an API key")
		}
		client = openai.NewClient(config.APIKey)
	}

	return &OpenAIEmbedder{client: client, config: config}, nil
}

// Dimensions implements Client.
func (o *OpenAIEmbedder) Dimensions() int { return o.config.Dimensions }

// Embed implements Client, batching requests to the provider limit.
func (o *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += o.config.BatchSize {
		end := start + o.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(o.config.Model),
			Input: texts[start:end],
		})
		if err != nil {
			return nil, fmt.Errorf("create embeddings: %w", err)
		}
		if len(resp.Data) != end-start {
			return nil, fmt.Errorf("embedding count mismatch: want %d, got %d", end-start, len(resp.Data))
		}
		for _, d := range resp.Data {
			out = append(out, d.Embedding)
		}
	}
	return out, nil
}
