package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	jsonrepair "github.com/kaptinlin/jsonrepair"
	"github.com/sashabaranov/go-openai"

	"github.com/readwell/tomes/pkg/types"
)

// OpenAIConfig configures the delegated synthesis backend. A custom
// BaseURL points at any OpenAI-compatible service.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
}

// OpenAIBackend delegates synthesis to an OpenAI-compatible chat API.
type OpenAIBackend struct {
	client *openai.Client
	config OpenAIConfig
}

var _ Backend = (*OpenAIBackend)(nil)

// NewOpenAIBackend builds the backend. An empty model defaults to GPT-4o.
func NewOpenAIBackend(config OpenAIConfig) (*OpenAIBackend, error) {
	if config.Model == "" {
		config.Model = openai.GPT4o
	}

	var client *openai.Client
	if config.BaseURL != "" {
		apiKey := config.APIKey
		if apiKey == "" {
			apiKey = "dummy-key"
		}
		clientConfig := openai.DefaultConfig(apiKey)
		clientConfig.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
		client = openai.NewClientWithConfig(clientConfig)
	} else {
		if config.APIKey == "" {
			return nil, fmt.Errorf("synthesis backend requires an API key")
		}
		client = openai.NewClient(config.APIKey)
	}

	return &OpenAIBackend{client: client, config: config}, nil
}

// synthesisResult is the JSON shape the model is asked for. Structured
// output keeps citation text from being mangled into prose.
type synthesisResult struct {
	Answer string `json:"answer"`
}

// Synthesize implements Backend.
func (o *OpenAIBackend) Synthesize(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: o.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: "You synthesize answers from book excerpts. Respond with a JSON object " +
					`{"answer": "..."} whose answer preserves every bracketed citation verbatim.`,
			},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}
	if o.config.MaxTokens > 0 {
		req.MaxTokens = o.config.MaxTokens
	}
	if o.config.Temperature > 0 {
		req.Temperature = o.config.Temperature
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrSynthesisBackend, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", types.ErrSynthesisBackend)
	}

	content := resp.Choices[0].Message.Content
	var result synthesisResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		// Models behind some compatible gateways emit slightly broken
		// JSON; repair before giving up.
		repaired, repairErr := jsonrepair.JSONRepair(content)
		if repairErr != nil || json.Unmarshal([]byte(repaired), &result) != nil {
			return "", fmt.Errorf("%w: unparseable synthesis response", types.ErrSynthesisBackend)
		}
	}
	if strings.TrimSpace(result.Answer) == "" {
		return "", fmt.Errorf("%w: empty answer", types.ErrSynthesisBackend)
	}
	return strings.TrimSpace(result.Answer), nil
}
