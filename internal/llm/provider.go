package llm

import (
    "context"

    openai "github.com/sashabaranov/go-openai"
)

// Client is the slice of the OpenAI chat API the reply engine calls. Any
// OpenAI-compatible server, or a test double, can stand behind it.
type Client interface {
    CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ModelLister is optional; the startup preflight uses it when present.
type ModelLister interface {
    ListModels(ctx context.Context) (openai.ModelsList, error)
}

// OpenAIProvider adapts *openai.Client to Client and ModelLister.
type OpenAIProvider struct {
    Inner *openai.Client
}

func (p *OpenAIProvider) CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
    return p.Inner.CreateChatCompletion(ctx, request)
}

func (p *OpenAIProvider) ListModels(ctx context.Context) (openai.ModelsList, error) {
    return p.Inner.ListModels(ctx)
}

// NewOpenAIProvider builds a provider for apiKey, optionally pointed at a
// compatible base URL.
func NewOpenAIProvider(apiKey, baseURL string, cfg func(*openai.ClientConfig)) *OpenAIProvider {
    c := openai.DefaultConfig(apiKey)
    if baseURL != "" {
        c.BaseURL = baseURL
    }
    if cfg != nil {
        cfg(&c)
    }
    return &OpenAIProvider{Inner: openai.NewClientWithConfig(c)}
}
