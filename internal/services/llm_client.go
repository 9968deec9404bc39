package services

import (
	"context"
	"fmt"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

// GeminiBaseURL is Google's OpenAI-compatible endpoint; each rotation
// credential is an API key for it.
const GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// LLMClient is the single-call generation contract the pipeline consumes.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, credential string) (string, error)
}

// GeminiClient issues non-streaming chat completions, caching one client
// per credential so rotation does not rebuild transports on every call.
type GeminiClient struct {
	mu      sync.Mutex
	clients map[string]*openai.Client
	baseURL string
	modelId string
}

func NewGeminiClient(modelId string) *GeminiClient {
	return &GeminiClient{
		clients: make(map[string]*openai.Client),
		baseURL: GeminiBaseURL,
		modelId: modelId,
	}
}

func (g *GeminiClient) clientFor(credential string) *openai.Client {
	g.mu.Lock()
	defer g.mu.Unlock()
	if client, ok := g.clients[credential]; ok {
		return client
	}
	clientConfig := openai.DefaultConfig(credential)
	clientConfig.BaseURL = g.baseURL
	client := openai.NewClientWithConfig(clientConfig)
	g.clients[credential] = client
	return client
}

func (g *GeminiClient) Generate(ctx context.Context, prompt string, credential string) (string, error) {
	client := g.clientFor(credential)
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.modelId,
		Messages: []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: prompt,
		}},
		Temperature: 0.7,
		MaxTokens:   800,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
