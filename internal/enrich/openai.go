package enrich

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures the OpenAI-compatible backend.
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
	Timeout        time.Duration
}

// OpenAI implements Completer and Embedder on top of an OpenAI-compatible API.
type OpenAI struct {
	client         *openai.Client
	chatModel      string
	embeddingModel string
}

// NewOpenAI creates a client. An empty BaseURL keeps the library default.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	if cfg.Timeout > 0 {
		config.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	chat := cfg.ChatModel
	if chat == "" {
		chat = openai.GPT3Dot5Turbo
	}
	embed := cfg.EmbeddingModel
	if embed == "" {
		embed = string(openai.SmallEmbedding3)
	}
	return &OpenAI{
		client:         openai.NewClientWithConfig(config),
		chatModel:      chat,
		embeddingModel: embed,
	}
}

// Complete runs a single system+user chat completion.
func (o *OpenAI) Complete(ctx context.Context, p Prompt) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, Content: p.User},
		},
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("enrich: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Embed returns the embedding of text.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(o.embeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("enrich: embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("enrich: embeddings: empty response")
	}
	return resp.Data[0].Embedding, nil
}
