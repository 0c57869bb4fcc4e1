package generation

import (
	"context"
	"fmt"

	"github.com/teranos/postpulse/ai/openrouter"
)

// Prompt is the input handed to a Generator.
type Prompt struct {
	PostType     PostType
	SystemPrompt string
	UserPrompt   string
}

// Generated is a model-written draft body.
type Generated struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Generator writes a draft body from prompts.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (*Generated, error)
}

// StubBody is the placeholder body used when no generator is configured.
func StubBody(typeID string) string {
	return fmt.Sprintf("[%s] Auto-generated draft.", typeID)
}

// chatClient is the part of openrouter.Client the generator needs.
type chatClient interface {
	Chat(ctx context.Context, req openrouter.ChatRequest) (*openrouter.ChatResponse, error)
}

// OpenRouterGenerator generates drafts through OpenRouter chat completions.
type OpenRouterGenerator struct {
	client chatClient
}

// NewOpenRouterGenerator wraps a configured client.
func NewOpenRouterGenerator(client *openrouter.Client) *OpenRouterGenerator {
	return &OpenRouterGenerator{client: client}
}

// Generate implements Generator. Client errors pass through unchanged so
// callers can inspect *openrouter.RequestError.
func (g *OpenRouterGenerator) Generate(ctx context.Context, p Prompt) (*Generated, error) {
	resp, err := g.client.Chat(ctx, openrouter.ChatRequest{
		SystemPrompt: p.SystemPrompt,
		UserPrompt:   p.UserPrompt,
	})
	if err != nil {
		return nil, err
	}
	return &Generated{
		Content:          resp.Content,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}
