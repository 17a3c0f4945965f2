package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/outfitlab/outfit-gateway/internal/upstream"
)

const (
	openRouterChatURL = "https://openrouter.ai/api/v1/chat/completions"
	openRouterModel   = "openai/gpt-4o-mini"
)

// OpenRouterStrategy calls OpenRouter's fixed OpenAI-compatible endpoint.
// It is the only kind wired for multimodal image requests.
type OpenRouterStrategy struct {
	chatURL string
	httpCfg upstream.ClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenRouterStrategy(client *http.Client) *OpenRouterStrategy {
	return &OpenRouterStrategy{
		chatURL: openRouterChatURL,
		httpCfg: upstream.ClientConfig{Client: client},
		circuit: upstream.NewBreaker("openrouter"),
	}
}

func (s *OpenRouterStrategy) Kind() Kind {
	return KindOpenRouter
}

func (s *OpenRouterStrategy) Chat(ctx context.Context, cfg Config, prompt string) (string, error) {
	if cfg.APIKey == "" {
		return "", fmt.Errorf("openrouter: %w", ErrCredentialMissing)
	}

	return completeChat(ctx, s.httpCfg, s.circuit,
		s.chatURL, cfg.APIKey, openRouterModel,
		[]chatMessage{{Role: "user", Content: prompt}})
}

// ChatWithImage sends a multimodal request carrying the instruction text
// and a base64-encoded image as a data URL.
func (s *OpenRouterStrategy) ChatWithImage(ctx context.Context, cfg Config, prompt, imageB64 string) (string, error) {
	if cfg.APIKey == "" {
		return "", fmt.Errorf("openrouter: %w", ErrCredentialMissing)
	}

	message := chatMessage{
		Role: "user",
		Content: []contentPart{
			{Type: "text", Text: prompt},
			{Type: "image_url", ImageURL: &imageURL{
				URL: "data:image/jpeg;base64," + imageB64,
			}},
		},
	}

	return completeChat(ctx, s.httpCfg, s.circuit,
		s.chatURL, cfg.APIKey, openRouterModel, []chatMessage{message})
}
