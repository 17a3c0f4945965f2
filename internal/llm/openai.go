package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/outfitlab/outfit-gateway/internal/upstream"
)

// chatMessage is one message in an OpenAI-compatible request. Content is
// either a plain string or, for multimodal requests, a slice of content
// parts.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// contentPart is one element of a multimodal message.
type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// completeChat posts an OpenAI-compatible chat completion and extracts
// choices[0].message.content. Shared by the silicon and openrouter
// strategies.
func completeChat(
	ctx context.Context,
	httpCfg upstream.ClientConfig,
	cb *gobreaker.CircuitBreaker,
	endpoint, bearer, model string,
	messages []chatMessage,
) (string, error) {
	payload := map[string]any{
		"model":    model,
		"messages": messages,
		"stream":   false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", ErrTransport, err)
	}

	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+bearer)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	resp, err := upstream.Do(ctx, httpCfg, cb, buildRequest)
	if err != nil {
		return "", fmt.Errorf("%w: chat completion: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	var reply struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("%w: decode reply: %v", ErrUnparseable, err)
	}
	if len(reply.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in reply", ErrUnparseable)
	}
	return reply.Choices[0].Message.Content, nil
}
