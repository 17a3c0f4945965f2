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

const (
	xunfeiChatURL = "https://spark-api-open.xf-yun.com/v1/chat/completions"
	xunfeiModel   = "lite"
)

// XunfeiStrategy calls 讯飞星火. Authentication is a bearer header built
// from the app id; the response envelope carries its own numeric code
// distinct from the HTTP status, zero meaning success.
type XunfeiStrategy struct {
	chatURL string
	httpCfg upstream.ClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewXunfeiStrategy(client *http.Client) *XunfeiStrategy {
	return &XunfeiStrategy{
		chatURL: xunfeiChatURL,
		httpCfg: upstream.ClientConfig{Client: client},
		circuit: upstream.NewBreaker("xunfei"),
	}
}

func (s *XunfeiStrategy) Kind() Kind {
	return KindXunfei
}

func (s *XunfeiStrategy) Chat(ctx context.Context, cfg Config, prompt string) (string, error) {
	if cfg.APIKey == "" || cfg.AppID == "" {
		return "", fmt.Errorf("xunfei: %w", ErrCredentialMissing)
	}

	payload := map[string]any{
		"model": xunfeiModel,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"stream": false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", ErrTransport, err)
	}

	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, s.chatURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+cfg.AppID)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	resp, err := upstream.Do(ctx, s.httpCfg, s.circuit, buildRequest)
	if err != nil {
		return "", fmt.Errorf("%w: xunfei chat: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	var reply struct {
		Code    int `json:"code"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("%w: decode xunfei reply: %v", ErrUnparseable, err)
	}
	if reply.Code != 0 {
		return "", &rejectError{code: reply.Code}
	}
	if len(reply.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in reply", ErrUnparseable)
	}
	return reply.Choices[0].Message.Content, nil
}
