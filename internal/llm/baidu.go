package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sony/gobreaker"

	"github.com/outfitlab/outfit-gateway/internal/upstream"
)

const (
	baiduTokenURL = "https://aip.baidubce.com/oauth/2.0/token"
	baiduChatURL  = "https://aip.baidubce.com/rpc/2.0/ai_custom/v1/wenxinworkshop/chat/completions"
)

// BaiduStrategy calls 文心一言 through its two-step flow: a client
// credential exchange for a short-lived access token, then the chat
// endpoint with the token as a URL query parameter.
type BaiduStrategy struct {
	tokenURL string
	chatURL  string
	httpCfg  upstream.ClientConfig
	circuit  *gobreaker.CircuitBreaker
}

func NewBaiduStrategy(client *http.Client) *BaiduStrategy {
	return &BaiduStrategy{
		tokenURL: baiduTokenURL,
		chatURL:  baiduChatURL,
		httpCfg:  upstream.ClientConfig{Client: client},
		circuit:  upstream.NewBreaker("baidu"),
	}
}

func (s *BaiduStrategy) Kind() Kind {
	return KindBaidu
}

func (s *BaiduStrategy) Chat(ctx context.Context, cfg Config, prompt string) (string, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return "", fmt.Errorf("baidu: %w", ErrCredentialMissing)
	}

	token, err := s.accessToken(ctx, cfg)
	if err != nil {
		return "", err
	}

	payload := map[string]any{
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": 0.7,
		"max_tokens":  2000,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", ErrTransport, err)
	}

	buildRequest := func() (*http.Request, error) {
		u := fmt.Sprintf("%s?access_token=%s", s.chatURL, url.QueryEscape(token))
		req, err := http.NewRequest(http.MethodPost, u, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	resp, err := upstream.Do(ctx, s.httpCfg, s.circuit, buildRequest)
	if err != nil {
		return "", fmt.Errorf("%w: baidu chat: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	var reply struct {
		Result string `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("%w: decode baidu reply: %v", ErrUnparseable, err)
	}
	if reply.Result == "" {
		return "", fmt.Errorf("%w: empty result field", ErrUnparseable)
	}
	return reply.Result, nil
}

// accessToken exchanges the key pair for a short-lived token. A failed
// exchange aborts the dispatch without attempting the chat call.
func (s *BaiduStrategy) accessToken(ctx context.Context, cfg Config) (string, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("grant_type", "client_credentials")
		values.Set("client_id", cfg.APIKey)
		values.Set("client_secret", cfg.APISecret)

		u := fmt.Sprintf("%s?%s", s.tokenURL, values.Encode())
		return http.NewRequest(http.MethodPost, u, nil)
	}

	resp, err := upstream.Do(ctx, s.httpCfg, s.circuit, buildRequest)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenExchange, err)
	}
	defer resp.Body.Close()

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: decode token response: %v", ErrTokenExchange, err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("%w: missing access_token field", ErrTokenExchange)
	}
	return payload.AccessToken, nil
}
