package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/outfitlab/outfit-gateway/internal/upstream"
)

const (
	siliconDefaultBase = "https://api.siliconflow.cn/v1"
	siliconModel       = "Qwen/Qwen2.5-7B-Instruct"
)

// SiliconStrategy calls SiliconFlow's OpenAI-compatible endpoint. The
// user may override the endpoint host through the config's APIBase.
type SiliconStrategy struct {
	defaultBase string
	httpCfg     upstream.ClientConfig
	circuit     *gobreaker.CircuitBreaker
}

func NewSiliconStrategy(client *http.Client) *SiliconStrategy {
	return &SiliconStrategy{
		defaultBase: siliconDefaultBase,
		httpCfg:     upstream.ClientConfig{Client: client},
		circuit:     upstream.NewBreaker("silicon"),
	}
}

func (s *SiliconStrategy) Kind() Kind {
	return KindSilicon
}

func (s *SiliconStrategy) Chat(ctx context.Context, cfg Config, prompt string) (string, error) {
	if cfg.APIKey == "" {
		return "", fmt.Errorf("silicon: %w", ErrCredentialMissing)
	}

	base := s.defaultBase
	if cfg.APIBase != "" {
		base = strings.TrimRight(cfg.APIBase, "/")
	}

	return completeChat(ctx, s.httpCfg, s.circuit,
		base+"/chat/completions", cfg.APIKey, siliconModel,
		[]chatMessage{{Role: "user", Content: prompt}})
}
