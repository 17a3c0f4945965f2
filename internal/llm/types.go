// Package llm routes assembled prompts to the user's configured AI
// provider. Each provider kind has its own authentication scheme, request
// shape, and response envelope, held behind the Strategy interface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind identifies one of the supported AI providers.
type Kind string

const (
	KindBaidu      Kind = "baidu"      // 百度文心一言: key+secret, token exchange
	KindXunfei     Kind = "xunfei"     // 讯飞星火: key+app id, code envelope
	KindSilicon    Kind = "silicon"    // SiliconFlow: key, optional base override
	KindOpenRouter Kind = "openrouter" // OpenRouter: key, fixed endpoint, vision
)

// Kinds lists every supported provider kind.
var Kinds = []Kind{KindBaidu, KindXunfei, KindSilicon, KindOpenRouter}

// ErrNoConfig is returned by a ConfigStore when no config matches.
var ErrNoConfig = errors.New("no provider config")

// Config identifies one user's credentials for one provider kind.
// Key material is stored as-is; encryption at rest is the integrating
// system's decision.
type Config struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Kind      Kind      `json:"model_type"`
	APIKey    string    `json:"api_key"`
	APISecret string    `json:"api_secret,omitempty"` // baidu only
	AppID     string    `json:"app_id,omitempty"`     // xunfei only
	APIBase   string    `json:"api_base,omitempty"`   // silicon only, optional
	Active    bool      `json:"is_active"`
	Default   bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
}

// Valid reports whether every field the kind requires is present.
func (c Config) Valid() bool {
	if c.APIKey == "" {
		return false
	}
	switch c.Kind {
	case KindBaidu:
		return c.APISecret != ""
	case KindXunfei:
		return c.AppID != ""
	case KindSilicon, KindOpenRouter:
		return true
	}
	return false
}

// ConfigStore persists provider configs. Selection order for a chat
// request is explicit id, then the first active config for the user.
type ConfigStore interface {
	Get(ctx context.Context, id string, userID int64) (Config, error)
	FirstActive(ctx context.Context, userID int64) (Config, error)
	ListActive(ctx context.Context, userID int64) ([]Config, error)
	Save(ctx context.Context, cfg *Config) error
	Delete(ctx context.Context, id string, userID int64) error
}

// Failure taxonomy. Every strategy error wraps exactly one of these; the
// dispatcher converts them into user-facing diagnostic strings.
var (
	ErrCredentialMissing = errors.New("credential missing")
	ErrTokenExchange     = errors.New("token exchange failed")
	ErrTransport         = errors.New("transport error")
	ErrProviderRejected  = errors.New("provider rejected request")
	ErrUnparseable       = errors.New("unparseable response")
)

// rejectError carries the provider-internal error code of a rejected
// request (HTTP success, non-zero envelope code).
type rejectError struct {
	code int
}

func (e *rejectError) Error() string {
	return fmt.Sprintf("provider rejected request: code %d", e.code)
}

func (e *rejectError) Is(target error) bool {
	return target == ErrProviderRejected
}

// Strategy is one provider kind's chat implementation.
type Strategy interface {
	Kind() Kind
	Chat(ctx context.Context, cfg Config, prompt string) (string, error)
}

// VisionStrategy is implemented by strategies that accept multimodal
// requests carrying an image alongside text.
type VisionStrategy interface {
	Strategy
	ChatWithImage(ctx context.Context, cfg Config, prompt, imageB64 string) (string, error)
}
