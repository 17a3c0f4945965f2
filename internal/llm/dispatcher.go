package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// Diagnostic strings returned in place of a model reply. These cross the
// dispatcher boundary instead of errors; no failure is fatal.
const (
	MsgUnconfigured    = "请先配置AI服务"
	MsgUnsupportedKind = "不支持的AI服务类型"
	MsgUnavailable     = "AI服务暂时不可用，请稍后再试"
	MsgCallFailed      = "调用AI服务时发生错误"
	MsgEmptyReply      = "未获取到有效回复"
	MsgBaiduToken      = "无法连接到百度服务，请检查API配置"
)

// credentialMessage names the missing fields per kind.
func credentialMessage(kind Kind) string {
	switch kind {
	case KindBaidu:
		return "请先完成API配置（需要API Key和Secret Key）"
	case KindXunfei:
		return "请先完成API配置（需要API Key和AppID）"
	default:
		return "请先完成API配置（需要API Key）"
	}
}

// Dispatcher selects a strategy by config kind and executes the call.
// Dispatch never returns an error: every failure maps to a diagnostic
// string plus a logged error.
type Dispatcher struct {
	strategies map[Kind]Strategy
	logger     *slog.Logger
}

// NewDispatcher creates a Dispatcher with all four provider strategies
// registered against the shared outbound HTTP client.
func NewDispatcher(client *http.Client, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		strategies: make(map[Kind]Strategy),
		logger:     logger.With("component", "dispatcher"),
	}
	for _, s := range []Strategy{
		NewBaiduStrategy(client),
		NewXunfeiStrategy(client),
		NewSiliconStrategy(client),
		NewOpenRouterStrategy(client),
	} {
		d.strategies[s.Kind()] = s
	}
	return d
}

// Register adds or replaces a strategy. Adding a fifth provider kind
// means one more Strategy value, not deeper branching.
func (d *Dispatcher) Register(s Strategy) {
	d.strategies[s.Kind()] = s
}

// Strategy returns the registered strategy for a kind.
func (d *Dispatcher) Strategy(kind Kind) (Strategy, bool) {
	s, ok := d.strategies[kind]
	return s, ok
}

// Dispatch executes the prompt against the provider the config names and
// returns either the assistant text verbatim or a diagnostic string.
func (d *Dispatcher) Dispatch(ctx context.Context, cfg Config, prompt string) string {
	strategy, ok := d.strategies[cfg.Kind]
	if !ok {
		d.logger.Error("unsupported provider kind", "kind", cfg.Kind, "user_id", cfg.UserID)
		return MsgUnsupportedKind
	}

	reply, err := strategy.Chat(ctx, cfg, prompt)
	if err != nil {
		d.logger.Error("provider call failed",
			"kind", cfg.Kind, "user_id", cfg.UserID, "error", err)
		return d.fallbackMessage(cfg.Kind, err)
	}
	return reply
}

func (d *Dispatcher) fallbackMessage(kind Kind, err error) string {
	switch {
	case errors.Is(err, ErrCredentialMissing):
		return credentialMessage(kind)
	case errors.Is(err, ErrTokenExchange):
		return MsgBaiduToken
	case errors.Is(err, ErrProviderRejected):
		var reject *rejectError
		if errors.As(err, &reject) {
			return fmt.Sprintf("AI服务请求失败，错误码：%d", reject.code)
		}
		return MsgUnavailable
	case errors.Is(err, ErrUnparseable):
		return MsgEmptyReply
	case errors.Is(err, ErrTransport):
		return MsgUnavailable
	default:
		return MsgCallFailed
	}
}
