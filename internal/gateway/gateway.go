// Package gateway is the conversational core: it enriches a user's
// free-text request with situational context and routes it to the AI
// provider named by the user's active configuration.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/outfitlab/outfit-gateway/internal/llm"
	"github.com/outfitlab/outfit-gateway/internal/location"
)

// ChatRecord is one persisted exchange.
type ChatRecord struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	UserMessage string    `json:"user_message"`
	AIResponse  string    `json:"ai_response"`
	MessageType string    `json:"type"`
	CreatedAt   time.Time `json:"timestamp"`
}

// HistoryStore persists chat exchanges. A failed save never fails the
// chat itself.
type HistoryStore interface {
	SaveChat(ctx context.Context, rec *ChatRecord) error
	RecentChats(ctx context.Context, userID int64, limit int) ([]ChatRecord, error)
}

// Reply is the outcome of one gateway invocation. Warning is set when the
// reply was produced but could not be persisted.
type Reply struct {
	Response  string `json:"response"`
	HistoryID int64  `json:"history_id,omitempty"`
	Warning   string `json:"warning,omitempty"`
}

// Gateway executes the chat flow: select config, assemble context,
// dispatch, persist. Collaborators are injected at construction.
type Gateway struct {
	configs    llm.ConfigStore
	dispatcher *llm.Dispatcher
	assembler  *Assembler
	history    HistoryStore
	logger     *slog.Logger
}

func New(configs llm.ConfigStore, dispatcher *llm.Dispatcher, assembler *Assembler, history HistoryStore, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		configs:    configs,
		dispatcher: dispatcher,
		assembler:  assembler,
		history:    history,
		logger:     logger.With("component", "gateway"),
	}
}

// promptTemplate frames the context block and the user's raw message.
const promptTemplate = "你是一位专业的穿搭助手，请根据用户的需求、衣橱中的衣物、当前天气和位置提供穿搭建议。\n\n" +
	"%s\n\n用户需求：%s\n\n请综合考虑天气、地点和衣橱中的衣物，提供专业的穿搭建议："

// Chat handles one request. configID optionally pins a provider config;
// otherwise the user's first active config is used. The returned Reply is
// always populated; an unconfigured user gets the fixed diagnostic text.
func (g *Gateway) Chat(ctx context.Context, userID int64, message, configID string, hint location.ClientHint) Reply {
	cfg, err := g.selectConfig(ctx, userID, configID)
	if err != nil {
		g.logger.Warn("no usable provider config", "user_id", userID, "error", err)
		return Reply{Response: llm.MsgUnconfigured}
	}

	contextBlock := g.assembler.Assemble(ctx, userID, hint)
	prompt := fmt.Sprintf(promptTemplate, contextBlock, message)

	response := g.dispatcher.Dispatch(ctx, cfg, prompt)

	rec := &ChatRecord{
		UserID:      userID,
		UserMessage: message,
		AIResponse:  response,
		MessageType: "chat",
	}
	if err := g.history.SaveChat(ctx, rec); err != nil {
		g.logger.Error("save chat history failed", "user_id", userID, "error", err)
		return Reply{Response: response, Warning: "聊天记录保存失败"}
	}

	return Reply{Response: response, HistoryID: rec.ID}
}

// History returns the user's most recent exchanges, newest first.
func (g *Gateway) History(ctx context.Context, userID int64, limit int) ([]ChatRecord, error) {
	return g.history.RecentChats(ctx, userID, limit)
}

// SelectConfig exposes config selection for the image-analysis path.
func (g *Gateway) SelectConfig(ctx context.Context, userID int64, configID string) (llm.Config, error) {
	return g.selectConfig(ctx, userID, configID)
}

// selectConfig applies the selection order: explicit id first, then the
// user's first active config.
func (g *Gateway) selectConfig(ctx context.Context, userID int64, configID string) (llm.Config, error) {
	if configID != "" {
		cfg, err := g.configs.Get(ctx, configID, userID)
		if err == nil {
			return cfg, nil
		}
		if !errors.Is(err, llm.ErrNoConfig) {
			return llm.Config{}, err
		}
		// Fall through to the active config when the pinned id is gone.
	}
	return g.configs.FirstActive(ctx, userID)
}
