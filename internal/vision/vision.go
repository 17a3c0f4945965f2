// Package vision analyzes clothing photos through the one provider kind
// that accepts multimodal requests, turning free-form model output into a
// structured description. Model output is not guaranteed well-formed, so
// every failure is an error value, never a panic.
package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/outfitlab/outfit-gateway/internal/llm"
)

var (
	// ErrUnsupportedProvider means the config's kind has no vision path;
	// no network call was made.
	ErrUnsupportedProvider = errors.New("provider kind does not support image analysis")

	// ErrNoStructuredReply means the model reply contained no decodable
	// brace-delimited record.
	ErrNoStructuredReply = errors.New("no structured record in model reply")
)

// MsgNotSupported is the user-facing text for ErrUnsupportedProvider.
const MsgNotSupported = "当前AI服务不支持图片识别，请配置OpenRouter"

// instruction is the fixed system text for clothing analysis. The reply
// must embed a JSON object; anything around it is tolerated.
const instruction = "你是一位服装识别助手。请识别图片中的衣物，并只返回如下JSON格式的结果，" +
	`不要添加其他说明：{"description":"衣物的详细描述","season":["适用季节"],"occasion":["适用场合"]}` +
	"。季节可选值：春、夏、秋、冬。场合可选值：日常、工作、运动、正式、休闲、派对。"

// Result is the structured description extracted from a model reply.
type Result struct {
	Description string   `json:"description"`
	Seasons     []string `json:"season"`
	Occasions   []string `json:"occasion"`
}

// Pipeline sends multimodal requests through the dispatcher's strategies.
type Pipeline struct {
	dispatcher *llm.Dispatcher
	logger     *slog.Logger
}

// NewPipeline creates a Pipeline over the given dispatcher.
func NewPipeline(dispatcher *llm.Dispatcher, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		dispatcher: dispatcher,
		logger:     logger.With("component", "vision"),
	}
}

// Analyze encodes the image, issues the multimodal request, and decodes
// the first balanced brace-delimited substring of the reply.
func (p *Pipeline) Analyze(ctx context.Context, cfg llm.Config, image []byte) (Result, error) {
	strategy, ok := p.dispatcher.Strategy(cfg.Kind)
	if !ok {
		return Result{}, ErrUnsupportedProvider
	}
	vs, ok := strategy.(llm.VisionStrategy)
	if !ok {
		return Result{}, ErrUnsupportedProvider
	}

	encoded := base64.StdEncoding.EncodeToString(image)

	reply, err := vs.ChatWithImage(ctx, cfg, instruction, encoded)
	if err != nil {
		p.logger.Error("image analysis call failed", "kind", cfg.Kind, "error", err)
		return Result{}, fmt.Errorf("image analysis: %w", err)
	}

	result, err := ParseReply(reply)
	if err != nil {
		p.logger.Error("image analysis reply unparseable", "kind", cfg.Kind, "error", err)
		return Result{}, err
	}
	return result, nil
}

// ParseReply extracts and decodes the structured record embedded in a
// free-form reply.
func ParseReply(reply string) (Result, error) {
	raw, ok := firstBalancedObject(reply)
	if !ok {
		return Result{}, ErrNoStructuredReply
	}

	var result Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrNoStructuredReply, err)
	}
	return result, nil
}

// firstBalancedObject returns the first brace-delimited substring whose
// braces balance. Braces inside JSON strings are ignored.
func firstBalancedObject(s string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}
