package vision

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/outfitlab/outfit-gateway/internal/llm"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeVisionStrategy stands in for the multimodal provider and records
// whether its network path was entered.
type fakeVisionStrategy struct {
	reply string
	calls int
}

func (s *fakeVisionStrategy) Kind() llm.Kind { return llm.KindOpenRouter }

func (s *fakeVisionStrategy) Chat(context.Context, llm.Config, string) (string, error) {
	return s.reply, nil
}

func (s *fakeVisionStrategy) ChatWithImage(_ context.Context, _ llm.Config, prompt, imageB64 string) (string, error) {
	s.calls++
	if prompt == "" || imageB64 == "" {
		return "", errors.New("missing prompt or image")
	}
	return s.reply, nil
}

// TestParseReplyExtractsEmbeddedObject verifies extraction of the first
// balanced brace-delimited record from chatty model output.
func TestParseReplyExtractsEmbeddedObject(t *testing.T) {
	reply := `Here is the result: {"description":"blue shirt","season":["夏"],"occasion":["日常"]} thanks`
	got, err := ParseReply(reply)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Description != "blue shirt" {
		t.Errorf("expected description %q, got %q", "blue shirt", got.Description)
	}
	if len(got.Seasons) != 1 || got.Seasons[0] != "夏" {
		t.Errorf("expected seasons [夏], got %v", got.Seasons)
	}
	if len(got.Occasions) != 1 || got.Occasions[0] != "日常" {
		t.Errorf("expected occasions [日常], got %v", got.Occasions)
	}
}

// TestParseReplyBracesInsideStrings verifies braces inside JSON string
// values do not unbalance extraction.
func TestParseReplyBracesInsideStrings(t *testing.T) {
	reply := `{"description":"shirt with {pattern} print","season":["春"],"occasion":["休闲"]}`
	got, err := ParseReply(reply)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Description != "shirt with {pattern} print" {
		t.Fatalf("expected braces preserved in description, got %q", got.Description)
	}
}

// TestParseReplyNoObject verifies a reply without any brace-delimited
// record yields the sentinel error.
func TestParseReplyNoObject(t *testing.T) {
	for _, reply := range []string{"抱歉，我无法识别这张图片", "", "unbalanced { record"} {
		if _, err := ParseReply(reply); !errors.Is(err, ErrNoStructuredReply) {
			t.Errorf("reply %q: expected ErrNoStructuredReply, got %v", reply, err)
		}
	}
}

// TestParseReplyMalformedObject verifies that a balanced but undecodable
// record also maps to the sentinel error.
func TestParseReplyMalformedObject(t *testing.T) {
	if _, err := ParseReply(`{"description": trailing}`); !errors.Is(err, ErrNoStructuredReply) {
		t.Fatalf("expected ErrNoStructuredReply, got %v", err)
	}
}

// TestAnalyzeUnsupportedKind verifies a non-vision provider kind is
// rejected before any network call.
func TestAnalyzeUnsupportedKind(t *testing.T) {
	d := llm.NewDispatcher(http.DefaultClient, testLogger())
	p := NewPipeline(d, testLogger())

	cfg := llm.Config{Kind: llm.KindBaidu, APIKey: "k", APISecret: "s"}
	_, err := p.Analyze(context.Background(), cfg, []byte("img"))
	if !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
}

// TestAnalyzeRoundTrip verifies the happy path through a fake vision
// strategy: the instruction plus base64 image go out, the embedded
// record comes back decoded.
func TestAnalyzeRoundTrip(t *testing.T) {
	fake := &fakeVisionStrategy{
		reply: `好的。{"description":"灰色连帽卫衣","season":["秋","冬"],"occasion":["日常","运动"]}`,
	}
	d := llm.NewDispatcher(http.DefaultClient, testLogger())
	d.Register(fake)
	p := NewPipeline(d, testLogger())

	cfg := llm.Config{Kind: llm.KindOpenRouter, APIKey: "k"}
	got, err := p.Analyze(context.Background(), cfg, []byte("raw image bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.calls != 1 {
		t.Fatalf("expected 1 vision call, got %d", fake.calls)
	}
	if got.Description != "灰色连帽卫衣" {
		t.Errorf("expected description 灰色连帽卫衣, got %q", got.Description)
	}
	if len(got.Seasons) != 2 || len(got.Occasions) != 2 {
		t.Errorf("unexpected result lists: %+v", got)
	}
	if !strings.Contains(fake.reply, got.Description) {
		t.Error("expected description extracted from reply")
	}
}
