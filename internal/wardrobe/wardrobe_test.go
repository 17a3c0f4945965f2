package wardrobe

import (
	"strings"
	"testing"
)

// TestFormatForPromptEmpty verifies the fixed placeholder for an empty
// wardrobe.
func TestFormatForPromptEmpty(t *testing.T) {
	if got := FormatForPrompt(nil); got != NoItemsPlaceholder {
		t.Fatalf("expected %q, got %q", NoItemsPlaceholder, got)
	}
}

// TestFormatForPromptGrouping verifies category grouping in first-seen
// order with display labels and tag parentheses.
func TestFormatForPromptGrouping(t *testing.T) {
	items := []Item{
		{Category: "shoes", Description: "白色运动鞋", Seasons: []string{"春", "夏"}},
		{Category: "tops", Description: "蓝色衬衫", Occasions: []string{"工作"}},
		{Category: "shoes", Description: "黑色皮鞋"},
	}
	got := FormatForPrompt(items)

	shoesAt := strings.Index(got, "【鞋子】")
	topsAt := strings.Index(got, "【上装】")
	if shoesAt == -1 || topsAt == -1 {
		t.Fatalf("expected both category headers, got %q", got)
	}
	if shoesAt > topsAt {
		t.Fatalf("expected first-seen category order, got %q", got)
	}
	if !strings.Contains(got, "- 白色运动鞋 (适用季节: 春,夏)") {
		t.Errorf("expected season parenthetical, got %q", got)
	}
	if !strings.Contains(got, "- 蓝色衬衫 (适用场合: 工作)") {
		t.Errorf("expected occasion parenthetical, got %q", got)
	}
	if !strings.Contains(got, "- 黑色皮鞋\n") {
		t.Errorf("expected untagged item without parentheses, got %q", got)
	}
}

// TestFormatForPromptUnknownCategory verifies unmapped category keys pass
// through as the header.
func TestFormatForPromptUnknownCategory(t *testing.T) {
	got := FormatForPrompt([]Item{{Category: "outerwear", Description: "风衣"}})
	if !strings.Contains(got, "【outerwear】") {
		t.Fatalf("expected raw key header for unmapped category, got %q", got)
	}
}
