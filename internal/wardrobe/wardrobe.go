// Package wardrobe holds the clothing inventory model consumed by the
// chat gateway. The gateway only reads items; create/update/delete lives
// with the owning web application.
package wardrobe

import (
	"strings"
	"time"
)

// Item is a single piece of clothing in a user's wardrobe.
type Item struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Seasons     []string  `json:"seasons"`
	Occasions   []string  `json:"occasions"`
	CreatedAt   time.Time `json:"created_at"`
}

// Categories maps category keys to their display labels.
var Categories = map[string]string{
	"tops":        "上装",
	"bottoms":     "下装",
	"shoes":       "鞋子",
	"accessories": "配饰",
}

// Seasons and Occasions are the recognized vocabulary for item tagging.
var (
	Seasons   = []string{"春", "夏", "秋", "冬"}
	Occasions = []string{"日常", "工作", "运动", "正式", "休闲", "派对"}
)

// NoItemsPlaceholder is rendered in place of the wardrobe block when the
// user owns no clothing at all.
const NoItemsPlaceholder = "暂无衣物信息"

// FormatForPrompt renders items into the wardrobe block of a chat prompt.
// Items are grouped by category in first-seen order, one line per item
// with season and occasion lists in parentheses when present.
func FormatForPrompt(items []Item) string {
	if len(items) == 0 {
		return NoItemsPlaceholder
	}

	var order []string
	grouped := make(map[string][]Item)
	for _, item := range items {
		if _, ok := grouped[item.Category]; !ok {
			order = append(order, item.Category)
		}
		grouped[item.Category] = append(grouped[item.Category], item)
	}

	var b strings.Builder
	for _, category := range order {
		label := category
		if display, ok := Categories[category]; ok {
			label = display
		}
		b.WriteString("\n【" + label + "】\n")
		for _, item := range grouped[category] {
			b.WriteString("- " + item.Description)
			if len(item.Seasons) > 0 {
				b.WriteString(" (适用季节: " + strings.Join(item.Seasons, ",") + ")")
			}
			if len(item.Occasions) > 0 {
				b.WriteString(" (适用场合: " + strings.Join(item.Occasions, ",") + ")")
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
