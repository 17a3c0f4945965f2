package weather

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoSample is returned when no cached sample exists for a city.
var ErrNoSample = errors.New("no weather sample for city")

// SampleTTL is the default freshness window for a cached sample.
const SampleTTL = time.Hour

// Sample is one captured weather observation for a city.
type Sample struct {
	City      string    `json:"city"`
	TempC     float64   `json:"temperature"`
	Condition string    `json:"condition"` // provider-native label, e.g. "Clear"
	Humidity  int       `json:"humidity"`
	WindSpeed float64   `json:"wind_speed"` // m/s
	Timestamp time.Time `json:"timestamp"`  // always UTC
}

// Valid reports whether the sample is still fresh at now for the given
// window.
func (s Sample) Valid(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.Timestamp) < ttl
}

// conditionLabels maps OpenWeatherMap condition groups to the display
// vocabulary used in prompt text. Unmapped labels pass through unchanged.
var conditionLabels = map[string]string{
	"Clear":        "晴天",
	"Clouds":       "多云",
	"Rain":         "雨天",
	"Snow":         "雪天",
	"Thunderstorm": "雷暴",
	"Drizzle":      "毛毛雨",
	"Mist":         "薄雾",
	"Fog":          "雾",
}

// DisplayCondition translates a provider-native condition label.
func DisplayCondition(condition string) string {
	if label, ok := conditionLabels[condition]; ok {
		return label
	}
	return condition
}

// UnavailableText is rendered in prompts when no weather could be resolved.
const UnavailableText = "天气信息暂不可用"

// FormatForPrompt renders a sample as the single weather line of a prompt.
func FormatForPrompt(s *Sample) string {
	if s == nil {
		return UnavailableText
	}
	return fmt.Sprintf("当前天气状况：%s，温度：%.1f°C，湿度：%d%%，风速：%g米/秒",
		DisplayCondition(s.Condition), s.TempC, s.Humidity, s.WindSpeed)
}
