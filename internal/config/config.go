package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/outfitlab/outfit-gateway/internal/location"
)

type AppConfig struct {
	OpenWeatherAPIKey string

	// DefaultLocation is the process-wide fallback when every resolution
	// step fails.
	DefaultLocation location.Place

	// HTTPTimeout bounds every outbound provider call.
	HTTPTimeout time.Duration

	// GeocodeTimeout bounds the reverse-geocoding call specifically.
	GeocodeTimeout time.Duration

	// WeatherTTL is how long a cached weather sample stays valid.
	WeatherTTL time.Duration

	// JanitorInterval controls how often expired weather samples are pruned.
	JanitorInterval time.Duration

	// TestMode substitutes a fixed IP address for client-address resolution.
	TestMode bool

	DBPath string
	Port   string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := &AppConfig{}

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")

	lat, err := getenvFloat("DEFAULT_LOCATION_LAT", 39.9042)
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_LOCATION_LAT: %w", err)
	}
	lon, err := getenvFloat("DEFAULT_LOCATION_LON", 116.4074)
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_LOCATION_LON: %w", err)
	}
	cfg.DefaultLocation = location.Place{
		Lat:  lat,
		Lon:  lon,
		City: getenvDefault("DEFAULT_LOCATION_CITY", "北京"),
	}

	cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "15s")
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}

	cfg.GeocodeTimeout, err = getenvDuration("GEOCODE_TIMEOUT", "3s")
	if err != nil {
		return nil, fmt.Errorf("invalid GEOCODE_TIMEOUT: %w", err)
	}

	cfg.WeatherTTL, err = getenvDuration("WEATHER_CACHE_TTL", "3600s")
	if err != nil {
		return nil, fmt.Errorf("invalid WEATHER_CACHE_TTL: %w", err)
	}

	cfg.JanitorInterval, err = getenvDuration("JANITOR_INTERVAL", "15m")
	if err != nil {
		return nil, fmt.Errorf("invalid JANITOR_INTERVAL: %w", err)
	}

	cfg.TestMode = os.Getenv("TEST_MODE") == "1" || os.Getenv("TEST_MODE") == "true"
	cfg.DBPath = getenvDefault("DB_PATH", "outfit-gateway.db")
	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getenvDuration(key, def string) (time.Duration, error) {
	return time.ParseDuration(getenvDefault(key, def))
}
