package config

import (
	"testing"
	"time"
)

// TestLoadDefaults verifies the fallback values used when no environment
// is set.
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DefaultLocation.City != "北京" {
		t.Errorf("expected default city 北京, got %q", cfg.DefaultLocation.City)
	}
	if cfg.HTTPTimeout != 15*time.Second {
		t.Errorf("expected 15s http timeout, got %v", cfg.HTTPTimeout)
	}
	if cfg.GeocodeTimeout != 3*time.Second {
		t.Errorf("expected 3s geocode timeout, got %v", cfg.GeocodeTimeout)
	}
	if cfg.WeatherTTL != time.Hour {
		t.Errorf("expected 1h weather ttl, got %v", cfg.WeatherTTL)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %q", cfg.Port)
	}
}

// TestLoadOverrides verifies environment values replace the defaults.
func TestLoadOverrides(t *testing.T) {
	t.Setenv("DEFAULT_LOCATION_LAT", "31.2304")
	t.Setenv("DEFAULT_LOCATION_CITY", "上海")
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("TEST_MODE", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DefaultLocation.Lat != 31.2304 || cfg.DefaultLocation.City != "上海" {
		t.Errorf("unexpected default location: %+v", cfg.DefaultLocation)
	}
	if cfg.HTTPTimeout != 5*time.Second {
		t.Errorf("expected 5s http timeout, got %v", cfg.HTTPTimeout)
	}
	if !cfg.TestMode {
		t.Error("expected test mode enabled")
	}
}

// TestLoadInvalidValue verifies malformed numeric values fail loudly.
func TestLoadInvalidValue(t *testing.T) {
	t.Setenv("DEFAULT_LOCATION_LAT", "not-a-number")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed latitude")
	}
}
