package location

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type fakeFixStore struct {
	fixes map[int64]Fix
}

func newFakeFixStore() *fakeFixStore {
	return &fakeFixStore{fixes: make(map[int64]Fix)}
}

func (s *fakeFixStore) Get(_ context.Context, userID int64) (Fix, error) {
	fix, ok := s.fixes[userID]
	if !ok {
		return Fix{}, ErrNoFix
	}
	return fix, nil
}

func (s *fakeFixStore) Upsert(_ context.Context, fix Fix) error {
	s.fixes[fix.UserID] = fix
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ipAPIStub(t *testing.T, status, city string, lat, lon float64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status": status, "city": city, "lat": lat, "lon": lon,
			"country": "中国", "regionName": "北京",
		})
	}))
}

func nominatimStub(t *testing.T, address map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); !strings.HasPrefix(got, "outfit-gateway/") {
			t.Errorf("expected outfit-gateway user agent, got %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{"address": address})
	}))
}

func newTestResolver(store FixStore, ipAPI, nominatim string) *Resolver {
	r := NewResolver(store, http.DefaultClient,
		Place{City: "北京", Lat: 39.9042, Lon: 116.4074}, Options{}, testLogger())
	r.ipAPIBase = ipAPI
	r.nominatimBase = nominatim
	return r
}

// TestResolveIPWinsOverCoordinates verifies that a successful IP lookup
// takes precedence even when the client supplied explicit coordinates.
func TestResolveIPWinsOverCoordinates(t *testing.T) {
	ipSrv := ipAPIStub(t, "success", "上海", 31.23, 121.47)
	defer ipSrv.Close()
	geoCalls := 0
	geoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		geoCalls++
		json.NewEncoder(w).Encode(map[string]any{"address": map[string]string{"city": "广州"}})
	}))
	defer geoSrv.Close()

	store := newFakeFixStore()
	r := newTestResolver(store, ipSrv.URL+"/", geoSrv.URL)

	lat, lon := 23.13, 113.26
	fix := r.Resolve(context.Background(), 7, ClientHint{
		RemoteAddr: "203.0.113.9:51000", Lat: &lat, Lon: &lon,
	})

	if fix.City != "上海" {
		t.Fatalf("expected IP-derived city 上海, got %q", fix.City)
	}
	if geoCalls != 0 {
		t.Fatalf("expected no reverse geocoding call, got %d", geoCalls)
	}
	if saved, ok := store.fixes[7]; !ok || saved.City != "上海" {
		t.Fatalf("expected fix upserted for user 7, got %+v", store.fixes)
	}
}

// TestResolveFallsBackToCoordinates verifies that a failed IP lookup
// hands over to reverse geocoding of valid explicit coordinates.
func TestResolveFallsBackToCoordinates(t *testing.T) {
	ipSrv := ipAPIStub(t, "fail", "", 0, 0)
	defer ipSrv.Close()
	geoSrv := nominatimStub(t, map[string]string{"city": "广州", "country": "中国"})
	defer geoSrv.Close()

	store := newFakeFixStore()
	r := newTestResolver(store, ipSrv.URL+"/", geoSrv.URL)

	lat, lon := 23.13, 113.26
	fix := r.Resolve(context.Background(), 7, ClientHint{RemoteAddr: "10.0.0.5:80", Lat: &lat, Lon: &lon})

	if fix.City != "广州" {
		t.Fatalf("expected geocoded city 广州, got %q", fix.City)
	}
	if fix.Lat != lat || fix.Lon != lon {
		t.Fatalf("expected client coordinates preserved, got %+v", fix)
	}
}

// TestResolveCityFallbackChain verifies the city field falls back town
// then village when Nominatim has no city entry.
func TestResolveCityFallbackChain(t *testing.T) {
	ipSrv := ipAPIStub(t, "fail", "", 0, 0)
	defer ipSrv.Close()
	geoSrv := nominatimStub(t, map[string]string{"village": "某村"})
	defer geoSrv.Close()

	r := newTestResolver(newFakeFixStore(), ipSrv.URL+"/", geoSrv.URL)

	lat, lon := 30.0, 110.0
	fix := r.Resolve(context.Background(), 1, ClientHint{Lat: &lat, Lon: &lon})
	if fix.City != "某村" {
		t.Fatalf("expected village fallback 某村, got %q", fix.City)
	}
}

// TestResolveDefaultFallback verifies the configured default place is
// returned, without an upsert, when every lookup step fails.
func TestResolveDefaultFallback(t *testing.T) {
	ipSrv := ipAPIStub(t, "fail", "", 0, 0)
	defer ipSrv.Close()

	store := newFakeFixStore()
	r := newTestResolver(store, ipSrv.URL+"/", "http://127.0.0.1:0")

	badLat := 120.0 // out of range, skips geocoding
	badLon := 116.0
	fix := r.Resolve(context.Background(), 3, ClientHint{Lat: &badLat, Lon: &badLon})

	if fix.City != "北京" || fix.Lat != 39.9042 {
		t.Fatalf("expected default place, got %+v", fix)
	}
	if len(store.fixes) != 0 {
		t.Fatalf("expected no upsert on default fallback, got %+v", store.fixes)
	}
}

// TestClientIPPrefersForwardedFor verifies the first forwarded-for entry
// beats the peer address, and that test mode pins a fixed IP.
func TestClientIPPrefersForwardedFor(t *testing.T) {
	r := newTestResolver(newFakeFixStore(), "", "")

	hint := ClientHint{
		RemoteAddr:   "192.0.2.1:443",
		ForwardedFor: "198.51.100.7, 10.0.0.1",
	}
	if got := r.clientIP(hint); got != "198.51.100.7" {
		t.Fatalf("expected first forwarded-for entry, got %q", got)
	}

	if got := r.clientIP(ClientHint{RemoteAddr: "192.0.2.1:443"}); got != "192.0.2.1" {
		t.Fatalf("expected host split from remote addr, got %q", got)
	}

	r.testMode = true
	if got := r.clientIP(hint); got != testModeIP {
		t.Fatalf("expected pinned test IP, got %q", got)
	}
}

// TestValidateCoordinates covers the accepted ranges.
func TestValidateCoordinates(t *testing.T) {
	tests := []struct {
		lat, lon float64
		want     bool
	}{
		{39.9, 116.4, true},
		{-90, -180, true},
		{90, 180, true},
		{90.1, 0, false},
		{0, 180.1, false},
		{-91, 0, false},
	}
	for _, tc := range tests {
		if got := ValidateCoordinates(tc.lat, tc.lon); got != tc.want {
			t.Errorf("ValidateCoordinates(%g, %g): expected %v, got %v", tc.lat, tc.lon, tc.want, got)
		}
	}
}

// TestFormatForPrompt covers the rendered city and the unknown placeholder.
func TestFormatForPrompt(t *testing.T) {
	fix := &Fix{City: "北京", UpdatedAt: time.Now()}
	if got := FormatForPrompt(fix); got != "北京" {
		t.Fatalf("expected 北京, got %q", got)
	}
	if got := FormatForPrompt(nil); got != UnknownText {
		t.Fatalf("expected %q, got %q", UnknownText, got)
	}
	if got := FormatForPrompt(&Fix{}); got != UnknownText {
		t.Fatalf("expected %q for empty city, got %q", UnknownText, got)
	}
}
