// Package location produces a best-effort geographic fix for a user with
// no required input: IP geolocation first, reverse geocoding second, the
// configured default last.
package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNoFix is returned by a FixStore when the user has no stored fix.
var ErrNoFix = errors.New("no location fix for user")

// Fix is the single per-user location record; one row per user with
// upsert semantics.
type Fix struct {
	UserID    int64     `json:"user_id"`
	Lat       float64   `json:"latitude"`
	Lon       float64   `json:"longitude"`
	City      string    `json:"city"`
	UpdatedAt time.Time `json:"last_updated"`
}

// FixStore persists per-user fixes.
type FixStore interface {
	Get(ctx context.Context, userID int64) (Fix, error)
	Upsert(ctx context.Context, fix Fix) error
}

// Place is a resolved geographic position.
type Place struct {
	City    string  `json:"city"`
	Lat     float64 `json:"latitude"`
	Lon     float64 `json:"longitude"`
	Country string  `json:"country"`
	Region  string  `json:"region"`
}

// ClientHint carries the request-derived inputs to resolution: the peer
// address, any forwarded-for header value, and optional explicit
// coordinates supplied by the client.
type ClientHint struct {
	RemoteAddr   string
	ForwardedFor string
	Lat          *float64
	Lon          *float64
}

// UnknownText is rendered in prompts when no location could be resolved.
const UnknownText = "未知位置"

// FormatForPrompt renders a fix as the single location line of a prompt.
func FormatForPrompt(f *Fix) string {
	if f == nil || f.City == "" {
		return UnknownText
	}
	return f.City
}

// ValidateCoordinates reports whether the pair is in range.
func ValidateCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// testModeIP substitutes for client-address derivation when the resolver
// runs in test mode.
const testModeIP = "114.114.114.114"

// Resolver implements the resolution chain. Every successful resolution
// upserts the user's fix; resolution itself never fails, it falls back to
// the configured default location.
type Resolver struct {
	store          FixStore
	client         *http.Client
	ipAPIBase      string
	nominatimBase  string
	userAgent      string
	geocodeTimeout time.Duration
	defaultPlace   Place
	testMode       bool
	logger         *slog.Logger
	now            func() time.Time
}

// Options configures a Resolver beyond its required collaborators.
type Options struct {
	GeocodeTimeout time.Duration // defaults to 3s
	TestMode       bool
}

// NewResolver creates a Resolver using the given store, outbound client
// and process-wide default place.
func NewResolver(store FixStore, client *http.Client, defaultPlace Place, opts Options, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.GeocodeTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Resolver{
		store:          store,
		client:         client,
		ipAPIBase:      "http://ip-api.com/json/",
		nominatimBase:  "https://nominatim.openstreetmap.org/reverse",
		userAgent:      "outfit-gateway/1.0",
		geocodeTimeout: timeout,
		defaultPlace:   defaultPlace,
		testMode:       opts.TestMode,
		logger:         logger.With("component", "location"),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Resolve runs the chain: IP geolocation wins even over explicit
// coordinates, then reverse geocoding of valid coordinates, then the
// default place. The returned fix is upserted for the user when either
// of the first two steps succeeds.
func (r *Resolver) Resolve(ctx context.Context, userID int64, hint ClientHint) Fix {
	if place, ok := r.byIP(ctx, r.clientIP(hint)); ok {
		return r.saveFix(ctx, userID, place)
	}

	if hint.Lat != nil && hint.Lon != nil && ValidateCoordinates(*hint.Lat, *hint.Lon) {
		if place, ok := r.byCoordinates(ctx, *hint.Lat, *hint.Lon); ok {
			return r.saveFix(ctx, userID, place)
		}
	}

	r.logger.Warn("location resolution exhausted, using default", "user_id", userID)
	return Fix{
		UserID:    userID,
		Lat:       r.defaultPlace.Lat,
		Lon:       r.defaultPlace.Lon,
		City:      r.defaultPlace.City,
		UpdatedAt: r.now(),
	}
}

// Stored returns the user's persisted fix, if any.
func (r *Resolver) Stored(ctx context.Context, userID int64) (Fix, error) {
	return r.store.Get(ctx, userID)
}

// Default returns the process-wide default place.
func (r *Resolver) Default() Place {
	return r.defaultPlace
}

func (r *Resolver) saveFix(ctx context.Context, userID int64, place Place) Fix {
	fix := Fix{
		UserID:    userID,
		Lat:       place.Lat,
		Lon:       place.Lon,
		City:      place.City,
		UpdatedAt: r.now(),
	}
	if err := r.store.Upsert(ctx, fix); err != nil {
		r.logger.Error("save location fix failed", "user_id", userID, "error", err)
	}
	return fix
}

// clientIP derives the network address to geolocate, preferring the first
// forwarded-for entry over the direct peer address.
func (r *Resolver) clientIP(hint ClientHint) string {
	if r.testMode {
		return testModeIP
	}
	if hint.ForwardedFor != "" {
		first := strings.TrimSpace(strings.Split(hint.ForwardedFor, ",")[0])
		if first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(hint.RemoteAddr)
	if err != nil {
		return hint.RemoteAddr
	}
	return host
}

func (r *Resolver) byIP(ctx context.Context, ip string) (Place, bool) {
	if ip == "" {
		return Place{}, false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.ipAPIBase+url.PathEscape(ip), nil)
	if err != nil {
		return Place{}, false
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warn("ip geolocation request failed", "error", err)
		return Place{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.logger.Warn("ip geolocation rejected", "status", resp.StatusCode)
		return Place{}, false
	}

	var payload struct {
		Status     string  `json:"status"`
		City       string  `json:"city"`
		Lat        float64 `json:"lat"`
		Lon        float64 `json:"lon"`
		Country    string  `json:"country"`
		RegionName string  `json:"regionName"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Place{}, false
	}
	if payload.Status != "success" {
		r.logger.Warn("ip geolocation failed", "ip", ip, "status", payload.Status)
		return Place{}, false
	}

	return Place{
		City:    payload.City,
		Lat:     payload.Lat,
		Lon:     payload.Lon,
		Country: payload.Country,
		Region:  payload.RegionName,
	}, true
}

// byCoordinates reverse-geocodes a coordinate pair with a short timeout.
// The city label falls back city → town → village.
func (r *Resolver) byCoordinates(ctx context.Context, lat, lon float64) (Place, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.geocodeTimeout)
	defer cancel()

	values := url.Values{}
	values.Set("lat", fmt.Sprintf("%f", lat))
	values.Set("lon", fmt.Sprintf("%f", lon))
	values.Set("format", "json")

	u := fmt.Sprintf("%s?%s", r.nominatimBase, values.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Place{}, false
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warn("reverse geocoding request failed", "error", err)
		return Place{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.logger.Warn("reverse geocoding rejected", "status", resp.StatusCode)
		return Place{}, false
	}

	var payload struct {
		Address struct {
			City    string `json:"city"`
			Town    string `json:"town"`
			Village string `json:"village"`
			Country string `json:"country"`
			State   string `json:"state"`
		} `json:"address"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Place{}, false
	}

	city := payload.Address.City
	if city == "" {
		city = payload.Address.Town
	}
	if city == "" {
		city = payload.Address.Village
	}

	return Place{
		City:    city,
		Lat:     lat,
		Lon:     lon,
		Country: payload.Address.Country,
		Region:  payload.Address.State,
	}, true
}
