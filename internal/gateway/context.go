package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/outfitlab/outfit-gateway/internal/location"
	"github.com/outfitlab/outfit-gateway/internal/wardrobe"
	"github.com/outfitlab/outfit-gateway/internal/weather"
)

// WardrobeStore is the read-only wardrobe query the gateway issues.
type WardrobeStore interface {
	ItemsByUser(ctx context.Context, userID int64) ([]wardrobe.Item, error)
}

// LocationSource yields a user's fix; satisfied by *location.Resolver.
type LocationSource interface {
	Stored(ctx context.Context, userID int64) (location.Fix, error)
	Resolve(ctx context.Context, userID int64, hint location.ClientHint) location.Fix
}

// WeatherSource yields current weather; satisfied by *weather.Cache.
type WeatherSource interface {
	Current(ctx context.Context, lat, lon float64, city string) (*weather.Sample, error)
}

// Assembler composes wardrobe inventory, resolved location, and resolved
// weather into one context block. Assembly never fails: a missing or
// failing enrichment renders as fixed placeholder text instead of
// blocking the chat reply.
type Assembler struct {
	wardrobe  WardrobeStore
	locations LocationSource
	weather   WeatherSource
	logger    *slog.Logger
}

// NewAssembler wires the assembler's collaborators explicitly so tests
// can substitute fakes.
func NewAssembler(w WardrobeStore, locations LocationSource, cache WeatherSource, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		wardrobe:  w,
		locations: locations,
		weather:   cache,
		logger:    logger.With("component", "assembler"),
	}
}

// Assemble builds the context block for a user: location line, weather
// line, then the wardrobe block. The stored fix is preferred; absent one,
// the resolver chain runs with the request-derived hint.
func (a *Assembler) Assemble(ctx context.Context, userID int64, hint location.ClientHint) string {
	items, err := a.wardrobe.ItemsByUser(ctx, userID)
	if err != nil {
		a.logger.Error("wardrobe query failed", "user_id", userID, "error", err)
		items = nil
	}
	wardrobeInfo := wardrobe.FormatForPrompt(items)

	fix := a.resolveFix(ctx, userID, hint)

	weatherInfo := weather.UnavailableText
	if fix != nil && fix.City != "" {
		if sample, err := a.weather.Current(ctx, fix.Lat, fix.Lon, fix.City); err == nil {
			weatherInfo = weather.FormatForPrompt(sample)
		}
	}

	return fmt.Sprintf("当前地点：%s\n当前天气：%s\n\n用户衣橱中的衣物：\n%s",
		location.FormatForPrompt(fix), weatherInfo, wardrobeInfo)
}

func (a *Assembler) resolveFix(ctx context.Context, userID int64, hint location.ClientHint) *location.Fix {
	fix, err := a.locations.Stored(ctx, userID)
	if err == nil {
		return &fix
	}
	if !errors.Is(err, location.ErrNoFix) {
		a.logger.Error("location fix lookup failed", "user_id", userID, "error", err)
	}

	resolved := a.locations.Resolve(ctx, userID, hint)
	return &resolved
}
