package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/outfitlab/outfit-gateway/internal/api/http"
	"github.com/outfitlab/outfit-gateway/internal/config"
	"github.com/outfitlab/outfit-gateway/internal/gateway"
	"github.com/outfitlab/outfit-gateway/internal/janitor"
	"github.com/outfitlab/outfit-gateway/internal/llm"
	"github.com/outfitlab/outfit-gateway/internal/location"
	"github.com/outfitlab/outfit-gateway/internal/store"
	"github.com/outfitlab/outfit-gateway/internal/vision"
	"github.com/outfitlab/outfit-gateway/internal/weather"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	slogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(slogger)

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer db.Close()

	resolver := location.NewResolver(db.Fixes(), httpClient, cfg.DefaultLocation,
		location.Options{
			GeocodeTimeout: cfg.GeocodeTimeout,
			TestMode:       cfg.TestMode,
		}, slogger)

	weatherCache := weather.NewCache(db,
		weather.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey),
		cfg.WeatherTTL, slogger)

	dispatcher := llm.NewDispatcher(httpClient, slogger)
	assembler := gateway.NewAssembler(db, resolver, weatherCache, slogger)
	gw := gateway.New(db, dispatcher, assembler, db, slogger)
	pipeline := vision.NewPipeline(dispatcher, slogger)

	// Periodic pruning of expired weather samples.
	jan := janitor.New(weatherCache, cfg.JanitorInterval, slogger)
	if err := jan.Start(); err != nil {
		log.Fatalf("failed to start janitor: %v", err)
	}
	defer jan.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "outfit-gateway",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		BodyLimit:             10 * 1024 * 1024, // wardrobe photos arrive base64-encoded
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "outfit-gateway",
		})
	})

	httpapi.RegisterRoutes(app, httpapi.Deps{
		Gateway:  gw,
		Resolver: resolver,
		Weather:  weatherCache,
		Configs:  db,
		Vision:   pipeline,
		Items:    db,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
