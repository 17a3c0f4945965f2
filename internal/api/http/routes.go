// Package httpapi is the HTTP adapter over the gateway core. The core
// packages stay callable as a library; everything server-shaped lives
// here and in cmd.
package httpapi

import (
	"context"
	"encoding/base64"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/outfitlab/outfit-gateway/internal/gateway"
	"github.com/outfitlab/outfit-gateway/internal/llm"
	"github.com/outfitlab/outfit-gateway/internal/location"
	"github.com/outfitlab/outfit-gateway/internal/vision"
	"github.com/outfitlab/outfit-gateway/internal/wardrobe"
	"github.com/outfitlab/outfit-gateway/internal/weather"
)

var validate = validator.New()

// locationCacheDuration is how long a stored fix is served without
// re-running the resolution chain.
const locationCacheDuration = time.Hour

// ItemStore is the write side of the wardrobe, used when an analyzed
// garment is saved directly.
type ItemStore interface {
	AddItem(ctx context.Context, item *wardrobe.Item) error
}

// Deps bundles the collaborators the handlers need.
type Deps struct {
	Gateway  *gateway.Gateway
	Resolver *location.Resolver
	Weather  *weather.Cache
	Configs  llm.ConfigStore
	Vision   *vision.Pipeline
	Items    ItemStore
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	v1 := app.Group("/api/v1")

	v1.Post("/chat", handleChat(deps))
	v1.Get("/chat/history", handleChatHistory(deps))
	v1.Get("/weather", handleWeather(deps))
	v1.Get("/location", handleGetLocation(deps))
	v1.Post("/location", handleUpdateLocation(deps))
	v1.Get("/configs", handleListConfigs(deps))
	v1.Post("/configs", handleSaveConfig(deps))
	v1.Delete("/configs/:id", handleDeleteConfig(deps))
	v1.Post("/wardrobe/analyze", handleAnalyze(deps))
}

// userID reads the identity the fronting auth layer injects. Session
// management is outside this service.
func userID(c *fiber.Ctx) (int64, error) {
	raw := c.Get("X-User-ID")
	if raw == "" {
		return 0, fiber.NewError(fiber.StatusUnauthorized, "missing X-User-ID header")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusUnauthorized, "invalid X-User-ID header")
	}
	return id, nil
}

func clientHint(c *fiber.Ctx) location.ClientHint {
	return location.ClientHint{
		RemoteAddr:   c.Context().RemoteAddr().String(),
		ForwardedFor: c.Get(fiber.HeaderXForwardedFor),
	}
}

type chatRequest struct {
	Message  string `json:"message" validate:"required"`
	ConfigID string `json:"config_id"`
}

func handleChat(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		uid, err := userID(c)
		if err != nil {
			return err
		}

		var req chatRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "无效的请求数据")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "无效的请求数据")
		}

		reply := deps.Gateway.Chat(c.UserContext(), uid, req.Message, req.ConfigID, clientHint(c))
		return c.JSON(reply)
	}
}

func handleChatHistory(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		uid, err := userID(c)
		if err != nil {
			return err
		}

		limit := c.QueryInt("limit", 10)
		records, err := deps.Gateway.History(c.UserContext(), uid, limit)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch chat history")
		}
		return c.JSON(fiber.Map{"items": records})
	}
}

func handleWeather(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		uid, err := userID(c)
		if err != nil {
			return err
		}

		fix, err := deps.Resolver.Stored(c.UserContext(), uid)
		if err != nil {
			def := deps.Resolver.Default()
			fix = location.Fix{UserID: uid, Lat: def.Lat, Lon: def.Lon, City: def.City}
		}

		sample, err := deps.Weather.Current(c.UserContext(), fix.Lat, fix.Lon, fix.City)
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, "无法获取天气信息")
		}

		return c.JSON(fiber.Map{
			"weather":   sample,
			"formatted": weather.FormatForPrompt(sample),
			"location": fiber.Map{
				"latitude":  fix.Lat,
				"longitude": fix.Lon,
				"city":      fix.City,
			},
		})
	}
}

func handleGetLocation(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		uid, err := userID(c)
		if err != nil {
			return err
		}

		fix, err := deps.Resolver.Stored(c.UserContext(), uid)
		if err == nil && time.Since(fix.UpdatedAt) < locationCacheDuration {
			return c.JSON(fix)
		}

		fix = deps.Resolver.Resolve(c.UserContext(), uid, clientHint(c))
		return c.JSON(fix)
	}
}

type locationUpdate struct {
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
}

func handleUpdateLocation(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		uid, err := userID(c)
		if err != nil {
			return err
		}

		var req locationUpdate
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "无效请求")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "无效坐标")
		}

		hint := clientHint(c)
		hint.Lat = req.Latitude
		hint.Lon = req.Longitude

		fix := deps.Resolver.Resolve(c.UserContext(), uid, hint)
		return c.JSON(fix)
	}
}

func handleListConfigs(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		uid, err := userID(c)
		if err != nil {
			return err
		}

		configs, err := deps.Configs.ListActive(c.UserContext(), uid)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch configs")
		}
		return c.JSON(fiber.Map{"data": configs})
	}
}

type configRequest struct {
	Kind      string `json:"model_type" validate:"required,oneof=baidu xunfei silicon openrouter"`
	APIKey    string `json:"api_key" validate:"required"`
	APISecret string `json:"api_secret"`
	AppID     string `json:"app_id"`
	APIBase   string `json:"api_base"`
	Default   bool   `json:"is_default"`
}

func handleSaveConfig(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		uid, err := userID(c)
		if err != nil {
			return err
		}

		var req configRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "无效的请求数据")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		cfg := llm.Config{
			UserID:    uid,
			Kind:      llm.Kind(req.Kind),
			APIKey:    req.APIKey,
			APISecret: req.APISecret,
			AppID:     req.AppID,
			APIBase:   req.APIBase,
			Active:    true,
			Default:   req.Default,
		}

		// Fields another kind would use are dropped on save.
		switch cfg.Kind {
		case llm.KindBaidu:
			cfg.AppID, cfg.APIBase = "", ""
		case llm.KindXunfei:
			cfg.APISecret, cfg.APIBase = "", ""
		case llm.KindSilicon:
			cfg.APISecret, cfg.AppID = "", ""
		case llm.KindOpenRouter:
			cfg.APISecret, cfg.AppID, cfg.APIBase = "", "", ""
		}

		if !cfg.Valid() {
			return fiber.NewError(fiber.StatusBadRequest, "配置信息不完整，请检查必填字段")
		}

		if err := deps.Configs.Save(c.UserContext(), &cfg); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "保存失败，请重试")
		}
		return c.JSON(cfg)
	}
}

func handleDeleteConfig(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		uid, err := userID(c)
		if err != nil {
			return err
		}

		if err := deps.Configs.Delete(c.UserContext(), c.Params("id"), uid); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "删除失败，请重试")
		}
		return c.JSON(fiber.Map{"success": true})
	}
}

type analyzeRequest struct {
	Image    string `json:"image" validate:"required"` // base64
	ConfigID string `json:"config_id"`
	Save     bool   `json:"save"`
	Category string `json:"category"`
}

func handleAnalyze(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		uid, err := userID(c)
		if err != nil {
			return err
		}

		var req analyzeRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "无效的请求数据")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "无效的请求数据")
		}

		image, err := base64.StdEncoding.DecodeString(req.Image)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "无效的图片数据")
		}

		cfg, err := deps.Gateway.SelectConfig(c.UserContext(), uid, req.ConfigID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, llm.MsgUnconfigured)
		}

		result, err := deps.Vision.Analyze(c.UserContext(), cfg, image)
		if err != nil {
			if errors.Is(err, vision.ErrUnsupportedProvider) {
				return fiber.NewError(fiber.StatusBadRequest, vision.MsgNotSupported)
			}
			if errors.Is(err, vision.ErrNoStructuredReply) {
				return fiber.NewError(fiber.StatusUnprocessableEntity, "无法识别图片中的衣物")
			}
			return fiber.NewError(fiber.StatusBadGateway, llm.MsgUnavailable)
		}

		if req.Save && deps.Items != nil {
			category := req.Category
			if category == "" {
				category = "tops"
			}
			item := &wardrobe.Item{
				UserID:      uid,
				Category:    category,
				Description: result.Description,
				Seasons:     result.Seasons,
				Occasions:   result.Occasions,
			}
			if err := deps.Items.AddItem(c.UserContext(), item); err != nil {
				return c.JSON(fiber.Map{"result": result, "warning": "衣物保存失败"})
			}
			return c.JSON(fiber.Map{"result": result, "item_id": item.ID})
		}

		return c.JSON(fiber.Map{"result": result})
	}
}
