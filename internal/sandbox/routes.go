package sandbox

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/birbparty/birb-ads/internal/telemetry"
)

// NewApp creates the Fiber app with middleware and routes
func NewApp(cfg *Config, handlers *Handlers, metrics *telemetry.ServerMetrics, gatherer prometheus.Gatherer) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "Birb Ads Sandbox",
		ReadTimeout:           cfg.RequestTimeout,
		WriteTimeout:          cfg.RequestTimeout,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(telemetry.FiberLoggingMiddleware())
	app.Use(telemetry.FiberMetricsMiddleware(metrics))

	SetupRoutes(app, handlers, cfg, gatherer)
	return app
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, handlers *Handlers, cfg *Config, gatherer prometheus.Gatherer) {
	v1 := app.Group("/v1")
	v1.Post("/session", handlers.CreateSession)
	v1.Post("/content", handlers.GetContent)

	app.Get("/health", handlers.Health)

	if gatherer != nil {
		app.Get(cfg.MetricsPath, telemetry.PrometheusHandler(gatherer))
	}

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Endpoint not found",
		})
	})
}
