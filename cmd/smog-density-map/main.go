package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpapi "github.com/i474232898/smog-density-map/internal/api/http"
	"github.com/i474232898/smog-density-map/internal/config"
	"github.com/i474232898/smog-density-map/internal/observability"
	"github.com/i474232898/smog-density-map/internal/present"
	"github.com/i474232898/smog-density-map/internal/scheduler"
	"github.com/i474232898/smog-density-map/internal/smog"
	"github.com/i474232898/smog-density-map/internal/smog/providers"
	"github.com/i474232898/smog-density-map/internal/store"
)

func main() {
	// Load configuration (also reads .env when present).
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	metrics := observability.NewMetrics()

	// Client for the external air-quality service: one attempt per call,
	// bounded by HTTP_TIMEOUT, behind a circuit breaker.
	fetcher := providers.NewAQIClient(cfg.AQIServiceURL, cfg.HTTPTimeout, providers.BreakerConfig{
		MaxFailures: cfg.BreakerMaxFailures,
		Cooldown:    cfg.BreakerCooldown,
	}, metrics)

	// Reverse geocoding of marker labels is optional.
	var labeler smog.Labeler
	if cfg.GeocoderAPIKey != "" {
		labeler = providers.NewGoogleLabeler(cfg.GeocoderAPIKey)
		log.Println("INFO: reverse geocoding enabled")
	}

	service := smog.NewService(fetcher, labeler, cfg.JoinPolicy)

	// In-memory presenter sessions with configured retention.
	sessions := store.NewMemoryStore(store.Options{
		Locations:   cfg.LocationCount,
		MaxSessions: cfg.SessionMax,
		MaxAge:      cfg.SessionMaxAge,
		Metrics:     metrics,
	})

	// Scheduler that periodically drops idle sessions.
	sched := scheduler.New(sessions, cfg.SweepInterval)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "smog-density-map",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
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

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "smog-density-map",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	httpapi.RegisterRoutes(app, service, sessions, present.OptionsFromConfig(cfg))

	log.Printf("INFO: serving %s view (%s, %d locations) on :%s, air-quality service %s",
		cfg.ViewMode, cfg.JoinPolicy, cfg.LocationCount, cfg.Port, cfg.AQIServiceURL)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
