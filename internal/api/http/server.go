package httpapi

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/eojeboda/internal/chart"
	"github.com/i474232898/eojeboda/internal/notify"
	"github.com/i474232898/eojeboda/internal/pages"
	"github.com/i474232898/eojeboda/internal/store"
	"github.com/i474232898/eojeboda/internal/weather"
	"github.com/i474232898/eojeboda/internal/weather/providers"
)

const serviceName = "eojeboda"

// Deps are the services behind the API. Notify and LifeIndex may be nil, in
// which case their routes are not mounted.
type Deps struct {
	Weather   *weather.Service
	Notify    *notify.Service
	LifeIndex LifeIndexSource
	Logger    *slog.Logger
	// RequestLog enables the fiber access log.
	RequestLog bool
}

// NewApp builds the fiber application with middleware and every route.
func NewApp(deps Deps) *fiber.App {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler:          errorHandler(deps.Logger),
	})

	if deps.RequestLog {
		app.Use(logger.New())
	}
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": serviceName,
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/privacy-policy", func(c *fiber.Ctx) error {
		page, err := pages.PrivacyPolicy()
		if err != nil {
			return err
		}
		c.Type("html", "utf-8")
		return c.Send(page)
	})

	RegisterRoutes(app, deps)
	return app
}

func errorHandler(log *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		e := toFiberError(err)
		if e.Code >= fiber.StatusInternalServerError {
			log.Error("request failed", "method", c.Method(), "path", c.Path(), "status", e.Code, "error", err)
		}
		return c.Status(e.Code).JSON(fiber.Map{
			"error":   true,
			"message": e.Message,
		})
	}
}

// Upstream and data errors carry provider URLs and series details; those
// only go to the log.
const (
	msgWeatherUnavailable  = "could not load weather"
	msgProviderUnavailable = "weather provider unavailable"
)

// toFiberError maps domain errors to HTTP statuses.
func toFiberError(err error) *fiber.Error {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe
	case weather.IsDataError(err), errors.Is(err, chart.ErrEmptySeries):
		return fiber.NewError(fiber.StatusServiceUnavailable, msgWeatherUnavailable)
	case errors.Is(err, weather.ErrUpstream), errors.Is(err, weather.ErrNoProviders):
		return fiber.NewError(fiber.StatusBadGateway, msgProviderUnavailable)
	case errors.Is(err, store.ErrNotFound), errors.Is(err, notify.ErrSubscriberNotFound),
		errors.Is(err, providers.ErrOutsideCoverage):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, notify.ErrInvalidRegistration):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "internal server error")
	}
}
