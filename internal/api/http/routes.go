package httpapi

import (
	"bytes"
	"fmt"
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/eojeboda/internal/chart"
	"github.com/i474232898/eojeboda/internal/weather"
)

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	v1 := app.Group("/api/v1")
	w := &weatherHandlers{svc: deps.Weather}

	v1.Get("/compare", w.compare)
	v1.Get("/hourly", w.hourly)
	v1.Get("/hourly/:hour", w.hour)
	v1.Get("/extremes", w.extremes)
	v1.Get("/chart.png", w.chartPNG)
	v1.Get("/chart.html", w.chartHTML)
	v1.Get("/weather/history", w.history)

	if deps.Notify != nil {
		r := &reminderHandlers{svc: deps.Notify}
		app.Post("/register", r.register)
		app.Delete("/register/:uid", r.unregister)
		v1.Get("/notifications/history", r.history)
		v1.Post("/notifications/dispatch", r.dispatch)
		v1.Get("/status", r.status)
	}

	if deps.LifeIndex != nil {
		l := &lifeIndexHandlers{src: deps.LifeIndex}
		v1.Get("/life-index", l.report)
	}
}

type weatherHandlers struct {
	svc *weather.Service
}

func (h *weatherHandlers) compare(c *fiber.Ctx) error {
	loc, err := parseLocationQuery(c)
	if err != nil {
		return err
	}
	report, err := h.svc.Compare(c.UserContext(), loc)
	if err != nil {
		return err
	}
	return c.JSON(report)
}

func (h *weatherHandlers) hourly(c *fiber.Ctx) error {
	loc, err := parseLocationQuery(c)
	if err != nil {
		return err
	}
	series, err := h.svc.Hourly(c.UserContext(), loc)
	if err != nil {
		return err
	}
	return c.JSON(series)
}

func (h *weatherHandlers) hour(c *fiber.Ctx) error {
	loc, err := parseLocationQuery(c)
	if err != nil {
		return err
	}
	series, err := h.svc.Hourly(c.UserContext(), loc)
	if err != nil {
		return err
	}
	entry, ok := series.Lookup(c.Params("hour"))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("no entry for hour %q", c.Params("hour")))
	}
	return c.JSON(entry)
}

func (h *weatherHandlers) extremes(c *fiber.Ctx) error {
	loc, err := parseLocationQuery(c)
	if err != nil {
		return err
	}
	ext, err := h.svc.Extremes(c.UserContext(), loc)
	if err != nil {
		return err
	}
	return c.JSON(ext)
}

func (h *weatherHandlers) chartPNG(c *fiber.Ctx) error {
	return h.renderChart(c, "png", chart.RenderPNG)
}

func (h *weatherHandlers) chartHTML(c *fiber.Ctx) error {
	return h.renderChart(c, "html", chart.RenderHTML)
}

type renderFunc func(w io.Writer, series *weather.HourlyComparisonSeries, title string) error

func (h *weatherHandlers) renderChart(c *fiber.Ctx, ext string, render renderFunc) error {
	loc, err := parseLocationQuery(c)
	if err != nil {
		return err
	}
	series, err := h.svc.Hourly(c.UserContext(), loc)
	if err != nil {
		return err
	}

	title := loc.City
	if title == "" {
		title = loc.Key()
	}
	var buf bytes.Buffer
	if err := render(&buf, series, title); err != nil {
		return err
	}
	c.Type(ext)
	return c.Send(buf.Bytes())
}

func (h *weatherHandlers) history(c *fiber.Ctx) error {
	loc, q, err := parseHistoryQuery(c)
	if err != nil {
		return err
	}
	snapshots, err := h.svc.History(loc, q.From, q.To)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"location":  loc,
		"from":      q.From,
		"to":        q.To,
		"snapshots": snapshots,
	})
}
