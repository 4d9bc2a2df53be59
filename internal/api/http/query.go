package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/eojeboda/internal/weather"
)

var validate = validator.New()

// locationQuery holds query parameters for identifying a location.
type locationQuery struct {
	Lat  string `validate:"required,latitude"`
	Lon  string `validate:"required,longitude"`
	City string `validate:"max=100"`
}

func (l locationQuery) toLocation() weather.Location {
	lat, _ := strconv.ParseFloat(l.Lat, 64)
	lon, _ := strconv.ParseFloat(l.Lon, 64)
	return weather.Location{City: l.City, Lat: lat, Lon: lon}
}

func parseLocationQuery(c *fiber.Ctx) (weather.Location, error) {
	q := locationQuery{
		Lat:  c.Query("lat"),
		Lon:  c.Query("lon"),
		City: c.Query("city"),
	}
	if err := validate.Struct(q); err != nil {
		return weather.Location{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return q.toLocation(), nil
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func parseHistoryQuery(c *fiber.Ctx) (weather.Location, historyQuery, error) {
	loc, err := parseLocationQuery(c)
	if err != nil {
		return weather.Location{}, historyQuery{}, err
	}

	fromStr, toStr := c.Query("from"), c.Query("to")
	if fromStr == "" || toStr == "" {
		return loc, historyQuery{}, fiber.NewError(fiber.StatusBadRequest, "from and to query parameters are required")
	}
	var h historyQuery
	if h.From, err = parseTime(fromStr); err != nil {
		return loc, h, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if h.To, err = parseTime(toStr); err != nil {
		return loc, h, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(h); err != nil {
		return loc, h, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return loc, h, nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
