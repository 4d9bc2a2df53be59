package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"

	"github.com/i474232898/eojeboda/internal/weather"
)

const (
	openMeteoName       = "openmeteo"
	openMeteoBaseURL    = "https://api.open-meteo.com/v1/forecast"
	openMeteoTimeLayout = "2006-01-02T15:04"
	openMeteoHourly     = "temperature_2m,relative_humidity_2m,uv_index,apparent_temperature"
)

// OpenMeteoProvider implements weather.Provider for Open-Meteo. It needs no API key.
type OpenMeteoProvider struct {
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	clock   clockwork.Clock
}

// NewOpenMeteoProvider returns a provider talking to baseURL (the public
// forecast endpoint when empty).
func NewOpenMeteoProvider(client *http.Client, baseURL string, opts ...Option) *OpenMeteoProvider {
	if baseURL == "" {
		baseURL = openMeteoBaseURL
	}
	o := newOptions(opts)
	return &OpenMeteoProvider{
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{Client: client, Backoff: defaultBackoff},
		circuit: newBreaker(openMeteoName),
		clock:   o.clock,
	}
}

func (p *OpenMeteoProvider) Name() string {
	return openMeteoName
}

func (p *OpenMeteoProvider) Conditions() weather.ConditionTable {
	return weather.OpenMeteoConditions
}

type openMeteoResponse struct {
	Timezone         string `json:"timezone"`
	UTCOffsetSeconds int    `json:"utc_offset_seconds"`
	CurrentWeather   *struct {
		Time        string `json:"time"`
		WeatherCode int    `json:"weathercode"`
		IsDay       int    `json:"is_day"`
	} `json:"current_weather"`
	Hourly struct {
		Time        []string   `json:"time"`
		Temperature []*float64 `json:"temperature_2m"`
		Humidity    []*float64 `json:"relative_humidity_2m"`
		UV          []*float64 `json:"uv_index"`
		FeelsLike   []*float64 `json:"apparent_temperature"`
	} `json:"hourly"`
}

// FetchHourly requests yesterday and today and cuts the series at the hour of
// the current-weather reading, so the last entry is "now".
func (p *OpenMeteoProvider) FetchHourly(ctx context.Context, loc weather.Location) (weather.Observation, error) {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(loc.Lat, 'f', 4, 64))
	values.Set("longitude", strconv.FormatFloat(loc.Lon, 'f', 4, 64))
	values.Set("hourly", openMeteoHourly)
	values.Set("current_weather", "true")
	values.Set("timezone", "auto")
	values.Set("past_days", "1")
	values.Set("forecast_days", "1")

	var payload openMeteoResponse
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.baseURL+"?"+values.Encode(), &payload); err != nil {
		return weather.Observation{}, err
	}
	if payload.CurrentWeather == nil {
		return weather.Observation{}, fmt.Errorf("%w: current_weather", weather.ErrMissingMetric)
	}

	zone := openMeteoZone(payload.Timezone, payload.UTCOffsetSeconds)
	times := make([]time.Time, len(payload.Hourly.Time))
	for i, s := range payload.Hourly.Time {
		ts, err := time.ParseInLocation(openMeteoTimeLayout, s, zone)
		if err != nil {
			return weather.Observation{}, fmt.Errorf("parse hourly time %q: %w", s, err)
		}
		times[i] = ts
	}

	now, err := time.ParseInLocation(openMeteoTimeLayout, payload.CurrentWeather.Time, zone)
	if err != nil {
		now = p.clock.Now().In(zone)
	}

	series := weather.HourlySeries{
		Times:       times,
		Temperature: payload.Hourly.Temperature,
		Humidity:    payload.Hourly.Humidity,
		UV:          payload.Hourly.UV,
		FeelsLike:   payload.Hourly.FeelsLike,
	}
	series = series.Truncate(lastIndexAtOrBefore(times, startOfHour(now)))

	return weather.Observation{
		Provider: openMeteoName,
		Timezone: payload.Timezone,
		Series:   series,
		Condition: weather.ConditionSample{
			Code:  payload.CurrentWeather.WeatherCode,
			IsDay: payload.CurrentWeather.IsDay == 1,
		},
	}, nil
}

func openMeteoZone(name string, offset int) *time.Location {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.FixedZone(name, offset)
}

// startOfHour truncates t to the hour in its own zone, which also works for
// zones with half-hour offsets.
func startOfHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

// lastIndexAtOrBefore returns the index of the last timestamp not after t, or -1.
func lastIndexAtOrBefore(times []time.Time, t time.Time) int {
	idx := -1
	for i, ts := range times {
		if ts.After(t) {
			break
		}
		idx = i
	}
	return idx
}
