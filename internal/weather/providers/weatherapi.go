package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/eojeboda/internal/weather"
)

const (
	weatherAPIName    = "weatherapi"
	weatherAPIBaseURL = "https://api.weatherapi.com/v1"
)

// WeatherAPIProvider implements weather.Provider for WeatherAPI.com. Today's
// hours come from the forecast endpoint, yesterday's from the history endpoint.
type WeatherAPIProvider struct {
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(client *http.Client, apiKey, baseURL string) *WeatherAPIProvider {
	if baseURL == "" {
		baseURL = weatherAPIBaseURL
	}
	return &WeatherAPIProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{Client: client, Backoff: defaultBackoff},
		circuit: newBreaker(weatherAPIName),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return weatherAPIName
}

func (p *WeatherAPIProvider) Conditions() weather.ConditionTable {
	return weather.WeatherAPIConditions
}

type weatherAPIHour struct {
	TimeEpoch  int64    `json:"time_epoch"`
	TempC      *float64 `json:"temp_c"`
	Humidity   *float64 `json:"humidity"`
	UV         *float64 `json:"uv"`
	FeelsLikeC *float64 `json:"feelslike_c"`
}

type weatherAPIResponse struct {
	Location struct {
		TzID           string `json:"tz_id"`
		LocaltimeEpoch int64  `json:"localtime_epoch"`
	} `json:"location"`
	Current *struct {
		IsDay     int `json:"is_day"`
		Condition struct {
			Code int `json:"code"`
		} `json:"condition"`
	} `json:"current"`
	Forecast struct {
		Forecastday []struct {
			Date string           `json:"date"`
			Hour []weatherAPIHour `json:"hour"`
		} `json:"forecastday"`
	} `json:"forecast"`
}

func (r weatherAPIResponse) hours() []weatherAPIHour {
	var out []weatherAPIHour
	for _, d := range r.Forecast.Forecastday {
		out = append(out, d.Hour...)
	}
	return out
}

func (p *WeatherAPIProvider) FetchHourly(ctx context.Context, loc weather.Location) (weather.Observation, error) {
	if p.apiKey == "" {
		return weather.Observation{}, fmt.Errorf("weatherapi: %w", errMissingAPIKey)
	}
	q := fmt.Sprintf("%.4f,%.4f", loc.Lat, loc.Lon)

	var today weatherAPIResponse
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.endpoint("forecast.json", url.Values{
		"q": {q}, "days": {"1"}, "aqi": {"no"}, "alerts": {"no"},
	}), &today); err != nil {
		return weather.Observation{}, err
	}
	if today.Current == nil {
		return weather.Observation{}, fmt.Errorf("%w: current", weather.ErrMissingMetric)
	}

	zone := time.UTC
	if z, err := time.LoadLocation(today.Location.TzID); err == nil {
		zone = z
	}
	now := time.Unix(today.Location.LocaltimeEpoch, 0).In(zone)
	yesterday := now.AddDate(0, 0, -1).Format("2006-01-02")

	var past weatherAPIResponse
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.endpoint("history.json", url.Values{
		"q": {q}, "dt": {yesterday},
	}), &past); err != nil {
		return weather.Observation{}, err
	}

	hours := append(past.hours(), today.hours()...)
	series := weather.HourlySeries{
		Times:       make([]time.Time, 0, len(hours)),
		Temperature: make([]*float64, 0, len(hours)),
		Humidity:    make([]*float64, 0, len(hours)),
		UV:          make([]*float64, 0, len(hours)),
		FeelsLike:   make([]*float64, 0, len(hours)),
	}
	for _, h := range hours {
		series.Times = append(series.Times, time.Unix(h.TimeEpoch, 0).In(zone))
		series.Temperature = append(series.Temperature, h.TempC)
		series.Humidity = append(series.Humidity, h.Humidity)
		series.UV = append(series.UV, h.UV)
		series.FeelsLike = append(series.FeelsLike, h.FeelsLikeC)
	}
	series = series.Truncate(lastIndexAtOrBefore(series.Times, startOfHour(now)))

	return weather.Observation{
		Provider: weatherAPIName,
		Timezone: today.Location.TzID,
		Series:   series,
		Condition: weather.ConditionSample{
			Code:  today.Current.Condition.Code,
			IsDay: today.Current.IsDay == 1,
		},
	}, nil
}

func (p *WeatherAPIProvider) endpoint(path string, values url.Values) string {
	values.Set("key", p.apiKey)
	return fmt.Sprintf("%s/%s?%s", p.baseURL, path, values.Encode())
}
