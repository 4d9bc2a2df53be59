package weather

import (
	"fmt"
	"math"
	"time"
)

// Metric names one of the tracked hourly readings.
type Metric string

const (
	MetricTemperature Metric = "temperature"
	MetricHumidity    Metric = "humidity"
	MetricUV          Metric = "uv"
	MetricFeelsLike   Metric = "feelsLike"
)

// Metrics lists every tracked metric in presentation order.
var Metrics = []Metric{MetricTemperature, MetricHumidity, MetricUV, MetricFeelsLike}

// Location represents a place for which we compare weather.
// Lat/Lon must be provided; City/Country are labels only.
type Location struct {
	City    string  `json:"city,omitempty"`
	Country string  `json:"country,omitempty"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Key returns a canonical string key for indexing this location in stores.
// Coordinates are rounded to two decimals (roughly 1 km) so that nearby
// requests share cached observations.
func (l Location) Key() string {
	return fmt.Sprintf("%.2f:%.2f", roundTo(l.Lat, 2), roundTo(l.Lon, 2))
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// HourlySeries is the raw hourly input: ascending timestamps and parallel
// metric arrays. A nil element is a gap reported by the provider, a nil slice
// means the metric is missing from the payload altogether.
type HourlySeries struct {
	Times       []time.Time `json:"times"`
	Temperature []*float64  `json:"temperature"`
	Humidity    []*float64  `json:"humidity"`
	UV          []*float64  `json:"uv"`
	FeelsLike   []*float64  `json:"feelsLike"`
}

// Len returns the number of timestamps in the series.
func (s HourlySeries) Len() int {
	return len(s.Times)
}

// Values returns the readings of metric m.
func (s HourlySeries) Values(m Metric) []*float64 {
	switch m {
	case MetricTemperature:
		return s.Temperature
	case MetricHumidity:
		return s.Humidity
	case MetricUV:
		return s.UV
	case MetricFeelsLike:
		return s.FeelsLike
	default:
		return nil
	}
}

// Validate checks that every metric is present and index-aligned with Times.
func (s HourlySeries) Validate() error {
	for _, m := range Metrics {
		vals := s.Values(m)
		if vals == nil {
			return fmt.Errorf("%w: %s", ErrMissingMetric, m)
		}
		if len(vals) != len(s.Times) {
			return fmt.Errorf("%w: %s has %d values for %d timestamps", ErrMisalignedSeries, m, len(vals), len(s.Times))
		}
	}
	return nil
}

// Truncate returns the series cut after index last (inclusive).
func (s HourlySeries) Truncate(last int) HourlySeries {
	n := last + 1
	if n < 0 {
		n = 0
	}
	if n >= len(s.Times) {
		return s
	}
	cut := func(v []*float64) []*float64 {
		if v == nil {
			return nil
		}
		if n > len(v) {
			return v
		}
		return v[:n]
	}
	return HourlySeries{
		Times:       s.Times[:n],
		Temperature: cut(s.Temperature),
		Humidity:    cut(s.Humidity),
		UV:          cut(s.UV),
		FeelsLike:   cut(s.FeelsLike),
	}
}

// ConditionSample is the provider's current condition code and day/night flag.
type ConditionSample struct {
	Code  int  `json:"code"`
	IsDay bool `json:"isDay"`
}

// Observation is a single provider fetch: the raw series plus the current
// condition. This is what the store caches.
type Observation struct {
	Location  Location        `json:"location"`
	Provider  string          `json:"provider"`
	Timezone  string          `json:"timezone,omitempty"`
	FetchedAt time.Time       `json:"fetchedAt"` // always UTC
	Series    HourlySeries    `json:"series"`
	Condition ConditionSample `json:"condition"`
}

// MetricComparison holds one metric's current value, the value 24 hours
// earlier, and their signed difference.
type MetricComparison struct {
	Current           float64 `json:"current"`
	SameHourYesterday float64 `json:"sameHourYesterday"`
	Delta             float64 `json:"delta"`
}

// WeatherSnapshot is the derived today-vs-yesterday view at the latest hour.
type WeatherSnapshot struct {
	IconKey     IconKey          `json:"iconKey"`
	ObservedAt  time.Time        `json:"observedAt"`
	YesterdayAt time.Time        `json:"yesterdayAt"`
	Temperature MetricComparison `json:"temperature"`
	Humidity    MetricComparison `json:"humidity"`
	UV          MetricComparison `json:"uv"`
	FeelsLike   MetricComparison `json:"feelsLike"`
}

// Metric returns the comparison for m.
func (s WeatherSnapshot) Metric(m Metric) MetricComparison {
	switch m {
	case MetricTemperature:
		return s.Temperature
	case MetricHumidity:
		return s.Humidity
	case MetricUV:
		return s.UV
	case MetricFeelsLike:
		return s.FeelsLike
	default:
		return MetricComparison{}
	}
}

func (s *WeatherSnapshot) setMetric(m Metric, c MetricComparison) {
	switch m {
	case MetricTemperature:
		s.Temperature = c
	case MetricHumidity:
		s.Humidity = c
	case MetricUV:
		s.UV = c
	case MetricFeelsLike:
		s.FeelsLike = c
	}
}

// Report is what the compare endpoint returns.
type Report struct {
	Location  Location        `json:"location"`
	Provider  string          `json:"provider"`
	FetchedAt time.Time       `json:"fetchedAt"`
	IconURL   string          `json:"iconUrl"`
	Snapshot  WeatherSnapshot `json:"snapshot"`
}

// DayExtremes is the temperature range of one calendar day.
type DayExtremes struct {
	Date string  `json:"date"`
	Max  float64 `json:"max"`
	Min  float64 `json:"min"`
}

// Extremes compares today's temperature range so far with yesterday's range
// over the same hours.
type Extremes struct {
	Today     DayExtremes `json:"today"`
	Yesterday DayExtremes `json:"yesterday"`
	DeltaMax  float64     `json:"deltaMax"`
	DeltaMin  float64     `json:"deltaMin"`
}
