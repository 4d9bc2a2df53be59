package weather

import (
	"context"
	"time"
)

// Provider abstracts an hourly weather data source (e.g. Open-Meteo, WeatherAPI).
// FetchHourly returns a series whose last entry is the current hour and that
// reaches back at least one day where the source allows it.
type Provider interface {
	Name() string
	Conditions() ConditionTable
	FetchHourly(ctx context.Context, loc Location) (Observation, error)
}

// Store is the contract the in-memory observation store must satisfy.
type Store interface {
	SaveObservation(loc Location, obs Observation)
	GetLatest(loc Location) (Observation, error)
	GetRange(loc Location, from, to time.Time) ([]Observation, error)
}
