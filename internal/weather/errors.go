package weather

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData is matched by InsufficientDataError.
	ErrInsufficientData = errors.New("insufficient data for a same-hour-yesterday comparison")
	// ErrMissingMetric is returned when a metric array or a required reading is absent.
	ErrMissingMetric = errors.New("missing metric")
	// ErrMisalignedSeries is returned when metric arrays and timestamps differ in length.
	ErrMisalignedSeries = errors.New("misaligned series")
	// ErrNoProviders is returned by the service when no provider is configured.
	ErrNoProviders = errors.New("no weather providers configured")
	// ErrUpstream wraps provider failures.
	ErrUpstream = errors.New("weather provider unavailable")
)

// InsufficientDataError reports a series too short for the lookback.
type InsufficientDataError struct {
	Have int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: have %d hourly entries, need %d", ErrInsufficientData, e.Have, e.Need)
}

// Is lets errors.Is(err, ErrInsufficientData) match.
func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

// IsDataError reports whether err comes from deriving values out of a bad series.
func IsDataError(err error) bool {
	return errors.Is(err, ErrInsufficientData) ||
		errors.Is(err, ErrMissingMetric) ||
		errors.Is(err, ErrMisalignedSeries)
}
