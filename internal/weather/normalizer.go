package weather

import (
	"fmt"
	"math"
	"time"
)

const (
	// LookbackHours is the positional offset treated as "same hour yesterday".
	// It assumes gapless hourly sampling.
	LookbackHours = 24
	// MinSnapshotLength is the shortest series deriveSnapshot accepts.
	MinSnapshotLength = LookbackHours + 1
)

// Normalizer turns raw hourly series into comparison values. It holds only
// the condition table and is safe for concurrent use.
type Normalizer struct {
	table ConditionTable
}

// NewNormalizer returns a Normalizer classifying conditions with table.
func NewNormalizer(table ConditionTable) *Normalizer {
	return &Normalizer{table: table}
}

// Table returns the condition table in use.
func (n *Normalizer) Table() ConditionTable {
	return n.table
}

// ClassifyCondition maps a provider condition code to an icon key.
func (n *Normalizer) ClassifyCondition(code int, isDay bool) IconKey {
	return n.table.Classify(code, isDay)
}

// DeriveSnapshot compares the latest reading of every metric with the
// reading 24 entries earlier. Either every metric is derived or an error is
// returned.
func (n *Normalizer) DeriveSnapshot(series HourlySeries, sample ConditionSample) (WeatherSnapshot, error) {
	if series.Len() < MinSnapshotLength {
		return WeatherSnapshot{}, &InsufficientDataError{Have: series.Len(), Need: MinSnapshotLength}
	}
	if err := series.Validate(); err != nil {
		return WeatherSnapshot{}, err
	}

	last := series.Len() - 1
	prior := last - LookbackHours

	snap := WeatherSnapshot{
		ObservedAt:  series.Times[last],
		YesterdayAt: series.Times[prior],
	}
	for _, m := range Metrics {
		vals := series.Values(m)
		cur, yest := vals[last], vals[prior]
		if cur == nil {
			return WeatherSnapshot{}, fmt.Errorf("%w: %s at %s", ErrMissingMetric, m, series.Times[last].Format(time.RFC3339))
		}
		if yest == nil {
			return WeatherSnapshot{}, fmt.Errorf("%w: %s at %s", ErrMissingMetric, m, series.Times[prior].Format(time.RFC3339))
		}
		snap.setMetric(m, MetricComparison{
			Current:           *cur,
			SameHourYesterday: *yest,
			Delta:             *cur - *yest,
		})
	}
	snap.IconKey = n.ClassifyCondition(sample.Code, sample.IsDay)
	return snap, nil
}

// DeriveExtremes compares today's temperature range so far with yesterday's
// range up to the same time of day. Days follow the calendar of the series
// timestamps.
func (n *Normalizer) DeriveExtremes(series HourlySeries) (Extremes, error) {
	if series.Len() < MinSnapshotLength {
		return Extremes{}, &InsufficientDataError{Have: series.Len(), Need: MinSnapshotLength}
	}
	if series.Temperature == nil {
		return Extremes{}, fmt.Errorf("%w: %s", ErrMissingMetric, MetricTemperature)
	}
	if len(series.Temperature) != series.Len() {
		return Extremes{}, fmt.Errorf("%w: %s", ErrMisalignedSeries, MetricTemperature)
	}

	now := series.Times[series.Len()-1]
	cutoff := now.Add(-LookbackHours * time.Hour)
	today := dateOf(now)
	yesterday := dateOf(cutoff)

	var t, y rangeAcc
	for i, ts := range series.Times {
		v := series.Temperature[i]
		if v == nil {
			continue
		}
		switch d := dateOf(ts); {
		case d == today && !ts.After(now):
			t.add(*v)
		case d == yesterday && !ts.After(cutoff):
			y.add(*v)
		}
	}
	if !t.ok || !y.ok {
		return Extremes{}, fmt.Errorf("%w: no temperature readings for %s or %s", ErrMissingMetric, today, yesterday)
	}

	return Extremes{
		Today:     DayExtremes{Date: today, Max: t.max, Min: t.min},
		Yesterday: DayExtremes{Date: yesterday, Max: y.max, Min: y.min},
		DeltaMax:  t.max - y.max,
		DeltaMin:  t.min - y.min,
	}, nil
}

func dateOf(t time.Time) string {
	return t.Format("2006-01-02")
}

type rangeAcc struct {
	ok       bool
	min, max float64
}

func (r *rangeAcc) add(v float64) {
	if !r.ok {
		r.ok, r.min, r.max = true, v, v
		return
	}
	r.min = math.Min(r.min, v)
	r.max = math.Max(r.max, v)
}

var defaultNormalizer = NewNormalizer(OpenMeteoConditions)

// DeriveSnapshot derives a snapshot classifying conditions with the WMO table.
func DeriveSnapshot(series HourlySeries, sample ConditionSample) (WeatherSnapshot, error) {
	return defaultNormalizer.DeriveSnapshot(series, sample)
}

// ClassifyCondition classifies a WMO condition code.
func ClassifyCondition(code int, isDay bool) IconKey {
	return defaultNormalizer.ClassifyCondition(code, isDay)
}

// DeriveExtremes is Normalizer.DeriveExtremes without a condition table.
func DeriveExtremes(series HourlySeries) (Extremes, error) {
	return defaultNormalizer.DeriveExtremes(series)
}
