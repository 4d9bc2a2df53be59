// Package chart renders the hourly today-vs-yesterday temperature series.
package chart

import (
	"errors"

	"github.com/i474232898/eojeboda/internal/weather"
)

// ErrEmptySeries is returned when there is nothing to draw.
var ErrEmptySeries = errors.New("hourly series is empty")

// points is the chart-ready projection of one metric.
type points struct {
	labels    []string
	today     []*float64
	yesterday []*float64
}

func project(series *weather.HourlyComparisonSeries, m weather.Metric) (points, error) {
	if series == nil || series.Len() == 0 {
		return points{}, ErrEmptySeries
	}
	p := points{
		labels:    make([]string, 0, series.Len()),
		today:     make([]*float64, 0, series.Len()),
		yesterday: make([]*float64, 0, series.Len()),
	}
	for _, e := range series.Entries {
		pc := e.Point(m)
		p.labels = append(p.labels, e.Hour)
		p.today = append(p.today, pc.Today)
		p.yesterday = append(p.yesterday, pc.Yesterday)
	}
	return p, nil
}
