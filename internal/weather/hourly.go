package weather

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// PointComparison pairs one hour's reading with the reading 24 entries
// earlier. Nil fields are gaps.
type PointComparison struct {
	Today     *float64 `json:"today"`
	Yesterday *float64 `json:"yesterday"`
	Delta     *float64 `json:"delta"`
}

func comparePoint(vals []*float64, i int) PointComparison {
	at := func(j int) *float64 {
		if j < 0 || j >= len(vals) || vals[j] == nil {
			return nil
		}
		v := *vals[j]
		return &v
	}
	pc := PointComparison{
		Today:     at(i),
		Yesterday: at(i - LookbackHours),
	}
	if pc.Today != nil && pc.Yesterday != nil {
		d := *pc.Today - *pc.Yesterday
		pc.Delta = &d
	}
	return pc
}

// HourlyComparison is one chart point with its drill-down detail.
type HourlyComparison struct {
	Hour          string          `json:"hour"`
	Time          time.Time       `json:"time"`
	YesterdayTime time.Time       `json:"yesterdayTime"`
	Temperature   PointComparison `json:"temperature"`
	Humidity      PointComparison `json:"humidity"`
	UV            PointComparison `json:"uv"`
	FeelsLike     PointComparison `json:"feelsLike"`
}

// Point returns the comparison for metric m.
func (h HourlyComparison) Point(m Metric) PointComparison {
	switch m {
	case MetricHumidity:
		return h.Humidity
	case MetricUV:
		return h.UV
	case MetricFeelsLike:
		return h.FeelsLike
	default:
		return h.Temperature
	}
}

// HourlyComparisonSeries is the latest 24-hour window paired with the day
// before, indexed by hour label.
type HourlyComparisonSeries struct {
	Entries []HourlyComparison `json:"entries"`

	byHour map[string]int
}

// HourLabel formats the hour-of-day label used by the series.
func HourLabel(t time.Time) string {
	return t.Format("15")
}

// DeriveHourlyComparisonSeries pairs every entry of the latest 24-hour window
// with the entry 24 positions earlier. Entries without a prior-day partner
// are left out, so a short series yields a shorter (possibly empty) result.
func DeriveHourlyComparisonSeries(series HourlySeries) *HourlyComparisonSeries {
	n := series.Len()
	start := n - LookbackHours
	if start < LookbackHours {
		start = LookbackHours
	}

	out := &HourlyComparisonSeries{}
	for i := start; i < n; i++ {
		out.Entries = append(out.Entries, HourlyComparison{
			Hour:          HourLabel(series.Times[i]),
			Time:          series.Times[i],
			YesterdayTime: series.Times[i-LookbackHours],
			Temperature:   comparePoint(series.Temperature, i),
			Humidity:      comparePoint(series.Humidity, i),
			UV:            comparePoint(series.UV, i),
			FeelsLike:     comparePoint(series.FeelsLike, i),
		})
	}
	out.reindex()
	return out
}

// reindex rebuilds the label index. A repeated label keeps the most recent entry.
func (s *HourlyComparisonSeries) reindex() {
	s.byHour = make(map[string]int, len(s.Entries))
	for i, e := range s.Entries {
		s.byHour[e.Hour] = i
	}
}

// Len returns the number of entries.
func (s *HourlyComparisonSeries) Len() int {
	return len(s.Entries)
}

// Lookup returns the entry labelled hour. "7" and "07" are equivalent.
func (s *HourlyComparisonSeries) Lookup(hour string) (HourlyComparison, bool) {
	label, err := normalizeHour(hour)
	if err != nil {
		return HourlyComparison{}, false
	}
	i, ok := s.byHour[label]
	if !ok {
		return HourlyComparison{}, false
	}
	return s.Entries[i], true
}

func normalizeHour(hour string) (string, error) {
	h, err := strconv.Atoi(hour)
	if err != nil || h < 0 || h > 23 {
		return "", fmt.Errorf("invalid hour %q", hour)
	}
	return fmt.Sprintf("%02d", h), nil
}

// UnmarshalJSON decodes the entries and rebuilds the label index.
func (s *HourlyComparisonSeries) UnmarshalJSON(data []byte) error {
	var raw struct {
		Entries []HourlyComparison `json:"entries"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Entries = raw.Entries
	s.reindex()
	return nil
}
