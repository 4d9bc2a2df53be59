package chart

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/eojeboda/internal/weather"
)

func testSeries(n int) *weather.HourlyComparisonSeries {
	start := time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC)
	s := weather.HourlySeries{
		Times:       make([]time.Time, n),
		Temperature: make([]*float64, n),
		Humidity:    make([]*float64, n),
		UV:          make([]*float64, n),
		FeelsLike:   make([]*float64, n),
	}
	for i := 0; i < n; i++ {
		v := 15 + float64(i%24)/2 + float64(i/24)
		s.Times[i] = start.Add(time.Duration(i) * time.Hour)
		s.Temperature[i] = &v
		s.Humidity[i] = &v
		s.UV[i] = &v
		s.FeelsLike[i] = &v
	}
	s.Temperature[30] = nil
	return weather.DeriveHourlyComparisonSeries(s)
}

func TestRenderPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderPNG(&buf, testSeries(48), "Seoul"))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG\r\n\x1a\n")))
}

func TestRenderHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, testSeries(48), "Seoul"))
	out := buf.String()
	assert.Contains(t, out, "echarts")
	assert.Contains(t, out, "Yesterday")
	assert.Contains(t, out, `"-"`)
}

func TestRenderEmptySeries(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, RenderPNG(&buf, nil, "x"), ErrEmptySeries)
	assert.ErrorIs(t, RenderHTML(&buf, testSeries(24), "x"), ErrEmptySeries)
}

func TestProjectKeepsGaps(t *testing.T) {
	p, err := project(testSeries(48), weather.MetricTemperature)
	require.NoError(t, err)
	assert.Len(t, p.labels, 24)
	assert.Nil(t, p.today[6])
	assert.NotNil(t, p.yesterday[6])
	assert.Equal(t, "00", p.labels[0])
}
