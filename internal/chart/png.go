package chart

import (
	"fmt"
	"io"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/i474232898/eojeboda/internal/weather"
)

var (
	todayColor     = drawing.Color{R: 230, G: 90, B: 60, A: 255}
	yesterdayColor = drawing.Color{R: 120, G: 130, B: 150, A: 255}
)

// RenderPNG draws today's and yesterday's temperature as two lines over the
// hour labels. Missing readings are left out of their line.
func RenderPNG(w io.Writer, series *weather.HourlyComparisonSeries, title string) error {
	p, err := project(series, weather.MetricTemperature)
	if err != nil {
		return err
	}

	ticks := make([]gochart.Tick, len(p.labels))
	for i, l := range p.labels {
		ticks[i] = gochart.Tick{Value: float64(i), Label: l}
	}

	graph := gochart.Chart{
		Title: title,
		TitleStyle: gochart.Style{
			FontSize: 14,
		},
		Background: gochart.Style{
			Padding: gochart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		Width:  800,
		Height: 360,
		XAxis: gochart.XAxis{
			Name:  "Hour",
			Ticks: ticks,
		},
		YAxis: gochart.YAxis{
			Name: "°C",
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.0f", f)
				}
				return ""
			},
		},
		Series: []gochart.Series{
			line("Yesterday", p.yesterday, yesterdayColor, []float64{5, 5}),
			line("Today", p.today, todayColor, nil),
		},
	}
	graph.Elements = []gochart.Renderable{gochart.Legend(&graph)}

	if err := graph.Render(gochart.PNG, w); err != nil {
		return fmt.Errorf("render png chart: %w", err)
	}
	return nil
}

func line(name string, vals []*float64, color drawing.Color, dash []float64) gochart.ContinuousSeries {
	s := gochart.ContinuousSeries{
		Name: name,
		Style: gochart.Style{
			StrokeColor:     color,
			StrokeWidth:     2,
			StrokeDashArray: dash,
		},
	}
	for i, v := range vals {
		if v == nil {
			continue
		}
		s.XValues = append(s.XValues, float64(i))
		s.YValues = append(s.YValues, *v)
	}
	return s
}
