package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/eojeboda/internal/weather"
)

func weatherAPIDay(date time.Time, base float64) map[string]interface{} {
	hours := make([]map[string]interface{}, 24)
	for h := 0; h < 24; h++ {
		ts := date.Add(time.Duration(h) * time.Hour)
		hours[h] = map[string]interface{}{
			"time_epoch":  ts.Unix(),
			"time":        ts.Format("2006-01-02 15:04"),
			"temp_c":      base + float64(h),
			"humidity":    60,
			"uv":          3,
			"feelslike_c": base + float64(h) - 1,
		}
	}
	return map[string]interface{}{"date": date.Format("2006-01-02"), "hour": hours}
}

func TestWeatherAPIFetchHourly(t *testing.T) {
	kst := time.FixedZone("KST", 9*3600)
	today := time.Date(2024, 5, 1, 0, 0, 0, 0, kst)
	yesterday := today.AddDate(0, 0, -1)
	now := time.Date(2024, 5, 1, 14, 20, 0, 0, kst)

	var historyDate string
	mux := http.NewServeMux()
	mux.HandleFunc("/forecast.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"location": map[string]interface{}{"tz_id": "Asia/Seoul", "localtime_epoch": now.Unix()},
			"current": map[string]interface{}{
				"is_day":    1,
				"condition": map[string]interface{}{"code": 1189},
			},
			"forecast": map[string]interface{}{"forecastday": []interface{}{weatherAPIDay(today, 20)}},
		})
	})
	mux.HandleFunc("/history.json", func(w http.ResponseWriter, r *http.Request) {
		historyDate = r.URL.Query().Get("dt")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"location": map[string]interface{}{"tz_id": "Asia/Seoul", "localtime_epoch": now.Unix()},
			"forecast": map[string]interface{}{"forecastday": []interface{}{weatherAPIDay(yesterday, 17)}},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewWeatherAPIProvider(srv.Client(), "secret", srv.URL)
	obs, err := p.FetchHourly(context.Background(), seoul)
	require.NoError(t, err)

	assert.Equal(t, "2024-04-30", historyDate)
	require.Equal(t, 39, obs.Series.Len())
	assert.Equal(t, 14, obs.Series.Times[38].Hour())
	require.NoError(t, obs.Series.Validate())

	snap, err := weather.NewNormalizer(p.Conditions()).DeriveSnapshot(obs.Series, obs.Condition)
	require.NoError(t, err)
	assert.Equal(t, weather.IconRain, snap.IconKey)
	assert.InDelta(t, 34.0, snap.Temperature.Current, 1e-9)
	assert.InDelta(t, 31.0, snap.Temperature.SameHourYesterday, 1e-9)
	assert.InDelta(t, 3.0, snap.Temperature.Delta, 1e-9)
}

func TestWeatherAPIRequiresKey(t *testing.T) {
	p := NewWeatherAPIProvider(http.DefaultClient, "", "")
	_, err := p.FetchHourly(context.Background(), seoul)
	assert.ErrorIs(t, err, errMissingAPIKey)
}
