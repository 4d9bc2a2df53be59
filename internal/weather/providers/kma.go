package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"

	"github.com/i474232898/eojeboda/internal/weather"
)

const (
	kmaName        = "kma"
	kmaForecastURL = "https://apis.data.go.kr/1360000/VilageFcstInfoService_2.0"
	kmaResultOK    = "00"
	kmaTimeLayout  = "200601021504"
	kmaForecastRow = "1000"
)

var (
	// ErrOutsideCoverage is returned for locations the KMA services do not cover.
	ErrOutsideCoverage = fmt.Errorf("%w: location outside the KMA coverage area", errClientError)

	errKMANoData = errors.New("kma: no data")
)

// kmaZone is the zone of every KMA timestamp.
var kmaZone = func() *time.Location {
	if loc, err := time.LoadLocation("Asia/Seoul"); err == nil {
		return loc
	}
	return time.FixedZone("KST", 9*3600)
}()

// kmaEnvelope is the response wrapper shared by the data.go.kr services.
type kmaEnvelope struct {
	Response struct {
		Header struct {
			ResultCode string `json:"resultCode"`
			ResultMsg  string `json:"resultMsg"`
		} `json:"header"`
		Body struct {
			TotalCount int             `json:"totalCount"`
			Items      json.RawMessage `json:"items"`
		} `json:"body"`
	} `json:"response"`
}

// decodeItems unpacks body.items.item into out.
func (e kmaEnvelope) decodeItems(out interface{}) error {
	h := e.Response.Header
	if h.ResultCode != kmaResultOK {
		if h.ResultCode == "03" {
			return errKMANoData
		}
		return fmt.Errorf("kma: result %s: %s", h.ResultCode, h.ResultMsg)
	}
	if e.Response.Body.TotalCount == 0 || len(e.Response.Body.Items) == 0 {
		return errKMANoData
	}
	var items struct {
		Item json.RawMessage `json:"item"`
	}
	if err := json.Unmarshal(e.Response.Body.Items, &items); err != nil {
		return fmt.Errorf("decode kma items: %w", err)
	}
	if err := json.Unmarshal(items.Item, out); err != nil {
		return fmt.Errorf("decode kma items: %w", err)
	}
	return nil
}

// kmaGet calls a data.go.kr endpoint and decodes its item list into out.
// apiKey is the decoded service key; url.Values encodes it.
func kmaGet(ctx context.Context, cfg HTTPClientConfig, cb *gobreaker.CircuitBreaker, baseURL, endpoint, apiKey string, params url.Values, out interface{}) error {
	params.Set("serviceKey", apiKey)
	params.Set("dataType", "JSON")
	var env kmaEnvelope
	if err := getJSON(ctx, cfg, cb, fmt.Sprintf("%s/%s?%s", baseURL, endpoint, params.Encode()), &env); err != nil {
		return err
	}
	return env.decodeItems(out)
}

// kmaFloat parses a KMA value. Blank, non-numeric and out-of-range markers
// such as -999 and 900 are gaps.
func kmaFloat(s string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v <= -900 || v >= 900 {
		return nil
	}
	return &v
}

// KMAProvider implements weather.Provider for the Korea Meteorological
// Administration short-term forecast. Temperature and humidity come from the
// forecast, feels-like is derived from them, and UV comes from the living
// weather index service. Only locations on the Korean forecast grid are served.
type KMAProvider struct {
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	clock   clockwork.Clock
	life    *KMALifeIndex
}

// NewKMAProvider returns a provider talking to baseURL (the public
// VilageFcstInfoService endpoint when empty). UV readings are read through life.
func NewKMAProvider(client *http.Client, apiKey, baseURL string, life *KMALifeIndex, opts ...Option) *KMAProvider {
	if baseURL == "" {
		baseURL = kmaForecastURL
	}
	o := newOptions(opts)
	return &KMAProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{Client: client, Backoff: defaultBackoff},
		circuit: newBreaker(kmaName),
		clock:   o.clock,
		life:    life,
	}
}

func (p *KMAProvider) Name() string {
	return kmaName
}

func (p *KMAProvider) Conditions() weather.ConditionTable {
	return weather.KMAConditions
}

type kmaForecastItem struct {
	Category  string `json:"category"`
	FcstDate  string `json:"fcstDate"`
	FcstTime  string `json:"fcstTime"`
	FcstValue string `json:"fcstValue"`
}

type kmaHour struct {
	tmp, reh, wsd *float64
	sky, pty      int
}

// conditionCode folds SKY and PTY into the KMAConditions vocabulary.
func (h *kmaHour) conditionCode() int {
	if h == nil {
		return 0
	}
	if h.pty > 0 {
		return h.pty * 10
	}
	return h.sky
}

// kmaForecastBase picks the announcement whose first forecast hour reaches
// back a full day before cur: 02:00 yesterday, or 23:00 the day before when
// cur is earlier than 03:00.
func kmaForecastBase(cur time.Time) time.Time {
	y := cur.AddDate(0, 0, -1)
	if cur.Hour() >= 3 {
		return time.Date(y.Year(), y.Month(), y.Day(), 2, 0, 0, 0, cur.Location())
	}
	return time.Date(y.Year(), y.Month(), y.Day()-1, 23, 0, 0, 0, cur.Location())
}

// FetchHourly returns the hourly series from the first forecast hour up to the
// current hour.
func (p *KMAProvider) FetchHourly(ctx context.Context, loc weather.Location) (weather.Observation, error) {
	if p.apiKey == "" {
		return weather.Observation{}, fmt.Errorf("kma: %w", errMissingAPIKey)
	}
	nx, ny := kmaGrid(loc.Lat, loc.Lon)
	if !inKMAGrid(nx, ny) {
		return weather.Observation{}, ErrOutsideCoverage
	}

	cur := startOfHour(p.clock.Now().In(kmaZone))
	base := kmaForecastBase(cur)
	start := base.Add(time.Hour)

	var items []kmaForecastItem
	if err := kmaGet(ctx, p.httpCfg, p.circuit, p.baseURL, "getVilageFcst", p.apiKey, url.Values{
		"base_date": {base.Format("20060102")},
		"base_time": {base.Format("1504")},
		"nx":        {strconv.Itoa(nx)},
		"ny":        {strconv.Itoa(ny)},
		"numOfRows": {kmaForecastRow},
		"pageNo":    {"1"},
	}, &items); err != nil {
		return weather.Observation{}, err
	}

	uv, err := p.uvSeries(ctx, loc, start)
	if err != nil {
		return weather.Observation{}, fmt.Errorf("kma uv: %w", err)
	}

	hours := make(map[int64]*kmaHour)
	for _, it := range items {
		ts, err := time.ParseInLocation(kmaTimeLayout, it.FcstDate+it.FcstTime, kmaZone)
		if err != nil {
			continue
		}
		h, ok := hours[ts.Unix()]
		if !ok {
			h = &kmaHour{}
			hours[ts.Unix()] = h
		}
		switch it.Category {
		case "TMP":
			h.tmp = kmaFloat(it.FcstValue)
		case "REH":
			h.reh = kmaFloat(it.FcstValue)
		case "WSD":
			h.wsd = kmaFloat(it.FcstValue)
		case "SKY":
			h.sky, _ = strconv.Atoi(strings.TrimSpace(it.FcstValue))
		case "PTY":
			h.pty, _ = strconv.Atoi(strings.TrimSpace(it.FcstValue))
		}
	}

	var series weather.HourlySeries
	for ts := start; !ts.After(cur); ts = ts.Add(time.Hour) {
		h := hours[ts.Unix()]
		if h == nil {
			h = &kmaHour{}
		}
		series.Times = append(series.Times, ts)
		series.Temperature = append(series.Temperature, h.tmp)
		series.Humidity = append(series.Humidity, h.reh)
		series.FeelsLike = append(series.FeelsLike, sensationTemperature(h.tmp, h.reh, h.wsd, ts.Month()))
		var v *float64
		if x, ok := uv.At(ts, lifeIndexStep); ok {
			v = &x
		}
		series.UV = append(series.UV, v)
	}

	hr := cur.Hour()
	return weather.Observation{
		Provider: kmaName,
		Timezone: kmaZone.String(),
		Series:   series,
		Condition: weather.ConditionSample{
			Code:  hours[cur.Unix()].conditionCode(),
			IsDay: hr >= 6 && hr < 19,
		},
	}, nil
}

// uvSeries reads the UV announcement in effect at from, which covers the
// whole forecast range.
func (p *KMAProvider) uvSeries(ctx context.Context, loc weather.Location, from time.Time) (IndexSeries, error) {
	if p.life == nil {
		return IndexSeries{}, errors.New("living weather index client not configured")
	}
	area, err := p.life.Area(loc.Lat, loc.Lon)
	if err != nil {
		return IndexSeries{}, err
	}
	return p.life.Series(ctx, LifeIndexUV, area.AreaNo, lifeIndexBase(from))
}

// sensationTemperature follows the KMA formulas: a wet-bulb based index from
// May to September and wind chill otherwise. Wind chill only applies at or
// below 10°C with wind of at least 4.8 km/h; other cases return the air
// temperature.
func sensationTemperature(tmp, reh, wsd *float64, month time.Month) *float64 {
	if tmp == nil {
		return nil
	}
	ta := *tmp
	if month >= time.May && month <= time.September {
		if reh == nil {
			return nil
		}
		tw := wetBulb(ta, *reh)
		v := -0.2442 + 0.55399*tw + 0.45535*ta - 0.0022*tw*tw + 0.00278*tw*ta + 3.0
		return &v
	}
	if wsd == nil {
		return nil
	}
	kmh := *wsd * 3.6
	if ta > 10 || kmh < 4.8 {
		v := ta
		return &v
	}
	pw := math.Pow(kmh, 0.16)
	v := 13.12 + 0.6215*ta - 11.37*pw + 0.3965*pw*ta
	return &v
}

// wetBulb is Stull's approximation of the wet-bulb temperature.
func wetBulb(ta, rh float64) float64 {
	return ta*math.Atan(0.151977*math.Sqrt(rh+8.313659)) +
		math.Atan(ta+rh) - math.Atan(rh-1.67633) +
		0.00391838*math.Pow(rh, 1.5)*math.Atan(0.023101*rh) - 4.686035
}
