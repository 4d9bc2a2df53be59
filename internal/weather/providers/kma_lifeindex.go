package providers

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/eojeboda/internal/weather"
)

const (
	kmaLifeIndexName = "kma-life"
	kmaLifeIndexURL  = "https://apis.data.go.kr/1360000/LivingWthrIdxServiceV4"

	// lifeIndexStep is the spacing of the hN forecast values.
	lifeIndexStep      = 3 * time.Hour
	lifeIndexCacheTTL  = time.Hour
	maxAreaDistanceKm  = 250.0
	lifeIndexMaxOffset = 75
)

// Living weather indices.
const (
	LifeIndexUV                   = "uv"
	LifeIndexAirDiffusion         = "airDiffusion"
	LifeIndexSensationTemperature = "sensationTemperature"
)

var lifeIndexEndpoints = map[string]string{
	LifeIndexUV:                   "getUVIdxV4",
	LifeIndexAirDiffusion:         "getAirDiffusionIdxV4",
	LifeIndexSensationTemperature: "getSenTaIdxV4",
}

// LifeIndexKinds lists the indices in report order.
var LifeIndexKinds = []string{LifeIndexUV, LifeIndexAirDiffusion, LifeIndexSensationTemperature}

var errUnknownIndex = errors.New("unknown living weather index")

//go:embed kma_areas.yaml
var kmaAreasYAML []byte

// KMAArea is a living weather index area with its approximate centroid.
type KMAArea struct {
	AreaNo string  `yaml:"areaNo" json:"areaNo"`
	Name   string  `yaml:"name" json:"name"`
	Lat    float64 `yaml:"lat" json:"lat"`
	Lon    float64 `yaml:"lon" json:"lon"`
}

var kmaAreas = func() []KMAArea {
	var areas []KMAArea
	if err := yaml.Unmarshal(kmaAreasYAML, &areas); err != nil {
		panic(fmt.Sprintf("kma areas: %v", err))
	}
	return areas
}()

// IndexPoint is one forecast value of a living weather index.
type IndexPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// IndexSeries is one announcement of a living weather index, points ascending.
type IndexSeries struct {
	BaseTime time.Time    `json:"baseTime"`
	Points   []IndexPoint `json:"points"`
}

// At returns the value in effect at t: the latest point not after t that is
// less than step old.
func (s IndexSeries) At(t time.Time, step time.Duration) (float64, bool) {
	i := sort.Search(len(s.Points), func(i int) bool { return s.Points[i].Time.After(t) })
	if i == 0 {
		return 0, false
	}
	p := s.Points[i-1]
	if t.Sub(p.Time) >= step {
		return 0, false
	}
	return p.Value, true
}

// LifeIndexReport bundles the living weather indices published for an area.
// Seasonal indices the service does not publish right now are absent.
type LifeIndexReport struct {
	Area    KMAArea                `json:"area"`
	Indices map[string]IndexSeries `json:"indices"`
}

type cachedIndex struct {
	series  IndexSeries
	expires time.Time
}

// KMALifeIndex reads the KMA living weather index service.
type KMALifeIndex struct {
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	clock   clockwork.Clock

	mu    sync.Mutex
	cache map[string]cachedIndex
}

// NewKMALifeIndex returns a client talking to baseURL (the public
// LivingWthrIdxServiceV4 endpoint when empty).
func NewKMALifeIndex(client *http.Client, apiKey, baseURL string, opts ...Option) *KMALifeIndex {
	if baseURL == "" {
		baseURL = kmaLifeIndexURL
	}
	o := newOptions(opts)
	return &KMALifeIndex{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{Client: client, Backoff: defaultBackoff},
		circuit: newBreaker(kmaLifeIndexName),
		clock:   o.clock,
		cache:   make(map[string]cachedIndex),
	}
}

// Area returns the index area nearest to the coordinate.
func (l *KMALifeIndex) Area(lat, lon float64) (KMAArea, error) {
	best, dist := KMAArea{}, math.Inf(1)
	for _, a := range kmaAreas {
		if d := haversineKm(lat, lon, a.Lat, a.Lon); d < dist {
			best, dist = a, d
		}
	}
	if dist > maxAreaDistanceKm {
		return KMAArea{}, ErrOutsideCoverage
	}
	return best, nil
}

func areaByCode(areaNo string) (KMAArea, bool) {
	for _, a := range kmaAreas {
		if a.AreaNo == areaNo {
			return a, true
		}
	}
	return KMAArea{}, false
}

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const r = 6371.0
	rad := math.Pi / 180
	dlat := (lat2 - lat1) * rad
	dlon := (lon2 - lon1) * rad
	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dlon/2)*math.Sin(dlon/2)
	return 2 * r * math.Asin(math.Sqrt(a))
}

// lifeIndexBase returns the latest announcement (06:00 or 18:00 KST) at or
// before t.
func lifeIndexBase(t time.Time) time.Time {
	k := t.In(kmaZone)
	day := func(d time.Time, h int) time.Time {
		return time.Date(d.Year(), d.Month(), d.Day(), h, 0, 0, 0, kmaZone)
	}
	switch {
	case k.Hour() < 6:
		return day(k.AddDate(0, 0, -1), 18)
	case k.Hour() < 18:
		return day(k, 6)
	default:
		return day(k, 18)
	}
}

// Series returns the announcement of kind for areaNo made at base.
func (l *KMALifeIndex) Series(ctx context.Context, kind, areaNo string, base time.Time) (IndexSeries, error) {
	endpoint, ok := lifeIndexEndpoints[kind]
	if !ok {
		return IndexSeries{}, fmt.Errorf("%w: %q", errUnknownIndex, kind)
	}
	if l.apiKey == "" {
		return IndexSeries{}, fmt.Errorf("kma: %w", errMissingAPIKey)
	}
	stamp := base.In(kmaZone).Format("2006010215")
	key := kind + ":" + areaNo + ":" + stamp

	now := l.clock.Now()
	l.mu.Lock()
	if c, ok := l.cache[key]; ok && now.Before(c.expires) {
		l.mu.Unlock()
		return c.series, nil
	}
	l.mu.Unlock()

	var items []map[string]interface{}
	if err := kmaGet(ctx, l.httpCfg, l.circuit, l.baseURL, endpoint, l.apiKey, url.Values{
		"areaNo":    {areaNo},
		"time":      {stamp},
		"numOfRows": {"10"},
		"pageNo":    {"1"},
	}, &items); err != nil {
		return IndexSeries{}, err
	}
	if len(items) == 0 {
		return IndexSeries{}, errKMANoData
	}
	series, err := parseIndexItem(items[0])
	if err != nil {
		return IndexSeries{}, err
	}

	l.mu.Lock()
	for k, c := range l.cache {
		if !now.Before(c.expires) {
			delete(l.cache, k)
		}
	}
	l.cache[key] = cachedIndex{series: series, expires: now.Add(lifeIndexCacheTTL)}
	l.mu.Unlock()
	return series, nil
}

// parseIndexItem reads "date" and the hN offsets of one index item.
func parseIndexItem(item map[string]interface{}) (IndexSeries, error) {
	date := strings.TrimSpace(fmt.Sprint(item["date"]))
	base, err := time.ParseInLocation("2006010215", date, kmaZone)
	if err != nil {
		return IndexSeries{}, fmt.Errorf("parse index date %q: %w", date, err)
	}
	s := IndexSeries{BaseTime: base}
	for h := 0; h <= lifeIndexMaxOffset; h++ {
		raw, ok := item["h"+strconv.Itoa(h)]
		if !ok || raw == nil {
			continue
		}
		v := kmaFloat(fmt.Sprint(raw))
		if v == nil {
			continue
		}
		s.Points = append(s.Points, IndexPoint{Time: base.Add(time.Duration(h) * time.Hour), Value: *v})
	}
	if len(s.Points) == 0 {
		return IndexSeries{}, errKMANoData
	}
	return s, nil
}

// Report returns the current announcement of every index for loc, or for
// areaNo when it is set. It fails only when no index is available.
func (l *KMALifeIndex) Report(ctx context.Context, loc weather.Location, areaNo string) (LifeIndexReport, error) {
	var area KMAArea
	if areaNo != "" {
		a, ok := areaByCode(areaNo)
		if !ok {
			a = KMAArea{AreaNo: areaNo}
		}
		area = a
	} else {
		a, err := l.Area(loc.Lat, loc.Lon)
		if err != nil {
			return LifeIndexReport{}, err
		}
		area = a
	}

	base := lifeIndexBase(l.clock.Now())
	report := LifeIndexReport{Area: area, Indices: make(map[string]IndexSeries)}
	var errs []error
	for _, kind := range LifeIndexKinds {
		s, err := l.Series(ctx, kind, area.AreaNo, base)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", kind, err))
			continue
		}
		report.Indices[kind] = s
	}
	if len(report.Indices) == 0 {
		return LifeIndexReport{}, fmt.Errorf("%w: %w", weather.ErrUpstream, errors.Join(errs...))
	}
	return report, nil
}
