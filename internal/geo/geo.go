package geo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/eojeboda/internal/config"
	"github.com/i474232898/eojeboda/internal/weather"
)

var (
	ErrNoAPIKey = errors.New("geocoder api key is not configured")
	ErrNotFound = errors.New("location not found")
)

// Geocoder turns a city and country into coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, city, country string) (lat, lon float64, err error)
}

// GoogleGeocoder resolves names through the Google Geocoding API.
type GoogleGeocoder struct {
	mu sync.Mutex
}

// NewGoogleGeocoder configures the geocoder package with apiKey.
func NewGoogleGeocoder(apiKey string) (*GoogleGeocoder, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrNoAPIKey
	}
	geocoder.ApiKey = apiKey
	return &GoogleGeocoder{}, nil
}

func (g *GoogleGeocoder) Geocode(ctx context.Context, city, country string) (float64, float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	// The geocoder package keeps its key in a global.
	g.mu.Lock()
	defer g.mu.Unlock()

	loc, err := geocoder.Geocoding(geocoder.Address{City: city, Country: country})
	if err != nil {
		return 0, 0, fmt.Errorf("geocode %s, %s: %w", city, country, err)
	}
	if loc.Latitude == 0 && loc.Longitude == 0 {
		return 0, 0, fmt.Errorf("geocode %s, %s: %w", city, country, ErrNotFound)
	}
	return loc.Latitude, loc.Longitude, nil
}

// CachedGeocoder memoises successful lookups.
type CachedGeocoder struct {
	inner Geocoder
	mu    sync.Mutex
	cache map[string][2]float64
}

func NewCachedGeocoder(inner Geocoder) *CachedGeocoder {
	return &CachedGeocoder{inner: inner, cache: make(map[string][2]float64)}
}

func (c *CachedGeocoder) Geocode(ctx context.Context, city, country string) (float64, float64, error) {
	key := strings.ToLower(city + "|" + country)
	c.mu.Lock()
	v, ok := c.cache[key]
	c.mu.Unlock()
	if ok {
		return v[0], v[1], nil
	}

	lat, lon, err := c.inner.Geocode(ctx, city, country)
	if err != nil {
		return 0, 0, err
	}
	c.mu.Lock()
	c.cache[key] = [2]float64{lat, lon}
	c.mu.Unlock()
	return lat, lon, nil
}

// ResolveLocations returns the configured locations with coordinates.
// Unresolved entries are geocoded; when g is nil or the lookup fails they
// are skipped with a warning.
func ResolveLocations(ctx context.Context, locs []config.LocationConfig, g Geocoder, logger *slog.Logger) []weather.Location {
	out := make([]weather.Location, 0, len(locs))
	for _, lc := range locs {
		if lc.Resolved {
			out = append(out, lc.Location)
			continue
		}
		if g == nil {
			logger.Warn("skipping location without coordinates; set GEOCODER_API_KEY or WEATHER_LOCATION_COORDS",
				"city", lc.City, "country", lc.Country)
			continue
		}
		lat, lon, err := g.Geocode(ctx, lc.City, lc.Country)
		if err != nil {
			logger.Warn("skipping location", "city", lc.City, "country", lc.Country, "error", err)
			continue
		}
		loc := lc.Location
		loc.Lat, loc.Lon = lat, lon
		logger.Info("location resolved", "city", loc.City, "country", loc.Country, "key", loc.Key())
		out = append(out, loc)
	}
	return out
}
