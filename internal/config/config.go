package config

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"github.com/i474232898/eojeboda/internal/weather"
)

type AppConfig struct {
	Port      string `env:"PORT,default=8080"`
	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`

	// Outbound provider calls.
	HTTPTimeout      time.Duration `env:"HTTP_TIMEOUT,default=10s"`
	OpenMeteoBaseURL string        `env:"OPEN_METEO_BASE_URL"`
	WeatherAPIKey    string        `env:"WEATHERAPI_API_KEY"`
	WeatherAPIURL    string        `env:"WEATHERAPI_BASE_URL"`
	KMAAPIKey        string        `env:"KMA_API_KEY"` // data.go.kr service key, decoded form
	KMABaseURL       string        `env:"KMA_BASE_URL"`
	KMALifeBaseURL   string        `env:"KMA_LIFE_BASE_URL"`
	GeocoderAPIKey   string        `env:"GEOCODER_API_KEY"`

	// Locations to keep warm, comma separated and index aligned.
	LocationCities    string `env:"WEATHER_LOCATION_CITY"`
	LocationCountries string `env:"WEATHER_LOCATION_COUNTRY"`
	LocationCoords    string `env:"WEATHER_LOCATION_COORDS"`

	// FetchInterval controls how often we fetch data for each location.
	FetchInterval time.Duration `env:"FETCH_INTERVAL,default=15m"`
	CacheTTL      time.Duration `env:"CACHE_TTL,default=10m"`

	// In-memory store retention.
	StoreMaxHistory int           `env:"STORE_MAX_HISTORY,default=96"` // 0 = unlimited
	StoreMaxAge     time.Duration `env:"STORE_MAX_AGE,default=48h"`    // 0 = unlimited

	ConditionTableFile string `env:"CONDITION_TABLE_FILE"`

	// Reminders.
	SubscriberDBPath string        `env:"SUBSCRIBER_DB_PATH,default=eojeboda.db"`
	ReminderInterval time.Duration `env:"REMINDER_INTERVAL,default=5m"`
	ReminderWindow   time.Duration `env:"REMINDER_WINDOW"` // defaults to REMINDER_INTERVAL
	PushBatchSize    int           `env:"PUSH_BATCH_SIZE,default=500"`
	KafkaBrokers     []string      `env:"KAFKA_BROKERS"`
	KafkaPushTopic   string        `env:"KAFKA_PUSH_TOPIC,default=push-notifications"`

	// Locations is derived from the WEATHER_LOCATION_* variables.
	Locations []LocationConfig
}

// LocationConfig is a configured location. Resolved is false when no
// coordinates were given and the city must be geocoded.
type LocationConfig struct {
	weather.Location
	Resolved bool
}

// Load reads .env (if present) and the environment.
func Load(ctx context.Context) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded", "error", err)
	}
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*AppConfig, error) {
	var cfg AppConfig
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	locs, err := parseLocations(cfg.LocationCities, cfg.LocationCountries, cfg.LocationCoords)
	if err != nil {
		return nil, err
	}
	cfg.Locations = locs
	return &cfg, nil
}

func (c *AppConfig) validate() error {
	positive := []struct {
		name string
		v    time.Duration
	}{
		{"HTTP_TIMEOUT", c.HTTPTimeout},
		{"FETCH_INTERVAL", c.FetchInterval},
		{"CACHE_TTL", c.CacheTTL},
		{"REMINDER_INTERVAL", c.ReminderInterval},
	}
	for _, p := range positive {
		if p.v <= 0 {
			return fmt.Errorf("invalid %s: must be positive, got %s", p.name, p.v)
		}
	}
	// A reminder run looks exactly one interval ahead.
	if c.ReminderWindow == 0 {
		c.ReminderWindow = c.ReminderInterval
	}
	if c.ReminderWindow != c.ReminderInterval {
		return fmt.Errorf("invalid REMINDER_WINDOW: must equal REMINDER_INTERVAL (%s), got %s", c.ReminderInterval, c.ReminderWindow)
	}
	if c.StoreMaxHistory < 0 {
		return fmt.Errorf("invalid STORE_MAX_HISTORY: %d", c.StoreMaxHistory)
	}
	if c.StoreMaxAge < 0 {
		return fmt.Errorf("invalid STORE_MAX_AGE: %s", c.StoreMaxAge)
	}
	if c.PushBatchSize <= 0 {
		return fmt.Errorf("invalid PUSH_BATCH_SIZE: %d", c.PushBatchSize)
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaPushTopic == "" {
		return fmt.Errorf("invalid KAFKA_PUSH_TOPIC: required when KAFKA_BROKERS is set")
	}
	return nil
}

// parseLocations pairs comma separated cities, countries and "lat:lon"
// coordinates. An empty coordinate entry leaves the location to be geocoded.
// Coordinates without any city are accepted as unlabeled locations.
func parseLocations(cities, countries, coords string) ([]LocationConfig, error) {
	cityList := splitList(cities)
	countryList := splitList(countries)
	coordList := splitList(coords)

	if len(cityList) == 0 {
		var out []LocationConfig
		for _, c := range coordList {
			loc, err := parseCoords(c)
			if err != nil {
				return nil, err
			}
			out = append(out, LocationConfig{Location: loc, Resolved: true})
		}
		return out, nil
	}

	if len(cityList) != len(countryList) {
		return nil, fmt.Errorf("number of cities and countries must be the same")
	}
	if len(coordList) > 0 && len(coordList) != len(cityList) {
		return nil, fmt.Errorf("invalid WEATHER_LOCATION_COORDS: expected %d entries, got %d", len(cityList), len(coordList))
	}

	out := make([]LocationConfig, 0, len(cityList))
	for i := range cityList {
		lc := LocationConfig{Location: weather.Location{City: cityList[i], Country: countryList[i]}}
		if len(coordList) > 0 && coordList[i] != "" {
			loc, err := parseCoords(coordList[i])
			if err != nil {
				return nil, err
			}
			lc.Lat, lc.Lon, lc.Resolved = loc.Lat, loc.Lon, true
		}
		out = append(out, lc)
	}
	return out, nil
}

func parseCoords(s string) (weather.Location, error) {
	latStr, lonStr, ok := strings.Cut(s, ":")
	if !ok {
		return weather.Location{}, fmt.Errorf("invalid WEATHER_LOCATION_COORDS entry %q: want lat:lon", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil || lat < -90 || lat > 90 {
		return weather.Location{}, fmt.Errorf("invalid WEATHER_LOCATION_COORDS latitude %q", latStr)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil || lon < -180 || lon > 180 {
		return weather.Location{}, fmt.Errorf("invalid WEATHER_LOCATION_COORDS longitude %q", lonStr)
	}
	return weather.Location{Lat: lat, Lon: lon}, nil
}

// splitList splits on commas and trims. Empty input yields nil, inner empty
// entries are kept so that positions stay aligned.
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
