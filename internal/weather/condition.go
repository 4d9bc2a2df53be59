package weather

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// IconKey is a normalized weather icon category.
type IconKey string

const (
	IconUnknown      IconKey = "unknown"
	IconClearDay     IconKey = "clear_day"
	IconClearNight   IconKey = "clear_night"
	IconPartlyCloudy IconKey = "partly_cloudy"
	IconOvercast     IconKey = "overcast"
	IconDrizzle      IconKey = "drizzle"
	IconRain         IconKey = "rain"
	IconSnow         IconKey = "snow"
	IconThunderstorm IconKey = "thunderstorm"
)

const twemojiBase = "https://cdn.jsdelivr.net/gh/twitter/twemoji@14.0.2/assets/72x72/"

var iconImages = map[IconKey]string{
	IconClearDay:     "2600",
	IconClearNight:   "1f319",
	IconPartlyCloudy: "26c5",
	IconOvercast:     "2601",
	IconDrizzle:      "1f326",
	IconRain:         "1f327",
	IconSnow:         "1f328",
	IconThunderstorm: "26c8",
}

// ImageURL returns the twemoji PNG for the key. Unknown keys get the cloud image.
func (k IconKey) ImageURL() string {
	cp, ok := iconImages[k]
	if !ok {
		cp = iconImages[IconOvercast]
	}
	return twemojiBase + cp + ".png"
}

// ConditionBucket claims every code above the previous bucket's bound up to
// and including UpTo.
type ConditionBucket struct {
	UpTo  int     `yaml:"upTo" json:"upTo"`
	Day   IconKey `yaml:"day" json:"day"`
	Night IconKey `yaml:"night" json:"night"`
}

// ConditionTable maps a provider's condition-code vocabulary to icon keys.
// Buckets must be sorted by strictly ascending UpTo; the first bucket whose
// bound is >= code wins. Codes below Min or above the last bound map to Fallback.
type ConditionTable struct {
	Provider string            `yaml:"provider" json:"provider"`
	Min      int               `yaml:"min" json:"min"`
	Buckets  []ConditionBucket `yaml:"buckets" json:"buckets"`
	Fallback IconKey           `yaml:"fallback" json:"fallback"`
}

// Classify returns the icon key for code. It never fails.
func (t ConditionTable) Classify(code int, isDay bool) IconKey {
	fallback := t.Fallback
	if fallback == "" {
		fallback = IconUnknown
	}
	if code < t.Min || len(t.Buckets) == 0 {
		return fallback
	}

	i := sort.Search(len(t.Buckets), func(i int) bool {
		return t.Buckets[i].UpTo >= code
	})
	if i == len(t.Buckets) {
		return fallback
	}

	b := t.Buckets[i]
	key := b.Day
	if !isDay && b.Night != "" {
		key = b.Night
	}
	if key == "" {
		return fallback
	}
	return key
}

// Validate checks the bucket ordering invariant.
func (t ConditionTable) Validate() error {
	if len(t.Buckets) == 0 {
		return errors.New("condition table has no buckets")
	}
	prev := t.Min - 1
	for i, b := range t.Buckets {
		if b.UpTo <= prev {
			return fmt.Errorf("bucket %d: upper bound %d must be greater than %d", i, b.UpTo, prev)
		}
		if b.Day == "" {
			return fmt.Errorf("bucket %d: day icon is required", i)
		}
		prev = b.UpTo
	}
	return nil
}

func bucket(upTo int, day, night IconKey) ConditionBucket {
	return ConditionBucket{UpTo: upTo, Day: day, Night: night}
}

func flat(upTo int, k IconKey) ConditionBucket {
	return bucket(upTo, k, k)
}

// OpenMeteoConditions classifies WMO weather interpretation codes as used by
// Open-Meteo. 96 and 99 (thunderstorm with hail) sit above the last bound and
// fall back.
var OpenMeteoConditions = ConditionTable{
	Provider: "openmeteo",
	Min:      0,
	Buckets: []ConditionBucket{
		bucket(0, IconClearDay, IconClearNight),
		flat(2, IconPartlyCloudy),
		flat(48, IconOvercast), // 3 overcast, 45/48 fog
		flat(57, IconDrizzle),
		flat(67, IconRain),
		flat(77, IconSnow),
		flat(82, IconRain), // rain showers
		flat(86, IconSnow), // snow showers
		flat(95, IconThunderstorm),
	},
	Fallback: IconUnknown,
}

// WeatherAPIConditions classifies WeatherAPI.com condition codes (1000-1282).
var WeatherAPIConditions = ConditionTable{
	Provider: "weatherapi",
	Min:      1000,
	Buckets: []ConditionBucket{
		bucket(1000, IconClearDay, IconClearNight),
		flat(1003, IconPartlyCloudy),
		flat(1030, IconOvercast), // cloudy, overcast, mist
		flat(1063, IconRain),     // patchy rain possible
		flat(1072, IconSnow),     // patchy snow, sleet, freezing drizzle
		flat(1087, IconThunderstorm),
		flat(1117, IconSnow),     // blowing snow, blizzard
		flat(1147, IconOvercast), // fog
		flat(1171, IconDrizzle),
		flat(1201, IconRain),
		flat(1237, IconSnow),
		flat(1246, IconRain), // showers
		flat(1264, IconSnow),
		flat(1282, IconThunderstorm),
	},
	Fallback: IconUnknown,
}

// KMAConditions classifies the KMA short-term forecast sky and precipitation
// categories, folded into one code: the SKY value (1 clear, 3 mostly cloudy,
// 4 overcast) when PTY is 0, otherwise PTY*10.
var KMAConditions = ConditionTable{
	Provider: "kma",
	Min:      1,
	Buckets: []ConditionBucket{
		bucket(1, IconClearDay, IconClearNight),
		flat(3, IconPartlyCloudy),
		flat(4, IconOvercast),
		flat(10, IconRain), // rain
		flat(20, IconSnow), // rain and snow
		flat(30, IconSnow),
		flat(40, IconRain), // showers
	},
	Fallback: IconUnknown,
}

// LoadConditionTable reads a YAML condition table from path.
func LoadConditionTable(path string) (ConditionTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ConditionTable{}, fmt.Errorf("read condition table: %w", err)
	}
	var t ConditionTable
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return ConditionTable{}, fmt.Errorf("parse condition table: %w", err)
	}
	if t.Provider == "" {
		return ConditionTable{}, errors.New("condition table: provider is required")
	}
	if err := t.Validate(); err != nil {
		return ConditionTable{}, fmt.Errorf("condition table %s: %w", t.Provider, err)
	}
	return t, nil
}
