package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/eojeboda/internal/observability"
)

// DefaultCacheTTL is how long an observation is served from the store.
const DefaultCacheTTL = 10 * time.Minute

// Service orchestrates providers, the observation store and derivation.
type Service struct {
	store       Store
	providers   []Provider
	normalizers map[string]*Normalizer
	overrides   map[string]ConditionTable

	cacheTTL time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// Option configures a Service.
type Option func(*Service)

func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) { s.cacheTTL = ttl }
}

func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithConditionTable replaces the condition table of the provider named in t.Provider.
func WithConditionTable(t ConditionTable) Option {
	return func(s *Service) { s.overrides[t.Provider] = t }
}

// NewService creates a new Service. Providers are tried in order.
func NewService(store Store, providers []Provider, opts ...Option) *Service {
	s := &Service{
		store:       store,
		providers:   providers,
		normalizers: make(map[string]*Normalizer),
		overrides:   make(map[string]ConditionTable),
		cacheTTL:    DefaultCacheTTL,
		clock:       clockwork.NewRealClock(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "weather")

	for _, p := range providers {
		table := p.Conditions()
		if t, ok := s.overrides[p.Name()]; ok {
			table = t
		}
		s.normalizers[p.Name()] = NewNormalizer(table)
	}
	return s
}

func (s *Service) normalizer(provider string) *Normalizer {
	if n, ok := s.normalizers[provider]; ok {
		return n
	}
	return defaultNormalizer
}

// Observe returns a cached observation for loc when it is younger than the
// cache TTL and from the current clock hour, otherwise it fetches a fresh one.
func (s *Service) Observe(ctx context.Context, loc Location) (Observation, error) {
	if obs, err := s.store.GetLatest(loc); err == nil && s.fresh(obs) {
		s.metrics.CacheResult(true)
		return obs, nil
	}
	s.metrics.CacheResult(false)
	return s.fetch(ctx, loc)
}

// fresh compares clock hours in the observation's own zone, so half-hour
// offsets roll over with the local hour rather than the UTC one.
func (s *Service) fresh(obs Observation) bool {
	now := s.clock.Now()
	age := now.Sub(obs.FetchedAt)
	if age < 0 || age >= s.cacheTTL {
		return false
	}
	zone := time.UTC
	if n := obs.Series.Len(); n > 0 {
		zone = obs.Series.Times[n-1].Location()
	}
	return startOfHour(now.In(zone)).Equal(startOfHour(obs.FetchedAt.In(zone)))
}

func startOfHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

// FetchAndStore bypasses the cache and stores a fresh observation for loc.
func (s *Service) FetchAndStore(ctx context.Context, loc Location) error {
	_, err := s.fetch(ctx, loc)
	return err
}

func (s *Service) fetch(ctx context.Context, loc Location) (Observation, error) {
	if len(s.providers) == 0 {
		s.logger.Error("no providers available", "location", loc.Key())
		return Observation{}, ErrNoProviders
	}

	var errs []error
	for _, p := range s.providers {
		start := s.clock.Now()
		obs, err := p.FetchHourly(ctx, loc)
		s.metrics.ObserveProvider(p.Name(), err, s.clock.Since(start))
		if err != nil {
			s.logger.Warn("provider fetch failed", "provider", p.Name(), "location", loc.Key(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			if ctx.Err() != nil {
				break
			}
			continue
		}

		obs.Location = loc
		obs.Provider = p.Name()
		obs.FetchedAt = s.clock.Now().UTC()
		s.store.SaveObservation(loc, obs)
		s.logger.Debug("observation stored", "provider", p.Name(), "location", loc.Key(), "hours", obs.Series.Len())
		return obs, nil
	}
	return Observation{}, fmt.Errorf("%w: %w", ErrUpstream, errors.Join(errs...))
}

// Snapshot derives the today-vs-yesterday snapshot for loc.
func (s *Service) Snapshot(ctx context.Context, loc Location) (WeatherSnapshot, error) {
	obs, err := s.Observe(ctx, loc)
	if err != nil {
		return WeatherSnapshot{}, err
	}
	snap, err := s.normalizer(obs.Provider).DeriveSnapshot(obs.Series, obs.Condition)
	if err != nil {
		s.metrics.DerivationFailed("snapshot")
		return WeatherSnapshot{}, err
	}
	return snap, nil
}

// Compare returns the snapshot for loc together with its source and icon image.
func (s *Service) Compare(ctx context.Context, loc Location) (Report, error) {
	obs, err := s.Observe(ctx, loc)
	if err != nil {
		return Report{}, err
	}
	snap, err := s.normalizer(obs.Provider).DeriveSnapshot(obs.Series, obs.Condition)
	if err != nil {
		s.metrics.DerivationFailed("snapshot")
		return Report{}, err
	}
	return Report{
		Location:  obs.Location,
		Provider:  obs.Provider,
		FetchedAt: obs.FetchedAt,
		IconURL:   snap.IconKey.ImageURL(),
		Snapshot:  snap,
	}, nil
}

// Hourly returns the hourly comparison series for loc. An empty series is
// reported as ErrInsufficientData.
func (s *Service) Hourly(ctx context.Context, loc Location) (*HourlyComparisonSeries, error) {
	obs, err := s.Observe(ctx, loc)
	if err != nil {
		return nil, err
	}
	series := DeriveHourlyComparisonSeries(obs.Series)
	if series.Len() == 0 {
		s.metrics.DerivationFailed("hourly")
		return nil, &InsufficientDataError{Have: obs.Series.Len(), Need: MinSnapshotLength}
	}
	return series, nil
}

// Extremes compares today's temperature range with yesterday's for loc.
func (s *Service) Extremes(ctx context.Context, loc Location) (Extremes, error) {
	obs, err := s.Observe(ctx, loc)
	if err != nil {
		return Extremes{}, err
	}
	ext, err := s.normalizer(obs.Provider).DeriveExtremes(obs.Series)
	if err != nil {
		s.metrics.DerivationFailed("extremes")
		return Extremes{}, err
	}
	return ext, nil
}

// History derives a snapshot from every stored observation of loc fetched
// between from and to. Observations that cannot be derived are skipped, and
// repeated fetches of the same hour collapse into one snapshot.
func (s *Service) History(loc Location, from, to time.Time) ([]WeatherSnapshot, error) {
	observations, err := s.store.GetRange(loc, from, to)
	if err != nil {
		return nil, err
	}

	var (
		out     []WeatherSnapshot
		lastErr error
	)
	for _, obs := range observations {
		snap, err := s.normalizer(obs.Provider).DeriveSnapshot(obs.Series, obs.Condition)
		if err != nil {
			lastErr = err
			continue
		}
		if n := len(out); n > 0 && out[n-1].ObservedAt.Equal(snap.ObservedAt) {
			out[n-1] = snap
			continue
		}
		out = append(out, snap)
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}
