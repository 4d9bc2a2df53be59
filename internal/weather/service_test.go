package weather

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/eojeboda/internal/observability"
)

var testLoc = Location{City: "Seoul", Country: "KR", Lat: 37.566, Lon: 126.978}

type fakeProvider struct {
	name  string
	table ConditionTable
	obs   Observation
	err   error

	mu    sync.Mutex
	calls int
}

func (p *fakeProvider) Name() string               { return p.name }
func (p *fakeProvider) Conditions() ConditionTable { return p.table }

func (p *fakeProvider) FetchHourly(ctx context.Context, loc Location) (Observation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.obs, p.err
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeStore struct {
	mu   sync.Mutex
	data map[string][]Observation
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string][]Observation)}
}

func (s *fakeStore) SaveObservation(loc Location, obs Observation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[loc.Key()] = append(s.data[loc.Key()], obs)
}

func (s *fakeStore) GetLatest(loc Location) (Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.data[loc.Key()]
	if len(h) == 0 {
		return Observation{}, errors.New("not found")
	}
	return h[len(h)-1], nil
}

func (s *fakeStore) GetRange(loc Location, from, to time.Time) ([]Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Observation
	for _, o := range s.data[loc.Key()] {
		if !o.FetchedAt.Before(from) && !o.FetchedAt.After(to) {
			out = append(out, o)
		}
	}
	return out, nil
}

func newTestService(t *testing.T, clock clockwork.Clock, providers ...Provider) (*Service, *observability.Metrics) {
	t.Helper()
	m := observability.NewMetricsForTesting()
	svc := NewService(newFakeStore(), providers,
		WithClock(clock),
		WithMetrics(m),
		WithLogger(observability.DiscardLogger()),
	)
	return svc, m
}

func TestServiceCompare(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 14, 5, 0, 0, time.UTC))
	series := makeSeries(48)
	series.Temperature[23] = ptr(25)
	series.Temperature[47] = ptr(28)
	p := &fakeProvider{name: "openmeteo", table: OpenMeteoConditions, obs: Observation{
		Series:    series,
		Condition: ConditionSample{Code: 0, IsDay: true},
	}}
	svc, _ := newTestService(t, clock, p)

	report, err := svc.Compare(context.Background(), testLoc)
	require.NoError(t, err)
	assert.Equal(t, "openmeteo", report.Provider)
	assert.Equal(t, testLoc, report.Location)
	assert.Equal(t, clock.Now(), report.FetchedAt)
	assert.Equal(t, IconClearDay, report.Snapshot.IconKey)
	assert.Equal(t, IconClearDay.ImageURL(), report.IconURL)
	assert.Equal(t, 3.0, report.Snapshot.Temperature.Delta)
}

func TestServiceCachesWithinTTLAndHour(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 14, 52, 0, 0, time.UTC))
	p := &fakeProvider{name: "openmeteo", table: OpenMeteoConditions, obs: Observation{Series: makeSeries(48)}}
	svc, m := newTestService(t, clock, p)
	ctx := context.Background()

	_, err := svc.Snapshot(ctx, testLoc)
	require.NoError(t, err)
	clock.Advance(5 * time.Minute)
	_, err = svc.Snapshot(ctx, testLoc)
	require.NoError(t, err)
	assert.Equal(t, 1, p.callCount())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))

	// 14:57 -> 15:01 crosses the hour while still inside the TTL.
	clock.Advance(4 * time.Minute)
	_, err = svc.Snapshot(ctx, testLoc)
	require.NoError(t, err)
	assert.Equal(t, 2, p.callCount())

	// Past the TTL within the same hour.
	clock.Advance(11 * time.Minute)
	_, err = svc.Snapshot(ctx, testLoc)
	require.NoError(t, err)
	assert.Equal(t, 3, p.callCount())
	assert.Equal(t, 3.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
}

func TestServiceCacheFollowsLocalHour(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	series := makeSeries(48)
	for i := range series.Times {
		series.Times[i] = time.Date(2024, 4, 30, 10, 0, 0, 0, ist).Add(time.Duration(i) * time.Hour)
	}

	// 04:25 UTC is 09:55 in Kolkata.
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 4, 25, 0, 0, time.UTC))
	p := &fakeProvider{name: "openmeteo", table: OpenMeteoConditions, obs: Observation{Series: series}}
	svc, _ := newTestService(t, clock, p)
	ctx := context.Background()

	_, err := svc.Snapshot(ctx, testLoc)
	require.NoError(t, err)

	// 10:02 local, still 04:xx UTC and inside the TTL.
	clock.Advance(7 * time.Minute)
	_, err = svc.Snapshot(ctx, testLoc)
	require.NoError(t, err)
	assert.Equal(t, 2, p.callCount())

	clock.Advance(5 * time.Minute)
	_, err = svc.Snapshot(ctx, testLoc)
	require.NoError(t, err)
	assert.Equal(t, 2, p.callCount())
}

func TestServiceFallsBackToNextProvider(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC))
	failing := &fakeProvider{name: "openmeteo", table: OpenMeteoConditions, err: errors.New("boom")}
	backup := &fakeProvider{name: "weatherapi", table: WeatherAPIConditions, obs: Observation{
		Series:    makeSeries(30),
		Condition: ConditionSample{Code: 1000, IsDay: false},
	}}
	svc, m := newTestService(t, clock, failing, backup)

	report, err := svc.Compare(context.Background(), testLoc)
	require.NoError(t, err)
	assert.Equal(t, "weatherapi", report.Provider)
	// The backup's own vocabulary classifies the code.
	assert.Equal(t, IconClearNight, report.Snapshot.IconKey)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderRequests.WithLabelValues("openmeteo", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderRequests.WithLabelValues("weatherapi", "success")))
}

func TestServiceErrors(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC))

	t.Run("no providers", func(t *testing.T) {
		svc, _ := newTestService(t, clock)
		_, err := svc.Compare(context.Background(), testLoc)
		assert.ErrorIs(t, err, ErrNoProviders)
	})

	t.Run("all providers fail", func(t *testing.T) {
		cause := errors.New("timeout")
		svc, _ := newTestService(t, clock, &fakeProvider{name: "openmeteo", err: cause})
		_, err := svc.Compare(context.Background(), testLoc)
		assert.ErrorIs(t, err, ErrUpstream)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("short series", func(t *testing.T) {
		svc, m := newTestService(t, clock, &fakeProvider{name: "openmeteo", obs: Observation{Series: makeSeries(24)}})
		_, err := svc.Compare(context.Background(), testLoc)
		assert.ErrorIs(t, err, ErrInsufficientData)
		_, err = svc.Hourly(context.Background(), testLoc)
		assert.ErrorIs(t, err, ErrInsufficientData)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.DerivationErrors.WithLabelValues("snapshot")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.DerivationErrors.WithLabelValues("hourly")))
	})
}

func TestServiceConditionTableOverride(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC))
	p := &fakeProvider{name: "openmeteo", table: OpenMeteoConditions, obs: Observation{
		Series:    makeSeries(25),
		Condition: ConditionSample{Code: 96, IsDay: true},
	}}
	override := ConditionTable{
		Provider: "openmeteo",
		Buckets:  []ConditionBucket{{UpTo: 99, Day: IconThunderstorm}},
	}
	svc := NewService(newFakeStore(), []Provider{p}, WithClock(clock), WithConditionTable(override))

	snap, err := svc.Snapshot(context.Background(), testLoc)
	require.NoError(t, err)
	assert.Equal(t, IconThunderstorm, snap.IconKey)
}

func TestServiceHourlyAndExtremes(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC))
	p := &fakeProvider{name: "openmeteo", table: OpenMeteoConditions, obs: Observation{Series: makeSeries(48)}}
	svc, _ := newTestService(t, clock, p)
	ctx := context.Background()

	hourly, err := svc.Hourly(ctx, testLoc)
	require.NoError(t, err)
	assert.Equal(t, 24, hourly.Len())

	ext, err := svc.Extremes(ctx, testLoc)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", ext.Today.Date)
	assert.Equal(t, 1, p.callCount())
}

func TestServiceHistory(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC))
	p := &fakeProvider{name: "openmeteo", table: OpenMeteoConditions, obs: Observation{Series: makeSeries(48)}}
	svc, _ := newTestService(t, clock, p)
	ctx := context.Background()
	start := clock.Now()

	require.NoError(t, svc.FetchAndStore(ctx, testLoc))
	clock.Advance(20 * time.Minute)
	require.NoError(t, svc.FetchAndStore(ctx, testLoc))
	clock.Advance(time.Hour)
	p.obs = Observation{Series: makeSeries(49)}
	require.NoError(t, svc.FetchAndStore(ctx, testLoc))
	clock.Advance(time.Hour)
	p.obs = Observation{Series: makeSeries(10)}
	require.NoError(t, svc.FetchAndStore(ctx, testLoc))

	snaps, err := svc.History(testLoc, start, clock.Now())
	require.NoError(t, err)
	// Two fetches of the same series collapse, the short one is skipped.
	require.Len(t, snaps, 2)
	assert.True(t, snaps[0].ObservedAt.Before(snaps[1].ObservedAt))
}
