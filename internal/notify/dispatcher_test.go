package notify

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
	"github.com/i474232898/eojeboda/internal/weather"
)

type fakeComparer struct {
	mu      sync.Mutex
	reports map[string]weather.Report
	calls   map[string]int
}

func newFakeComparer() *fakeComparer {
	return &fakeComparer{reports: make(map[string]weather.Report), calls: make(map[string]int)}
}

func (c *fakeComparer) Compare(_ context.Context, loc weather.Location) (weather.Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[loc.Key()]++
	r, ok := c.reports[loc.Key()]
	if !ok {
		return weather.Report{}, weather.ErrUpstream
	}
	return r, nil
}

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]PushMessage
	err     error
}

func (p *fakePublisher) Publish(_ context.Context, msgs []PushMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, append([]PushMessage(nil), msgs...))
	return p.err
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.batches {
		n += len(b)
	}
	return n
}

var (
	seoulLoc   = weather.Location{Lat: 37.566, Lon: 126.978}
	newYorkLoc = weather.Location{Lat: 40.713, Lon: -74.006}
)

func addSub(t *testing.T, repo Repository, uid, tz string, loc weather.Location, hour, minute int) {
	t.Helper()
	_, err := repo.Upsert(context.Background(), Subscriber{Registration: Registration{
		DeviceUID: uid, PushToken: "tok-" + uid,
		Lat: loc.Lat, Lon: loc.Lon, Timezone: tz, Hour: hour, Minute: minute,
	}})
	require.NoError(t, err)
}

// 22:00 UTC is 07:00 the next day in Seoul and 18:00 in New York (EDT).
var dispatchNow = time.Date(2024, 5, 1, 22, 0, 0, 0, time.UTC)

func warmReport() weather.Report {
	return weather.Report{
		Provider: "openmeteo",
		Snapshot: weather.WeatherSnapshot{
			IconKey:     weather.IconClearDay,
			Temperature: weather.MetricComparison{Current: 28, SameHourYesterday: 25, Delta: 3},
		},
	}
}

func TestDispatcherRun(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	addSub(t, repo, "a", "Asia/Seoul", seoulLoc, 7, 0)
	addSub(t, repo, "b", "Asia/Seoul", seoulLoc, 7, 3)
	addSub(t, repo, "c", "Asia/Seoul", seoulLoc, 8, 0)
	addSub(t, repo, "d", "Bogus/Zone", seoulLoc, 7, 0)
	addSub(t, repo, "e", "America/New_York", newYorkLoc, 18, 0)

	comparer := newFakeComparer()
	comparer.reports[seoulLoc.Key()] = warmReport()
	pub := &fakePublisher{}
	m := observability.NewMetricsForTesting()
	d := NewDispatcher(repo, comparer, pub,
		WithClock(clockwork.NewFakeClockAt(dispatchNow)),
		WithLogger(observability.DiscardLogger()),
		WithMetrics(m),
	)

	_, ok := d.LastResult()
	assert.False(t, ok)

	res, err := d.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Subscribers)
	assert.Equal(t, 3, res.Due)
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Skipped)

	// Subscribers sharing a location share one comparison.
	assert.Equal(t, 1, comparer.calls[seoulLoc.Key()])
	assert.Equal(t, 1, comparer.calls[newYorkLoc.Key()])

	require.Len(t, pub.batches, 1)
	assert.Equal(t, "오늘은(28.0°C), 어제보다 살짝더 덥네요.(+3.0°C)", pub.batches[0][0].Body)

	deliveries, err := repo.RecentDeliveries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, deliveries, 3)
	statuses := map[string]string{}
	for _, del := range deliveries {
		statuses[del.DeviceUID] = del.Status
	}
	assert.Equal(t, map[string]string{"a": StatusSent, "b": StatusSent, "e": StatusFailed}, statuses)

	last, ok := d.LastResult()
	require.True(t, ok)
	assert.Equal(t, res, last)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.NotificationsSent))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsFailed))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.Subscribers))
}

func TestDispatcherBatches(t *testing.T) {
	repo := newTestRepo(t)
	for _, uid := range []string{"a", "b", "c"} {
		addSub(t, repo, uid, "Asia/Seoul", seoulLoc, 7, 0)
	}
	comparer := newFakeComparer()
	comparer.reports[seoulLoc.Key()] = warmReport()
	pub := &fakePublisher{}
	d := NewDispatcher(repo, comparer, pub,
		WithClock(clockwork.NewFakeClockAt(dispatchNow)),
		WithLogger(observability.DiscardLogger()),
		WithBatchSize(2),
	)

	res, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Sent)
	require.Len(t, pub.batches, 2)
	assert.Len(t, pub.batches[0], 2)
	assert.Len(t, pub.batches[1], 1)
	assert.Equal(t, 3, pub.published())
}

func TestDispatcherPublishFailures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantSent   int
		wantFailed int
	}{
		{"whole batch", errors.New("broker down"), 0, 2},
		{"partial", &PartialError{Errs: []error{nil, errors.New("too large")}}, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newTestRepo(t)
			addSub(t, repo, "a", "Asia/Seoul", seoulLoc, 7, 0)
			addSub(t, repo, "b", "Asia/Seoul", seoulLoc, 7, 0)
			comparer := newFakeComparer()
			comparer.reports[seoulLoc.Key()] = warmReport()
			d := NewDispatcher(repo, comparer, &fakePublisher{err: tt.err},
				WithClock(clockwork.NewFakeClockAt(dispatchNow)),
				WithLogger(observability.DiscardLogger()),
			)

			res, err := d.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.wantSent, res.Sent)
			assert.Equal(t, tt.wantFailed, res.Failed)

			deliveries, err := repo.RecentDeliveries(context.Background(), 10)
			require.NoError(t, err)
			failed := 0
			for _, del := range deliveries {
				if del.Status == StatusFailed {
					failed++
					assert.NotEmpty(t, del.Error)
				}
			}
			assert.Equal(t, tt.wantFailed, failed)
		})
	}
}

func sentTo(pub *fakePublisher) map[string]int {
	pub.mu.Lock()
	defer pub.mu.Unlock()
	out := make(map[string]int)
	for _, b := range pub.batches {
		for _, m := range b {
			out[m.DeviceUID]++
		}
	}
	return out
}

func TestDispatcherDriftingRunsCoverEveryMinute(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	addSub(t, repo, "early", "UTC", seoulLoc, 8, 2)
	addSub(t, repo, "late", "UTC", seoulLoc, 8, 7)
	comparer := newFakeComparer()
	comparer.reports[seoulLoc.Key()] = warmReport()
	pub := &fakePublisher{}
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 8, 2, 59, 900_000_000, time.UTC))
	d := NewDispatcher(repo, comparer, pub,
		WithClock(clock),
		WithLogger(observability.DiscardLogger()),
	)

	res, err := d.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, time.Date(2024, 5, 1, 8, 2, 0, 0, time.UTC), res.WindowStart)
	assert.Equal(t, time.Date(2024, 5, 1, 8, 7, 0, 0, time.UTC), res.WindowEnd)

	// The next run starts a little late, past the 08:07 minute boundary.
	clock.Advance(5*time.Minute + 200*time.Millisecond)
	res, err = d.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, time.Date(2024, 5, 1, 8, 7, 0, 0, time.UTC), res.WindowStart)
	assert.Equal(t, time.Date(2024, 5, 1, 8, 13, 0, 0, time.UTC), res.WindowEnd)

	clock.Advance(5 * time.Minute)
	res, err = d.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Due)

	assert.Equal(t, map[string]int{"early": 1, "late": 1}, sentTo(pub))
}

func TestDispatcherWideWindowSendsOnce(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	addSub(t, repo, "a", "UTC", seoulLoc, 8, 7)
	comparer := newFakeComparer()
	comparer.reports[seoulLoc.Key()] = warmReport()
	pub := &fakePublisher{}
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	d := NewDispatcher(repo, comparer, pub,
		WithClock(clock),
		WithWindow(10*time.Minute),
		WithLogger(observability.DiscardLogger()),
	)

	for i := 0; i < 3; i++ {
		_, err := d.Run(ctx)
		require.NoError(t, err)
		clock.Advance(5 * time.Minute)
	}
	assert.Equal(t, map[string]int{"a": 1}, sentTo(pub))
}

func TestDispatcherCatchUpIsBounded(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	addSub(t, repo, "missed", "UTC", seoulLoc, 8, 30)
	addSub(t, repo, "recent", "UTC", seoulLoc, 9, 45)
	comparer := newFakeComparer()
	comparer.reports[seoulLoc.Key()] = warmReport()
	pub := &fakePublisher{}
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	d := NewDispatcher(repo, comparer, pub,
		WithClock(clock),
		WithLogger(observability.DiscardLogger()),
	)

	_, err := d.Run(ctx)
	require.NoError(t, err)

	// Two hours without a run: only the last hour is caught up.
	clock.Advance(2 * time.Hour)
	res, err := d.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), res.WindowStart)
	assert.Equal(t, map[string]int{"recent": 1}, sentTo(pub))
}
