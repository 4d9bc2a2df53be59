package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/i474232898/eojeboda/internal/observability"
	"github.com/i474232898/eojeboda/internal/weather"
)

const (
	DefaultWindow    = 5 * time.Minute
	DefaultBatchSize = 500

	// MaxCatchUp bounds how far back a run reaches for alarms missed while
	// the service was down or a run failed.
	MaxCatchUp = time.Hour
)

// Comparer yields the today-vs-yesterday report for a location.
type Comparer interface {
	Compare(ctx context.Context, loc weather.Location) (weather.Report, error)
}

// DispatchResult summarises one reminder run. Alarms in [WindowStart,
// WindowEnd) were considered.
type DispatchResult struct {
	StartedAt   time.Time     `json:"startedAt"`
	WindowStart time.Time     `json:"windowStart"`
	WindowEnd   time.Time     `json:"windowEnd"`
	Duration    time.Duration `json:"duration"`
	Subscribers int           `json:"subscribers"`
	Due         int           `json:"due"`
	Sent        int           `json:"sent"`
	Failed      int           `json:"failed"`
	Skipped     int           `json:"skipped"`
}

// Dispatcher sends the reminder to every subscriber whose alarm is due.
type Dispatcher struct {
	repo      Repository
	weather   Comparer
	publisher Publisher

	lookahead time.Duration
	batchSize int
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics

	runMu sync.Mutex
	// covered is where the previous run's window ended; guarded by runMu.
	covered time.Time

	mu   sync.RWMutex
	last *DispatchResult
}

type DispatcherOption func(*Dispatcher)

func WithWindow(d time.Duration) DispatcherOption {
	return func(x *Dispatcher) {
		if d > 0 {
			x.lookahead = d
		}
	}
}

func WithBatchSize(n int) DispatcherOption {
	return func(x *Dispatcher) {
		if n > 0 {
			x.batchSize = n
		}
	}
}

func WithClock(c clockwork.Clock) DispatcherOption {
	return func(x *Dispatcher) { x.clock = c }
}

func WithLogger(l *slog.Logger) DispatcherOption {
	return func(x *Dispatcher) { x.logger = l }
}

func WithMetrics(m *observability.Metrics) DispatcherOption {
	return func(x *Dispatcher) { x.metrics = m }
}

func NewDispatcher(repo Repository, comparer Comparer, publisher Publisher, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		repo:      repo,
		weather:   comparer,
		publisher: publisher,
		lookahead: DefaultWindow,
		batchSize: DefaultBatchSize,
		clock:     clockwork.NewRealClock(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "dispatcher")
	return d
}

// window returns the alarm range for a run starting at now. It picks up where
// the previous run stopped, so drifting run times neither skip nor repeat a
// minute.
func (d *Dispatcher) window(now time.Time) (from, to time.Time) {
	from = now.Truncate(time.Minute)
	to = from.Add(d.lookahead)
	if d.covered.IsZero() {
		return from, to
	}
	start := d.covered
	if floor := from.Add(-MaxCatchUp); start.Before(floor) {
		start = floor
	}
	if start.After(to) {
		start = to
	}
	return start, to
}

type pending struct {
	msg      PushMessage
	delivery Delivery
}

// Run performs one reminder pass. Runs never overlap.
func (d *Dispatcher) Run(ctx context.Context) (DispatchResult, error) {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	now := d.clock.Now()
	from, to := d.window(now)
	res := DispatchResult{StartedAt: now.UTC(), WindowStart: from.UTC(), WindowEnd: to.UTC()}

	subs, err := d.repo.List(ctx)
	if err != nil {
		return res, fmt.Errorf("list subscribers: %w", err)
	}
	res.Subscribers = len(subs)
	d.covered = to

	// One comparison per location per run.
	type outcome struct {
		report weather.Report
		err    error
	}
	seen := make(map[string]outcome)
	compare := func(loc weather.Location) (weather.Report, error) {
		if o, ok := seen[loc.Key()]; ok {
			return o.report, o.err
		}
		r, err := d.weather.Compare(ctx, loc)
		seen[loc.Key()] = outcome{report: r, err: err}
		return r, err
	}
	var (
		batch      []pending
		deliveries []Delivery
	)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		sent, failed := d.publish(ctx, batch)
		res.Sent += sent
		res.Failed += failed
		for _, p := range batch {
			deliveries = append(deliveries, p.delivery)
		}
		batch = batch[:0]
	}

	for _, sub := range subs {
		due, err := sub.DueBetween(from, to)
		if err != nil {
			d.logger.Error("skipping subscriber", "device", sub.DeviceUID, "error", err)
			res.Skipped++
			continue
		}
		if !due {
			continue
		}
		res.Due++

		loc := weather.Location{Lat: sub.Lat, Lon: sub.Lon}
		report, err := compare(loc)
		if err != nil {
			d.logger.Warn("comparison unavailable", "device", sub.DeviceUID, "location", loc.Key(), "error", err)
			res.Failed++
			deliveries = append(deliveries, Delivery{
				ID:        uuid.NewString(),
				DeviceUID: sub.DeviceUID,
				Title:     MessageTitle,
				Status:    StatusFailed,
				Error:     err.Error(),
				SentAt:    now.UTC(),
			})
			continue
		}

		msg := BuildMessage(sub, report, now)
		batch = append(batch, pending{msg: msg, delivery: Delivery{
			ID:        msg.ID,
			DeviceUID: sub.DeviceUID,
			Title:     msg.Title,
			Body:      msg.Body,
			Status:    StatusSent,
			SentAt:    now.UTC(),
		}})
		if len(batch) >= d.batchSize {
			flush()
		}
	}
	flush()

	if err := d.repo.RecordDeliveries(ctx, deliveries); err != nil {
		d.logger.Error("record deliveries failed", "error", err)
	}

	res.Duration = d.clock.Since(now)
	d.metrics.Dispatched(res.Sent, res.Failed, res.Subscribers, res.Duration)
	d.logger.Info("dispatch finished",
		"subscribers", res.Subscribers, "due", res.Due,
		"sent", res.Sent, "failed", res.Failed, "skipped", res.Skipped)

	d.mu.Lock()
	r := res
	d.last = &r
	d.mu.Unlock()
	return res, nil
}

// publish sends one batch and marks the deliveries in it.
func (d *Dispatcher) publish(ctx context.Context, batch []pending) (sent, failed int) {
	msgs := make([]PushMessage, len(batch))
	for i, p := range batch {
		msgs[i] = p.msg
	}

	err := d.publisher.Publish(ctx, msgs)
	if err == nil {
		return len(batch), 0
	}

	var partial *PartialError
	if errors.As(err, &partial) && len(partial.Errs) == len(batch) {
		for i, e := range partial.Errs {
			if e != nil {
				batch[i].delivery.Status = StatusFailed
				batch[i].delivery.Error = e.Error()
				failed++
			}
		}
		return len(batch) - failed, failed
	}

	d.logger.Error("publish failed", "batch", len(batch), "error", err)
	for i := range batch {
		batch[i].delivery.Status = StatusFailed
		batch[i].delivery.Error = err.Error()
	}
	return 0, len(batch)
}

// LastResult returns the result of the most recent run.
func (d *Dispatcher) LastResult() (DispatchResult, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.last == nil {
		return DispatchResult{}, false
	}
	return *d.last, true
}
