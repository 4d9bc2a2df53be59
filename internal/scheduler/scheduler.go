package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/eojeboda/internal/notify"
	"github.com/i474232898/eojeboda/internal/weather"
)

const (
	fetchTimeout    = 30 * time.Second
	dispatchTimeout = 2 * time.Minute
)

// Warmer refreshes stored observations.
type Warmer interface {
	FetchAndStore(ctx context.Context, loc weather.Location) error
}

// Reminder runs one reminder dispatch pass.
type Reminder interface {
	Dispatch(ctx context.Context) (notify.DispatchResult, error)
}

// Config holds the job intervals. A zero interval disables the job.
type Config struct {
	FetchInterval    time.Duration
	ReminderInterval time.Duration
}

// Scheduler periodically warms the observation cache for configured
// locations and runs the reminder dispatcher.
type Scheduler struct {
	scheduler *gocron.Scheduler
	warmer    Warmer
	reminder  Reminder
	locations []weather.Location
	cfg       Config
	logger    *slog.Logger
}

// New creates a new Scheduler. reminder may be nil.
func New(cfg Config, locations []weather.Location, warmer Warmer, reminder Reminder, logger *slog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	// A slow run is never stacked on top of itself.
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		warmer:    warmer,
		reminder:  reminder,
		locations: locations,
		cfg:       cfg,
		logger:    logger.With("component", "scheduler"),
	}
}

// Start schedules the jobs and starts the underlying scheduler. Each job
// runs once immediately.
func (s *Scheduler) Start() error {
	if len(s.locations) == 0 || s.cfg.FetchInterval <= 0 {
		s.logger.Info("no locations configured; warm job disabled")
	} else if _, err := s.scheduler.Every(s.cfg.FetchInterval).Tag("warm").Do(s.warm); err != nil {
		return err
	}

	if s.reminder == nil || s.cfg.ReminderInterval <= 0 {
		s.logger.Info("reminder job disabled")
	} else if _, err := s.scheduler.Every(s.cfg.ReminderInterval).Tag("reminder").Do(s.remind); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) warm() {
	s.logger.Debug("running warm job", "locations", len(s.locations))
	start := time.Now()

	var wg sync.WaitGroup
	for _, loc := range s.locations {
		wg.Add(1)
		go func(loc weather.Location) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
			defer cancel()

			if err := s.warmer.FetchAndStore(ctx, loc); err != nil {
				s.logger.Warn("fetch failed", "location", loc.Key(), "city", loc.City, "error", err)
			}
		}(loc)
	}
	wg.Wait()
	s.logger.Info("warm job completed", "locations", len(s.locations), "took", time.Since(start))
}

func (s *Scheduler) remind() {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	if _, err := s.reminder.Dispatch(ctx); err != nil {
		s.logger.Error("reminder dispatch failed", "error", err)
	}
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
