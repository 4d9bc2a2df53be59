package notify

import (
	"context"
	"log/slog"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// Status is the reminder subsystem overview.
type Status struct {
	Subscribers  int             `json:"subscribers"`
	LastDispatch *DispatchResult `json:"lastDispatch,omitempty"`
}

// Service is the reminder API used by the HTTP layer and the scheduler.
type Service struct {
	repo       Repository
	dispatcher *Dispatcher
	logger     *slog.Logger
}

func NewService(repo Repository, dispatcher *Dispatcher, logger *slog.Logger) *Service {
	return &Service{repo: repo, dispatcher: dispatcher, logger: logger.With("component", "notify")}
}

// Register validates reg and upserts it by device uid.
func (s *Service) Register(ctx context.Context, reg Registration) (Subscriber, error) {
	if err := reg.Validate(); err != nil {
		return Subscriber{}, err
	}
	now := s.dispatcher.clock.Now().UTC()
	sub, err := s.repo.Upsert(ctx, Subscriber{Registration: reg, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		return Subscriber{}, err
	}
	s.logger.Info("subscriber registered", "device", reg.DeviceUID, "timezone", reg.Timezone, "hour", reg.Hour, "minute", reg.Minute)
	return sub, nil
}

func (s *Service) Unregister(ctx context.Context, deviceUID string) error {
	if err := s.repo.Delete(ctx, deviceUID); err != nil {
		return err
	}
	s.logger.Info("subscriber removed", "device", deviceUID)
	return nil
}

// History returns recent deliveries. limit is clamped to [1, MaxHistoryLimit];
// zero or negative means DefaultHistoryLimit.
func (s *Service) History(ctx context.Context, limit int) ([]Delivery, error) {
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}
	return s.repo.RecentDeliveries(ctx, limit)
}

func (s *Service) Status(ctx context.Context) (Status, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return Status{}, err
	}
	st := Status{Subscribers: n}
	if last, ok := s.dispatcher.LastResult(); ok {
		st.LastDispatch = &last
	}
	return st, nil
}

// Dispatch runs the reminder pass now.
func (s *Service) Dispatch(ctx context.Context) (DispatchResult, error) {
	return s.dispatcher.Run(ctx)
}
