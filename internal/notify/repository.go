package notify

import (
	"context"
	"errors"
	"time"
)

var (
	ErrSubscriberNotFound  = errors.New("subscriber not found")
	ErrInvalidRegistration = errors.New("invalid registration")
)

// Delivery statuses.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Delivery is one attempted reminder.
type Delivery struct {
	ID        string    `json:"id"`
	DeviceUID string    `json:"deviceUid"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	SentAt    time.Time `json:"sentAt"`
}

// Repository persists subscribers and the delivery log.
type Repository interface {
	Upsert(ctx context.Context, sub Subscriber) (Subscriber, error)
	Delete(ctx context.Context, deviceUID string) error
	Get(ctx context.Context, deviceUID string) (Subscriber, error)
	List(ctx context.Context) ([]Subscriber, error)
	Count(ctx context.Context) (int, error)
	RecordDeliveries(ctx context.Context, deliveries []Delivery) error
	RecentDeliveries(ctx context.Context, limit int) ([]Delivery, error)
	Close() error
}
