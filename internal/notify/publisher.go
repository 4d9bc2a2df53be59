package notify

import (
	"context"
	"fmt"
	"log/slog"
)

// Publisher hands reminders to the push transport.
type Publisher interface {
	Publish(ctx context.Context, msgs []PushMessage) error
	Close() error
}

// PartialError reports per-message failures of a batch. Errs is index-aligned
// with the published batch; nil entries succeeded.
type PartialError struct {
	Errs []error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("%d of %d messages failed", e.Failed(), len(e.Errs))
}

// Failed counts the failed messages.
func (e *PartialError) Failed() int {
	n := 0
	for _, err := range e.Errs {
		if err != nil {
			n++
		}
	}
	return n
}

// LogPublisher writes reminders to the log instead of a broker.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With("component", "push")}
}

func (p *LogPublisher) Publish(ctx context.Context, msgs []PushMessage) error {
	for _, m := range msgs {
		p.logger.InfoContext(ctx, "push notification", "id", m.ID, "device", m.DeviceUID, "title", m.Title, "body", m.Body)
	}
	return nil
}

func (p *LogPublisher) Close() error { return nil }
