package notify

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Registration is what a device sends to subscribe to the daily reminder.
type Registration struct {
	DeviceUID string  `json:"deviceUid" validate:"required,max=128"`
	PushToken string  `json:"pushToken" validate:"required,max=4096"`
	Lat       float64 `json:"lat" validate:"latitude"`
	Lon       float64 `json:"lon" validate:"longitude"`
	Timezone  string  `json:"timezone" validate:"required,timezone"`
	Hour      int     `json:"hour" validate:"min=0,max=23"`
	Minute    int     `json:"minute" validate:"min=0,max=59"`
}

// Validate checks the registration fields.
func (r Registration) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRegistration, err)
	}
	return nil
}

// Subscriber is a stored registration.
type Subscriber struct {
	Registration
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NextAlarm returns the next local time at or after now (truncated to the
// minute) at which the subscriber wants to be notified.
func (s Subscriber) NextAlarm(now time.Time) (time.Time, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("load timezone %q: %w", s.Timezone, err)
	}
	local := now.In(loc).Truncate(time.Minute)
	alarm := time.Date(local.Year(), local.Month(), local.Day(), s.Hour, s.Minute, 0, 0, loc)
	if alarm.Before(local) {
		alarm = time.Date(local.Year(), local.Month(), local.Day()+1, s.Hour, s.Minute, 0, 0, loc)
	}
	return alarm, nil
}

// IsDue reports whether the next alarm falls in [now, now+window), with now
// truncated to the minute.
func (s Subscriber) IsDue(now time.Time, window time.Duration) (bool, error) {
	from := now.Truncate(time.Minute)
	return s.DueBetween(from, from.Add(window))
}

// DueBetween reports whether an alarm falls in [from, to).
func (s Subscriber) DueBetween(from, to time.Time) (bool, error) {
	alarm, err := s.NextAlarm(from)
	if err != nil {
		return false, err
	}
	// NextAlarm works in whole minutes; an alarm earlier in from's minute
	// belongs to the previous range.
	if alarm.Before(from) {
		return false, nil
	}
	return alarm.Before(to), nil
}
