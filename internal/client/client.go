// Package client is a Go client for the eojeboda HTTP API.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/i474232898/eojeboda/internal/notify"
	"github.com/i474232898/eojeboda/internal/weather"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

type errorBody struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// Client talks to an eojeboda server.
type Client struct {
	http *resty.Client
}

// New creates a client for baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Accept", "application/json").
		SetError(&errorBody{})
	// Retry only when the server is overloaded or unreachable.
	c.AddRetryCondition(func(r *resty.Response, err error) bool {
		return err != nil || r.StatusCode() == http.StatusTooManyRequests ||
			(r.StatusCode() >= 500 && r.StatusCode() != http.StatusServiceUnavailable)
	})
	return &Client{http: c}
}

func locationParams(lat, lon float64) map[string]string {
	return map[string]string{
		"lat": strconv.FormatFloat(lat, 'f', -1, 64),
		"lon": strconv.FormatFloat(lon, 'f', -1, 64),
	}
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if !resp.IsError() {
		return nil
	}
	apiErr := &APIError{Status: resp.StatusCode(), Message: resp.Status()}
	if body, ok := resp.Error().(*errorBody); ok && body.Message != "" {
		apiErr.Message = body.Message
	}
	return apiErr
}

// Compare fetches the today-vs-yesterday report.
func (c *Client) Compare(ctx context.Context, lat, lon float64) (weather.Report, error) {
	var out weather.Report
	err := check(c.http.R().
		SetContext(ctx).
		SetQueryParams(locationParams(lat, lon)).
		SetResult(&out).
		Get("/api/v1/compare"))
	return out, err
}

// Hourly fetches the 24-hour comparison series.
func (c *Client) Hourly(ctx context.Context, lat, lon float64) (*weather.HourlyComparisonSeries, error) {
	out := &weather.HourlyComparisonSeries{}
	err := check(c.http.R().
		SetContext(ctx).
		SetQueryParams(locationParams(lat, lon)).
		SetResult(out).
		Get("/api/v1/hourly"))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Hour fetches one hour's drill-down entry.
func (c *Client) Hour(ctx context.Context, lat, lon float64, hour string) (weather.HourlyComparison, error) {
	var out weather.HourlyComparison
	err := check(c.http.R().
		SetContext(ctx).
		SetQueryParams(locationParams(lat, lon)).
		SetPathParam("hour", hour).
		SetResult(&out).
		Get("/api/v1/hourly/{hour}"))
	return out, err
}

// Register subscribes a device to the daily reminder.
func (c *Client) Register(ctx context.Context, reg notify.Registration) error {
	return check(c.http.R().
		SetContext(ctx).
		SetBody(reg).
		Post("/register"))
}

// Unregister removes a device's reminder.
func (c *Client) Unregister(ctx context.Context, deviceUID string) error {
	return check(c.http.R().
		SetContext(ctx).
		SetPathParam("uid", deviceUID).
		Delete("/register/{uid}"))
}
