package clients

import (
	"context"
	"net/http"
	"time"
)

const metricsService = "metrics"

// MetricType names the event kinds the metrics service aggregates.
type MetricType string

const (
	MetricTwit    MetricType = "twit"
	MetricLike    MetricType = "like"
	MetricRetwit  MetricType = "retwit"
	MetricComment MetricType = "comment"
)

type metricEvent struct {
	Type      MetricType     `json:"type"`
	CreatedAt time.Time      `json:"createdAt"`
	Username  string         `json:"username"`
	Metrics   map[string]any `json:"metrics"`
}

// Metrics is the client for the metrics service.
type Metrics struct {
	baseClient
}

// NewMetrics creates a metrics service client rooted at baseURL.
func NewMetrics(baseURL string, timeout time.Duration) *Metrics {
	return &Metrics{baseClient: newBaseClient(metricsService, baseURL, timeout, nil)}
}

// Record reports one event of type t performed by username.
func (c *Metrics) Record(ctx context.Context, t MetricType, username string) error {
	ev := metricEvent{Type: t, CreatedAt: time.Now().UTC(), Username: username, Metrics: map[string]any{}}
	if err := c.do(ctx, "record", http.MethodPost, "/metrics", nil, ev, nil); err != nil {
		return translate(ctx, err, nil)
	}
	return nil
}
