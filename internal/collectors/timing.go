package collectors

import (
	"context"
	"net/http"
	"time"

	"request-profiler/internal/domain"
)

type startKey struct{}

// WithStart marks the request start instant on the context. The capture
// middleware sets it when the request enters; TimeCollector falls back to
// its collect instant when the mark is absent.
func WithStart(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, startKey{}, t)
}

// TimeCollector records when the exchange started. Total duration is only
// known once the response has been finalized, so it is filled in by
// LateCollect at save time.
type TimeCollector struct {
	StartUnixMs int64 `json:"startUnixMs"`
	DurationMs  int64 `json:"durationMs"`

	start time.Time
}

func NewTimeCollector() *TimeCollector { return &TimeCollector{} }

func (c *TimeCollector) Name() string { return "time" }

func (c *TimeCollector) Collect(req *http.Request, _ *domain.Response, _ error) {
	c.start, _ = req.Context().Value(startKey{}).(time.Time)
	if c.start.IsZero() {
		c.start = time.Now()
	}
	c.StartUnixMs = c.start.UnixMilli()
}

func (c *TimeCollector) LateCollect() {
	if c.start.IsZero() {
		return
	}
	c.DurationMs = time.Since(c.start).Milliseconds()
}

func (c *TimeCollector) Reset() { *c = TimeCollector{} }

func (c *TimeCollector) Clone() domain.Collector {
	cp := *c
	return &cp
}
