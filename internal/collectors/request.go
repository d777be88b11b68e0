// Package collectors ships the default data collectors registered by the
// daemon: request metadata, timing, memory and error capture.
package collectors

import (
	"net/http"
	"net/url"

	"request-profiler/internal/domain"
	"request-profiler/pkg/shared/redact"
)

// RequestCollector snapshots request/response metadata: method, URL, query
// parameters and headers. Sensitive header values are masked before the
// snapshot is stored.
type RequestCollector struct {
	Method          string      `json:"method"`
	URL             string      `json:"url"`
	Query           url.Values  `json:"query,omitempty"`
	RequestHeaders  http.Header `json:"requestHeaders,omitempty"`
	ResponseHeaders http.Header `json:"responseHeaders,omitempty"`
	StatusCode      int         `json:"statusCode"`
}

func NewRequestCollector() *RequestCollector { return &RequestCollector{} }

func (c *RequestCollector) Name() string { return "request" }

func (c *RequestCollector) Collect(req *http.Request, resp *domain.Response, _ error) {
	c.Method = req.Method
	c.URL = req.URL.String()
	c.Query = cloneValues(req.URL.Query())
	c.RequestHeaders = redact.Headers(req.Header)
	c.ResponseHeaders = redact.Headers(resp.Header)
	c.StatusCode = resp.StatusCode
}

func (c *RequestCollector) Reset() { *c = RequestCollector{} }

func (c *RequestCollector) Clone() domain.Collector {
	cp := *c
	cp.Query = cloneValues(c.Query)
	cp.RequestHeaders = http.Header(cloneValues(url.Values(c.RequestHeaders)))
	cp.ResponseHeaders = http.Header(cloneValues(url.Values(c.ResponseHeaders)))
	return &cp
}

func cloneValues(v url.Values) url.Values {
	if v == nil {
		return nil
	}
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
