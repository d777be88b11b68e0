package domain

import (
	"encoding/json"
	"net/http"
)

// Response is the mutable view of an outgoing response the profiler works
// against. Header aliases the live response headers while the exchange is
// still open, so setting the debug token here reaches the client.
type Response struct {
	StatusCode int
	Header     http.Header
}

func NewResponse(statusCode int) *Response {
	return &Response{StatusCode: statusCode, Header: make(http.Header)}
}

// Collector inspects one request/response pair and accumulates a named
// snapshot of diagnostic data. Instances are long-lived and reused across
// requests; the profiler stores a Clone into each profile so the live
// instance can be Reset for the next cycle.
type Collector interface {
	Name() string
	Collect(req *http.Request, resp *Response, reqErr error)
	Reset()
	Clone() Collector
}

// LateCollector is an optional capability for collectors whose data is only
// complete after the response has been finalized (e.g. total elapsed time).
// LateCollect runs once, at save time, on the stored clone.
type LateCollector interface {
	Collector
	LateCollect()
}

// Snapshot is an inert collector payload rehydrated from storage. It keeps
// the serialized form verbatim; Collect is a no-op because loaded profiles
// are historical.
type Snapshot struct {
	name string
	Data json.RawMessage
}

func NewSnapshot(name string, data []byte) *Snapshot {
	return &Snapshot{name: name, Data: append(json.RawMessage(nil), data...)}
}

func (s *Snapshot) Name() string                            { return s.name }
func (s *Snapshot) Collect(*http.Request, *Response, error) {}
func (s *Snapshot) Reset()                                  { s.Data = nil }

func (s *Snapshot) Clone() Collector {
	return NewSnapshot(s.name, s.Data)
}

func (s *Snapshot) MarshalJSON() ([]byte, error) {
	if len(s.Data) == 0 {
		return []byte("null"), nil
	}
	return s.Data, nil
}
