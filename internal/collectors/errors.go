package collectors

import (
	"fmt"
	"net/http"

	"request-profiler/internal/domain"
)

// ErrorCollector captures the error a request handler surfaced, if any.
type ErrorCollector struct {
	HasError bool   `json:"hasError"`
	Message  string `json:"message,omitempty"`
	Type     string `json:"type,omitempty"`
}

func NewErrorCollector() *ErrorCollector { return &ErrorCollector{} }

func (c *ErrorCollector) Name() string { return "error" }

func (c *ErrorCollector) Collect(_ *http.Request, _ *domain.Response, reqErr error) {
	// Clear first: a reused instance must never leak a prior capture's error.
	*c = ErrorCollector{}
	if reqErr == nil {
		return
	}
	c.HasError = true
	c.Message = reqErr.Error()
	c.Type = fmt.Sprintf("%T", reqErr)
}

func (c *ErrorCollector) Reset() { *c = ErrorCollector{} }

func (c *ErrorCollector) Clone() domain.Collector {
	cp := *c
	return &cp
}
