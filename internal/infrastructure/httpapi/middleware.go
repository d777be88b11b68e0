package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"request-profiler/internal/collectors"
	"request-profiler/internal/domain"
)

// capture paths that would recursively fill the store or never finish
// (websocket upgrade) are skipped.
var captureSkipPaths = []string{"/metrics", "/healthz", "/readyz", "/api/monitor/ws"}

// withCapture profiles every request passing through. Collection runs the
// moment the inner handler commits the status code — headers are still open
// then, so the debug token reaches the client — and persistence happens
// best-effort after the handler returns.
func (d *Deps) withCapture(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if skipCapture(r.URL.Path) {
			h.ServeHTTP(w, r)
			return
		}
		r = r.WithContext(collectors.WithStart(r.Context(), time.Now()))

		rec := &captureWriter{ResponseWriter: w, deps: d, req: r}
		func() {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				rec.reqErr = fmt.Errorf("panic: %v", v)
				d.Metrics.CaptureErrorsTotal.Inc()
				d.Logger.Error().Interface("panic", v).Str("path", r.URL.Path).Msg("handler panic")
				if !rec.wroteHeader {
					rec.WriteHeader(http.StatusInternalServerError)
				}
			}()
			h.ServeHTTP(rec, r)
		}()
		// Handlers that never write still get a 200 profile.
		rec.collect(http.StatusOK)

		if rec.profile == nil {
			return
		}
		d.Metrics.CapturesTotal.WithLabelValues(r.Method).Inc()
		// Save outside the client-visible path.
		go func(p *domain.Profile) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if !d.Profiler.Save(ctx, p) {
				d.Metrics.SaveFailuresTotal.Inc()
				return
			}
			d.Metrics.SavesTotal.Inc()
			d.Metrics.StoredProfiles.Inc()
			if d.Monitor != nil {
				d.Monitor.Broadcast(MonitorEvent{Type: "profile", Token: p.Token})
			}
		}(rec.profile)
	})
}

func skipCapture(path string) bool {
	for _, p := range captureSkipPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// captureWriter intercepts the first WriteHeader to run collection while
// response headers can still be mutated.
type captureWriter struct {
	http.ResponseWriter
	deps        *Deps
	req         *http.Request
	profile     *domain.Profile
	reqErr      error
	collected   bool
	wroteHeader bool
}

func (cw *captureWriter) WriteHeader(status int) {
	cw.collect(status)
	cw.wroteHeader = true
	cw.ResponseWriter.WriteHeader(status)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	cw.collect(http.StatusOK)
	cw.wroteHeader = true
	return cw.ResponseWriter.Write(b)
}

func (cw *captureWriter) collect(status int) {
	if cw.collected {
		return
	}
	cw.collected = true
	// Header aliases the live response headers, so Collect's token stamp
	// reaches the client.
	resp := &domain.Response{StatusCode: status, Header: cw.ResponseWriter.Header()}
	cw.profile = cw.deps.Profiler.Collect(cw.req, resp, cw.reqErr)
}
