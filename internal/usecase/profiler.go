package usecase

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"request-profiler/internal/domain"
)

// Response headers carrying the correlation token. When a capture chain
// occurs on the same response (e.g. a redirect), the prior token moves to
// the previous-token header before the new one is stamped.
const (
	TokenHeader         = "X-Debug-Token"
	PreviousTokenHeader = "X-Previous-Debug-Token"
)

// IPUnknown is recorded when client IP resolution fails due to ambiguous
// proxy headers. Profiling never aborts request handling over this.
const IPUnknown = "Unknown"

// Profiler coordinates collectors and storage: it builds one Profile per
// captured request/response pair, stamps the correlation header, and hands
// finished profiles to the repository.
//
// The collector registry and the enabled flag are guarded by a mutex, so
// Collect may run concurrently with registry mutation; within one Collect
// call collectors still run sequentially in registration order.
type Profiler struct {
	storage ProfileRepository
	logger  *zerolog.Logger

	mu               sync.RWMutex
	collectors       map[string]domain.Collector
	order            []string
	enabled          bool
	initiallyEnabled bool
}

// New returns a Profiler writing to storage. logger may be nil; it is only
// used for the save-failure warning.
func New(storage ProfileRepository, logger *zerolog.Logger, enabled bool) *Profiler {
	return &Profiler{
		storage:          storage,
		logger:           logger,
		collectors:       make(map[string]domain.Collector),
		enabled:          enabled,
		initiallyEnabled: enabled,
	}
}

func (p *Profiler) Enable() {
	p.mu.Lock()
	p.enabled = true
	p.mu.Unlock()
}

func (p *Profiler) Disable() {
	p.mu.Lock()
	p.enabled = false
	p.mu.Unlock()
}

func (p *Profiler) IsEnabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enabled
}

// Reset clears every registered collector's accumulated state and restores
// the enabled flag to its initial value. Meant to run between independent
// request cycles in long-lived processes.
func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.collectors {
		c.Reset()
	}
	p.enabled = p.initiallyEnabled
}

// Add registers a collector under its own reported name, replacing any
// collector already registered under that name (keeping its position).
func (p *Profiler) Add(c domain.Collector) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addLocked(c)
}

func (p *Profiler) addLocked(c domain.Collector) {
	name := c.Name()
	if _, ok := p.collectors[name]; !ok {
		p.order = append(p.order, name)
	}
	p.collectors[name] = c
}

// Set replaces the whole registry with the given collectors, in order.
func (p *Profiler) Set(cs []domain.Collector) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.collectors = make(map[string]domain.Collector, len(cs))
	p.order = nil
	for _, c := range cs {
		p.addLocked(c)
	}
}

func (p *Profiler) Has(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.collectors[name]
	return ok
}

func (p *Profiler) Get(name string) (domain.Collector, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.collectors[name]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "collector", Name: name}
	}
	return c, nil
}

// All returns the registered collectors in registration order.
func (p *Profiler) All() []domain.Collector {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]domain.Collector, 0, len(p.order))
	for _, name := range p.order {
		out = append(out, p.collectors[name])
	}
	return out
}

// Collect captures one request/response exchange. It returns nil without
// side effects when the profiler is disabled. Otherwise it builds a fresh
// profile, stamps the token header (moving any existing token to the
// previous-token header), and runs a fresh clone of every collector in
// registration order, storing the clones into the profile. The registered
// instances are never written, so captures may run concurrently.
func (p *Profiler) Collect(req *http.Request, resp *domain.Response, reqErr error) *domain.Profile {
	p.mu.RLock()
	if !p.enabled {
		p.mu.RUnlock()
		return nil
	}
	// Cloning happens under the lock so Reset cannot race the copy.
	snaps := make([]domain.Collector, 0, len(p.order))
	for _, name := range p.order {
		snaps = append(snaps, p.collectors[name].Clone())
	}
	p.mu.RUnlock()

	profile := domain.NewProfile(newToken())
	profile.Time = time.Now().Unix()
	profile.URL = req.URL.String()
	profile.Method = req.Method
	profile.StatusCode = resp.StatusCode

	ip, err := clientIP(req)
	if err != nil {
		ip = IPUnknown
	}
	profile.IP = ip

	if prev := resp.Header.Get(TokenHeader); prev != "" {
		resp.Header.Set(PreviousTokenHeader, prev)
	}
	resp.Header.Set(TokenHeader, profile.Token)

	for _, c := range snaps {
		c.Collect(req, resp, reqErr)
		profile.AddCollector(c)
	}
	return profile
}

// Save runs late collection on every stored snapshot that supports it, then
// persists the profile. A write failure is reported as a warning and a false
// return; it never aborts the surrounding request flow.
func (p *Profiler) Save(ctx context.Context, profile *domain.Profile) bool {
	for _, c := range profile.Collectors() {
		if lc, ok := c.(domain.LateCollector); ok {
			lc.LateCollect()
		}
	}
	if err := p.storage.Write(ctx, profile); err != nil {
		if p.logger != nil {
			p.logger.Warn().
				Err(err).
				Str("storage", fmt.Sprintf("%T", p.storage)).
				Msg("unable to store the profiler information")
		}
		return false
	}
	return true
}

// Load fetches a profile by token.
func (p *Profiler) Load(ctx context.Context, token string) (*domain.Profile, bool, error) {
	return p.storage.Read(ctx, token)
}

// LoadFromResponse fetches the profile the response was stamped with.
// Returns not-found without touching storage when the header is absent.
func (p *Profiler) LoadFromResponse(ctx context.Context, resp *domain.Response) (*domain.Profile, bool, error) {
	token := resp.Header.Get(TokenHeader)
	if token == "" {
		return nil, false, nil
	}
	return p.storage.Read(ctx, token)
}

// Query is the search input with human-friendly time bounds. Start and End
// accept epoch-seconds strings or date/time text; unparseable text degrades
// to an unbounded axis.
type Query struct {
	IP         string
	URL        string
	Method     string
	StatusCode int
	Limit      int
	Start      string
	End        string
	Filter     func(*domain.Profile) bool
}

// Find searches stored profiles after normalizing the time bounds.
func (p *Profiler) Find(ctx context.Context, q Query) ([]*domain.Profile, error) {
	return p.storage.Find(ctx, Criteria{
		IP:         q.IP,
		URL:        q.URL,
		Method:     q.Method,
		StatusCode: q.StatusCode,
		Limit:      q.Limit,
		Start:      parseTimeBound(q.Start),
		End:        parseTimeBound(q.End),
		Filter:     q.Filter,
	})
}

// Purge removes all persisted profiles.
func (p *Profiler) Purge(ctx context.Context) error {
	return p.storage.Purge(ctx)
}
