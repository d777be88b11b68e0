package usecase

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"request-profiler/internal/domain"
)

// fakeCollector counts invocations and carries a marker so clones can be
// told apart from the live instance.
type fakeCollector struct {
	name      string
	Collected int    `json:"collected"`
	LastURL   string `json:"lastUrl"`
	LateCalls int    `json:"lateCalls"`
	resets    int
}

func (f *fakeCollector) Name() string { return f.name }
func (f *fakeCollector) Collect(req *http.Request, _ *domain.Response, _ error) {
	f.Collected++
	if req != nil {
		f.LastURL = req.URL.String()
	}
}
func (f *fakeCollector) Reset() { f.resets++ }
func (f *fakeCollector) Clone() domain.Collector {
	cp := *f
	return &cp
}

type lateCollector struct{ fakeCollector }

func (l *lateCollector) LateCollect() { l.LateCalls++ }
func (l *lateCollector) Clone() domain.Collector {
	cp := *l
	return &cp
}

// fakeRepo is an in-test ProfileRepository with scriptable failures.
type fakeRepo struct {
	writeErr error
	written  []*domain.Profile
	lastFind Criteria
}

func (r *fakeRepo) Read(_ context.Context, token string) (*domain.Profile, bool, error) {
	for _, p := range r.written {
		if p.Token == token {
			return p, true, nil
		}
	}
	return nil, false, nil
}

func (r *fakeRepo) Write(_ context.Context, p *domain.Profile) error {
	if r.writeErr != nil {
		return r.writeErr
	}
	r.written = append(r.written, p)
	return nil
}

func (r *fakeRepo) Find(_ context.Context, c Criteria) ([]*domain.Profile, error) {
	r.lastFind = c
	return nil, nil
}

func (r *fakeRepo) Purge(context.Context) error {
	r.written = nil
	return nil
}

func newTestProfiler(repo *fakeRepo, logBuf *bytes.Buffer) *Profiler {
	var logger *zerolog.Logger
	if logBuf != nil {
		l := zerolog.New(logBuf)
		logger = &l
	}
	return New(repo, logger, true)
}

func testResponse() *domain.Response {
	return domain.NewResponse(http.StatusOK)
}

func TestCollectDisabledIsNoop(t *testing.T) {
	p := newTestProfiler(&fakeRepo{}, nil)
	fc := &fakeCollector{name: "fake"}
	p.Add(fc)
	p.Disable()

	resp := testResponse()
	if got := p.Collect(httptest.NewRequest("GET", "http://x/", nil), resp, nil); got != nil {
		t.Fatalf("disabled collect must return nil, got %v", got)
	}
	if len(resp.Header) != 0 {
		t.Fatalf("disabled collect must not touch headers: %v", resp.Header)
	}
	if fc.Collected != 0 {
		t.Fatalf("collector must not run while disabled")
	}
}

func TestCollectPopulatesProfileAndHeader(t *testing.T) {
	p := newTestProfiler(&fakeRepo{}, nil)
	fc := &fakeCollector{name: "fake"}
	p.Add(fc)

	req := httptest.NewRequest("POST", "http://example.com/submit?x=1", nil)
	req.RemoteAddr = "10.1.2.3:4567"
	resp := testResponse()
	resp.StatusCode = 201

	profile := p.Collect(req, resp, nil)
	if profile == nil {
		t.Fatalf("expected a profile")
	}
	if len(profile.Token) != 6 {
		t.Fatalf("token must be 6 chars, got %q", profile.Token)
	}
	if profile.Method != "POST" || profile.StatusCode != 201 || profile.IP != "10.1.2.3" {
		t.Fatalf("metadata wrong: %+v", profile)
	}
	if !strings.Contains(profile.URL, "/submit?x=1") {
		t.Fatalf("url wrong: %q", profile.URL)
	}
	if profile.Time == 0 {
		t.Fatalf("time not stamped")
	}
	if resp.Header.Get(TokenHeader) != profile.Token {
		t.Fatalf("token header not stamped")
	}
	// the stored snapshot is a clone, not the live collector
	c, err := profile.Collector("fake")
	if err != nil {
		t.Fatalf("collector snapshot missing: %v", err)
	}
	if c == domain.Collector(fc) {
		t.Fatalf("profile must hold a clone, not the live collector")
	}
	if c.(*fakeCollector).Collected != 1 {
		t.Fatalf("snapshot must carry collected state")
	}
	if fc.Collected != 0 {
		t.Fatalf("registered collector must stay untouched, got %d collects", fc.Collected)
	}
}

func TestCollectConcurrentCapturesDoNotShareState(t *testing.T) {
	p := newTestProfiler(&fakeRepo{}, nil)
	p.Add(&fakeCollector{name: "fake"})

	urls := []string{"http://example.com/alpha", "http://example.com/beta"}
	var wg sync.WaitGroup
	errs := make(chan string, 2)
	for _, u := range urls {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				req := httptest.NewRequest("GET", u, nil)
				profile := p.Collect(req, testResponse(), nil)
				c, err := profile.Collector("fake")
				if err != nil {
					errs <- err.Error()
					return
				}
				if got := c.(*fakeCollector).LastURL; got != u {
					errs <- "snapshot carries another request's data: " + got
					return
				}
			}
		}(u)
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Fatal(msg)
	}
}

func TestCollectChainsPreviousToken(t *testing.T) {
	p := newTestProfiler(&fakeRepo{}, nil)
	req := httptest.NewRequest("GET", "http://example.com/", nil)
	resp := testResponse()

	first := p.Collect(req, resp, nil)
	second := p.Collect(req, resp, nil)
	if first.Token == second.Token {
		t.Fatalf("tokens must differ")
	}
	if resp.Header.Get(PreviousTokenHeader) != first.Token {
		t.Fatalf("previous token header = %q, want %q", resp.Header.Get(PreviousTokenHeader), first.Token)
	}
	if resp.Header.Get(TokenHeader) != second.Token {
		t.Fatalf("current token header = %q, want %q", resp.Header.Get(TokenHeader), second.Token)
	}
}

func TestCollectConflictingIPHeaders(t *testing.T) {
	p := newTestProfiler(&fakeRepo{}, nil)
	req := httptest.NewRequest("GET", "http://example.com/", nil)
	req.Header.Set("X-Forwarded-For", "1.2.3.4")
	req.Header.Set("X-Real-Ip", "5.6.7.8")

	profile := p.Collect(req, testResponse(), nil)
	if profile.IP != IPUnknown {
		t.Fatalf("ambiguous proxy headers must record %q, got %q", IPUnknown, profile.IP)
	}
}

func TestSaveFailureWarnsOnce(t *testing.T) {
	repo := &fakeRepo{writeErr: errors.New("disk full")}
	var buf bytes.Buffer
	p := newTestProfiler(repo, &buf)

	profile := domain.NewProfile("tok123")
	if p.Save(context.Background(), profile) {
		t.Fatalf("save must report failure")
	}
	logs := buf.String()
	if n := strings.Count(logs, `"level":"warn"`); n != 1 {
		t.Fatalf("expected exactly one warning, got %d: %s", n, logs)
	}
	if !strings.Contains(logs, "unable to store the profiler information") {
		t.Fatalf("warning missing message: %s", logs)
	}
	if !strings.Contains(logs, "fakeRepo") {
		t.Fatalf("warning should name the configured storage: %s", logs)
	}
}

func TestSaveRunsLateCollectOncePerSnapshot(t *testing.T) {
	repo := &fakeRepo{}
	p := newTestProfiler(repo, nil)

	profile := domain.NewProfile("tok123")
	late := &lateCollector{fakeCollector{name: "late"}}
	plain := &fakeCollector{name: "plain"}
	profile.AddCollector(late)
	profile.AddCollector(plain)

	if !p.Save(context.Background(), profile) {
		t.Fatalf("save should succeed")
	}
	if late.LateCalls != 1 {
		t.Fatalf("late collect calls = %d, want 1", late.LateCalls)
	}
	if len(repo.written) != 1 || repo.written[0] != profile {
		t.Fatalf("profile not handed to storage")
	}
}

func TestFindNormalizesDateBounds(t *testing.T) {
	repo := &fakeRepo{}
	p := newTestProfiler(repo, nil)

	_, err := p.Find(context.Background(), Query{Start: "not-a-date", End: "2024-01-01"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if repo.lastFind.Start != nil {
		t.Fatalf("unparseable start must become nil, got %v", *repo.lastFind.Start)
	}
	if repo.lastFind.End == nil || *repo.lastFind.End != 1704067200 {
		t.Fatalf("end bound wrong: %v", repo.lastFind.End)
	}
}

func TestLoadFromResponse(t *testing.T) {
	repo := &fakeRepo{}
	p := newTestProfiler(repo, nil)
	stored := domain.NewProfile("abc123")
	repo.written = append(repo.written, stored)

	resp := testResponse()
	if _, ok, _ := p.LoadFromResponse(context.Background(), resp); ok {
		t.Fatalf("no header must mean no lookup hit")
	}
	resp.Header.Set(TokenHeader, "abc123")
	got, ok, err := p.LoadFromResponse(context.Background(), resp)
	if err != nil || !ok || got != stored {
		t.Fatalf("expected stored profile, got %v ok=%v err=%v", got, ok, err)
	}
}

func TestResetRestoresInitialStateAndResetsCollectors(t *testing.T) {
	p := newTestProfiler(&fakeRepo{}, nil)
	fc := &fakeCollector{name: "fake"}
	p.Add(fc)

	p.Disable()
	p.Reset()
	if !p.IsEnabled() {
		t.Fatalf("reset must restore the initial enabled state")
	}
	if fc.resets != 1 {
		t.Fatalf("collector resets = %d, want 1", fc.resets)
	}
}

func TestRegistry(t *testing.T) {
	p := newTestProfiler(&fakeRepo{}, nil)
	a := &fakeCollector{name: "a"}
	b := &fakeCollector{name: "b"}
	p.Add(a)
	p.Add(b)

	if !p.Has("a") || p.Has("z") {
		t.Fatalf("has is wrong")
	}
	if got, err := p.Get("b"); err != nil || got != domain.Collector(b) {
		t.Fatalf("get b: %v %v", got, err)
	}
	if _, err := p.Get("z"); err == nil {
		t.Fatalf("get of unregistered name must fail")
	}
	var nf *domain.NotFoundError
	if _, err := p.Get("z"); !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError")
	}
	all := p.All()
	if len(all) != 2 || all[0].Name() != "a" || all[1].Name() != "b" {
		t.Fatalf("all must preserve registration order: %v", all)
	}

	c := &fakeCollector{name: "c"}
	p.Set([]domain.Collector{c})
	if p.Has("a") || !p.Has("c") || len(p.All()) != 1 {
		t.Fatalf("set must fully replace the registry")
	}
}
