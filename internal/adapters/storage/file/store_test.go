package file

import (
	"context"
	"testing"

	"request-profiler/internal/domain"
	"request-profiler/internal/usecase"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func sample(token string, ts int64) *domain.Profile {
	p := domain.NewProfile(token)
	p.IP = "127.0.0.1"
	p.Method = "GET"
	p.URL = "https://example.com/" + token
	p.Time = ts
	p.StatusCode = 200
	return p
}

func TestRoundTripWithChildrenAndCollectors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	root := sample("root00", 100)
	root.AddCollector(domain.NewSnapshot("request", []byte(`{"method":"GET"}`)))
	child := sample("child1", 101)
	root.AddChild(child)

	if err := s.Write(ctx, root); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, ok, err := s.Read(ctx, "root00")
	if err != nil || !ok {
		t.Fatalf("read: ok=%v err=%v", ok, err)
	}
	if got.Token != "root00" || got.Time != 100 {
		t.Fatalf("fields lost: %+v", got)
	}
	if len(got.Children()) != 1 || got.Children()[0].Token != "child1" {
		t.Fatalf("children lost: %v", got.Children())
	}
	if got.Children()[0].ParentToken() != "root00" {
		t.Fatalf("child parent not re-linked")
	}
	if _, err := got.Collector("request"); err != nil {
		t.Fatalf("collector lost: %v", err)
	}
}

func TestReadUnknownToken(t *testing.T) {
	s := newTestStore(t)
	if _, ok, err := s.Read(context.Background(), "zzzzzz"); ok || err != nil {
		t.Fatalf("unknown token: ok=%v err=%v", ok, err)
	}
}

func TestFindUsesIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_ = s.Write(ctx, sample("aaaaaa", 100))
	_ = s.Write(ctx, sample("bbbbbb", 200))
	_ = s.Write(ctx, sample("cccccc", 300))

	got, err := s.Find(ctx, usecase.Criteria{Limit: 2})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 2 || got[0].Token != "cccccc" || got[1].Token != "bbbbbb" {
		t.Fatalf("expected newest first with limit, got %v", got)
	}

	got, err = s.Find(ctx, usecase.Criteria{URL: "bbbbbb"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 1 || got[0].Token != "bbbbbb" {
		t.Fatalf("url filter via index: %v", got)
	}
}

func TestRewriteDoesNotDuplicateIndexRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_ = s.Write(ctx, sample("aaaaaa", 100))
	_ = s.Write(ctx, sample("aaaaaa", 100))

	got, err := s.Find(ctx, usecase.Criteria{})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("re-saved token must keep one index row, got %d results", len(got))
	}
}

func TestPurge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_ = s.Write(ctx, sample("aaaaaa", 100))
	if err := s.Purge(ctx); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if _, ok, _ := s.Read(ctx, "aaaaaa"); ok {
		t.Fatalf("purged profile still readable")
	}
	got, err := s.Find(ctx, usecase.Criteria{})
	if err != nil {
		t.Fatalf("find after purge: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("find after purge returned %d results", len(got))
	}
}
