// Package file implements the profile repository on the local filesystem:
// one JSON document per token plus an append-only CSV index that serves
// searches without loading every profile.
package file

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"request-profiler/internal/domain"
	"request-profiler/internal/usecase"
)

const indexName = "index.csv"

type Store struct {
	dir string
	mu  sync.Mutex // guards index appends and purge
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create profile directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) profilePath(token string) string {
	return filepath.Join(s.dir, token+".json")
}

func (s *Store) Write(ctx context.Context, p *domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.profilePath(p.Token)
	_, statErr := os.Stat(path)
	known := statErr == nil

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile %s: %w", p.Token, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write profile %s: %w", p.Token, err)
	}

	// Re-saving an existing token must not duplicate its index row.
	if known {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(s.dir, indexName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write([]string{
		p.Token,
		p.IP,
		p.Method,
		p.URL,
		strconv.FormatInt(p.Time, 10),
		strconv.Itoa(p.StatusCode),
		p.ParentToken(),
	}); err != nil {
		return fmt.Errorf("append index: %w", err)
	}
	w.Flush()
	return w.Error()
}

func (s *Store) Read(ctx context.Context, token string) (*domain.Profile, bool, error) {
	data, err := os.ReadFile(s.profilePath(token))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read profile %s: %w", token, err)
	}
	p := new(domain.Profile)
	if err := json.Unmarshal(data, p); err != nil {
		return nil, false, fmt.Errorf("decode profile %s: %w", token, err)
	}
	return p, true, nil
}

func (s *Store) Purge(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if name == indexName || strings.HasSuffix(name, ".json") {
			if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Find walks the index newest-first, filters on the indexed fields, then
// loads the matching profiles. The caller predicate runs on the loaded
// profile, so rows it rejects do not count against the limit.
func (s *Store) Find(ctx context.Context, c usecase.Criteria) ([]*domain.Profile, error) {
	rows, err := s.readIndex()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	results := make([]*domain.Profile, 0, c.Limit)
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		if !r.matches(c) {
			continue
		}
		p, ok, err := s.Read(ctx, r.token)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue // purged out from under the index
		}
		if c.Filter != nil && !c.Filter(p) {
			continue
		}
		results = append(results, p)
		if c.Limit > 0 && len(results) >= c.Limit {
			break
		}
	}
	return results, nil
}

type indexRow struct {
	token      string
	ip         string
	method     string
	url        string
	time       int64
	statusCode int
}

func (r indexRow) matches(c usecase.Criteria) bool {
	if c.IP != "" && !strings.Contains(r.ip, c.IP) {
		return false
	}
	if c.URL != "" && !strings.Contains(r.url, c.URL) {
		return false
	}
	if c.Method != "" && !strings.EqualFold(r.method, c.Method) {
		return false
	}
	if c.StatusCode != 0 && r.statusCode != c.StatusCode {
		return false
	}
	if c.Start != nil && r.time < *c.Start {
		return false
	}
	if c.End != nil && r.time > *c.End {
		return false
	}
	return true
}

func (s *Store) readIndex() ([]indexRow, error) {
	f, err := os.Open(filepath.Join(s.dir, indexName))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	var rows []indexRow
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read index: %w", err)
		}
		if len(rec) < 6 {
			continue
		}
		t, _ := strconv.ParseInt(rec[4], 10, 64)
		status, _ := strconv.Atoi(rec[5])
		rows = append(rows, indexRow{
			token:      rec[0],
			ip:         rec[1],
			method:     rec[2],
			url:        rec[3],
			time:       t,
			statusCode: status,
		})
	}
	return rows, nil
}
