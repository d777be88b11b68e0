// Package duckdb implements the profile repository on an embedded DuckDB
// database, for deployments that want durable, queryable history without an
// external server.
package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/rs/zerolog"

	"request-profiler/internal/domain"
	"request-profiler/internal/usecase"
)

const schema = `
CREATE TABLE IF NOT EXISTS profiles (
	token       VARCHAR PRIMARY KEY,
	parent      VARCHAR,
	ip          VARCHAR,
	method      VARCHAR,
	url         VARCHAR,
	time        BIGINT,
	status_code INTEGER,
	children    VARCHAR,
	collectors  VARCHAR
)`

type Store struct {
	db     *sql.DB
	path   string
	logger zerolog.Logger
}

// NewStore opens (creating if needed) a DuckDB database under dir and
// initializes the profiles schema.
func NewStore(dir string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	dbPath := filepath.Join(dir, "profiles.duckdb")

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	logger.Info().Str("path", dbPath).Msg("profile database initialized")
	return &Store{db: db, path: dbPath, logger: logger}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// Write upserts the profile and, recursively, its children. Children are
// stored as their own rows; the row only keeps their token list.
func (s *Store) Write(ctx context.Context, p *domain.Profile) error {
	for _, child := range p.Children() {
		if err := s.Write(ctx, child); err != nil {
			return err
		}
	}

	childTokens := make([]string, 0, len(p.Children()))
	for _, child := range p.Children() {
		childTokens = append(childTokens, child.Token)
	}
	childrenJSON, err := json.Marshal(childTokens)
	if err != nil {
		return fmt.Errorf("encode children of %s: %w", p.Token, err)
	}

	payloads := make(map[string]json.RawMessage, len(p.Collectors()))
	for name, c := range p.Collectors() {
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encode collector %s of %s: %w", name, p.Token, err)
		}
		payloads[name] = data
	}
	collectorsJSON, err := json.Marshal(payloads)
	if err != nil {
		return fmt.Errorf("encode collectors of %s: %w", p.Token, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO profiles
			(token, parent, ip, method, url, time, status_code, children, collectors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Token, p.ParentToken(), p.IP, p.Method, p.URL, p.Time, p.StatusCode,
		string(childrenJSON), string(collectorsJSON),
	)
	if err != nil {
		return fmt.Errorf("insert profile %s: %w", p.Token, err)
	}
	return nil
}

func (s *Store) Read(ctx context.Context, token string) (*domain.Profile, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT token, ip, method, url, time, status_code, children, collectors
		FROM profiles WHERE token = ?`, token)

	var (
		p              = new(domain.Profile)
		childrenJSON   string
		collectorsJSON string
	)
	err := row.Scan(&p.Token, &p.IP, &p.Method, &p.URL, &p.Time, &p.StatusCode, &childrenJSON, &collectorsJSON)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read profile %s: %w", token, err)
	}

	var payloads map[string]json.RawMessage
	if err := json.Unmarshal([]byte(collectorsJSON), &payloads); err != nil {
		return nil, false, fmt.Errorf("decode collectors of %s: %w", token, err)
	}
	for name, data := range payloads {
		p.AddCollector(domain.NewSnapshot(name, data))
	}

	var childTokens []string
	if err := json.Unmarshal([]byte(childrenJSON), &childTokens); err != nil {
		return nil, false, fmt.Errorf("decode children of %s: %w", token, err)
	}
	for _, ct := range childTokens {
		child, ok, err := s.Read(ctx, ct)
		if err != nil {
			return nil, false, err
		}
		if ok {
			p.AddChild(child)
		}
	}
	return p, true, nil
}

func (s *Store) Purge(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM profiles`); err != nil {
		return fmt.Errorf("purge profiles: %w", err)
	}
	return nil
}

func (s *Store) Find(ctx context.Context, c usecase.Criteria) ([]*domain.Profile, error) {
	var (
		where []string
		args  []any
	)
	if c.IP != "" {
		where = append(where, "ip LIKE '%' || ? || '%'")
		args = append(args, c.IP)
	}
	if c.URL != "" {
		where = append(where, "url LIKE '%' || ? || '%'")
		args = append(args, c.URL)
	}
	if c.Method != "" {
		where = append(where, "lower(method) = lower(?)")
		args = append(args, c.Method)
	}
	if c.StatusCode != 0 {
		where = append(where, "status_code = ?")
		args = append(args, c.StatusCode)
	}
	if c.Start != nil {
		where = append(where, "time >= ?")
		args = append(args, *c.Start)
	}
	if c.End != nil {
		where = append(where, "time <= ?")
		args = append(args, *c.End)
	}

	query := `SELECT token FROM profiles`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY time DESC, token"
	if c.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, c.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find profiles: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	results := make([]*domain.Profile, 0, len(tokens))
	for _, token := range tokens {
		p, ok, err := s.Read(ctx, token)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if c.Filter != nil && !c.Filter(p) {
			continue
		}
		results = append(results, p)
	}
	return results, nil
}
