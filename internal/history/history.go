// Package history records web comparisons in PostgreSQL.
//
// History is optional. A nil *Store is valid and reports ErrHistoryDisabled
// from every method, so callers never branch on configuration.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/JonMunkholm/tablematch/internal/config"
	"github.com/JonMunkholm/tablematch/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrHistoryDisabled is returned when no history database is configured.
var ErrHistoryDisabled = errors.New("history is disabled")

// Limits for Recent.
const (
	DefaultRecentLimit = 20
	MaxRecentLimit     = 200
)

// DBTX is the subset of *pgxpool.Pool the store uses.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS comparison_history (
		id          UUID PRIMARY KEY,
		file_a      TEXT NOT NULL,
		file_b      TEXT NOT NULL,
		matched     BOOLEAN NOT NULL,
		stage       TEXT NOT NULL,
		error       TEXT,
		diff        JSONB,
		duration_ms BIGINT NOT NULL,
		client_ip   INET,
		user_agent  TEXT,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS comparison_history_created_at_idx
		ON comparison_history (created_at DESC)`,
}

const insertQuery = `INSERT INTO comparison_history
	(id, file_a, file_b, matched, stage, error, diff, duration_ms, client_ip, user_agent, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

const recentQuery = `SELECT id, file_a, file_b, matched, stage, error, diff,
	duration_ms, client_ip, user_agent, created_at
	FROM comparison_history ORDER BY created_at DESC LIMIT $1`

// Entry is one recorded comparison.
type Entry struct {
	ID         string          `json:"id"`
	FileA      string          `json:"file_a"`
	FileB      string          `json:"file_b"`
	Matched    bool            `json:"matched"`
	Stage      string          `json:"stage"`
	Error      string          `json:"error,omitempty"`
	Diff       json.RawMessage `json:"diff,omitempty"`
	DurationMS int64           `json:"duration_ms"`
	ClientIP   string          `json:"client_ip,omitempty"`
	UserAgent  string          `json:"user_agent,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Store reads and writes comparison_history.
type Store struct {
	db  DBTX
	now func() time.Time
}

// New creates a Store on db.
func New(db DBTX) *Store {
	return &Store{db: db, now: time.Now}
}

// Connect opens a pool for cfg and verifies it with a ping. The caller
// closes the pool.
func Connect(ctx context.Context, cfg config.HistoryConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse history database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect history database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping history database: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the history table and index if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s == nil {
		return ErrHistoryDisabled
	}
	for _, stmt := range schemaStatements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure history schema: %w", err)
		}
	}
	return nil
}

// FromResult builds an Entry for a finished comparison. Client metadata is
// taken from ctx when the web layer attached it.
func FromResult(ctx context.Context, nameA, nameB string, res core.Result) Entry {
	e := Entry{
		FileA:      nameA,
		FileB:      nameB,
		Matched:    res.Matched,
		Stage:      string(res.Stage),
		DurationMS: res.Duration.Milliseconds(),
		ClientIP:   core.ClientIPFromContext(ctx),
		UserAgent:  core.UserAgentFromContext(ctx),
	}
	if res.Err != nil {
		e.Error = res.Err.Error()
	}
	if res.Diff != nil {
		if data, err := json.Marshal(res.Diff); err == nil {
			e.Diff = data
		}
	}
	return e
}

// Record inserts e, assigning its ID and timestamp, and returns the stored entry.
func (s *Store) Record(ctx context.Context, e Entry) (Entry, error) {
	if s == nil {
		return Entry{}, ErrHistoryDisabled
	}

	id := uuid.New()
	e.ID = id.String()
	e.CreatedAt = s.now().UTC()

	var ip *netip.Addr
	if addr, err := netip.ParseAddr(e.ClientIP); err == nil {
		ip = &addr
	}

	var diff []byte
	if len(e.Diff) > 0 {
		diff = e.Diff
	}

	_, err := s.db.Exec(ctx, insertQuery,
		pgtype.UUID{Bytes: id, Valid: true},
		e.FileA,
		e.FileB,
		e.Matched,
		e.Stage,
		toPgText(e.Error),
		diff,
		e.DurationMS,
		ip,
		toPgText(e.UserAgent),
		e.CreatedAt,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("record comparison: %w", err)
	}
	return e, nil
}

// Recent returns the newest entries first. limit is clamped to
// [1, MaxRecentLimit]; non-positive uses DefaultRecentLimit.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if s == nil {
		return nil, ErrHistoryDisabled
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	limit = min(limit, MaxRecentLimit)

	rows, err := s.db.Query(ctx, recentQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return entries, nil
}

// scanEntry scans a single row from comparison_history.
func scanEntry(rows pgx.Rows) (Entry, error) {
	var (
		id         pgtype.UUID
		fileA      string
		fileB      string
		matched    bool
		stage      string
		errMsg     pgtype.Text
		diff       []byte
		durationMS int64
		clientIP   *netip.Addr
		userAgent  pgtype.Text
		createdAt  pgtype.Timestamptz
	)

	err := rows.Scan(
		&id, &fileA, &fileB, &matched, &stage, &errMsg, &diff,
		&durationMS, &clientIP, &userAgent, &createdAt,
	)
	if err != nil {
		return Entry{}, err
	}

	e := Entry{
		FileA:      fileA,
		FileB:      fileB,
		Matched:    matched,
		Stage:      stage,
		DurationMS: durationMS,
		CreatedAt:  createdAt.Time,
	}
	if id.Valid {
		e.ID = uuid.UUID(id.Bytes).String()
	}
	if errMsg.Valid {
		e.Error = errMsg.String
	}
	if len(diff) > 0 {
		e.Diff = json.RawMessage(diff)
	}
	if clientIP != nil {
		e.ClientIP = clientIP.String()
	}
	if userAgent.Valid {
		e.UserAgent = userAgent.String
	}
	return e, nil
}

func toPgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}
