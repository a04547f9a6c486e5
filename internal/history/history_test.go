package history

import (
	"context"
	"encoding/json"
	"errors"
	"net/netip"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/tablematch/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDB records statements and serves canned rows.
type fakeDB struct {
	execSQL  []string
	execArgs [][]any
	execErr  error

	queryArgs []any
	rows      [][]any
	queryErr  error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	f.execArgs = append(f.execArgs, args)
	return pgconn.NewCommandTag("INSERT 0 1"), f.execErr
}

func (f *fakeDB) Query(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
	f.queryArgs = args
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return &fakeRows{rows: f.rows, idx: -1}, nil
}

type fakeRows struct {
	rows [][]any
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.rows[r.idx], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx < len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.idx]
	if len(dest) != len(row) {
		return errors.New("column count mismatch")
	}
	for i, d := range dest {
		target := reflect.ValueOf(d).Elem()
		if row[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		target.Set(reflect.ValueOf(row[i]))
	}
	return nil
}

func TestNilStoreIsDisabled(t *testing.T) {
	var s *Store
	ctx := context.Background()

	assert.ErrorIs(t, s.EnsureSchema(ctx), ErrHistoryDisabled)
	_, err := s.Record(ctx, Entry{})
	assert.ErrorIs(t, err, ErrHistoryDisabled)
	_, err = s.Recent(ctx, 10)
	assert.ErrorIs(t, err, ErrHistoryDisabled)
}

func TestEnsureSchema(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, New(db).EnsureSchema(context.Background()))
	require.Len(t, db.execSQL, 2)
	assert.Contains(t, db.execSQL[0], "CREATE TABLE IF NOT EXISTS comparison_history")

	db = &fakeDB{execErr: errors.New("connection refused")}
	err := New(db).EnsureSchema(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ensure history schema")
}

func TestFromResult(t *testing.T) {
	ctx := core.ContextWithClientIP(context.Background(), "192.0.2.10")
	ctx = core.ContextWithUserAgent(ctx, "test-agent")

	res := core.Result{
		Stage:    core.StageShape,
		Duration: 1500 * time.Millisecond,
		Diff:     &core.DiffReport{TotalCountMismatches: 1},
		Err:      errors.New("boom"),
	}

	e := FromResult(ctx, "a.csv", "b.csv", res)
	assert.Equal(t, "a.csv", e.FileA)
	assert.Equal(t, "b.csv", e.FileB)
	assert.False(t, e.Matched)
	assert.Equal(t, "shape", e.Stage)
	assert.Equal(t, "boom", e.Error)
	assert.Equal(t, int64(1500), e.DurationMS)
	assert.Equal(t, "192.0.2.10", e.ClientIP)
	assert.Equal(t, "test-agent", e.UserAgent)

	var diff map[string]any
	require.NoError(t, json.Unmarshal(e.Diff, &diff))
	assert.EqualValues(t, 1, diff["total_count_mismatches"])
}

func TestRecord(t *testing.T) {
	db := &fakeDB{}
	s := New(db)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	stored, err := s.Record(context.Background(), Entry{
		FileA:     "a.csv",
		FileB:     "b.xlsx",
		Matched:   true,
		Stage:     "hash",
		ClientIP:  "not-an-ip",
		UserAgent: "",
	})
	require.NoError(t, err)

	_, err = uuid.Parse(stored.ID)
	assert.NoError(t, err)
	assert.Equal(t, fixed, stored.CreatedAt)

	require.Len(t, db.execArgs, 1)
	args := db.execArgs[0]
	require.Len(t, args, 11)
	assert.True(t, strings.HasPrefix(db.execSQL[0], "INSERT INTO comparison_history"))
	assert.Equal(t, "a.csv", args[1])
	assert.Equal(t, true, args[3])
	assert.Equal(t, pgtype.Text{}, args[5], "empty error is NULL")
	assert.Nil(t, args[6], "no diff is NULL")
	assert.Nil(t, args[8], "unparsable IP is NULL")
	assert.Equal(t, fixed, args[10])
}

func TestRecord_Error(t *testing.T) {
	db := &fakeDB{execErr: errors.New("connection refused")}
	_, err := New(db).Record(context.Background(), Entry{FileA: "a", FileB: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record comparison")
}

func TestRecent(t *testing.T) {
	id := uuid.New()
	ip := netip.MustParseAddr("10.1.2.3")
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	db := &fakeDB{rows: [][]any{
		{
			pgtype.UUID{Bytes: id, Valid: true}, "a.csv", "b.csv", false, "full",
			pgtype.Text{}, []byte(`{"total_only_in_a":1}`), int64(42),
			&ip, pgtype.Text{String: "curl", Valid: true},
			pgtype.Timestamptz{Time: created, Valid: true},
		},
		{
			pgtype.UUID{Bytes: uuid.New(), Valid: true}, "c.csv", "d.csv", false, "error",
			pgtype.Text{String: "file A: unreadable file", Valid: true}, []byte(nil), int64(1),
			nil, pgtype.Text{},
			pgtype.Timestamptz{Time: created.Add(-time.Minute), Valid: true},
		},
	}}

	entries, err := New(db).Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, []any{DefaultRecentLimit}, db.queryArgs)

	first := entries[0]
	assert.Equal(t, id.String(), first.ID)
	assert.Equal(t, "full", first.Stage)
	assert.JSONEq(t, `{"total_only_in_a":1}`, string(first.Diff))
	assert.Equal(t, "10.1.2.3", first.ClientIP)
	assert.Equal(t, "curl", first.UserAgent)
	assert.Equal(t, created, first.CreatedAt)

	second := entries[1]
	assert.Equal(t, "file A: unreadable file", second.Error)
	assert.Empty(t, second.ClientIP)
	assert.Nil(t, second.Diff)
}

func TestRecent_ClampsLimit(t *testing.T) {
	db := &fakeDB{}
	_, err := New(db).Recent(context.Background(), 10_000)
	require.NoError(t, err)
	assert.Equal(t, []any{MaxRecentLimit}, db.queryArgs)
}

func TestRecent_QueryError(t *testing.T) {
	db := &fakeDB{queryErr: errors.New("connection refused")}
	_, err := New(db).Recent(context.Background(), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query history")
}
