package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wizdm/studio-backend/internal/database"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestBuildSelect(t *testing.T) {
	q := database.NewQuery("projects").
		Where("owner", database.OpEqual, "u1").
		OrderBy("lowerCaseName", database.Asc).
		Limit(2)

	query, args, err := buildSelect(q)
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT id, data FROM documents WHERE collection = $1 AND data @> $2::jsonb ORDER BY (data -> $3) ASC, id ASC LIMIT 2",
		query)
	assert.Equal(t, []any{"projects", `{"owner":"u1"}`, "lowerCaseName"}, args)
}

func TestFilterExpr(t *testing.T) {
	tests := []struct {
		name     string
		filter   database.Filter
		wantSQL  string
		wantArgs []any
		wantErr  bool
	}{
		{
			name:     "equal",
			filter:   database.Filter{Field: "name", Op: database.OpEqual, Value: "x"},
			wantSQL:  "data @> ?::jsonb",
			wantArgs: []any{`{"name":"x"}`},
		},
		{
			name:     "not equal",
			filter:   database.Filter{Field: "name", Op: database.OpNotEqual, Value: "x"},
			wantSQL:  "NOT (data @> ?::jsonb)",
			wantArgs: []any{`{"name":"x"}`},
		},
		{
			name:     "greater",
			filter:   database.Filter{Field: "stars", Op: database.OpGreater, Value: 3},
			wantSQL:  "(jsonb_typeof(data -> ?) = jsonb_typeof(?::jsonb) AND (data -> ?) > ?::jsonb)",
			wantArgs: []any{"stars", "3", "stars", "3"},
		},
		{
			name:     "array contains",
			filter:   database.Filter{Field: "tags", Op: database.OpArrayContains, Value: "go"},
			wantSQL:  "(data -> ?) @> ?::jsonb",
			wantArgs: []any{"tags", `["go"]`},
		},
		{
			name:     "in",
			filter:   database.Filter{Field: "owner", Op: database.OpIn, Value: []string{"a", "b"}},
			wantSQL:  "(data @> ?::jsonb OR data @> ?::jsonb)",
			wantArgs: []any{`{"owner":"a"}`, `{"owner":"b"}`},
		},
		{
			name:    "in needs a list",
			filter:  database.Filter{Field: "owner", Op: database.OpIn, Value: "a"},
			wantErr: true,
		},
		{
			name:    "field name is validated",
			filter:  database.Filter{Field: "x'); DROP TABLE documents; --", Op: database.OpEqual, Value: 1},
			wantErr: true,
		},
		{
			name:    "unknown operator",
			filter:  database.Filter{Field: "x", Op: "~", Value: 1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := filterExpr(tt.filter)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			sql, args, err := expr.ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestBackend_Writes(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		setup   func(mock pgxmock.PgxPoolIface)
		run     func(b *Backend) error
		wantErr bool
	}{
		{
			name: "add",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents (collection,id,data)")).
					WithArgs("projects", pgxmock.AnyArg(), `{"name":"Alpha"}`).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
			run: func(b *Backend) error {
				id, err := b.Add(ctx, "projects", database.Fields{"name": "Alpha"})
				if err == nil && id == "" {
					return errors.New("empty id")
				}
				return err
			},
		},
		{
			name: "merge upserts",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (collection, id) DO UPDATE SET data = documents.data || EXCLUDED.data")).
					WithArgs("projects", "p1", `{"name":"Beta"}`).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
			run: func(b *Backend) error {
				return b.Merge(ctx, "projects", "p1", database.Fields{"name": "Beta"})
			},
		},
		{
			name: "delete missing succeeds",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(regexp.QuoteMeta("DELETE FROM documents")).
					WithArgs("projects", "nope").
					WillReturnResult(pgxmock.NewResult("DELETE", 0))
			},
			run: func(b *Backend) error {
				return b.Delete(ctx, "projects", "nope")
			},
		},
		{
			name: "database error is returned",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(regexp.QuoteMeta("DELETE FROM documents")).
					WithArgs("projects", "p1").
					WillReturnError(errors.New("connection reset"))
			},
			run: func(b *Backend) error {
				return b.Delete(ctx, "projects", "p1")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			tt.setup(mock)

			err := tt.run(New(mock, 0))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestBackend_WatchQueryEmitsOnlyChanges(t *testing.T) {
	mock := newMock(t)
	selectSQL := regexp.QuoteMeta("SELECT id, data FROM documents WHERE collection = $1")

	mock.ExpectQuery(selectSQL).WithArgs("projects").
		WillReturnRows(pgxmock.NewRows([]string{"id", "data"}).
			AddRow("a", []byte(`{"name":"Alpha"}`)))
	mock.ExpectQuery(selectSQL).WithArgs("projects").
		WillReturnRows(pgxmock.NewRows([]string{"id", "data"}).
			AddRow("a", []byte(`{"name":"Alpha"}`)))
	mock.ExpectQuery(selectSQL).WithArgs("projects").
		WillReturnRows(pgxmock.NewRows([]string{"id", "data"}).
			AddRow("a", []byte(`{"name":"Alpha"}`)).
			AddRow("b", []byte(`{"name":"Beta"}`)))

	var got [][]database.Snapshot
	b := New(mock, 5*time.Millisecond)
	err := b.WatchQuery(context.Background(), database.NewQuery("projects"), func(s []database.Snapshot) bool {
		got = append(got, s)
		return len(got) < 2
	})
	require.NoError(t, err)

	require.Len(t, got, 2, "identical polls are not re-emitted")
	require.Len(t, got[0], 1)
	require.Len(t, got[1], 2)
	assert.Equal(t, "Beta", got[1][1].Data["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBackend_WatchDocumentMissingIsNil(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT data FROM documents")).
		WithArgs("projects", "p1").
		WillReturnError(pgx.ErrNoRows)

	var got []*database.Snapshot
	err := New(mock, 0).WatchDocument(context.Background(), "projects", "p1", func(s *database.Snapshot) bool {
		got = append(got, s)
		return false
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBackend_WatchQueryFailure(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("SELECT").WithArgs("projects").WillReturnError(errors.New("permission denied"))

	err := New(mock, 0).WatchQuery(context.Background(), database.NewQuery("projects"), func([]database.Snapshot) bool {
		t.Fatal("nothing should be emitted")
		return false
	})
	assert.ErrorContains(t, err, "permission denied")
}

func TestMigrate(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS documents")).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, Migrate(context.Background(), mock))
	assert.NoError(t, mock.ExpectationsWereMet())
}
