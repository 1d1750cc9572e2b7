// Package postgres implements database.Backend on a single JSONB table.
// PostgreSQL has no push notifications for arbitrary queries that survive
// connection pooling, so watches poll and emit only when the result changes.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"

	"github.com/wizdm/studio-backend/internal/database"
)

const (
	tableName           = "documents"
	DefaultPollInterval = time.Second
)

// Querier is the subset of *pgxpool.Pool the backend needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

var (
	psql       = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	fieldName  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	errBadName = errors.New("invalid field name")
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       JSONB NOT NULL DEFAULT '{}'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_data_gin ON documents USING GIN (data jsonb_path_ops);
`

// Migrate creates the documents table when it does not exist.
func Migrate(ctx context.Context, db Querier) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate documents: %w", err)
	}
	return nil
}

// Backend stores documents as JSONB rows keyed by (collection, id).
type Backend struct {
	db   Querier
	poll time.Duration
}

var _ database.Backend = (*Backend)(nil)

// New creates a backend that polls every poll interval (DefaultPollInterval
// when zero).
func New(db Querier, poll time.Duration) *Backend {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Backend{db: db, poll: poll}
}

func (b *Backend) Ping(ctx context.Context) error {
	return b.db.Ping(ctx)
}

func (b *Backend) Add(ctx context.Context, collection string, data database.Fields) (string, error) {
	id := ulid.Make().String()

	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal document: %w", err)
	}

	query, args, err := psql.Insert(tableName).
		Columns("collection", "id", "data").
		Values(collection, id, sq.Expr("?::jsonb", string(raw))).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to build insert: %w", err)
	}

	if _, err := b.db.Exec(ctx, query, args...); err != nil {
		return "", fmt.Errorf("failed to insert document: %w", err)
	}
	return id, nil
}

// Merge upserts the document. Top-level keys of data replace stored keys.
func (b *Backend) Merge(ctx context.Context, collection, id string, data database.Fields) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	query, args, err := psql.Insert(tableName).
		Columns("collection", "id", "data").
		Values(collection, id, sq.Expr("?::jsonb", string(raw))).
		Suffix("ON CONFLICT (collection, id) DO UPDATE SET data = documents.data || EXCLUDED.data, updated_at = now()").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build upsert: %w", err)
	}

	if _, err := b.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to merge document: %w", err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, collection, id string) error {
	query, args, err := psql.Delete(tableName).
		Where(sq.Eq{"collection": collection, "id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}

	if _, err := b.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func (b *Backend) WatchQuery(ctx context.Context, q database.Query, emit func([]database.Snapshot) bool) error {
	query, args, err := buildSelect(q)
	if err != nil {
		return err
	}

	return b.watch(ctx, func() (any, error) {
		return b.selectSnapshots(ctx, query, args)
	}, func(v any) bool {
		return emit(v.([]database.Snapshot))
	})
}

func (b *Backend) WatchDocument(ctx context.Context, collection, id string, emit func(*database.Snapshot) bool) error {
	query, args, err := psql.Select("data").
		From(tableName).
		Where(sq.Eq{"collection": collection, "id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build select: %w", err)
	}

	return b.watch(ctx, func() (any, error) {
		var raw []byte
		err := b.db.QueryRow(ctx, query, args...).Scan(&raw)
		if errors.Is(err, pgx.ErrNoRows) {
			return (*database.Snapshot)(nil), nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load document: %w", err)
		}
		var data database.Fields
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal document %s: %w", id, err)
		}
		return &database.Snapshot{ID: id, Data: data}, nil
	}, func(v any) bool {
		return emit(v.(*database.Snapshot))
	})
}

func (b *Backend) watch(ctx context.Context, load func() (any, error), emit func(any) bool) error {
	last, err := load()
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	if !emit(last) {
		return nil
	}

	ticker := time.NewTicker(b.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			next, err := load()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			if reflect.DeepEqual(next, last) {
				continue
			}
			last = next
			if !emit(next) {
				return nil
			}
		}
	}
}

func (b *Backend) selectSnapshots(ctx context.Context, query string, args []any) ([]database.Snapshot, error) {
	rows, err := b.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	out := []database.Snapshot{}
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		var data database.Fields
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal document %s: %w", id, err)
		}
		out = append(out, database.Snapshot{ID: id, Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return out, nil
}

// buildSelect translates a query into SQL over the documents table. Results
// are always ordered by id last so polling sees a stable order.
func buildSelect(q database.Query) (string, []any, error) {
	builder := psql.Select("id", "data").
		From(tableName).
		Where(sq.Eq{"collection": q.Collection})

	for _, f := range q.Filters {
		cond, err := filterExpr(f)
		if err != nil {
			return "", nil, err
		}
		builder = builder.Where(cond)
	}

	for _, o := range q.Orders {
		if !fieldName.MatchString(o.Field) {
			return "", nil, fmt.Errorf("%w: %q", errBadName, o.Field)
		}
		dir := "ASC"
		if o.Direction == database.Desc {
			dir = "DESC"
		}
		builder = builder.OrderByClause("(data -> ?) "+dir, o.Field)
	}
	builder = builder.OrderBy("id ASC")

	if q.Max > 0 {
		builder = builder.Limit(uint64(q.Max))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build select: %w", err)
	}
	return query, args, nil
}

func filterExpr(f database.Filter) (sq.Sqlizer, error) {
	if !fieldName.MatchString(f.Field) {
		return nil, fmt.Errorf("%w: %q", errBadName, f.Field)
	}

	switch f.Op {
	case database.OpEqual:
		return containsExpr(f.Field, f.Value)
	case database.OpNotEqual:
		eq, err := containsExpr(f.Field, f.Value)
		if err != nil {
			return nil, err
		}
		sql, args, _ := eq.ToSql()
		return sq.Expr("NOT ("+sql+")", args...), nil
	case database.OpLess, database.OpLessEqual, database.OpGreater, database.OpGreaterEqual:
		raw, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal filter value: %w", err)
		}
		// jsonb ordering compares values of different types by type first,
		// so require the stored value to share the operand's type.
		return sq.Expr(
			fmt.Sprintf("(jsonb_typeof(data -> ?) = jsonb_typeof(?::jsonb) AND (data -> ?) %s ?::jsonb)", f.Op),
			f.Field, string(raw), f.Field, string(raw),
		), nil
	case database.OpIn:
		rv := reflect.ValueOf(f.Value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, fmt.Errorf("in filter on %q needs a list value", f.Field)
		}
		or := sq.Or{}
		for i := 0; i < rv.Len(); i++ {
			eq, err := containsExpr(f.Field, rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			or = append(or, eq)
		}
		if len(or) == 0 {
			return sq.Expr("FALSE"), nil
		}
		return or, nil
	case database.OpArrayContains:
		raw, err := json.Marshal([]any{f.Value})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal filter value: %w", err)
		}
		return sq.Expr("(data -> ?) @> ?::jsonb", f.Field, string(raw)), nil
	default:
		return nil, fmt.Errorf("unsupported operator %q", f.Op)
	}
}

func containsExpr(field string, value any) (sq.Sqlizer, error) {
	raw, err := json.Marshal(map[string]any{field: value})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal filter value: %w", err)
	}
	return sq.Expr("data @> ?::jsonb", string(raw)), nil
}
