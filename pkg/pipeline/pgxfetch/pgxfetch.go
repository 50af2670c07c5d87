// Package pgxfetch implements the pipeline Fetcher natively over a pgx
// connection pool. Statements use pgx named arguments (@name). Rows become
// typst.Record values with the returned columns marked selected.
package pgxfetch

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/frankdugan3/typstflow/pkg/pipeline"
	"github.com/frankdugan3/typstflow/pkg/session"
	"github.com/frankdugan3/typstflow/pkg/typst"
)

// Fetcher fetches pipeline records from PostgreSQL via pgx.
type Fetcher struct {
	pool *pgxpool.Pool
	kind string
}

// New returns a Fetcher reading from pool, tagging records with kind.
func New(pool *pgxpool.Pool, kind string) *Fetcher {
	return &Fetcher{pool: pool, kind: kind}
}

// Connect opens a pool for url and wraps it in a Fetcher.
func Connect(ctx context.Context, url, kind string) (*Fetcher, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("pgxfetch: connecting: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgxfetch: ping failed: %w", err)
	}
	return New(pool, kind), nil
}

// Close releases the underlying pool.
func (f *Fetcher) Close() {
	f.pool.Close()
}

// FetchOne runs the statement and returns the first row, if any.
func (f *Fetcher) FetchOne(ctx context.Context, q pipeline.Query) (any, bool, error) {
	rows, err := f.pool.Query(ctx, q.Statement, pgx.NamedArgs(q.Args))
	if err != nil {
		return nil, false, fmt.Errorf("pgxfetch: query failed: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, false, fmt.Errorf("pgxfetch: reading row: %w", err)
		}
		return nil, false, nil
	}

	record, err := scanRecord(rows, f.kind)
	if err != nil {
		return nil, false, err
	}
	return record, true, nil
}

// FetchMany runs the statement and returns a cursor over the rows.
func (f *Fetcher) FetchMany(ctx context.Context, q pipeline.Query) (session.Cursor, error) {
	rows, err := f.pool.Query(ctx, q.Statement, pgx.NamedArgs(q.Args))
	if err != nil {
		return nil, fmt.Errorf("pgxfetch: query failed: %w", err)
	}
	return &rowCursor{rows: rows, kind: f.kind, limit: q.Limit}, nil
}

type rowCursor struct {
	rows    pgx.Rows
	kind    string
	limit   int
	yielded int
}

func (c *rowCursor) Next() (any, bool, error) {
	if c.limit > 0 && c.yielded >= c.limit {
		return nil, false, nil
	}
	if !c.rows.Next() {
		if err := c.rows.Err(); err != nil {
			return nil, false, fmt.Errorf("pgxfetch: reading row: %w", err)
		}
		return nil, false, nil
	}

	record, err := scanRecord(c.rows, c.kind)
	if err != nil {
		return nil, false, err
	}
	c.yielded++
	return record, true, nil
}

func (c *rowCursor) Close() error {
	c.rows.Close()
	return nil
}

func scanRecord(rows pgx.Rows, kind string) (typst.Record, error) {
	values, err := rows.Values()
	if err != nil {
		return typst.Record{}, fmt.Errorf("pgxfetch: scanning row: %w", err)
	}

	descs := rows.FieldDescriptions()
	fields := make([]typst.Field, len(descs))
	selected := make([]string, len(descs))
	for i, desc := range descs {
		name := string(desc.Name)
		fields[i] = typst.Field{Name: name, Value: normalize(values[i])}
		selected[i] = name
	}

	return typst.Record{
		Kind:      kind,
		Fields:    fields,
		Queryable: true,
		Selected:  selected,
	}, nil
}

func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
