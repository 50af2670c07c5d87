// Package sqlfetch implements the pipeline Fetcher over database/sql.
// Rows are surfaced as typst.Record values whose selected-field metadata is
// the returned column set, so visibility filtering matches what the query
// actually loaded. Any registered driver works; argument binding uses
// sql.Named, so statements reference parameters by name.
package sqlfetch

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/frankdugan3/typstflow/pkg/pipeline"
	"github.com/frankdugan3/typstflow/pkg/session"
	"github.com/frankdugan3/typstflow/pkg/typst"
)

// Fetcher fetches pipeline records from a database/sql handle.
type Fetcher struct {
	db *sql.DB

	// kind tags the records handed to the encoder.
	kind string
}

// New returns a Fetcher reading from db, tagging records with kind.
func New(db *sql.DB, kind string) *Fetcher {
	return &Fetcher{db: db, kind: kind}
}

// FetchOne runs the statement and returns the first row, if any.
func (f *Fetcher) FetchOne(ctx context.Context, q pipeline.Query) (any, bool, error) {
	rows, err := f.db.QueryContext(ctx, q.Statement, namedArgs(q.Args)...)
	if err != nil {
		return nil, false, fmt.Errorf("sqlfetch: query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, false, fmt.Errorf("sqlfetch: reading columns: %w", err)
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, false, fmt.Errorf("sqlfetch: reading row: %w", err)
		}
		return nil, false, nil
	}

	record, err := scanRecord(rows, columns, f.kind)
	if err != nil {
		return nil, false, err
	}
	return record, true, nil
}

// FetchMany runs the statement and returns a cursor over the rows. The
// query's Limit, when set, caps how many rows the cursor yields.
func (f *Fetcher) FetchMany(ctx context.Context, q pipeline.Query) (session.Cursor, error) {
	rows, err := f.db.QueryContext(ctx, q.Statement, namedArgs(q.Args)...)
	if err != nil {
		return nil, fmt.Errorf("sqlfetch: query failed: %w", err)
	}

	columns, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("sqlfetch: reading columns: %w", err)
	}

	return &rowCursor{rows: rows, columns: columns, kind: f.kind, limit: q.Limit}, nil
}

type rowCursor struct {
	rows    *sql.Rows
	columns []string
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
			return nil, false, fmt.Errorf("sqlfetch: reading row: %w", err)
		}
		return nil, false, nil
	}

	record, err := scanRecord(c.rows, c.columns, c.kind)
	if err != nil {
		return nil, false, err
	}
	c.yielded++
	return record, true, nil
}

func (c *rowCursor) Close() error { return c.rows.Close() }

type scanner interface {
	Scan(dest ...any) error
}

// scanRecord scans the current row into a typst.Record in column order,
// marking every returned column as selected.
func scanRecord(row scanner, columns []string, kind string) (typst.Record, error) {
	values := make([]any, len(columns))
	valuePtrs := make([]any, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}
	if err := row.Scan(valuePtrs...); err != nil {
		return typst.Record{}, fmt.Errorf("sqlfetch: scanning row: %w", err)
	}

	fields := make([]typst.Field, len(columns))
	for i, col := range columns {
		fields[i] = typst.Field{Name: col, Value: normalize(values[i])}
	}

	return typst.Record{
		Kind:      kind,
		Fields:    fields,
		Queryable: true,
		Selected:  append([]string(nil), columns...),
	}, nil
}

// normalize maps driver scan types onto encoder kinds.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// namedArgs converts the argument map to sql.Named values in sorted key
// order for deterministic binding.
func namedArgs(args map[string]any) []any {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = sql.Named(k, args[k])
	}
	return out
}
