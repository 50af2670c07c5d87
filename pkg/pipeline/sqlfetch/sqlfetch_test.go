package sqlfetch

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frankdugan3/typstflow/pkg/pipeline"
	"github.com/frankdugan3/typstflow/pkg/typst"
)

func newMock(t *testing.T) (*Fetcher, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	return New(db, "record"), mock
}

const selectInvoice = "SELECT number, total FROM invoices WHERE id = :id"

func TestFetchOne(t *testing.T) {
	f, mock := newMock(t)
	mock.ExpectQuery(selectInvoice).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"number", "total"}).AddRow("INV-7", 129))

	value, ok, err := f.FetchOne(context.Background(), pipeline.Query{
		Statement: selectInvoice,
		Args:      map[string]any{"id": 7},
	})
	require.NoError(t, err)
	require.True(t, ok)

	record, isRecord := value.(typst.Record)
	require.True(t, isRecord)
	assert.Equal(t, "record", record.Kind)
	assert.True(t, record.Queryable)
	assert.Equal(t, []string{"number", "total"}, record.Selected)
	require.Len(t, record.Fields, 2)
	assert.Equal(t, "INV-7", record.Fields[0].Value)
}

func TestFetchOneNoRows(t *testing.T) {
	f, mock := newMock(t)
	mock.ExpectQuery(selectInvoice).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"number", "total"}))

	_, ok, err := f.FetchOne(context.Background(), pipeline.Query{
		Statement: selectInvoice,
		Args:      map[string]any{"id": 404},
	})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFetchOneQueryError(t *testing.T) {
	f, mock := newMock(t)
	boom := errors.New("relation does not exist")
	mock.ExpectQuery(selectInvoice).WithArgs(sqlmock.AnyArg()).WillReturnError(boom)

	_, _, err := f.FetchOne(context.Background(), pipeline.Query{
		Statement: selectInvoice,
		Args:      map[string]any{"id": 1},
	})
	assert.ErrorIs(t, err, boom)
}

func TestFetchManyCursor(t *testing.T) {
	f, mock := newMock(t)
	query := "SELECT id FROM entries"
	mock.ExpectQuery(query).WillReturnRows(
		sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2).AddRow(3))

	cursor, err := f.FetchMany(context.Background(), pipeline.Query{Statement: query})
	require.NoError(t, err)
	defer cursor.Close()

	var ids []any
	for {
		value, ok, err := cursor.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		record := value.(typst.Record)
		ids = append(ids, record.Fields[0].Value)
	}
	assert.Len(t, ids, 3)

	// Exhausted cursor stays exhausted.
	_, ok, err := cursor.Next()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFetchManyLimit(t *testing.T) {
	f, mock := newMock(t)
	query := "SELECT id FROM entries"
	mock.ExpectQuery(query).WillReturnRows(
		sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2).AddRow(3))

	cursor, err := f.FetchMany(context.Background(), pipeline.Query{Statement: query, Limit: 2})
	require.NoError(t, err)
	defer cursor.Close()

	count := 0
	for {
		_, ok, err := cursor.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		count++
	}
	assert.Equal(t, 2, count)
}

func TestByteColumnsNormalizeToString(t *testing.T) {
	f, mock := newMock(t)
	query := "SELECT note FROM entries"
	mock.ExpectQuery(query).WillReturnRows(
		sqlmock.NewRows([]string{"note"}).AddRow([]byte("hello")))

	cursor, err := f.FetchMany(context.Background(), pipeline.Query{Statement: query})
	require.NoError(t, err)
	defer cursor.Close()

	value, ok, err := cursor.Next()
	require.NoError(t, err)
	require.True(t, ok)
	record := value.(typst.Record)
	assert.Equal(t, "hello", record.Fields[0].Value)
}

func TestNamedArgsSortedAndNamed(t *testing.T) {
	args := namedArgs(map[string]any{"zebra": 1, "alpha": 2})
	require.Len(t, args, 2)

	first, ok := args[0].(sql.NamedArg)
	require.True(t, ok)
	second, ok := args[1].(sql.NamedArg)
	require.True(t, ok)
	assert.Equal(t, "alpha", first.Name)
	assert.Equal(t, 2, first.Value)
	assert.Equal(t, "zebra", second.Name)
}
