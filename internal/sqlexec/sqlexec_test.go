// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package sqlexec

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	apperrors "askbank/cli/internal/errors"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutorQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, name FROM customers`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), []byte("张三")).
			AddRow(int64(2), nil))

	exec := NewExecutor(db, ExecOptions{})
	res, err := exec.Query(context.Background(), "SELECT id, name FROM customers")
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name"}, res.Columns)
	assert.Equal(t, 2, res.RowCount)
	assert.False(t, res.Truncated)
	assert.Equal(t, "张三", res.Rows[0][1])
	assert.Equal(t, "[(1, '张三'), (2, NULL)]", res.Text())
	assert.Equal(t, map[string]any{"id": int64(1), "name": "张三"}, res.Records()[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutorTruncatesAtMaxRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"n"})
	for i := 0; i < 5; i++ {
		rows.AddRow(int64(i))
	}
	mock.ExpectQuery(`SELECT n FROM t`).WillReturnRows(rows)

	res, err := NewExecutor(db, ExecOptions{MaxRows: 3}).Query(context.Background(), "SELECT n FROM t")
	require.NoError(t, err)
	assert.Equal(t, 3, res.RowCount)
	assert.True(t, res.Truncated)
}

func TestExecutorRejectsUnsafeSQL(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewExecutor(db, ExecOptions{}).Query(context.Background(), "DELETE FROM customers")
	require.Error(t, err)
	assert.Equal(t, apperrors.UnsafeSQL, apperrors.KindOf(err))
}

func TestExecutorWrapsDriverError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT bogus FROM t`).WillReturnError(errors.New("Error 1054: Unknown column 'bogus'"))

	_, err = NewExecutor(db, ExecOptions{}).Query(context.Background(), "SELECT bogus FROM t")
	require.Error(t, err)
	assert.Equal(t, apperrors.ExecutionFailed, apperrors.KindOf(err))
	assert.Contains(t, err.Error(), "Unknown column 'bogus'")
}

func TestResultMarshalJSON(t *testing.T) {
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	res := Result{Columns: []string{"name", "opened"}, Rows: [][]any{{[]byte("x"), ts}}, RowCount: 1}

	b, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"columns":["name","opened"],"rows":[["x","2024-03-01"]],"row_count":1}`, string(b))
}

func expectCatalog(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(`FROM INFORMATION_SCHEMA.TABLES`).
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "TABLE_COMMENT", "TABLE_ROWS"}).
			AddRow("customers", "客户信息", int64(100)).
			AddRow("orders", "", int64(500)))
	mock.ExpectQuery(`FROM INFORMATION_SCHEMA.COLUMNS`).WithArgs("customers").
		WillReturnRows(sqlmock.NewRows([]string{"c", "t", "ct", "n", "d", "cm", "k"}).
			AddRow("id", "int", "int(11)", "NO", nil, "客户ID", "PRI").
			AddRow("name", "varchar", "varchar(64)", "YES", nil, "", ""))
	mock.ExpectQuery(`FROM INFORMATION_SCHEMA.COLUMNS`).WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{"c", "t", "ct", "n", "d", "cm", "k"}).
			AddRow("id", "int", "int(11)", "NO", nil, "", "PRI").
			AddRow("customer_id", "int", "int(11)", "NO", "0", "", "MUL"))
	mock.ExpectQuery(`FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE`).
		WillReturnRows(sqlmock.NewRows([]string{"a", "b", "c", "d"}).
			AddRow("orders", "customer_id", "customers", "id"))
}

func TestInspectorSchemaTextIsCached(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	expectCatalog(mock)

	si := NewInspector(db, MySQL, time.Minute, nil)
	text, err := si.SchemaText(context.Background(), 0)
	require.NoError(t, err)

	assert.Contains(t, text, "数据库类型: MySQL")
	assert.Contains(t, text, "表 customers (客户信息):")
	assert.Contains(t, text, "  - id int(11) PRIMARY KEY NOT NULL -- 客户ID")
	assert.Contains(t, text, "  - orders.customer_id -> customers.id")

	// Second call is served from cache: no further queries are expected.
	again, err := si.SchemaText(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, text, again)
	assert.NoError(t, mock.ExpectationsWereMet())

	cols, err := si.Columns(context.Background(), "orders")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	require.NotNil(t, cols[1].Default)
	assert.Equal(t, "0", *cols[1].Default)
}

func TestInspectorHasTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery(`FROM INFORMATION_SCHEMA.TABLES`).
		WillReturnRows(sqlmock.NewRows([]string{"a", "b", "c"}).AddRow("customers", "", int64(0)))

	si := NewInspector(db, MySQL, 0, nil)
	ok, err := si.HasTable(context.Background(), "CUSTOMERS")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = si.HasTable(context.Background(), "accounts")
	require.NoError(t, err)
	assert.False(t, ok)
}
