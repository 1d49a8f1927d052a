package remote

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/nexypass/nexypass-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgres(db), mock
}

func TestPostgres_Insert(t *testing.T) {
	p, mock := newMock(t)

	// Columns are sorted, so the statement is deterministic.
	mock.ExpectQuery(regexp.QuoteMeta(
		"INSERT INTO products (is_active, name, price) VALUES ($1, $2, $3) RETURNING *",
	)).
		WithArgs(true, "Netflix", 25.0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price", "is_active", "created_at"}).
			AddRow("a1b2", "Netflix", 25.0, true, "2026-08-29T10:00:00Z"))

	row, err := p.Insert(context.Background(), models.CollectionProducts, Row{
		"name": "Netflix", "price": 25.0, "is_active": true,
	})
	require.NoError(t, err)
	assert.Equal(t, "a1b2", row["id"])
	assert.Equal(t, "Netflix", row["name"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertRejectsUnknownColumn(t *testing.T) {
	p, _ := newMock(t)

	_, err := p.Insert(context.Background(), models.CollectionProducts, Row{"evil; DROP": "x"})
	assert.Error(t, err)

	_, err = p.Insert(context.Background(), "no_such_table", Row{"id": "1"})
	assert.Error(t, err)
}

func TestPostgres_Select(t *testing.T) {
	p, mock := newMock(t)

	t.Run("unfiltered", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM users ORDER BY created_at DESC")).
			WillReturnRows(sqlmock.NewRows([]string{"id", "username"}).
				AddRow("u2", "bo").
				AddRow("u1", "ana"))

		rows, err := p.Select(context.Background(), models.CollectionUsers, nil)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "u2", rows[0]["id"])
	})

	t.Run("filtered", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(
			"SELECT * FROM stock_items WHERE is_sold = $1 AND product_id = $2 ORDER BY created_at DESC",
		)).
			WithArgs(false, "p1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "product_id", "is_sold"}).
				AddRow("s1", "p1", false))

		rows, err := p.Select(context.Background(), models.CollectionStockItems, Row{
			"product_id": "p1", "is_sold": false,
		})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "s1", rows[0]["id"])
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SelectConvertsBytes(t *testing.T) {
	p, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM users ORDER BY created_at DESC")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username"}).
			AddRow([]byte("u1"), []byte("ana")))

	rows, err := p.Select(context.Background(), models.CollectionUsers, nil)
	require.NoError(t, err)
	assert.Equal(t, "u1", rows[0]["id"])
	assert.Equal(t, "ana", rows[0]["username"])
}

func TestPostgres_Update(t *testing.T) {
	p, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET is_approved = $1, wallet_balance = $2 WHERE id = $3")).
		WithArgs(true, 40.0, "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := p.Update(context.Background(), models.CollectionUsers, "u1", Row{
		"wallet_balance": 40.0, "is_approved": true,
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Delete(t *testing.T) {
	p, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM products WHERE id = $1")).
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM stock_items WHERE product_id = $1")).
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, p.Delete(context.Background(), models.CollectionProducts, "p1"))
	require.NoError(t, p.DeleteWhere(context.Background(), models.CollectionStockItems, Row{"product_id": "p1"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_DeleteWhereNeedsFilter(t *testing.T) {
	p, _ := newMock(t)
	err := p.DeleteWhere(context.Background(), models.CollectionStockItems, Row{})
	assert.Error(t, err)
}

func TestPostgres_Probe(t *testing.T) {
	p, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1")).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	assert.NoError(t, p.Probe(context.Background()))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1")).WillReturnError(assert.AnError)
	assert.Error(t, p.Probe(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
