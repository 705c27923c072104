package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries holds the SQL statements used by the repository.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a Queries bound to tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// TransactionRow mirrors the transactions table.
type TransactionRow struct {
	ID          int64
	Date        sql.NullString
	Description string
	Category    string
	Amount      sql.NullString
}

type InsertTransactionParams struct {
	Date        sql.NullString
	Description string
	Category    string
	Amount      sql.NullString
}

const insertTransaction = `INSERT INTO transactions (date, description, category, amount)
VALUES (?, ?, ?, ?)`

func (q *Queries) InsertTransaction(ctx context.Context, arg InsertTransactionParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertTransaction, arg.Date, arg.Description, arg.Category, arg.Amount)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const listTransactions = `SELECT id, date, description, category, amount
FROM transactions
ORDER BY id ASC`

func (q *Queries) ListTransactions(ctx context.Context) ([]TransactionRow, error) {
	rows, err := q.db.QueryContext(ctx, listTransactions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []TransactionRow
	for rows.Next() {
		var i TransactionRow
		if err := rows.Scan(&i.ID, &i.Date, &i.Description, &i.Category, &i.Amount); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countTransactions = `SELECT COUNT(*) FROM transactions`

func (q *Queries) CountTransactions(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countTransactions).Scan(&n)
	return n, err
}

const insertExcludedMerchant = `INSERT OR IGNORE INTO excluded_merchants (merchant) VALUES (?)`

func (q *Queries) InsertExcludedMerchant(ctx context.Context, merchant string) error {
	_, err := q.db.ExecContext(ctx, insertExcludedMerchant, merchant)
	return err
}

const listExcludedMerchants = `SELECT merchant FROM excluded_merchants ORDER BY merchant ASC`

func (q *Queries) ListExcludedMerchants(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listExcludedMerchants)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteExcludedMerchants = `DELETE FROM excluded_merchants`

func (q *Queries) DeleteExcludedMerchants(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteExcludedMerchants)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
