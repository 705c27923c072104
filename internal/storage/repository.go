package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"txlens/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// One connection: the store assumes a single writer
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping verifies the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// AppendTransactions inserts the batch in a single SQL transaction and returns
// the assigned ids in input order. IDs on the input are ignored.
func (r *SQLiteRepository) AppendTransactions(ctx context.Context, txs []core.Transaction) ([]int64, error) {
	if len(txs) == 0 {
		return nil, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	ids := make([]int64, 0, len(txs))
	for i, t := range txs {
		id, err := q.InsertTransaction(ctx, toInsertParams(t))
		if err != nil {
			return nil, fmt.Errorf("insert transaction %d: %w", i, err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit append: %w", err)
	}

	slog.InfoContext(ctx, "Transactions appended to SQLite",
		"count", len(ids),
		"first_id", ids[0],
		"last_id", ids[len(ids)-1])

	return ids, nil
}

// ListTransactions returns every stored transaction in insertion order.
func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := fromRow(row)
		if err != nil {
			return nil, fmt.Errorf("decode transaction %d: %w", row.ID, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// CountTransactions returns the number of stored transactions.
func (r *SQLiteRepository) CountTransactions(ctx context.Context) (int64, error) {
	n, err := r.queries.CountTransactions(ctx)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

// ExcludeMerchant adds merchant to the excluded set. Repeated calls are no-ops.
func (r *SQLiteRepository) ExcludeMerchant(ctx context.Context, merchant string) error {
	if err := r.queries.InsertExcludedMerchant(ctx, merchant); err != nil {
		return fmt.Errorf("exclude merchant: %w", err)
	}
	slog.InfoContext(ctx, "Merchant excluded", "merchant", merchant)
	return nil
}

// ListExcluded returns the excluded merchants sorted by name.
func (r *SQLiteRepository) ListExcluded(ctx context.Context) ([]string, error) {
	items, err := r.queries.ListExcludedMerchants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list excluded merchants: %w", err)
	}
	return items, nil
}

// ReinstateAll clears the excluded set and reports how many entries were removed.
func (r *SQLiteRepository) ReinstateAll(ctx context.Context) (int64, error) {
	n, err := r.queries.DeleteExcludedMerchants(ctx)
	if err != nil {
		return 0, fmt.Errorf("reinstate merchants: %w", err)
	}
	slog.InfoContext(ctx, "Excluded merchants reinstated", "count", n)
	return n, nil
}

func toInsertParams(t core.Transaction) InsertTransactionParams {
	p := InsertTransactionParams{
		Description: t.Description,
		Category:    t.Category,
	}
	if t.HasDate() {
		p.Date = sql.NullString{String: t.Date.String(), Valid: true}
	}
	if t.Amount.Valid {
		p.Amount = sql.NullString{String: t.Amount.Decimal.String(), Valid: true}
	}
	return p
}

func fromRow(row TransactionRow) (core.Transaction, error) {
	t := core.Transaction{
		ID:          row.ID,
		Description: row.Description,
		Category:    row.Category,
	}
	if row.Date.Valid {
		d, err := core.ParseISODate(row.Date.String)
		if err != nil {
			return t, err
		}
		t.Date = d
	}
	if row.Amount.Valid && row.Amount.String != "" {
		d, err := decimal.NewFromString(row.Amount.String)
		if err != nil {
			return t, fmt.Errorf("%w: %q", core.ErrInvalidAmount, row.Amount.String)
		}
		t.Amount = decimal.NewNullDecimal(d)
	}
	return t, nil
}
