// Package history persists previously imported transactions so later imports
// can detect re-imported statements. The pipeline itself never touches
// storage; callers load history through a Store and hand the transactions to
// the pipeline.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/finlatam/bankparse/internal/domain"
)

// Store is the persistence boundary for imported transactions.
type Store interface {
	// Transactions returns every previously recorded transaction.
	Transactions(ctx context.Context) ([]domain.BankTransaction, error)

	// Record stores the given transactions under an import ID. Recording
	// the same fitId twice is a no-op, keeping Record idempotent.
	Record(ctx context.Context, importID string, txns []domain.BankTransaction) error

	Close() error
}

// SQLiteStore is a file-backed Store for CLI use.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	fit_id                 TEXT PRIMARY KEY,
	txn_date               TEXT NOT NULL,
	amount                 REAL NOT NULL,
	description            TEXT NOT NULL DEFAULT '',
	normalized_description TEXT NOT NULL DEFAULT '',
	category               TEXT NOT NULL DEFAULT '',
	import_id              TEXT NOT NULL DEFAULT '',
	recorded_at            TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_import ON transactions(import_id);
`

// OpenSQLite opens (creating if needed) a SQLite-backed history store.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database %q: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Transactions loads the full recorded history.
func (s *SQLiteStore) Transactions(ctx context.Context) ([]domain.BankTransaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT fit_id, txn_date, amount, description, normalized_description, category FROM transactions`)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var txns []domain.BankTransaction
	for rows.Next() {
		var (
			fitID, dateStr, description, normalized, category string
			amount                                            float64
		)
		if err := rows.Scan(&fitID, &dateStr, &amount, &description, &normalized, &category); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q in history row %s: %w", dateStr, fitID, err)
		}

		txns = append(txns, domain.BankTransaction{
			FitID:                 fitID,
			Date:                  date,
			Amount:                amount,
			Direction:             domain.DirectionFor(amount),
			Type:                  domain.TypeOther,
			Description:           description,
			NormalizedDescription: normalized,
			Category:              domain.Category(category),
			ReconciliationStatus:  domain.StatusPending,
		})
	}
	return txns, rows.Err()
}

// Record stores transactions, ignoring fitIds already present.
func (s *SQLiteStore) Record(ctx context.Context, importID string, txns []domain.BankTransaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin history transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO transactions
		(fit_id, txn_date, amount, description, normalized_description, category, import_id, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare history insert: %w", err)
	}
	defer stmt.Close()

	recordedAt := time.Now().UTC().Format(time.RFC3339)
	for _, txn := range txns {
		if _, err := stmt.ExecContext(ctx,
			txn.FitID, txn.Date.Format("2006-01-02"), txn.Amount,
			txn.Description, txn.NormalizedDescription, string(txn.Category),
			importID, recordedAt); err != nil {
			return fmt.Errorf("failed to record transaction %s: %w", txn.FitID, err)
		}
	}
	return tx.Commit()
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
