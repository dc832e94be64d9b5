package ledger

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/jmoiron/sqlx"

	apperrors "disbursex/internal/errors"
	"disbursex/pkg/contracts/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS disbursements (
	id                BIGSERIAL PRIMARY KEY,
	batch_id          TEXT        NOT NULL,
	process           TEXT        NOT NULL DEFAULT '',
	lot               TEXT        NOT NULL DEFAULT '',
	model             TEXT        NOT NULL,
	lot_no            TEXT        NOT NULL DEFAULT '',
	quantity_total    INTEGER     NOT NULL,
	expiry            TEXT        NOT NULL DEFAULT '',
	source_file_label TEXT        NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS disbursements_batch_id_idx ON disbursements (batch_id);
CREATE INDEX IF NOT EXISTS disbursements_model_idx ON disbursements (model);
`

const insertDisbursement = `
INSERT INTO disbursements (
	batch_id, process, lot, model, lot_no, quantity_total, expiry, source_file_label, created_at
) VALUES (
	:batch_id, :process, :lot, :model, :lot_no, :quantity_total, :expiry, :source_file_label, :created_at
)`

type disbursementRecord struct {
	domain.ExtractedRow
	BatchID   string    `db:"batch_id"`
	CreatedAt time.Time `db:"created_at"`
}

// PostgresStore writes extracted rows to the disbursements table.
type PostgresStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewPostgresStore connects through the pgx driver and creates the schema
// if needed.
func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", url)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to connect to database", err)
	}
	s := NewPostgresStoreFromDB(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStoreFromDB wraps an open connection pool.
func NewPostgresStoreFromDB(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// Migrate creates the disbursements table and its indexes.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return apperrors.NewStorageError("failed to create schema", err)
	}
	return nil
}

// Ping checks the connection pool.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return apperrors.NewStorageError("database unreachable", err)
	}
	return nil
}

// SaveRows inserts all rows of a batch in one transaction.
func (s *PostgresStore) SaveRows(ctx context.Context, batchID string, rows []domain.ExtractedRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperrors.NewStorageError("begin disbursement tx", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx, insertDisbursement)
	if err != nil {
		return apperrors.NewStorageError("prepare disbursement insert", err)
	}
	defer stmt.Close()

	now := s.now().UTC()
	for i, row := range rows {
		rec := disbursementRecord{ExtractedRow: row, BatchID: batchID, CreatedAt: now}
		if _, err := stmt.ExecContext(ctx, rec); err != nil {
			return apperrors.NewStorageError(fmt.Sprintf("insert disbursement %d", i), err).
				WithContext("batch_id", batchID)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewStorageError("commit disbursement tx", err)
	}
	return nil
}

// TotalsByModel sums stored quantities per model.
func (s *PostgresStore) TotalsByModel(ctx context.Context) ([]ModelTotal, error) {
	var totals []ModelTotal
	err := s.db.SelectContext(ctx, &totals, `
		SELECT model, SUM(quantity_total) AS total
		FROM disbursements
		GROUP BY model
		ORDER BY model
	`)
	if err != nil {
		return nil, apperrors.NewStorageError("query totals by model", err)
	}
	return totals, nil
}

// BatchRows returns the rows saved for one batch in insertion order.
func (s *PostgresStore) BatchRows(ctx context.Context, batchID string) ([]domain.ExtractedRow, error) {
	var rows []domain.ExtractedRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT process, lot, model, lot_no, quantity_total, expiry, source_file_label
		FROM disbursements
		WHERE batch_id = $1
		ORDER BY id
	`, batchID)
	if err != nil {
		return nil, apperrors.NewStorageError("query batch rows", err)
	}
	return rows, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
