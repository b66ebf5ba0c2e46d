// File: internal/store/store.go
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"github.com/xkilldash9x/stepwise/internal/report"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DBPool abstracts pgxpool.Pool so tests can substitute pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS run_batches (
    id          UUID PRIMARY KEY,
    input_file  TEXT NOT NULL,
    started_at  TIMESTAMPTZ NOT NULL,
    finished_at TIMESTAMPTZ NOT NULL,
    total       INTEGER NOT NULL,
    succeeded   INTEGER NOT NULL,
    failed      INTEGER NOT NULL,
    skipped     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS run_results (
    batch_id      UUID NOT NULL REFERENCES run_batches (id) ON DELETE CASCADE,
    position      INTEGER NOT NULL,
    subtask_id    TEXT NOT NULL,
    task          TEXT NOT NULL,
    configuration TEXT NOT NULL,
    action        TEXT NOT NULL,
    columns       JSONB NOT NULL,
    result        TEXT NOT NULL,
    comment       TEXT NOT NULL,
    PRIMARY KEY (batch_id, position)
);`

const insertBatchSQL = `
INSERT INTO run_batches (id, input_file, started_at, finished_at, total, succeeded, failed, skipped)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);`

const selectResultsSQL = `
SELECT subtask_id, task, configuration, action, columns, result, comment
FROM run_results
WHERE batch_id = $1
ORDER BY position ASC;`

var resultColumns = []string{"batch_id", "position", "subtask_id", "task", "configuration", "action", "columns", "result", "comment"}

// Batch is the persisted summary of one run.
type Batch struct {
	ID         uuid.UUID
	InputFile  string
	StartedAt  time.Time
	FinishedAt time.Time
	Entries    []report.Entry
}

// counts tallies entry results.
func (b *Batch) counts() (succeeded, failed, skipped int) {
	for _, e := range b.Entries {
		switch e.Result {
		case report.ResultSuccess:
			succeeded++
		case report.ResultFailed:
			failed++
		case report.ResultSkipped:
			skipped++
		}
	}
	return succeeded, failed, skipped
}

// Store keeps run history in PostgreSQL.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a store and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{pool: pool, log: logger.Named("store")}, nil
}

// EnsureSchema creates the run history tables when they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveBatch writes the batch row and all of its entries in one transaction.
func (s *Store) SaveBatch(ctx context.Context, b *Batch) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	succeeded, failed, skipped := b.counts()
	if _, err := tx.Exec(ctx, insertBatchSQL,
		b.ID, b.InputFile, b.StartedAt.UTC(), b.FinishedAt.UTC(),
		len(b.Entries), succeeded, failed, skipped,
	); err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}

	if len(b.Entries) > 0 {
		if err := s.persistEntries(ctx, tx, b.ID, b.Entries); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Info("Persisted run results.", zap.String("batch_id", b.ID.String()), zap.Int("entries", len(b.Entries)))
	return nil
}

func (s *Store) persistEntries(ctx context.Context, tx pgx.Tx, batchID uuid.UUID, entries []report.Entry) error {
	rows := make([][]any, len(entries))
	for i, e := range entries {
		cols, err := json.Marshal(e.Columns)
		if err != nil {
			return fmt.Errorf("failed to encode columns of entry %d: %w", i, err)
		}
		rows[i] = []any{batchID, i + 1, e.SubtaskID, e.Task, e.Configuration, e.Action, cols, e.Result, e.Comment}
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{"run_results"}, resultColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy run results: %w", err)
	}
	if int(n) != len(entries) {
		return fmt.Errorf("mismatch in copied results count: expected %d, got %d", len(entries), n)
	}
	return nil
}

// Entries returns the report entries of a stored batch in their original order.
func (s *Store) Entries(ctx context.Context, batchID uuid.UUID) ([]report.Entry, error) {
	rows, err := s.pool.Query(ctx, selectResultsSQL, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run results: %w", err)
	}
	defer rows.Close()

	var entries []report.Entry
	for rows.Next() {
		var (
			e    report.Entry
			cols []byte
		)
		if err := rows.Scan(&e.SubtaskID, &e.Task, &e.Configuration, &e.Action, &cols, &e.Result, &e.Comment); err != nil {
			return nil, fmt.Errorf("failed to scan run result row: %w", err)
		}
		if err := json.Unmarshal(cols, &e.Columns); err != nil {
			return nil, fmt.Errorf("failed to decode columns: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return entries, nil
}
