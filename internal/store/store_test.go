package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stepwise/internal/report"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	pool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func newStore(t *testing.T, pool pgxmock.PgxPoolIface) *Store {
	t.Helper()
	pool.ExpectPing()
	s, err := New(context.Background(), pool, zap.NewNop())
	require.NoError(t, err)
	return s
}

func sampleBatch() *Batch {
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ok := report.Entry{SubtaskID: "42", Task: "Printer Settings", Configuration: "A", Action: "Updating Configuration A", Result: report.ResultSuccess}
	ok.Columns[0] = report.ColumnChange{Updated: "Timeout", OldData: "15", NewData: "30"}
	skipped := report.Entry{SubtaskID: "99", Task: "Printer Settings", Configuration: "B", Result: report.ResultSkipped, Comment: "subtask not found"}
	return &Batch{
		ID:         uuid.MustParse("5b0c8c4e-3f0e-4a44-9d0c-7e1b8e3f6a11"),
		InputFile:  "input.xlsx",
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Minute),
		Entries:    []report.Entry{ok, skipped},
	}
}

func TestNewStore(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		pool := newMockPool(t)
		pingErr := errors.New("database unavailable")
		pool.ExpectPing().WillReturnError(pingErr)

		_, err := New(context.Background(), pool, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr)
		assert.NoError(t, pool.ExpectationsWereMet())
	})

	t.Run("should succeed if ping succeeds", func(t *testing.T) {
		pool := newMockPool(t)
		s := newStore(t, pool)
		assert.NotNil(t, s)
		assert.NoError(t, pool.ExpectationsWereMet())
	})
}

func TestEnsureSchema(t *testing.T) {
	pool := newMockPool(t)
	s := newStore(t, pool)
	pool.ExpectExec(flexibleSQLMatcher(schemaSQL)).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.EnsureSchema(context.Background()))
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestSaveBatch(t *testing.T) {
	t.Run("inserts batch and copies entries", func(t *testing.T) {
		pool := newMockPool(t)
		s := newStore(t, pool)
		b := sampleBatch()

		pool.ExpectBegin()
		pool.ExpectExec(flexibleSQLMatcher(insertBatchSQL)).
			WithArgs(b.ID, "input.xlsx", b.StartedAt, b.FinishedAt, 2, 1, 0, 1).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		pool.ExpectCopyFrom(pgx.Identifier{"run_results"}, resultColumns).WillReturnResult(2)
		pool.ExpectCommit()

		require.NoError(t, s.SaveBatch(context.Background(), b))
		assert.NoError(t, pool.ExpectationsWereMet())
	})

	t.Run("rolls back when the batch insert fails", func(t *testing.T) {
		pool := newMockPool(t)
		s := newStore(t, pool)
		dbErr := errors.New("duplicate key")

		pool.ExpectBegin()
		pool.ExpectExec(flexibleSQLMatcher(insertBatchSQL)).WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).WillReturnError(dbErr)
		pool.ExpectRollback()

		err := s.SaveBatch(context.Background(), sampleBatch())
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, pool.ExpectationsWereMet())
	})

	t.Run("copy count mismatch is an error", func(t *testing.T) {
		pool := newMockPool(t)
		s := newStore(t, pool)

		pool.ExpectBegin()
		pool.ExpectExec(flexibleSQLMatcher(insertBatchSQL)).WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).WillReturnResult(pgxmock.NewResult("INSERT", 1))
		pool.ExpectCopyFrom(pgx.Identifier{"run_results"}, resultColumns).WillReturnResult(1)
		pool.ExpectRollback()

		err := s.SaveBatch(context.Background(), sampleBatch())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mismatch in copied results count")
		assert.NoError(t, pool.ExpectationsWereMet())
	})
}

func TestEntries(t *testing.T) {
	pool := newMockPool(t)
	s := newStore(t, pool)
	b := sampleBatch()

	cols, err := json.Marshal(b.Entries[0].Columns)
	require.NoError(t, err)
	rows := pgxmock.NewRows([]string{"subtask_id", "task", "configuration", "action", "columns", "result", "comment"}).
		AddRow("42", "Printer Settings", "A", "Updating Configuration A", cols, report.ResultSuccess, "")
	pool.ExpectQuery(flexibleSQLMatcher(selectResultsSQL)).WithArgs(b.ID).WillReturnRows(rows)

	got, err := s.Entries(context.Background(), b.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, b.Entries[0], got[0])
	assert.NoError(t, pool.ExpectationsWereMet())
}
