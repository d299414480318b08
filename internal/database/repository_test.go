package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpc-feeprobe-go/internal/models"
)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRepositoryFromDB(sqlx.NewDb(db, "sqlmock")), mock
}

func TestRepository_SaveLogEntries(t *testing.T) {
	repo, mock := newMockRepo(t)
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO probe_logs").
		WithArgs("run-1", uint64(1), ts, models.SeverityInfo, "✅, EthMainnet(Ankr)").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.SaveLogEntries(context.Background(), "run-1", []models.LogEntry{
		{Seq: 1, Timestamp: ts, Severity: models.SeverityInfo, Message: "✅, EthMainnet(Ankr)"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_SaveLogEntries_Empty(t *testing.T) {
	repo, mock := newMockRepo(t)
	require.NoError(t, repo.SaveLogEntries(context.Background(), "run-1", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_SaveLogEntries_Error(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("INSERT INTO probe_logs").WillReturnError(errors.New("connection reset"))

	err := repo.SaveLogEntries(context.Background(), "run-1", []models.LogEntry{{Seq: 1, Severity: models.SeverityError, Message: "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert probe_logs")
}

func TestRepository_RecentLogEntries(t *testing.T) {
	repo, mock := newMockRepo(t)
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"seq", "timestamp", "severity", "message"}).
		AddRow(int64(4), ts, "INFO", "✅, BaseMainnet(Ankr)").
		AddRow(int64(5), ts.Add(10*time.Second), "ERROR", "🛑, BaseMainnet(BlockPi), Inconsistent result")
	mock.ExpectQuery("SELECT seq, timestamp, severity, message FROM").
		WithArgs(2).
		WillReturnRows(rows)

	got, err := repo.RecentLogEntries(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(4), got[0].Seq)
	assert.Equal(t, models.SeverityError, got[1].Severity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_RecentLogEntries_DefaultLimit(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("FROM probe_logs").
		WithArgs(DefaultArchiveLimit).
		WillReturnRows(sqlmock.NewRows([]string{"seq", "timestamp", "severity", "message"}))

	got, err := repo.RecentLogEntries(context.Background(), 0)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRepository_CountBySeverity(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("SELECT severity, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"severity", "count"}).
			AddRow("INFO", int64(18)).
			AddRow("ERROR", int64(3)))

	got, err := repo.CountBySeverity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(18), got[models.SeverityInfo])
	assert.Equal(t, int64(3), got[models.SeverityError])
}

func TestInitSchema(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS probe_logs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_probe_logs_timestamp").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_probe_logs_severity").WillReturnError(errors.New("permission denied"))

	require.NoError(t, InitSchema(context.Background(), repo.DB()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_RecentLogEntries_NormalizesSeverity(t *testing.T) {
	repo, mock := newMockRepo(t)
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM probe_logs").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"seq", "timestamp", "severity", "message"}).
			AddRow(int64(9), ts, []byte("error"), "🛑, EthSepolia(Ankr), Err: timeout"))

	got, err := repo.RecentLogEntries(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.SeverityError, got[0].Severity)
}

func TestRepository_RecentLogEntries_UnknownSeverity(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("FROM probe_logs").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"seq", "timestamp", "severity", "message"}).
			AddRow(int64(1), time.Now(), "WARN", "?"))

	_, err := repo.RecentLogEntries(context.Background(), 1)
	assert.ErrorContains(t, err, "unknown severity")
}
