package database

import (
	"context"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"rpc-feeprobe-go/internal/models"
)

// DefaultArchiveLimit /api/logs/archive 默认返回条数
const DefaultArchiveLimit = 100

type Repository struct {
	db *sqlx.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	db, err := sqlx.Connect("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &Repository{db: db}, nil
}

// NewRepositoryFromDB 复用已有连接（测试中用于 sqlmock）
func NewRepositoryFromDB(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) DB() *sqlx.DB {
	return r.db
}

func (r *Repository) Close() error {
	return r.db.Close()
}

type logRow struct {
	RunID string `db:"run_id"`
	models.LogEntry
}

// SaveLogEntries 批量插入，(run_id, seq) 重复时忽略
func (r *Repository) SaveLogEntries(ctx context.Context, runID string, entries []models.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]logRow, len(entries))
	for i, e := range entries {
		rows[i] = logRow{RunID: runID, LogEntry: e}
	}

	query := `
		INSERT INTO probe_logs (run_id, seq, timestamp, severity, message)
		VALUES (:run_id, :seq, :timestamp, :severity, :message)
		ON CONFLICT (run_id, seq) DO NOTHING
	`
	if _, err := r.db.NamedExecContext(ctx, query, rows); err != nil {
		return fmt.Errorf("insert probe_logs: %w", err)
	}
	return nil
}

// RecentLogEntries 返回最近 limit 条记录，按时间正序
func (r *Repository) RecentLogEntries(ctx context.Context, limit int) ([]models.LogEntry, error) {
	if limit <= 0 {
		limit = DefaultArchiveLimit
	}
	var entries []models.LogEntry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT seq, timestamp, severity, message FROM (
			SELECT id, seq, timestamp, severity, message
			FROM probe_logs
			ORDER BY id DESC
			LIMIT $1
		) recent
		ORDER BY id ASC
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("select probe_logs: %w", err)
	}
	if entries == nil {
		entries = []models.LogEntry{}
	}
	return entries, nil
}

// CountBySeverity 各级别的归档条数
func (r *Repository) CountBySeverity(ctx context.Context) (map[models.Severity]int64, error) {
	var rows []struct {
		Severity models.Severity `db:"severity"`
		Count    int64           `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, "SELECT severity, COUNT(*) AS count FROM probe_logs GROUP BY severity"); err != nil {
		return nil, fmt.Errorf("count probe_logs: %w", err)
	}
	out := make(map[models.Severity]int64, len(rows))
	for _, row := range rows {
		out[row.Severity] = row.Count
	}
	return out, nil
}
