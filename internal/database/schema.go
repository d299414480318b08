package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// InitSchema 确保归档表结构已就绪
func InitSchema(ctx context.Context, db *sqlx.DB) error {
	slog.Info("🛡️ [Database] Initializing Schema...")

	schema := `
	CREATE TABLE IF NOT EXISTS probe_logs (
		id BIGSERIAL PRIMARY KEY,
		run_id VARCHAR(64) NOT NULL,
		seq BIGINT NOT NULL,
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
		severity VARCHAR(8) NOT NULL,
		message TEXT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		UNIQUE (run_id, seq)
	);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}

	indices := []string{
		"CREATE INDEX IF NOT EXISTS idx_probe_logs_timestamp ON probe_logs(timestamp)",
		"CREATE INDEX IF NOT EXISTS idx_probe_logs_severity ON probe_logs(severity)",
	}
	for _, idx := range indices {
		if _, err := db.ExecContext(ctx, idx); err != nil {
			slog.Warn("failed_to_create_index", "err", err)
		}
	}

	slog.Info("✅ [Database] Schema is ready.")
	return nil
}
