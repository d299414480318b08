package engine

import (
	"context"
	"fmt"

	"rpc-feeprobe-go/internal/models"
)

// LogArchive is the persistence the Postgres sink writes through;
// *database.Repository implements it.
type LogArchive interface {
	SaveLogEntries(ctx context.Context, runID string, entries []models.LogEntry) error
}

// PostgresSink 数据库归档，runID 区分不同进程的 seq
type PostgresSink struct {
	archive LogArchive
	runID   string
}

func NewPostgresSink(archive LogArchive, runID string) *PostgresSink {
	return &PostgresSink{archive: archive, runID: runID}
}

func (s *PostgresSink) Name() string { return "postgres" }

func (s *PostgresSink) WriteEntries(ctx context.Context, entries []models.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := s.archive.SaveLogEntries(ctx, s.runID, entries); err != nil {
		return fmt.Errorf("postgres_sink_write_failed: %w", err)
	}
	return nil
}

func (s *PostgresSink) Close() error {
	// 数据库连接由外部管理
	return nil
}
