package engine

import (
	"context"

	"rpc-feeprobe-go/internal/evmrpc"
	"rpc-feeprobe-go/internal/models"
)

// FeeHistoryClient is the external fee-history collaborator; *evmrpc.Client
// implements it.
type FeeHistoryClient interface {
	FeeHistory(ctx context.Context, services evmrpc.RpcServices, cfg *evmrpc.RpcConfig, args evmrpc.FeeHistoryArgs, budget uint64) (evmrpc.MultiFeeHistoryResult, error)
}

var _ FeeHistoryClient = (*evmrpc.Client)(nil)

// LogSink 日志记录的消费者接口 (Postgres 归档, lz4 录制, WebSocket 推送)
type LogSink interface {
	Name() string
	// WriteEntries 写入日志记录
	WriteEntries(ctx context.Context, entries []models.LogEntry) error
	// Close 资源回收
	Close() error
}
