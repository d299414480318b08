package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/ethereum/go-ethereum/rpc"

	"rpc-feeprobe-go/internal/evmrpc"
)

const (
	DefaultBlockCount = 4
	DefaultCostBudget = 30_000_000_000
)

// ProbeConfig is fixed for every probe in a process.
type ProbeConfig struct {
	Args      evmrpc.FeeHistoryArgs
	Budget    uint64
	Mode      ValidationMode
	RpcConfig *evmrpc.RpcConfig // nil 表示使用默认共识
}

// DefaultProbeConfig 4 个区块，latest，无 reward 分位数
func DefaultProbeConfig() ProbeConfig {
	return ProbeConfig{
		Args: evmrpc.FeeHistoryArgs{
			BlockCount:  DefaultBlockCount,
			NewestBlock: rpc.LatestBlockNumber,
		},
		Budget: DefaultCostBudget,
		Mode:   ValidationStrict,
	}
}

// Prober runs a single fee-history check and records its verdict.
type Prober struct {
	client  FeeHistoryClient
	store   *LogStore
	cfg     ProbeConfig
	metrics *Metrics
}

func NewProber(client FeeHistoryClient, store *LogStore, cfg ProbeConfig) *Prober {
	return &Prober{
		client: client,
		store:  store,
		cfg:    cfg,
	}
}

// SetMetrics 注入指标（可选）
func (p *Prober) SetMetrics(m *Metrics) {
	p.metrics = m
}

// Run issues exactly one FeeHistory call for services and appends exactly
// one entry to the LogStore, whatever the call does, panics included.
func (p *Prober) Run(ctx context.Context, services evmrpc.RpcServices) Outcome {
	start := time.Now()
	endpoint := services.String()

	outcome := p.fetch(ctx, services)
	p.store.Append(outcome.Severity(), outcome.Message(endpoint))

	if outcome.Kind == OutcomeInconsistent {
		Logger.Warn("⚠️ providers disagree",
			slog.String("endpoint", endpoint),
			slog.String("sources", outcome.Detail),
		)
	}
	if p.metrics != nil {
		p.metrics.RecordProbeOutcome(services.Chain, outcome, time.Since(start))
	}
	return outcome
}

func (p *Prober) fetch(ctx context.Context, services evmrpc.RpcServices) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Error("probe_panic_recovered",
				slog.String("endpoint", services.String()),
				slog.String("error", fmt.Sprintf("%v", r)),
				slog.String("stack", string(debug.Stack())),
			)
			outcome = Outcome{Kind: OutcomeCallError, Detail: fmt.Sprintf("panic: %v", r)}
		}
	}()

	res, err := p.client.FeeHistory(ctx, services, p.cfg.RpcConfig, p.cfg.Args, p.cfg.Budget)
	return ClassifyWithMode(res, err, p.cfg.Mode)
}
