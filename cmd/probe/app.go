package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/rpc"

	"rpc-feeprobe-go/internal/config"
	"rpc-feeprobe-go/internal/database"
	"rpc-feeprobe-go/internal/engine"
	"rpc-feeprobe-go/internal/evmrpc"
	"rpc-feeprobe-go/internal/monitor"
	"rpc-feeprobe-go/internal/recovery"
	"rpc-feeprobe-go/internal/web"
)

// buildProbeConfig PROBE_CONSENSUS_MIN > 0 时覆盖默认的全体一致
func buildProbeConfig(cfg *config.Config, newest rpc.BlockNumber, mode engine.ValidationMode) (engine.ProbeConfig, error) {
	if cfg.ConsensusMin < 0 {
		return engine.ProbeConfig{}, fmt.Errorf("PROBE_CONSENSUS_MIN must not be negative, got %d", cfg.ConsensusMin)
	}
	pc := engine.ProbeConfig{
		Args: evmrpc.FeeHistoryArgs{
			BlockCount:  cfg.BlockCount,
			NewestBlock: newest,
		},
		Budget: cfg.CostBudget,
		Mode:   mode,
	}
	if cfg.ConsensusMin > 0 {
		pc.RpcConfig = &evmrpc.RpcConfig{Consensus: evmrpc.Threshold(cfg.ConsensusMin)}
	}
	return pc, nil
}

// App 进程内所有组件
type App struct {
	Config    *config.Config
	Registry  engine.Registry
	Store     *engine.LogStore
	Scheduler *engine.Scheduler
	Client    *evmrpc.Client
	Quota     *monitor.QuotaMonitor
	Hub       *web.Hub
	Repo      *database.Repository // DATABASE_URL 为空时为 nil
	Metrics   *engine.Metrics
	RunID     string
}

func NewApp(cfg *config.Config) (*App, error) {
	mode, err := engine.ParseValidationMode(cfg.ValidationMode)
	if err != nil {
		return nil, err
	}
	newest, err := evmrpc.ParseBlockTag(cfg.NewestBlock)
	if err != nil {
		return nil, fmt.Errorf("PROBE_NEWEST_BLOCK: %w", err)
	}

	metrics := engine.GetMetrics()
	metrics.RecordStartTime()

	quota := monitor.NewQuotaMonitor(cfg.DailyCostQuota)
	client := evmrpc.NewClient(evmrpc.Options{
		Endpoints:     evmrpc.DefaultEndpoints(cfg.AlchemyAPIKey, cfg.AnkrAPIKey, cfg.RPCURLOverrides),
		RequestCost:   cfg.RequestCost,
		Timeout:       cfg.RPCTimeout,
		RateLimit:     cfg.RPCRateLimit,
		VerifyChainID: cfg.RPCVerifyChainID,
		Quota:         quota,
		OnRequest:     metrics.ObserveRPC,
	})

	store := engine.NewLogStore(cfg.LogCapacity)
	store.SetMetrics(metrics)

	app := &App{
		Config:   cfg,
		Registry: engine.DefaultRegistry(),
		Store:    store,
		Client:   client,
		Quota:    quota,
		Hub:      web.NewHub(),
		Metrics:  metrics,
		RunID:    newRunID(),
	}
	app.Hub.Backlog = store.GetAll

	if err := app.attachSinks(); err != nil {
		app.Close()
		return nil, err
	}

	probeCfg, err := buildProbeConfig(cfg, newest, mode)
	if err != nil {
		app.Close()
		return nil, err
	}
	prober := engine.NewProber(client, store, probeCfg)
	prober.SetMetrics(metrics)

	app.Scheduler = engine.NewScheduler(app.Registry, cfg.StaggerInterval, prober)
	app.Scheduler.SetMetrics(metrics)

	slog.Info("✅ prober configured",
		"endpoints", app.Registry.Len(),
		"stagger", cfg.StaggerInterval,
		"block_count", cfg.BlockCount,
		"newest_block", cfg.NewestBlock,
		"validation", mode.String(),
		"consensus_min", cfg.ConsensusMin,
		"log_capacity", cfg.LogCapacity,
		"run_id", app.RunID,
	)
	return app, nil
}

// attachSinks 按配置挂载 Postgres 归档和 lz4 录制
func (a *App) attachSinks() error {
	if a.Config.DatabaseURL != "" {
		repo, err := database.NewRepository(a.Config.DatabaseURL)
		if err != nil {
			return err
		}
		a.Repo = repo

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := database.InitSchema(ctx, repo.DB()); err != nil {
			return err
		}
		a.Store.AddSink(engine.NewPostgresSink(repo, a.RunID))
		slog.Info("🗄️ archive enabled")
	}

	if a.Config.RecordingPath != "" {
		sink, err := engine.NewLz4Sink(a.Config.RecordingPath)
		if err != nil {
			return err
		}
		a.Store.AddSink(sink)
		slog.Info("📼 recording enabled", "path", sink.Path())
	}
	return nil
}

// StartBackground 启动常驻模式下的后台组件
func (a *App) StartBackground(ctx context.Context) {
	a.Store.AddSink(a.Hub)
	recovery.WithRecovery(func() { a.Hub.Run(ctx) }, "websocket_hub")
	a.Quota.Start(ctx)
}

func (a *App) Close() {
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			slog.Warn("log_store_close_failed", "err", err)
		}
	}
	if a.Client != nil {
		a.Client.Close()
	}
	if a.Repo != nil {
		_ = a.Repo.Close()
	}
}

func newRunID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "probe"
	}
	if len(host) > 40 {
		host = host[:40]
	}
	return host + "-" + strconv.FormatInt(time.Now().UnixNano(), 36)
}
