package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rpc-feeprobe-go/internal/config"
	"rpc-feeprobe-go/internal/engine"
	"rpc-feeprobe-go/internal/evmrpc"
	"rpc-feeprobe-go/internal/models"
	"rpc-feeprobe-go/internal/monitor"
	"rpc-feeprobe-go/internal/web"
)

type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) RecentLogEntries(ctx context.Context, limit int) ([]models.LogEntry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.LogEntry), args.Error(1)
}

func newTestServer(archive ArchiveReader) (*Server, *engine.LogStore) {
	store := engine.NewLogStore(2)
	sched := engine.NewScheduler(engine.DefaultRegistry(), 10*time.Second, nil)
	s := &Server{
		store:   store,
		plan:    sched.Plan,
		archive: archive,
		hub:     web.NewHub(),
		health:  engine.NewHealthServer(store, nil, monitor.NewQuotaMonitor(0)),
	}
	return s, store
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestAPI_Logs(t *testing.T) {
	s, store := newTestServer(nil)
	store.Append(models.SeverityInfo, "✅, EthMainnet(Ankr)")
	store.Append(models.SeverityError, "🛑, EthMainnet(BlockPi), No fee history returned.")
	store.Append(models.SeverityInfo, "✅, EthMainnet(PublicNode)")
	router := s.Router()

	rec := get(t, router, "/api/logs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Entries  []models.LogEntry `json:"entries"`
		Capacity int               `json:"capacity"`
		Evicted  uint64            `json:"evicted"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Entries, 2)
	assert.Equal(t, "🛑, EthMainnet(BlockPi), No fee history returned.", body.Entries[0].Message)
	assert.Equal(t, 2, body.Capacity)
	assert.Equal(t, uint64(1), body.Evicted)

	// 两次读取结果一致
	assert.Equal(t, rec.Body.String(), get(t, router, "/api/logs").Body.String())

	rec = get(t, router, "/api/logs?since=2")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Entries, 1)
	assert.Equal(t, uint64(3), body.Entries[0].Seq)

	assert.Equal(t, http.StatusBadRequest, get(t, router, "/api/logs?since=abc").Code)
}

func TestAPI_LogsEmpty(t *testing.T) {
	s, _ := newTestServer(nil)
	rec := get(t, s.Router(), "/api/logs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"entries":[]`)
}

func TestAPI_Archive(t *testing.T) {
	archive := &MockArchive{}
	s, _ := newTestServer(archive)
	router := s.Router()

	archive.On("RecentLogEntries", mock.Anything, 5).
		Return([]models.LogEntry{{Seq: 9, Severity: models.SeverityInfo, Message: "✅, BaseMainnet(Ankr)"}}, nil).Once()
	rec := get(t, router, "/api/logs/archive?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "BaseMainnet(Ankr)")

	archive.On("RecentLogEntries", mock.Anything, 0).Return(nil, errors.New("db down")).Once()
	assert.Equal(t, http.StatusInternalServerError, get(t, router, "/api/logs/archive").Code)

	assert.Equal(t, http.StatusBadRequest, get(t, router, "/api/logs/archive?limit=0").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, router, "/api/logs/archive?limit=5000").Code)
	archive.AssertExpectations(t)
}

func TestAPI_ArchiveNotConfigured(t *testing.T) {
	s, _ := newTestServer(nil)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, s.Router(), "/api/logs/archive").Code)
}

func TestAPI_Registry(t *testing.T) {
	s, _ := newTestServer(nil)
	rec := get(t, s.Router(), "/api/registry")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Endpoints []registryEntry `json:"endpoints"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Endpoints, 21)
	assert.Equal(t, "EthMainnet(Alchemy)", body.Endpoints[0].Endpoint)
	assert.Equal(t, 0.0, body.Endpoints[0].DelaySeconds)
	assert.Equal(t, 200.0, body.Endpoints[20].DelaySeconds)
	assert.Equal(t, []string{"Ankr"}, body.Endpoints[20].Providers)
}

func TestAPI_HealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(nil)
	router := s.Router()

	rec := get(t, router, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
	assert.Contains(t, rec.Body.String(), `"log_store"`)

	engine.GetMetrics().RecordProbeScheduled()
	rec = get(t, router, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "feeprobe_probes_scheduled_total")
}

func TestAPI_MethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/logs", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

type stubFeeHistory struct{}

func (stubFeeHistory) FeeHistory(_ context.Context, services evmrpc.RpcServices, _ *evmrpc.RpcConfig, _ evmrpc.FeeHistoryArgs, _ uint64) (evmrpc.MultiFeeHistoryResult, error) {
	if services.Chain == evmrpc.EthSepolia {
		return evmrpc.MultiFeeHistoryResult{}, evmrpc.ErrInsufficientBudget
	}
	return evmrpc.ConsistentResult(evmrpc.FeeHistoryResult{Ok: &evmrpc.FeeHistory{
		BaseFeePerGas: nil,
	}}), nil
}

func TestRunOnce(t *testing.T) {
	store := engine.NewLogStore(0)
	registry := engine.NewRegistry(
		evmrpc.RpcServices{Chain: evmrpc.EthMainnet, Providers: []evmrpc.Provider{evmrpc.Ankr}},
		evmrpc.RpcServices{Chain: evmrpc.EthSepolia, Providers: []evmrpc.Provider{evmrpc.Ankr}},
	)
	prober := engine.NewProber(stubFeeHistory{}, store, engine.DefaultProbeConfig())
	app := &App{
		Registry:  registry,
		Store:     store,
		Scheduler: engine.NewScheduler(registry, 0, prober),
	}

	var buf bytes.Buffer
	require.NoError(t, runOnce(app, &buf))

	var entries []models.LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entries))
	require.Len(t, entries, 2)

	messages := []string{entries[0].Message, entries[1].Message}
	assert.ElementsMatch(t, []string{
		"🛑, EthMainnet(Ankr), No baseFeePerGas returned.",
		"🛑, EthSepolia(Ankr), Err: insufficient cost budget",
	}, messages)
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		StaggerInterval: time.Second,
		BlockCount:      4,
		NewestBlock:     "latest",
		CostBudget:      30_000_000_000,
		RequestCost:     1_000_000_000,
		LogCapacity:     100,
		ValidationMode:  "strict",
		RPCTimeout:      time.Second,
		RPCRateLimit:    3,
		Port:            "0",
		RecordingPath:   filepath.Join(t.TempDir(), "run.lz4"),
	}
}

func TestNewApp(t *testing.T) {
	app, err := NewApp(testConfig(t))
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, 21, app.Registry.Len())
	assert.Nil(t, app.Repo)
	assert.NotEmpty(t, app.RunID)
	assert.Len(t, app.Scheduler.Plan(), 21)
}

func TestNewApp_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.ValidationMode = "loose"
	_, err := NewApp(cfg)
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.NewestBlock = "tomorrow"
	_, err = NewApp(cfg)
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.RecordingPath = filepath.Join(t.TempDir(), "missing", "run.lz4")
	_, err = NewApp(cfg)
	assert.Error(t, err)
}

func TestBuildProbeConfig_ConsensusMin(t *testing.T) {
	cfg := testConfig(t)
	pc, err := buildProbeConfig(cfg, rpc.LatestBlockNumber, engine.ValidationStrict)
	require.NoError(t, err)
	assert.Nil(t, pc.RpcConfig)
	assert.Equal(t, uint64(4), pc.Args.BlockCount)
	assert.Equal(t, uint64(30_000_000_000), pc.Budget)

	cfg.ConsensusMin = 2
	pc, err = buildProbeConfig(cfg, rpc.SafeBlockNumber, engine.ValidationLenient)
	require.NoError(t, err)
	require.NotNil(t, pc.RpcConfig)
	assert.Equal(t, evmrpc.Threshold(2), pc.RpcConfig.Consensus)
	assert.Equal(t, rpc.SafeBlockNumber, pc.Args.NewestBlock)
	assert.Equal(t, engine.ValidationLenient, pc.Mode)

	cfg.ConsensusMin = -1
	_, err = buildProbeConfig(cfg, rpc.LatestBlockNumber, engine.ValidationStrict)
	assert.Error(t, err)
}

func TestNewApp_NegativeConsensusMin(t *testing.T) {
	cfg := testConfig(t)
	cfg.ConsensusMin = -3
	_, err := NewApp(cfg)
	assert.ErrorContains(t, err, "PROBE_CONSENSUS_MIN")
}

func TestDumpRecording(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.lz4")
	sink, err := engine.NewLz4Sink(path)
	require.NoError(t, err)
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, sink.WriteEntries(context.Background(), []models.LogEntry{
		{Seq: 1, Timestamp: ts, Severity: models.SeverityInfo, Message: "✅, ArbitrumOne(Ankr)"},
	}))
	require.NoError(t, sink.Close())

	var buf bytes.Buffer
	require.NoError(t, dumpRecording(&buf, path))
	assert.Equal(t, "#1 2024-01-02T03:04:05Z [INFO] ✅, ArbitrumOne(Ankr)\n", buf.String())
}
