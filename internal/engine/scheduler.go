package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"rpc-feeprobe-go/internal/evmrpc"
	"rpc-feeprobe-go/internal/recovery"
)

// DefaultStagger 相邻两个探测之间的间隔
const DefaultStagger = 10 * time.Second

var ErrAlreadyStarted = errors.New("scheduler already started")

// ProbeRunner runs one probe; *Prober implements it.
type ProbeRunner interface {
	Run(ctx context.Context, services evmrpc.RpcServices) Outcome
}

// Task is one armed probe: registry entry Index fires after Delay.
type Task struct {
	Index    int                `json:"index"`
	Delay    time.Duration      `json:"delay"`
	Services evmrpc.RpcServices `json:"services"`
}

type timer interface {
	Stop() bool
}

// Scheduler arms one one-shot probe per registry entry, entry i firing after
// i*stagger. Tasks are independent: each runs on its own goroutine.
type Scheduler struct {
	registry Registry
	stagger  time.Duration
	runner   ProbeRunner
	metrics  *Metrics

	afterFunc func(d time.Duration, f func()) timer

	mu      sync.Mutex
	started bool
	timers  []timer
	wg      sync.WaitGroup
}

func NewScheduler(registry Registry, stagger time.Duration, runner ProbeRunner) *Scheduler {
	if stagger < 0 {
		stagger = 0
	}
	return &Scheduler{
		registry: registry,
		stagger:  stagger,
		runner:   runner,
		afterFunc: func(d time.Duration, f func()) timer {
			return time.AfterFunc(d, f)
		},
	}
}

// SetMetrics 注入指标（可选）
func (s *Scheduler) SetMetrics(m *Metrics) {
	s.metrics = m
}

// Plan 返回每个条目的启动偏移，与 Start 使用的完全一致
func (s *Scheduler) Plan() []Task {
	tasks := make([]Task, s.registry.Len())
	for i := range tasks {
		tasks[i] = Task{
			Index:    i,
			Delay:    time.Duration(i) * s.stagger,
			Services: s.registry.At(i),
		}
	}
	return tasks
}

// Start arms every task and returns immediately. Probes started by the timers
// outlive ctx cancellation; only Stop prevents timers that have not fired.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	probeCtx := context.WithoutCancel(ctx)
	tasks := s.Plan()
	s.timers = make([]timer, 0, len(tasks))
	s.wg.Add(len(tasks))
	for _, task := range tasks {
		s.timers = append(s.timers, s.afterFunc(task.Delay, s.taskFunc(probeCtx, task)))
		LogProbeScheduled(task.Index, task.Services.String(), task.Delay)
		if s.metrics != nil {
			s.metrics.RecordProbeScheduled()
		}
	}

	Logger.Info("🚀 probes armed",
		slog.Int("count", len(tasks)),
		slog.Duration("stagger", s.stagger),
	)
	return nil
}

func (s *Scheduler) taskFunc(ctx context.Context, task Task) func() {
	return func() {
		defer s.wg.Done()
		recovery.WithRecoveryNamed(fmt.Sprintf("probe-%d", task.Index), func() {
			s.runner.Run(ctx, task.Services)
		})
	}
}

// Wait blocks until every armed task has finished or been stopped.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Stop 取消尚未触发的定时器，已开始的探测会照常完成
func (s *Scheduler) Stop() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	stopped := 0
	for _, t := range s.timers {
		if t.Stop() {
			stopped++
			s.wg.Done()
		}
	}
	s.timers = nil
	if stopped > 0 {
		Logger.Info("🛑 pending probes cancelled", slog.Int("count", stopped))
	}
	return stopped
}
