package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	AlertThreshold    = 0.80 // 80% 预警阈值
	CriticalThreshold = 0.90 // 90% 临界阈值
)

var ErrQuotaExhausted = errors.New("daily cost quota exhausted")

var (
	gaugesOnce  sync.Once
	usageGauge  prometheus.Gauge
	statusGauge prometheus.Gauge
	spentGauge  prometheus.Gauge
)

func initGauges() {
	gaugesOnce.Do(func() {
		usageGauge = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "feeprobe_cost_quota_usage_percent",
			Help: "Percentage of daily cost quota used (0-100)",
		})
		statusGauge = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "feeprobe_cost_quota_status",
			Help: "Cost quota status: 0=Safe, 1=Warning, 2=Critical",
		})
		spentGauge = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "feeprobe_cost_units_spent",
			Help: "Cost units charged since the last daily reset",
		})
	})
}

// QuotaMonitor 每日成本额度监控器，limit 为 0 时只计数不拦截
type QuotaMonitor struct {
	limit uint64
	spent atomic.Uint64
	now   func() time.Time
}

// NewQuotaMonitor 创建新的额度监控器
func NewQuotaMonitor(dailyLimit uint64) *QuotaMonitor {
	initGauges()
	slog.Info("🛡️ Cost quota monitor initialized",
		"daily_limit", dailyLimit,
		"alert_threshold", AlertThreshold*100,
		"critical_threshold", CriticalThreshold*100)

	return &QuotaMonitor{limit: dailyLimit, now: time.Now}
}

// Charge 在每次对外调用前扣除 units，额度不足时拒绝且不扣除
func (m *QuotaMonitor) Charge(units uint64) error {
	for {
		current := m.spent.Load()
		next := current + units
		if m.limit > 0 && next > m.limit {
			statusGauge.Set(2)
			return fmt.Errorf("%w: spent %d, requested %d, limit %d", ErrQuotaExhausted, current, units, m.limit)
		}
		if m.spent.CompareAndSwap(current, next) {
			m.report(next)
			return nil
		}
	}
}

func (m *QuotaMonitor) report(spent uint64) {
	spentGauge.Set(float64(spent))
	if m.limit == 0 {
		return
	}

	usage := float64(spent) / float64(m.limit)
	usageGauge.Set(usage * 100)

	status := 0.0
	if usage >= CriticalThreshold {
		status = 2.0
	} else if usage >= AlertThreshold {
		status = 1.0
	}
	statusGauge.Set(status)

	if status == 2.0 {
		slog.Error("🛑 CRITICAL: cost quota nearly exhausted!",
			"usage_percent", usage*100,
			"spent", spent,
			"limit", m.limit)
	}
}

// Spent 返回当天已扣除的 units
func (m *QuotaMonitor) Spent() uint64 {
	return m.spent.Load()
}

// GetUsagePercent 返回当前使用率（0-100），不限额时为 0
func (m *QuotaMonitor) GetUsagePercent() float64 {
	if m.limit == 0 {
		return 0
	}
	return float64(m.spent.Load()) / float64(m.limit) * 100
}

// calculateNextReset 计算下一个 UTC 0 点
func (m *QuotaMonitor) calculateNextReset() time.Time {
	now := m.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
}

// Start 启动每日重置定时器，直到 ctx 取消
func (m *QuotaMonitor) Start(ctx context.Context) {
	go func() {
		for {
			next := m.calculateNextReset()
			timer := time.NewTimer(next.Sub(m.now().UTC()))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				m.ResetDaily()
			}
		}
	}()
}

// ResetDaily 重置每日计数器
func (m *QuotaMonitor) ResetDaily() {
	m.spent.Store(0)
	usageGauge.Set(0)
	statusGauge.Set(0)
	spentGauge.Set(0)
	slog.Info("📅 Daily cost quota counter reset",
		"time_utc", m.now().UTC().Format(time.RFC3339))
}
