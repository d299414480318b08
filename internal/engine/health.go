package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// HealthStatus 健康状态响应
type HealthStatus struct {
	Status    string           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Checks    map[string]Check `json:"checks"`
}

// Check 单个检查项
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Pinger is satisfied by *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// QuotaReporter is satisfied by *monitor.QuotaMonitor.
type QuotaReporter interface {
	GetUsagePercent() float64
}

// HealthServer 健康检查服务器
type HealthServer struct {
	store *LogStore
	db    Pinger        // 可选
	quota QuotaReporter // 可选
}

func NewHealthServer(store *LogStore, db Pinger, quota QuotaReporter) *HealthServer {
	return &HealthServer{store: store, db: db, quota: quota}
}

// RegisterRoutes 注册健康检查路由
func (h *HealthServer) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/healthz", h.Healthz).Methods("GET")
	router.HandleFunc("/healthz/ready", h.Ready).Methods("GET")
	router.HandleFunc("/healthz/live", h.Live).Methods("GET")
}

// Evaluate 执行全部检查
func (h *HealthServer) Evaluate(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    statusHealthy,
		Timestamp: time.Now(),
		Checks:    make(map[string]Check),
	}

	status.Checks["log_store"] = h.checkLogStore()
	if h.db != nil {
		status.Checks["database"] = h.checkDatabase(ctx)
	}
	if h.quota != nil {
		status.Checks["quota"] = h.checkQuota()
	}

	for _, c := range status.Checks {
		switch c.Status {
		case statusUnhealthy:
			status.Status = statusUnhealthy
		case statusDegraded:
			if status.Status == statusHealthy {
				status.Status = statusDegraded
			}
		}
	}
	return status
}

func (h *HealthServer) checkLogStore() Check {
	capacity := "unbounded"
	if h.store.Capacity() > 0 {
		capacity = fmt.Sprintf("%d", h.store.Capacity())
	}
	return Check{
		Status:  statusHealthy,
		Message: fmt.Sprintf("entries: %d/%s, evicted: %d", h.store.Len(), capacity, h.store.Evicted()),
	}
}

// checkDatabase 检查归档数据库连接
func (h *HealthServer) checkDatabase(ctx context.Context) Check {
	start := time.Now()
	err := h.db.PingContext(ctx)
	latency := time.Since(start)

	if err != nil {
		return Check{
			Status:  statusUnhealthy,
			Message: err.Error(),
			Latency: latency.String(),
		}
	}
	return Check{Status: statusHealthy, Latency: latency.String()}
}

// checkQuota 额度耗尽时探测会全部失败，但进程本身仍可用
func (h *HealthServer) checkQuota() Check {
	usage := h.quota.GetUsagePercent()
	c := Check{Status: statusHealthy, Message: fmt.Sprintf("usage: %.2f%%", usage)}
	if usage >= 100 {
		c.Status = statusDegraded
	}
	return c
}

// Healthz 完整健康检查
func (h *HealthServer) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Evaluate(ctx)
	w.Header().Set("Content-Type", "application/json")
	if status.Status == statusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(status)
}

// Ready 就绪检查：归档数据库（若配置）必须可达
func (h *HealthServer) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "not ready", "reason": err.Error()})
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// Live 存活检查
func (h *HealthServer) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}
