package limiter

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"
)

// 🛡️ 商业节点免费额度保护
const (
	MaxSafetyRPS     = 10 // 单个 provider 的绝对上限
	DefaultRPS       = 3
	DefaultBurstSize = 1
)

// RateLimiter 单个 provider 的令牌桶
type RateLimiter struct {
	limiter *rate.Limiter
	maxRPS  int
}

// NewRateLimiter 创建限流器，超过上限的配置会被强制降级
func NewRateLimiter(rps int) *RateLimiter {
	switch {
	case rps <= 0:
		rps = DefaultRPS
	case rps > MaxSafetyRPS:
		slog.Warn("⚠️  Unsafe RPS config detected, forcing safe threshold",
			"requested_rps", rps,
			"forced_rps", MaxSafetyRPS)
		rps = MaxSafetyRPS
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), DefaultBurstSize),
		maxRPS:  rps,
	}
}

// Wait 阻塞直到获取令牌（或上下文取消）
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.limiter.Wait(ctx)
}

// MaxRPS 返回当前配置的 RPS
func (rl *RateLimiter) MaxRPS() int {
	return rl.maxRPS
}

// Set 按 key（provider URL）分配的限流器集合
type Set struct {
	mu       sync.Mutex
	rps      int
	limiters map[string]*RateLimiter
}

func NewSet(rps int) *Set {
	return &Set{
		rps:      rps,
		limiters: make(map[string]*RateLimiter),
	}
}

// For 返回 key 对应的限流器，不存在时创建
func (s *Set) For(key string) *RateLimiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	rl, ok := s.limiters[key]
	if !ok {
		rl = NewRateLimiter(s.rps)
		s.limiters[key] = rl
	}
	return rl
}

// Wait 等待 key 对应的令牌
func (s *Set) Wait(ctx context.Context, key string) error {
	return s.For(key).Wait(ctx)
}
