package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"rpc-feeprobe-go/internal/models"
)

// DefaultLogCapacity 默认保留条数
const DefaultLogCapacity = 1000

const sinkWriteTimeout = 5 * time.Second

// LogStore is the bounded, append-only audit trail of probe outcomes.
// With a positive capacity the oldest entry is evicted once the store is
// full; capacity <= 0 keeps everything. Entries are copied out on read and
// never modified after insertion.
type LogStore struct {
	mu       sync.RWMutex
	buf      []models.LogEntry
	head     int // 环形缓冲区中最旧条目的下标
	capacity int
	nextSeq  uint64
	evicted  uint64
	now      func() time.Time

	sinks   []LogSink
	metrics *Metrics
}

// NewLogStore 创建日志存储
func NewLogStore(capacity int) *LogStore {
	initial := capacity
	if initial <= 0 || initial > 4096 {
		initial = 256
	}
	return &LogStore{
		buf:      make([]models.LogEntry, 0, initial),
		capacity: capacity,
		now:      time.Now,
	}
}

// SetMetrics 注入指标（可选）
func (s *LogStore) SetMetrics(m *Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

// AddSink 注册一个日志归宿，每条新记录都会被转发
func (s *LogStore) AddSink(sink LogSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// Append records one entry and returns it. Safe for concurrent use; the
// sequence number reflects the order in which the store observed the calls.
func (s *LogStore) Append(severity models.Severity, message string) models.LogEntry {
	s.mu.Lock()
	s.nextSeq++
	entry := models.LogEntry{
		Seq:       s.nextSeq,
		Timestamp: s.now(),
		Severity:  severity,
		Message:   message,
	}
	evicted := s.addLocked(entry)
	size := len(s.buf)
	sinks := s.sinks
	m := s.metrics
	s.mu.Unlock()

	if severity == models.SeverityError {
		Logger.Error("probe_log", slog.Uint64("seq", entry.Seq), slog.String("message", message))
	} else {
		Logger.Info("probe_log", slog.Uint64("seq", entry.Seq), slog.String("message", message))
	}

	if m != nil {
		m.UpdateLogEntries(size)
		if evicted {
			m.RecordLogEvicted(1)
		}
	}
	s.forward(sinks, entry, m)
	return entry
}

func (s *LogStore) addLocked(entry models.LogEntry) bool {
	if s.capacity <= 0 || len(s.buf) < s.capacity {
		s.buf = append(s.buf, entry)
		return false
	}
	s.buf[s.head] = entry
	s.head = (s.head + 1) % s.capacity
	s.evicted++
	return true
}

// forward 故障隔离：单个归宿失败只记录，不影响调用方
func (s *LogStore) forward(sinks []LogSink, entry models.LogEntry, m *Metrics) {
	if len(sinks) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sinkWriteTimeout)
	defer cancel()

	batch := []models.LogEntry{entry}
	for _, sink := range sinks {
		if err := sink.WriteEntries(ctx, batch); err != nil {
			LogSinkError(sink.Name(), err)
			if m != nil {
				m.RecordSinkError(sink.Name())
			}
		}
	}
}

// GetAll returns a snapshot of the retained entries, oldest first.
func (s *LogStore) GetAll() []models.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.LogEntry, 0, len(s.buf))
	out = append(out, s.buf[s.head:]...)
	out = append(out, s.buf[:s.head]...)
	return out
}

// Since 返回 seq 大于 after 的条目（用于增量拉取）
func (s *LogStore) Since(after uint64) []models.LogEntry {
	all := s.GetAll()
	for i, e := range all {
		if e.Seq > after {
			return all[i:]
		}
	}
	return []models.LogEntry{}
}

func (s *LogStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buf)
}

func (s *LogStore) Capacity() int {
	return s.capacity
}

// Evicted 返回因容量策略被丢弃的条目数
func (s *LogStore) Evicted() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.evicted
}

// Close 关闭所有归宿
func (s *LogStore) Close() error {
	s.mu.Lock()
	sinks := s.sinks
	s.sinks = nil
	s.mu.Unlock()

	for _, sink := range sinks {
		_ = sink.Close()
	}
	return nil
}
