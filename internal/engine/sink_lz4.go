package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/pierrec/lz4/v4"

	"rpc-feeprobe-go/internal/models"
)

// 剩余空间低于该百分比时暂停录制
const minFreeSpacePercent = 10.0

// Lz4Sink 将日志记录以 JSON Lines 形式写入 lz4 压缩文件
type Lz4Sink struct {
	file      *os.File
	lz4Writer *lz4.Writer
	mu        sync.Mutex
	path      string
	suspended bool // 空间不足时自动挂起
	closed    bool

	freeSpace func(dir string) (float64, error)
}

// NewLz4Sink 每次启动生成新的录制文件（覆盖旧文件）
func NewLz4Sink(path string) (*Lz4Sink, error) {
	// #nosec G304 - 录制路径由系统配置控制
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open recording %s: %w", path, err)
	}

	return &Lz4Sink{
		file:      f,
		lz4Writer: lz4.NewWriter(f),
		path:      path,
		freeSpace: freeSpacePercent,
	}, nil
}

func (s *Lz4Sink) Name() string { return "lz4" }

func (s *Lz4Sink) Path() string { return s.path }

func (s *Lz4Sink) checkQuota() bool {
	if s.suspended {
		return false
	}

	free, err := s.freeSpace(filepath.Dir(s.path))
	if err != nil {
		return true // 获取失败时继续写入，错误由 Write 暴露
	}

	if free < minFreeSpacePercent {
		s.suspended = true
		Logger.Error("🚨 STORAGE_QUOTA_EXCEEDED", "free_percent", fmt.Sprintf("%.2f%%", free), "action", "suspending_recording")
		return false
	}
	return true
}

func (s *Lz4Sink) WriteEntries(_ context.Context, entries []models.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return os.ErrClosed
	}
	if !s.checkQuota() {
		return nil // 挂起时静默丢弃，不影响探测
	}

	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode entry %d: %w", e.Seq, err)
		}
		data = append(data, '\n')
		if _, err := s.lz4Writer.Write(data); err != nil {
			return err
		}
	}

	// 每批刷新，进程异常退出时最多丢失当前批次
	return s.lz4Writer.Flush()
}

func (s *Lz4Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.lz4Writer.Close(); err != nil {
		_ = s.file.Close()
		return err
	}
	return s.file.Close()
}

// freeSpacePercent 录制文件所在磁盘对非特权用户可用的空间占比
func freeSpacePercent(dir string) (float64, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(dir, &st); err != nil {
		return 0, err
	}
	if st.Blocks == 0 {
		return 0, nil
	}
	return float64(st.Bavail) / float64(st.Blocks) * 100, nil
}
