package engine

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pierrec/lz4/v4"

	"rpc-feeprobe-go/internal/models"
)

// Lz4RecordingSource 顺序读取 Lz4Sink 生成的录制文件
type Lz4RecordingSource struct {
	file      *os.File
	lz4Reader *lz4.Reader
	scanner   *bufio.Scanner
	path      string
	line      int
}

// NewLz4RecordingSource 打开录制文件
func NewLz4RecordingSource(path string) (*Lz4RecordingSource, error) {
	// #nosec G304 - path is from controlled configuration
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	zr := lz4.NewReader(f)
	scanner := bufio.NewScanner(zr)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	return &Lz4RecordingSource{
		file:      f,
		lz4Reader: zr,
		scanner:   scanner,
		path:      path,
	}, nil
}

// Next 返回下一条记录，读完时返回 io.EOF
func (s *Lz4RecordingSource) Next() (models.LogEntry, error) {
	for s.scanner.Scan() {
		s.line++
		raw := s.scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var entry models.LogEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return models.LogEntry{}, fmt.Errorf("%s line %d: %w", s.path, s.line, err)
		}
		return entry, nil
	}
	if err := s.scanner.Err(); err != nil {
		return models.LogEntry{}, fmt.Errorf("lz4_scan_failed: %w", err)
	}
	return models.LogEntry{}, io.EOF
}

func (s *Lz4RecordingSource) Close() error {
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

// ReadRecording 读取整个录制文件
func ReadRecording(path string) ([]models.LogEntry, error) {
	src, err := NewLz4RecordingSource(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()

	var out []models.LogEntry
	for {
		entry, err := src.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, entry)
	}
}
