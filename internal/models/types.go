package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// Severity 日志级别
type Severity string

const (
	SeverityInfo  Severity = "INFO"
	SeverityError Severity = "ERROR"
)

// ParseSeverity 解析大小写不敏感的级别名
func ParseSeverity(s string) (Severity, error) {
	switch Severity(strings.ToUpper(s)) {
	case SeverityInfo:
		return SeverityInfo, nil
	case SeverityError:
		return SeverityError, nil
	default:
		return "", fmt.Errorf("unknown severity %q", s)
	}
}

// Scan 从归档行读取级别，拒绝未知值
func (s *Severity) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into Severity", src)
	}
	parsed, err := ParseSeverity(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s Severity) Value() (driver.Value, error) {
	return string(s), nil
}

// LogEntry 一条探测结果记录，创建后不可修改
type LogEntry struct {
	Seq       uint64    `json:"seq" db:"seq"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Severity  Severity  `json:"severity" db:"severity"`
	Message   string    `json:"message" db:"message"`
}

func (e LogEntry) String() string {
	return fmt.Sprintf("%s [%s] %s", e.Timestamp.UTC().Format(time.RFC3339Nano), e.Severity, e.Message)
}
