package engine

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger 全局结构化日志器
var Logger = slog.Default()

// InitLogger 初始化结构化日志
func InitLogger(level, format string) {
	Logger = newLogger(os.Stdout, level, format)
	slog.SetDefault(Logger)
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	if format == "text" {
		// 文本格式，便于开发调试
		return slog.New(slog.NewTextHandler(w, opts))
	}
	// JSON 格式，便于日志收集系统处理
	return slog.New(slog.NewJSONHandler(w, opts))
}

// LogProbeScheduled 记录探测任务排期
func LogProbeScheduled(index int, endpoint string, delay time.Duration) {
	Logger.Debug("probe_scheduled",
		slog.Int("index", index),
		slog.String("endpoint", endpoint),
		slog.Duration("delay", delay),
	)
}

// LogSinkError 记录日志归宿写入失败
func LogSinkError(sink string, err error) {
	Logger.Warn("log_sink_write_failed",
		slog.String("sink", sink),
		slog.String("error", err.Error()),
	)
}
