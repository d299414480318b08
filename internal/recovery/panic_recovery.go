package recovery

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

var Logger = slog.Default()

// OnPanic 可选回调，在 panic 被恢复后调用
var OnPanic func(name string, err interface{}, stack string)

func report(event, name string, r interface{}) {
	stack := string(debug.Stack())
	Logger.Error(event,
		slog.String("worker_name", name),
		slog.String("error", fmt.Sprintf("%v", r)),
		slog.String("stack", stack),
	)
	if OnPanic != nil {
		OnPanic(name, r, stack)
	}
}

// WithRecovery 在新 goroutine 中运行 fn 并恢复 panic
func WithRecovery(fn func(), name string) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				report("goroutine_panic_recovered", name, r)
			}
		}()
		fn()
	}()
}

// WithRecoveryNamed 同步运行 fn 并恢复 panic
func WithRecoveryNamed(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			report("named_panic_recovered", name, r)
		}
	}()
	fn()
}
