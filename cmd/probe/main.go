package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rpc-feeprobe-go/internal/config"
	"rpc-feeprobe-go/internal/engine"
	"rpc-feeprobe-go/internal/recovery"
)

func main() {
	once := flag.Bool("once", false, "run every probe once, print the log as JSON and exit")
	dump := flag.String("dump", "", "print the entries of an lz4 recording and exit")
	flag.Parse()

	cfg := config.Load()
	engine.InitLogger(cfg.LogLevel, cfg.LogFormat)
	recovery.Logger = engine.Logger

	if *dump != "" {
		if err := dumpRecording(os.Stdout, *dump); err != nil {
			slog.Error("❌ dump failed", "path", *dump, "err", err)
			os.Exit(1)
		}
		return
	}

	app, err := NewApp(cfg)
	if err != nil {
		slog.Error("❌ startup failed", "err", err)
		os.Exit(1)
	}
	defer app.Close()

	if *once {
		if err := runOnce(app, os.Stdout); err != nil {
			slog.Error("❌ run failed", "err", err)
			os.Exit(1)
		}
		return
	}

	if err := serve(app, cfg.Port); err != nil {
		slog.Error("❌ server failed", "err", err)
		os.Exit(1)
	}
}

// runOnce 执行一轮全部探测后输出日志
func runOnce(app *App, w io.Writer) error {
	ctx := context.Background()
	if err := app.Scheduler.Start(ctx); err != nil {
		return err
	}
	app.Scheduler.Wait()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(app.Store.GetAll())
}

func serve(app *App, port string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app.StartBackground(ctx)
	if err := app.Scheduler.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           NewServer(app).Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	recovery.WithRecovery(func() {
		slog.Info("🌐 Server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}, "api_server")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("Received signal, initiating shutdown...", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	}

	// 未触发的探测直接取消，进行中的探测由 RPC 超时约束
	app.Scheduler.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("server_shutdown_error", "err", err)
	}
	slog.Info("Shutdown complete.")
	return nil
}
