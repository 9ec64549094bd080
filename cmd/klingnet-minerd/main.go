// Klingnet miner state daemon.
//
// Runs the same state service as the desktop app without a window and
// logs every derived state change.
//
// Usage:
//
//	klingnet-minerd [--testnet --backend-rpc=...] Run
//	klingnet-minerd --help                        Show help
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Klingon-tech/klingnet-miner/config"
	"github.com/Klingon-tech/klingnet-miner/internal/hub"
	klog "github.com/Klingon-tech/klingnet-miner/internal/log"
)

func main() {
	cfg, _, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	h, err := hub.New(cfg, &logEmitter{logger: klog.WithComponent("state")})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := h.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		h.Stop()
		os.Exit(1)
	}

	var metrics *http.Server
	if cfg.Metrics.Addr != "" {
		metrics = serveMetrics(cfg.Metrics.Addr)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	if metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = metrics.Shutdown(ctx)
		cancel()
	}
	h.Stop()
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			klog.Error().Err(err).Str("addr", addr).Msg("Metrics server failed")
		}
	}()
	klog.Info().Str("addr", addr).Msg("Serving metrics")
	return srv
}

// logEmitter writes hub events to the log.
type logEmitter struct {
	logger zerolog.Logger
}

func (l *logEmitter) Emit(name string, data any) {
	ev := l.logger.Info()
	if name == hub.EventHashRate || name == hub.EventRewardCleared {
		ev = l.logger.Debug()
	}
	ev.Str("event", name).Interface("data", data).Msg("State changed")
}
