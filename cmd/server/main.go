// Command server runs the script execution bridge.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cadbridge/cadbridge/internal/config"
	"github.com/cadbridge/cadbridge/internal/logging"
	"github.com/cadbridge/cadbridge/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		os.Stderr.WriteString("logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	srv, err := server.NewServer(cfg, log)
	if err != nil {
		log.Fatal("failed to create server", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initial discovery pass before serving traffic.
	scanCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	srv.Manager().Scan(scanCtx)
	cancel()
	srv.Metrics().SetInstancesConnected(srv.Manager().Count())
	log.Info("initial scan complete", zap.Int("instances", srv.Manager().Count()))

	if err := srv.Run(ctx); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
