package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"climalog/internal/config"
	"climalog/internal/logging"
	"climalog/internal/mqtt"
	"climalog/internal/simulator"
)

var version = "dev"
var appName = "climalog-simulator"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, ".env error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	simCfg, err := simulator.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg, version, appName)
	slog.SetDefault(logger)
	slog.Info("starting",
		"app", appName,
		"version", version,
		"mode", simCfg.Mode,
		"device_id", simCfg.DeviceID,
		"interval", simCfg.Interval,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, simCfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run failed", "err", err)
		os.Exit(1)
	}
	slog.Info("shutting down")
}

func run(ctx context.Context, cfg config.Config, simCfg simulator.Config, logger *slog.Logger) error {
	var sink simulator.Sink
	switch simCfg.Mode {
	case "http":
		sink = simulator.NewHTTPSink(simCfg.APIURL)
	default:
		publisher := mqtt.NewPublisher(cfg.MQTTBroker, cfg.MQTTPort, "climalog-sim-"+uuid.NewString()[:8], logger)
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := publisher.Connect(connectCtx)
		cancel()
		if err != nil {
			publisher.Disconnect()
			return fmt.Errorf("mqtt connect: %w", err)
		}
		defer publisher.Disconnect()
		sink = simulator.NewMQTTSink(publisher)
	}
	return simulator.Run(ctx, simCfg, sink, simulator.NewWalk(uint64(time.Now().UnixNano())), logger)
}
