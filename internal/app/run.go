package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"climalog/internal/config"
	"climalog/internal/db"
	"climalog/internal/httpapi"
	"climalog/internal/live"
	"climalog/internal/migrate"
	"climalog/internal/modules/firmware"
	"climalog/internal/modules/readings"
	"climalog/internal/mqtt"
)

const (
	mqttConnectTimeout = 5 * time.Second
	shutdownTimeout    = 10 * time.Second
)

func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"corsAllowedOrigins", cfg.CORSAllowedOrigins,
		"sqliteDriver", cfg.SQLiteDriver,
		"sqlitePath", cfg.SQLitePath,
		"sqliteMaxOpenConns", cfg.SQLiteMaxOpenConns,
		"sqliteMaxIdleConns", cfg.SQLiteMaxIdleConns,
		"sqliteConnMaxLifetime", cfg.SQLiteConnMaxLifetime,
		"firmwareDir", cfg.FirmwareDir,
		"mqttEnabled", cfg.MQTTEnabled,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"mqttTopic", cfg.MQTTTopic,
	)

	dbConn, err := db.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(dbConn); closeErr != nil {
			logger.Error("db close", "error", closeErr)
		}
	}()

	if err := migrate.Run(ctx, dbConn, logger); err != nil {
		return err
	}
	if err := dbConn.PingContext(ctx); err != nil {
		return err
	}
	logger.Info("database connection successful")

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := live.NewHub(logger, cfg.CORSAllowedOrigins)
	go hub.Run(hubCtx)

	mux := httpapi.NewMux(dbConn, cfg.FirmwareDir, logger)
	firmware.RegisterFeature(mux, dbConn, cfg.FirmwareDir, cfg.FirmwareMaxBytes, logger)

	// The handler is set before Connect so the OnConnect subscription never
	// sees a message without a handler.
	var subscriber *mqtt.Subscriber
	if cfg.MQTTEnabled {
		subscriber = mqtt.NewSubscriber(cfg, logger)
		readings.RegisterFeature(mux, dbConn, hub, subscriber, logger)

		connectCtx, connectCancel := context.WithTimeout(ctx, mqttConnectTimeout)
		err = subscriber.Connect(connectCtx)
		connectCancel()
		if err != nil {
			// The client keeps retrying in the background.
			logger.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
		}
	} else {
		readings.RegisterFeature(mux, dbConn, hub, nil, logger)
	}

	srv := httpapi.NewServer(cfg, mux, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if subscriber != nil {
			subscriber.Disconnect()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if subscriber != nil {
		logger.Info("mqtt disconnecting")
		subscriber.Disconnect()
	}

	logger.Info("live stream closing", "clients", hub.Clients())
	stopHub()

	logger.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}
