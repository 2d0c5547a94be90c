package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/rs/cors"

	"climalog/internal/config"
)

// NewServer wraps mux with CORS for the dashboard origins, panic recovery
// and the access log.
func NewServer(cfg config.Config, mux *http.ServeMux, logger *slog.Logger) *http.Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewHandler(cfg, mux, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func NewHandler(cfg config.Config, mux *http.ServeMux, logger *slog.Logger) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{logger: logger}),
		handlers.PrintRecoveryStack(cfg.AppEnv == "dev"),
	)
	return requestLogger(logger, recovery(c.Handler(mux)))
}
