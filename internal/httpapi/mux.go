package httpapi

import (
	"database/sql"
	"log/slog"
	"net/http"
)

// NewMux registers the routes shared by every feature: /healthz and the
// static firmware directory under /firmware/.
func NewMux(db *sql.DB, firmwareDir string, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, db, logger)
	if firmwareDir != "" {
		mux.Handle("GET /firmware/", http.StripPrefix("/firmware/", http.FileServer(firmwareFS{root: http.Dir(firmwareDir)})))
	}
	return mux
}
