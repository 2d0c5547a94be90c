package firmware

import (
	"database/sql"
	"log/slog"
	"net/http"

	"climalog/internal/modules/firmware/controller"
	"climalog/internal/modules/firmware/repository"
	"climalog/internal/modules/firmware/service"
)

// RegisterFeature wires the firmware registry. Binaries are written to dir;
// serving dir under /firmware/ is left to httpapi.
func RegisterFeature(mux *http.ServeMux, db *sql.DB, dir string, maxBytes int64, logger *slog.Logger) {
	firmwareRepository := repository.NewRepository(db, logger)
	firmwareService := service.NewService(firmwareRepository, dir, maxBytes, logger)
	firmwareController := controller.NewFirmwareController(firmwareService, maxBytes)
	firmwareController.RegisterRoutes(mux)
}
