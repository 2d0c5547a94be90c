package readings

import (
	"database/sql"
	"log/slog"
	"net/http"

	"climalog/internal/live"
	"climalog/internal/modules/readings/controller"
	"climalog/internal/modules/readings/repository"
	"climalog/internal/modules/readings/service"
	"climalog/internal/mqtt"
)

// RegisterFeature wires the readings module. hub and subscriber may be nil
// when the live feed or MQTT ingestion is disabled.
func RegisterFeature(mux *http.ServeMux, db *sql.DB, hub *live.Hub, subscriber mqtt.MQTTSubscriber, logger *slog.Logger) *service.Service {
	readingsRepository := repository.NewRepository(db, logger)

	var broadcaster service.Broadcaster
	var stream http.Handler
	if hub != nil {
		broadcaster = hub
		stream = http.HandlerFunc(hub.ServeWS)
	}
	readingsService := service.NewService(readingsRepository, broadcaster, logger)

	readingsController := controller.NewReadingsController(readingsService, stream)
	readingsController.RegisterRoutes(mux)

	if subscriber != nil {
		readingsService.RegisterMQTT(subscriber)
	}
	return readingsService
}
