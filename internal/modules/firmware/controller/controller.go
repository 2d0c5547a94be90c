package controller

import (
	"context"
	"io"
	"net/http"

	"climalog/internal/modules/firmware/types"
)

// multipartOverhead is the room left for form fields and part headers on
// top of the binary size limit.
const multipartOverhead = 1 << 20

type FirmwareService interface {
	Upload(ctx context.Context, version, description string, body io.Reader) (types.Firmware, error)
	Latest(ctx context.Context) (types.LatestFirmware, error)
	DownloadPath(ctx context.Context, id int64) (string, error)
}

type FirmwareController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type firmwareControllerImpl struct {
	service  FirmwareService
	maxBytes int64
}

func NewFirmwareController(service FirmwareService, maxBytes int64) FirmwareController {
	return &firmwareControllerImpl{service: service, maxBytes: maxBytes}
}

func (c *firmwareControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/firmware", c.handleUpload)
	mux.HandleFunc("GET /api/v1/firmware/latest", c.handleLatest)
	mux.HandleFunc("GET /api/v1/firmware/{id}/download", c.handleDownload)
}
