package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"climalog/internal/apperr"
	"climalog/internal/modules/firmware/types"
)

//go:embed sql/insert-firmware.sql
var insertFirmwareSQL string

//go:embed sql/get-latest-firmware.sql
var getLatestFirmwareSQL string

//go:embed sql/get-firmware-path.sql
var getFirmwarePathSQL string

const createdAtLayout = "2006-01-02T15:04:05.000000000Z"

// FirmwareRepository is the Firmware Registry. Versions are free text and
// may repeat; Latest orders by upload time, then id.
type FirmwareRepository interface {
	Register(ctx context.Context, version, description, filePath string) (types.Firmware, error)
	Latest(ctx context.Context) (types.Firmware, error)
	ResolveDownloadPath(ctx context.Context, id int64) (string, error)
}

type repositoryImpl struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

func NewRepository(conn *sql.DB, logger *slog.Logger) FirmwareRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &repositoryImpl{
		db:     conn,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *repositoryImpl) Register(ctx context.Context, version, description, filePath string) (types.Firmware, error) {
	if version == "" {
		return types.Firmware{}, apperr.MissingField("version")
	}
	if filePath == "" {
		return types.Firmware{}, apperr.MissingField("filePath")
	}
	createdAt := r.now().UTC()
	res, err := r.db.ExecContext(ctx, insertFirmwareSQL, version, description, filePath, createdAt.Format(createdAtLayout))
	if err != nil {
		return types.Firmware{}, apperr.StorageUnavailable("insert firmware", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return types.Firmware{}, apperr.StorageUnavailable("insert firmware", err)
	}
	r.logger.Info("firmware registered", "id", id, "version", version, "file_path", filePath)
	return types.Firmware{
		ID:          id,
		Version:     version,
		Description: description,
		FilePath:    filePath,
		CreatedAt:   createdAt,
	}, nil
}

func (r *repositoryImpl) Latest(ctx context.Context) (types.Firmware, error) {
	var (
		fw        types.Firmware
		createdAt string
	)
	err := r.db.QueryRowContext(ctx, getLatestFirmwareSQL).Scan(&fw.ID, &fw.Version, &fw.Description, &fw.FilePath, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Firmware{}, apperr.NotFound("no firmware found")
	}
	if err != nil {
		return types.Firmware{}, apperr.StorageUnavailable("query latest firmware", err)
	}
	t, err := time.Parse(createdAtLayout, createdAt)
	if err != nil {
		return types.Firmware{}, apperr.StorageUnavailable("query latest firmware", fmt.Errorf("parse created_at %q: %w", createdAt, err))
	}
	fw.CreatedAt = t
	return fw, nil
}

func (r *repositoryImpl) ResolveDownloadPath(ctx context.Context, id int64) (string, error) {
	var path string
	err := r.db.QueryRowContext(ctx, getFirmwarePathSQL, id).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.NotFound(fmt.Sprintf("firmware %d not found", id))
	}
	if err != nil {
		return "", apperr.StorageUnavailable("query firmware path", err)
	}
	return path, nil
}
