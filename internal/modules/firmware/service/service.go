package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"climalog/internal/apperr"
	"climalog/internal/modules/firmware/repository"
	"climalog/internal/modules/firmware/types"
)

// PublicPrefix is where the HTTP server exposes the firmware directory.
const PublicPrefix = "/firmware/"

// StagingDir is the subdirectory of the firmware dir that holds uploads in
// progress. It is never served.
const StagingDir = ".staging"

// ErrTooLarge is returned by Upload when the binary exceeds the size limit.
var ErrTooLarge = errors.New("firmware binary too large")

type Service struct {
	repository repository.FirmwareRepository
	dir        string
	maxBytes   int64
	logger     *slog.Logger
}

// NewService stores binaries in dir and rejects any larger than maxBytes.
func NewService(repository repository.FirmwareRepository, dir string, maxBytes int64, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repository: repository, dir: dir, maxBytes: maxBytes, logger: logger}
}

// SanitizeVersion drops every character outside [A-Za-z0-9._-].
func SanitizeVersion(version string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '_', r == '-':
			return r
		}
		return -1
	}, strings.TrimSpace(version))
}

func FileName(version string) string {
	return "firmware_v" + version + ".bin"
}

// Upload writes the binary as firmware_v<version>.bin and registers it. A
// re-upload of the same version replaces the file and adds a new record.
func (s *Service) Upload(ctx context.Context, version, description string, body io.Reader) (types.Firmware, error) {
	version = SanitizeVersion(version)
	if version == "" {
		return types.Firmware{}, apperr.MissingField("version")
	}
	if body == nil {
		return types.Firmware{}, apperr.MissingField("firmware")
	}
	staging := filepath.Join(s.dir, StagingDir)
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return types.Firmware{}, apperr.StorageUnavailable("create firmware dir", err)
	}

	// Partial uploads live outside the published names until the rename.
	name := FileName(version)
	tmp, err := os.CreateTemp(staging, name+".*.tmp")
	if err != nil {
		return types.Firmware{}, apperr.StorageUnavailable("create firmware file", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err := os.Remove(tmpName); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("remove temp firmware file", "path", tmpName, "error", err)
		}
	}()

	n, err := io.Copy(tmp, io.LimitReader(body, s.maxBytes+1))
	closeErr := tmp.Close()
	if err != nil {
		return types.Firmware{}, fmt.Errorf("read firmware body: %w", err)
	}
	if closeErr != nil {
		return types.Firmware{}, apperr.StorageUnavailable("write firmware file", closeErr)
	}
	if n > s.maxBytes {
		return types.Firmware{}, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, s.maxBytes)
	}
	if n == 0 {
		return types.Firmware{}, apperr.MissingField("firmware")
	}
	if err := ctx.Err(); err != nil {
		return types.Firmware{}, err
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		return types.Firmware{}, apperr.StorageUnavailable("store firmware file", err)
	}

	fw, err := s.repository.Register(ctx, version, strings.TrimSpace(description), PublicPrefix+name)
	if err != nil {
		return types.Firmware{}, err
	}
	s.logger.Info("firmware uploaded", "id", fw.ID, "version", fw.Version, "bytes", n)
	return fw, nil
}

func (s *Service) Latest(ctx context.Context) (types.LatestFirmware, error) {
	fw, err := s.repository.Latest(ctx)
	if err != nil {
		return types.LatestFirmware{}, err
	}
	return types.LatestFirmware{Firmware: fw, DownloadURL: fw.FilePath}, nil
}

// DownloadPath returns the public locator of firmware id.
func (s *Service) DownloadPath(ctx context.Context, id int64) (string, error) {
	return s.repository.ResolveDownloadPath(ctx, id)
}
