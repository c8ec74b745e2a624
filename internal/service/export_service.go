package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cdrp/console-gateway/internal/dto"
	appErrors "github.com/cdrp/console-gateway/pkg/errors"
	"github.com/cdrp/console-gateway/pkg/export"
	"github.com/cdrp/console-gateway/pkg/storage"
)

type fileStorage interface {
	Save(relPath string, data []byte) (string, error)
	Open(relPath string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	// ResultTTL is how long rendered files are kept on disk.
	ResultTTL time.Duration
}

// ExportFile is an opened export ready to stream.
type ExportFile struct {
	File        *os.File
	Filename    string
	ContentType string
}

// ExportService renders the current page of a screen and hands out signed
// download links for the stored file.
type ExportService struct {
	storage fileStorage
	signer  *storage.SignedURLSigner
	cfg     ExportConfig
	logger  *zap.Logger
	now     func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{storage: store, signer: signer, cfg: cfg, logger: logger, now: time.Now}
}

// Export renders screen's current page in format and stores it.
func (s *ExportService) Export(ctx context.Context, screen ScreenHandle, format export.Format) (*dto.ExportResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dataset := screen.Dataset()
	payload, err := export.Render(format, dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	exportID := uuid.NewString()
	filename := fmt.Sprintf("%s_%s.%s", screen.Kind(), s.now().UTC().Format("20060102_150405"), format)
	relPath, err := s.storage.Save(path.Join(exportID, filename), payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	token, grant, err := s.signer.Sign(exportID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export")
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Info("export generated",
		zap.String("export_id", exportID),
		zap.String("screen_id", screen.ID()),
		zap.String("format", string(format)),
		zap.Int("rows", len(dataset.Rows)),
	)
	return &dto.ExportResponse{
		ExportID:  exportID,
		Format:    string(format),
		URL:       fmt.Sprintf("%s/exports/%s", prefix, token),
		ExpiresAt: grant.ExpiresAt,
		RowCount:  len(dataset.Rows),
	}, nil
}

// Open resolves a download token to the stored file.
func (s *ExportService) Open(token string) (*ExportFile, error) {
	grant, err := s.signer.Verify(token, false)
	switch {
	case errors.Is(err, storage.ErrTokenExpired):
		return nil, appErrors.Clone(appErrors.ErrForbidden, "download link has expired")
	case err != nil:
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
	}
	file, err := s.storage.Open(grant.Path)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
	}
	format := export.FormatCSV
	if strings.HasSuffix(grant.Path, "."+string(export.FormatPDF)) {
		format = export.FormatPDF
	}
	return &ExportFile{File: file, Filename: path.Base(grant.Path), ContentType: format.ContentType()}, nil
}

// Cleanup removes files older than ttl (the configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

// RunCleanup removes expired files every interval until ctx is cancelled.
func (s *ExportService) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.Cleanup(0)
			if err != nil {
				s.logger.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				s.logger.Info("expired exports removed", zap.Int("count", len(removed)))
			}
		}
	}
}
