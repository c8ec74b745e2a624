package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/cdrp/console-gateway/internal/models"
	appErrors "github.com/cdrp/console-gateway/pkg/errors"
	"github.com/cdrp/console-gateway/pkg/middleware/requestid"
)

type auditRepository interface {
	Create(ctx context.Context, entry *models.MutationAudit) error
	List(ctx context.Context, filter models.MutationAuditFilter) ([]models.MutationAudit, error)
}

// AuditService journals dispatched mutations. A nil service or repository
// disables the journal.
type AuditService struct {
	repo   auditRepository
	logger *zap.Logger
}

// NewAuditService constructs the journal service.
func NewAuditService(repo auditRepository, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, logger: logger}
}

// Enabled reports whether mutations are journaled.
func (s *AuditService) Enabled() bool { return s != nil && s.repo != nil }

// Record writes one journal row. Failures are logged, never returned.
func (s *AuditService) Record(ctx context.Context, session models.Session, collection, entityID string, op models.Operation, outcome string, cause error) {
	if !s.Enabled() {
		return
	}
	entry := &models.MutationAudit{
		ActorID:    session.UserID,
		ActorRole:  string(session.Role),
		Collection: collection,
		EntityID:   entityID,
		Operation:  string(op),
		Outcome:    outcome,
	}
	if cause != nil {
		code := appErrors.FromError(cause).Code
		entry.ErrorCode = &code
	}
	if id := requestid.FromContext(ctx); id != "" {
		entry.RequestID = &id
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to write mutation audit",
			zap.String("collection", collection),
			zap.String("entity_id", entityID),
			zap.String("operation", string(op)),
			zap.Error(err),
		)
	}
}

// Recent lists journal rows, newest first.
func (s *AuditService) Recent(ctx context.Context, filter models.MutationAuditFilter) ([]models.MutationAudit, error) {
	if !s.Enabled() {
		return []models.MutationAudit{}, nil
	}
	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mutation audit")
	}
	return entries, nil
}
