package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cdrp/console-gateway/internal/models"
	appErrors "github.com/cdrp/console-gateway/pkg/errors"
	"github.com/cdrp/console-gateway/pkg/middleware/requestid"
)

type auditRepoStub struct {
	entries   []models.MutationAudit
	createErr error
	listErr   error
}

func (s *auditRepoStub) Create(_ context.Context, entry *models.MutationAudit) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *auditRepoStub) List(context.Context, models.MutationAuditFilter) ([]models.MutationAudit, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.entries, nil
}

func TestAuditServiceRecordsOutcome(t *testing.T) {
	repo := &auditRepoStub{}
	svc := NewAuditService(repo, nil)
	ctx := requestid.WithContext(context.Background(), "req-1")

	svc.Record(ctx, adminSession, "organizations", "org1", models.OpVerify, models.AuditOutcomeSuccess, nil)
	svc.Record(ctx, adminSession, "organizations", "org2", models.OpDelete, models.AuditOutcomeFailure, appErrors.ErrNetwork)

	require.Len(t, repo.entries, 2)
	first := repo.entries[0]
	assert.Equal(t, "admin-1", first.ActorID)
	assert.Equal(t, "admin", first.ActorRole)
	assert.Equal(t, "verify", first.Operation)
	assert.Nil(t, first.ErrorCode)
	require.NotNil(t, first.RequestID)
	assert.Equal(t, "req-1", *first.RequestID)

	require.NotNil(t, repo.entries[1].ErrorCode)
	assert.Equal(t, appErrors.ErrNetwork.Code, *repo.entries[1].ErrorCode)
}

func TestAuditServiceSwallowsWriteErrors(t *testing.T) {
	svc := NewAuditService(&auditRepoStub{createErr: errors.New("db down")}, nil)
	svc.Record(context.Background(), adminSession, "users", "u1", models.OpDelete, models.AuditOutcomeSuccess, nil)

	_, err := NewAuditService(&auditRepoStub{listErr: errors.New("db down")}, nil).Recent(context.Background(), models.MutationAuditFilter{})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInternal.Code))
}

func TestAuditServiceDisabled(t *testing.T) {
	var svc *AuditService
	assert.False(t, svc.Enabled())
	svc.Record(context.Background(), adminSession, "users", "u1", models.OpDelete, models.AuditOutcomeSuccess, nil)

	entries, err := NewAuditService(nil, nil).Recent(context.Background(), models.MutationAuditFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}
