package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/cdrp/console-gateway/internal/models"
)

func newAuditRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAuditRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newAuditRepoMock(t)
	defer cleanup()

	repo := NewAuditRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO console_mutation_audit")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.MutationAudit{
		ActorID:    "admin-1",
		ActorRole:  "admin",
		Collection: "organizations",
		EntityID:   "org1",
		Operation:  "verify",
		Outcome:    models.AuditOutcomeSuccess,
	}
	require.NoError(t, repo.Create(context.Background(), entry))
	require.NotEmpty(t, entry.ID)
	require.False(t, entry.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newAuditRepoMock(t)
	defer cleanup()

	repo := NewAuditRepository(db)
	code := "CONFLICT"
	rows := sqlmock.NewRows([]string{"id", "actor_id", "actor_role", "collection", "entity_id", "operation", "outcome", "error_code", "request_id", "created_at"}).
		AddRow("a-1", "admin-1", "admin", "users", "u1", "deactivate", "failure", code, nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, actor_id, actor_role")).
		WithArgs("users", "u1").
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), models.MutationAuditFilter{Collection: "users", EntityID: "u1"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "a-1", list[0].ID)
	require.NotNil(t, list[0].ErrorCode)
	require.Equal(t, code, *list[0].ErrorCode)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryEnsureSchema(t *testing.T) {
	db, mock, cleanup := newAuditRepoMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS console_mutation_audit")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, NewAuditRepository(db).EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
