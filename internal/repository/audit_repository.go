package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cdrp/console-gateway/internal/models"
)

// AuditRepository persists the mutation journal.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// EnsureSchema creates the journal table when it does not exist yet.
func (r *AuditRepository) EnsureSchema(ctx context.Context) error {
	const ddl = `CREATE TABLE IF NOT EXISTS console_mutation_audit (
	id UUID PRIMARY KEY,
	actor_id TEXT NOT NULL,
	actor_role TEXT NOT NULL,
	collection TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	operation TEXT NOT NULL,
	outcome TEXT NOT NULL,
	error_code TEXT NULL,
	request_id TEXT NULL,
	created_at TIMESTAMPTZ NOT NULL
)`
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

// Create inserts a journal row.
func (r *AuditRepository) Create(ctx context.Context, entry *models.MutationAudit) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO console_mutation_audit
	(id, actor_id, actor_role, collection, entity_id, operation, outcome, error_code, request_id, created_at)
	VALUES (:id, :actor_id, :actor_role, :collection, :entity_id, :operation, :outcome, :error_code, :request_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create mutation audit: %w", err)
	}
	return nil
}

// List returns journal rows matching the filter, newest first.
func (r *AuditRepository) List(ctx context.Context, filter models.MutationAuditFilter) ([]models.MutationAudit, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 3)
	builder.WriteString(`SELECT id, actor_id, actor_role, collection, entity_id, operation, outcome, error_code, request_id, created_at
	FROM console_mutation_audit`)

	conditions := make([]string, 0, 3)
	if filter.ActorID != "" {
		args = append(args, filter.ActorID)
		conditions = append(conditions, fmt.Sprintf("actor_id = $%d", len(args)))
	}
	if filter.Collection != "" {
		args = append(args, filter.Collection)
		conditions = append(conditions, fmt.Sprintf("collection = $%d", len(args)))
	}
	if filter.EntityID != "" {
		args = append(args, filter.EntityID)
		conditions = append(conditions, fmt.Sprintf("entity_id = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d", limit))

	var entries []models.MutationAudit
	if err := r.db.SelectContext(ctx, &entries, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list mutation audit: %w", err)
	}
	return entries, nil
}
