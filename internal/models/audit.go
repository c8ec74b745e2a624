package models

import "time"

// Mutation outcomes recorded in the audit journal.
const (
	AuditOutcomeSuccess   = "success"
	AuditOutcomeFailure   = "failure"
	AuditOutcomeAmbiguous = "ambiguous"
)

// MutationAudit is one row of the console_mutation_audit journal.
type MutationAudit struct {
	ID         string    `db:"id" json:"id"`
	ActorID    string    `db:"actor_id" json:"actor_id"`
	ActorRole  string    `db:"actor_role" json:"actor_role"`
	Collection string    `db:"collection" json:"collection"`
	EntityID   string    `db:"entity_id" json:"entity_id"`
	Operation  string    `db:"operation" json:"operation"`
	Outcome    string    `db:"outcome" json:"outcome"`
	ErrorCode  *string   `db:"error_code" json:"error_code,omitempty"`
	RequestID  *string   `db:"request_id" json:"request_id,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// MutationAuditFilter narrows journal queries.
type MutationAuditFilter struct {
	ActorID    string
	Collection string
	EntityID   string
	Limit      int
}
