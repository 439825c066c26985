package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo appends facts to the audit_facts table. Append-only: no
// update or delete statements exist in this file on purpose.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, f Fact) error {
	const q = `
INSERT INTO audit_facts (
  id, type, actor_user_id, actor_role, session_id, correlation_id, lead_id, message, metadata, created_at
) VALUES (
  $1,$2,NULLIF($3,''),NULLIF($4,''),NULLIF($5,''),NULLIF($6,''),NULLIF($7,''),$8,NULLIF($9,''),$10
)
`
	_, err := r.db.ExecContext(ctx, q,
		f.ID,
		f.Type,
		f.ActorUserID,
		f.ActorRole,
		f.SessionID,
		f.CorrelationID,
		f.LeadID,
		f.Message,
		f.Metadata,
		f.CreatedAt,
	)
	return err
}
