package leads

import (
	"context"
	"database/sql"
)

// NOTE: Assumes a leads table indexed on primary_number and alternate_number.

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) FindByNumber(ctx context.Context, number string) ([]Lead, error) {
	// Two rows are enough: the winner plus ambiguity detection.
	const q = `
SELECT lead_id, name, primary_number, COALESCE(alternate_number, ''), COALESCE(assigned_agent_id, ''), created_at
FROM leads
WHERE primary_number = $1 OR alternate_number = $1
ORDER BY created_at DESC, lead_id DESC
LIMIT 2
`
	rows, err := r.db.QueryContext(ctx, q, number)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Lead
	for rows.Next() {
		var l Lead
		if err := rows.Scan(&l.LeadID, &l.Name, &l.PrimaryNumber, &l.AlternateNumber, &l.AssignedAgentID, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
