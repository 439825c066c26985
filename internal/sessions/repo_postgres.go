package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"crm-platform/pkg/utils"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// NOTE: This store assumes the following tables exist:
// - comm_sessions (one row per session; UNIQUE (provider_correlation_id);
//   indexed on owner_user_id, lead_id, initiated_at DESC)
// - comm_session_events (immutable append-only transition history)
// - users (user_id, manager_id) for the team directory
//
// Sessions are never deleted. Status moves only through the UPDATE paths
// below, each of which re-checks legality under a row lock, so the overall
// check-and-write is atomic per session and concurrent webhooks for the same
// session serialize on the row without blocking unrelated sessions.

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

const sessionColumns = `
session_id, kind, direction,
COALESCE(owner_user_id, ''), counterpart_number, owner_number,
status, COALESCE(provider_correlation_id, ''),
initiated_at, terminated_at, COALESCE(duration_seconds, 0),
COALESCE(lead_id, ''), COALESCE(content, ''), COALESCE(recording_url, ''),
COALESCE(failure_reason, ''), COALESCE(tags, '[]'::jsonb), COALESCE(metadata, '{}'::jsonb),
created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var s Session
	var terminatedAt sql.NullTime
	var tags, metadata []byte
	err := row.Scan(
		&s.SessionID,
		&s.Kind,
		&s.Direction,
		&s.OwnerUserID,
		&s.CounterpartNumber,
		&s.OwnerNumber,
		&s.Status,
		&s.ProviderCorrelationID,
		&s.InitiatedAt,
		&terminatedAt,
		&s.DurationSeconds,
		&s.LeadID,
		&s.Content,
		&s.RecordingURL,
		&s.FailureReason,
		&tags,
		&metadata,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return Session{}, err
	}
	if terminatedAt.Valid {
		t := terminatedAt.Time
		s.TerminatedAt = &t
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &s.Tags); err != nil {
			return Session{}, fmt.Errorf("sessions: decode tags: %w", err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &s.Metadata); err != nil {
			return Session{}, fmt.Errorf("sessions: decode metadata: %w", err)
		}
	}
	return s, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (p *PostgresStore) Create(ctx context.Context, s Session) error {
	if s.SessionID == "" || !s.Kind.Valid() {
		return ErrInvalidArgument
	}
	tags, err := json.Marshal(s.Tags)
	if err != nil {
		return fmt.Errorf("sessions: encode tags: %w", err)
	}
	metadata, err := json.Marshal(s.Metadata)
	if err != nil {
		return fmt.Errorf("sessions: encode metadata: %w", err)
	}

	const q = `
INSERT INTO comm_sessions (
  session_id, kind, direction, owner_user_id, counterpart_number, owner_number,
  status, provider_correlation_id, initiated_at, terminated_at, duration_seconds,
  lead_id, content, recording_url, failure_reason, tags, metadata, created_at, updated_at
) VALUES (
  $1,$2,$3,NULLIF($4,''),$5,$6,$7,NULLIF($8,''),$9,$10,$11,NULLIF($12,''),$13,$14,$15,$16,$17,$18,$19
)
`
	var terminatedAt any
	if s.TerminatedAt != nil {
		terminatedAt = *s.TerminatedAt
	}
	_, err = p.db.ExecContext(ctx, q,
		s.SessionID,
		s.Kind,
		s.Direction,
		s.OwnerUserID,
		s.CounterpartNumber,
		s.OwnerNumber,
		s.Status,
		s.ProviderCorrelationID,
		s.InitiatedAt,
		terminatedAt,
		s.DurationSeconds,
		s.LeadID,
		s.Content,
		s.RecordingURL,
		s.FailureReason,
		tags,
		metadata,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCorrelation
		}
		return err
	}
	return nil
}

func (p *PostgresStore) GetByID(ctx context.Context, sessionID string) (Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM comm_sessions WHERE session_id = $1`
	s, err := scanSession(p.db.QueryRowContext(ctx, q, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	return s, err
}

func (p *PostgresStore) GetByCorrelationID(ctx context.Context, correlationID string) (Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM comm_sessions WHERE provider_correlation_id = $1`
	s, err := scanSession(p.db.QueryRowContext(ctx, q, correlationID))
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	return s, err
}

// lockSession locks the session row to serialize concurrent transitions.
func lockSession(ctx context.Context, tx *sql.Tx, sessionID string) (Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM comm_sessions WHERE session_id = $1 FOR UPDATE`
	s, err := scanSession(tx.QueryRowContext(ctx, q, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	return s, err
}

func appendSessionEvent(ctx context.Context, tx *sql.Tx, sessionID, provider, eventName string, from, to Status, occurredAt time.Time, raw string) error {
	const q = `
INSERT INTO comm_session_events (id, session_id, provider, event_name, from_status, to_status, occurred_at, raw, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now())
`
	_, err := tx.ExecContext(ctx, q, uuid.NewString(), sessionID, provider, eventName, from, to, occurredAt, raw)
	return err
}

func (p *PostgresStore) SetPlacement(ctx context.Context, sessionID, correlationID string, status Status) (Session, error) {
	if sessionID == "" || correlationID == "" {
		return Session{}, ErrInvalidArgument
	}
	var out Session
	err := utils.WithTx(ctx, p.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		s, err := lockSession(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if s.Status != InitialOutboundStatus(s.Kind) {
			return ErrIllegalTransition
		}
		q := `
UPDATE comm_sessions
SET status = $2, provider_correlation_id = $3, updated_at = now()
WHERE session_id = $1
RETURNING ` + sessionColumns
		out, err = scanSession(tx.QueryRowContext(ctx, q, sessionID, status, correlationID))
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateCorrelation
			}
			return err
		}
		return appendSessionEvent(ctx, tx, sessionID, "local", "placement_accepted", s.Status, status, out.UpdatedAt, "")
	})
	if err != nil {
		return Session{}, err
	}
	return out, nil
}

func (p *PostgresStore) MarkFailed(ctx context.Context, sessionID, reason string, at time.Time) (Session, error) {
	return p.ApplyTransition(ctx, sessionID, StatusFailed, TransitionUpdate{FailureReason: reason}, at)
}

func (p *PostgresStore) ApplyTransition(ctx context.Context, sessionID string, target Status, upd TransitionUpdate, at time.Time) (Session, error) {
	if sessionID == "" {
		return Session{}, ErrInvalidArgument
	}
	var out Session
	err := utils.WithTx(ctx, p.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		s, err := lockSession(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if !CanTransition(s.Kind, s.Status, target) {
			return ErrIllegalTransition
		}

		terminatedAt := s.TerminatedAt
		duration := s.DurationSeconds
		if IsTerminal(s.Kind, target) {
			term := at
			if upd.TerminatedAt != nil {
				term = *upd.TerminatedAt
			}
			terminatedAt = &term
			if s.Kind == KindCall {
				switch {
				case upd.DurationSeconds != nil:
					duration = *upd.DurationSeconds
				case term.After(s.InitiatedAt):
					duration = int(term.Sub(s.InitiatedAt) / time.Second)
				}
			}
		}
		recordingURL := s.RecordingURL
		if upd.RecordingURL != "" {
			recordingURL = upd.RecordingURL
		}
		failureReason := s.FailureReason
		if upd.FailureReason != "" {
			failureReason = upd.FailureReason
		}

		var terminatedArg any
		if terminatedAt != nil {
			terminatedArg = *terminatedAt
		}
		q := `
UPDATE comm_sessions
SET status = $2, terminated_at = $3, duration_seconds = $4,
    recording_url = $5, failure_reason = $6, updated_at = now()
WHERE session_id = $1
RETURNING ` + sessionColumns
		out, err = scanSession(tx.QueryRowContext(ctx, q, sessionID, target, terminatedArg, duration, recordingURL, failureReason))
		if err != nil {
			return err
		}
		return appendSessionEvent(ctx, tx, sessionID, "local", "transition", s.Status, target, at, "")
	})
	if err != nil {
		return Session{}, err
	}
	return out, nil
}

func (p *PostgresStore) AssignLead(ctx context.Context, sessionID, leadID, ownerUserID string) error {
	if sessionID == "" || leadID == "" {
		return ErrInvalidArgument
	}
	// Conditional on lead_id still being unset; assignment is at most once.
	const q = `
UPDATE comm_sessions
SET lead_id = $2,
    owner_user_id = COALESCE(owner_user_id, NULLIF($3,'')),
    updated_at = now()
WHERE session_id = $1 AND lead_id IS NULL
`
	res, err := p.db.ExecContext(ctx, q, sessionID, leadID, ownerUserID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := p.GetByID(ctx, sessionID); err != nil {
			return err
		}
		return ErrLeadAlreadyAssigned
	}
	return nil
}

func (p *PostgresStore) List(ctx context.Context, f ListFilter) ([]Session, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !f.Scope.All {
		if len(f.Scope.OwnerIDs) == 0 {
			return []Session{}, nil
		}
		placeholders := make([]string, 0, len(f.Scope.OwnerIDs))
		for _, id := range f.Scope.OwnerIDs {
			placeholders = append(placeholders, arg(id))
		}
		where = append(where, "owner_user_id IN ("+strings.Join(placeholders, ",")+")")
	}
	if f.Kind != "" {
		where = append(where, "kind = "+arg(f.Kind))
	}
	if f.Status != "" {
		where = append(where, "status = "+arg(f.Status))
	}
	if f.Direction != "" {
		where = append(where, "direction = "+arg(f.Direction))
	}
	if f.LeadID != "" {
		where = append(where, "lead_id = "+arg(f.LeadID))
	}
	if f.CounterpartContains != "" {
		where = append(where, "counterpart_number LIKE "+arg("%"+f.CounterpartContains+"%"))
	}
	if !f.From.IsZero() {
		where = append(where, "initiated_at >= "+arg(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "initiated_at < "+arg(f.To))
	}

	q := `SELECT ` + sessionColumns + ` FROM comm_sessions`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	q += " ORDER BY initiated_at DESC LIMIT " + arg(limit)
	if f.Offset > 0 {
		q += " OFFSET " + arg(f.Offset)
	}

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Session, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// PostgresTeamDirectory resolves manager -> agents from the users table.
type PostgresTeamDirectory struct {
	db *sql.DB
}

func NewPostgresTeamDirectory(db *sql.DB) *PostgresTeamDirectory {
	return &PostgresTeamDirectory{db: db}
}

func (d *PostgresTeamDirectory) AgentIDs(ctx context.Context, managerID string) ([]string, error) {
	const q = `SELECT user_id FROM users WHERE manager_id = $1`
	rows, err := d.db.QueryContext(ctx, q, managerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
