package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/device-diag-shell/backend/internal/model"
)

// SessionRepository provides data access for session records and the
// command audit trail.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session record.
func (r *SessionRepository) Create(ctx context.Context, session *model.Session) error {
	query := `
		INSERT INTO sessions (id, slot, remote_addr, username, status, transcript_path, connected_at, disconnected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		session.ID,
		session.Slot,
		session.RemoteAddr,
		session.Username,
		session.Status,
		session.TranscriptPath,
		session.ConnectedAt,
		session.DisconnectedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetByID retrieves a session record by its ID.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*model.Session, error) {
	query := `
		SELECT id, slot, remote_addr, username, status, transcript_path, connected_at, disconnected_at
		FROM sessions
		WHERE id = ?
	`

	session := &model.Session{}
	var username sql.NullString
	var transcriptPath sql.NullString
	var disconnectedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID,
		&session.Slot,
		&session.RemoteAddr,
		&username,
		&session.Status,
		&transcriptPath,
		&session.ConnectedAt,
		&disconnectedAt,
	)
	if err == sql.ErrNoRows {
		return nil, model.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if username.Valid {
		session.Username = username.String
	}
	if transcriptPath.Valid {
		session.TranscriptPath = transcriptPath.String
	}
	if disconnectedAt.Valid {
		t := disconnectedAt.Time
		session.DisconnectedAt = &t
	}

	return session, nil
}

// List retrieves all session records, newest first.
func (r *SessionRepository) List(ctx context.Context) ([]*model.Session, error) {
	query := `
		SELECT id, slot, remote_addr, username, status, transcript_path, connected_at, disconnected_at
		FROM sessions
		ORDER BY connected_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		session := &model.Session{}
		var username sql.NullString
		var transcriptPath sql.NullString
		var disconnectedAt sql.NullTime

		err := rows.Scan(
			&session.ID,
			&session.Slot,
			&session.RemoteAddr,
			&username,
			&session.Status,
			&transcriptPath,
			&session.ConnectedAt,
			&disconnectedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}

		if username.Valid {
			session.Username = username.String
		}
		if transcriptPath.Valid {
			session.TranscriptPath = transcriptPath.String
		}
		if disconnectedAt.Valid {
			t := disconnectedAt.Time
			session.DisconnectedAt = &t
		}

		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

// UpdateStatus marks a session's final status and disconnect time.
func (r *SessionRepository) UpdateStatus(ctx context.Context, id string, status model.SessionStatus, disconnectedAt *time.Time) error {
	query := `
		UPDATE sessions
		SET status = ?, disconnected_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, status, disconnectedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return model.ErrSessionNotFound
	}

	return nil
}

// UpdateUsername records the operator name once a session authenticates.
func (r *SessionRepository) UpdateUsername(ctx context.Context, id string, username string) error {
	query := `
		UPDATE sessions
		SET username = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, username, id)
	if err != nil {
		return fmt.Errorf("failed to update session username: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return model.ErrSessionNotFound
	}

	return nil
}

// CountActive returns the number of sessions still marked active.
func (r *SessionRepository) CountActive(ctx context.Context) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM sessions
		WHERE status = ?
	`

	var count int
	err := r.db.QueryRowContext(ctx, query, model.SessionStatusActive).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active sessions: %w", err)
	}

	return count, nil
}

// LogCommand appends one executed command line to the audit trail.
func (r *SessionRepository) LogCommand(ctx context.Context, rec *model.CommandRecord) error {
	query := `
		INSERT INTO command_log (session_id, line, result_code, executed_at)
		VALUES (?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		rec.SessionID,
		rec.Line,
		rec.ResultCode,
		rec.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to log command: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get command id: %w", err)
	}
	rec.ID = id

	return nil
}

// ListCommands retrieves the audit trail for one session, oldest first.
func (r *SessionRepository) ListCommands(ctx context.Context, sessionID string) ([]*model.CommandRecord, error) {
	query := `
		SELECT id, session_id, line, result_code, executed_at
		FROM command_log
		WHERE session_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list commands: %w", err)
	}
	defer rows.Close()

	var records []*model.CommandRecord
	for rows.Next() {
		rec := &model.CommandRecord{}
		err := rows.Scan(
			&rec.ID,
			&rec.SessionID,
			&rec.Line,
			&rec.ResultCode,
			&rec.ExecutedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan command: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating commands: %w", err)
	}

	return records, nil
}
