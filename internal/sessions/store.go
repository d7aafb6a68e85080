package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/appforge/internal/generator"
	"github.com/appforge/pkg/models"
)

// Status is a generation session's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

var (
	// ErrNotFound is returned when no session has the given id.
	ErrNotFound = errors.New("sessions: session not found")
	// ErrUnauthorized is returned when a session belongs to another user.
	ErrUnauthorized = errors.New("sessions: not the session owner")
)

// IsTerminal reports whether a status can never change again.
func IsTerminal(s Status) bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// canTransition encodes the status machine. Cancellation is allowed from any
// non-terminal state; terminal states are never left.
func canTransition(from, to Status) bool {
	if IsTerminal(from) {
		return false
	}
	switch to {
	case StatusCancelled:
		return true
	case StatusGenerating:
		return from == StatusPending
	case StatusCompleted:
		return from == StatusGenerating
	case StatusFailed:
		return from == StatusPending || from == StatusGenerating
	default:
		return false
	}
}

// Session is one generation run owned by a user.
type Session struct {
	ID          string                     `json:"id"`
	UserID      string                     `json:"userId"`
	Status      Status                     `json:"status"`
	Request     generator.Request          `json:"request"`
	Files       []models.GeneratedFile     `json:"files,omitempty"`
	Metadata    *models.GenerationMetadata `json:"metadata,omitempty"`
	Warnings    []string                   `json:"warnings,omitempty"`
	Error       string                     `json:"error,omitempty"`
	CreatedAt   time.Time                  `json:"createdAt"`
	UpdatedAt   time.Time                  `json:"updatedAt"`
	CompletedAt *time.Time                 `json:"completedAt,omitempty"`
}

// Store persists sessions in Postgres.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the sessions table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS generation_sessions (
			id UUID PRIMARY KEY,
			user_id TEXT NOT NULL,
			status TEXT NOT NULL,
			request JSONB NOT NULL,
			files JSONB,
			metadata JSONB,
			warnings JSONB,
			error TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			completed_at TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_generation_sessions_user
			ON generation_sessions (user_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_generation_sessions_status
			ON generation_sessions (status, updated_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure sessions schema: %w", err)
	}
	return nil
}

// Create records a new pending session.
func (s *Store) Create(ctx context.Context, userID string, request generator.Request) (*Session, error) {
	requestJSON, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session request: %w", err)
	}

	session := &Session{
		ID:      uuid.NewString(),
		UserID:  userID,
		Status:  StatusPending,
		Request: request,
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO generation_sessions (id, user_id, status, request)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, session.ID, userID, StatusPending, requestJSON).Scan(&session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// Get returns a session the user owns.
func (s *Store) Get(ctx context.Context, id, userID string) (*Session, error) {
	session, err := s.getAny(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, ErrUnauthorized
	}
	return session, nil
}

func (s *Store) getAny(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, status, request, files, metadata, warnings, error,
		       created_at, updated_at, completed_at
		FROM generation_sessions WHERE id = $1
	`, id)
	return scanSession(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		session      Session
		requestJSON  []byte
		filesJSON    sql.NullString
		metadataJSON sql.NullString
		warningsJSON sql.NullString
	)
	err := row.Scan(&session.ID, &session.UserID, &session.Status, &requestJSON,
		&filesJSON, &metadataJSON, &warningsJSON, &session.Error,
		&session.CreatedAt, &session.UpdatedAt, &session.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	if err := json.Unmarshal(requestJSON, &session.Request); err != nil {
		return nil, fmt.Errorf("failed to decode session request: %w", err)
	}
	if filesJSON.Valid && filesJSON.String != "" {
		if err := json.Unmarshal([]byte(filesJSON.String), &session.Files); err != nil {
			return nil, fmt.Errorf("failed to decode session files: %w", err)
		}
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		session.Metadata = &models.GenerationMetadata{}
		if err := json.Unmarshal([]byte(metadataJSON.String), session.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode session metadata: %w", err)
		}
	}
	if warningsJSON.Valid && warningsJSON.String != "" {
		if err := json.Unmarshal([]byte(warningsJSON.String), &session.Warnings); err != nil {
			return nil, fmt.Errorf("failed to decode session warnings: %w", err)
		}
	}
	return &session, nil
}

// UpdateStatus moves a session to a new status. The requested move is checked
// against the status machine first; the WHERE clause additionally refuses to
// leave a terminal state, so a late automated update can never overwrite a
// completed, failed, or cancelled session even if it races this check.
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status, errMsg string) error {
	current, err := s.getAny(ctx, id)
	if err != nil {
		return err
	}
	if !canTransition(current.Status, status) {
		if IsTerminal(current.Status) {
			// Late updates against a finished session are dropped.
			return nil
		}
		return fmt.Errorf("sessions: invalid transition %s -> %s", current.Status, status)
	}

	query := `
		UPDATE generation_sessions
		SET status = $2, error = $3, updated_at = now()
		WHERE id = $1
		  AND status NOT IN ('completed', 'failed', 'cancelled')
	`
	if status == StatusCompleted {
		query = `
		UPDATE generation_sessions
		SET status = $2, error = $3, updated_at = now(), completed_at = now()
		WHERE id = $1
		  AND status NOT IN ('completed', 'failed', 'cancelled')
		`
	}

	res, err := s.db.ExecContext(ctx, query, id, status, errMsg)
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	if _, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	// Zero rows means a concurrent write reached a terminal state first; the
	// guard made this update a no-op, which is the desired outcome.
	return nil
}

// UpdateFiles stores the generation output on a session.
func (s *Store) UpdateFiles(ctx context.Context, id string, files []models.GeneratedFile, metadata *models.GenerationMetadata, warnings []string) error {
	filesJSON, err := json.Marshal(files)
	if err != nil {
		return fmt.Errorf("failed to marshal session files: %w", err)
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal session metadata: %w", err)
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("failed to marshal session warnings: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE generation_sessions
		SET files = $2, metadata = $3, warnings = $4, updated_at = now()
		WHERE id = $1
	`, id, filesJSON, metadataJSON, warningsJSON)
	if err != nil {
		return fmt.Errorf("failed to update session files: %w", err)
	}
	return nil
}

// Cancel moves a session the user owns to cancelled and reports the status
// the session ended up with. Cancelling an already terminal session is a
// no-op that returns the stored status unchanged.
func (s *Store) Cancel(ctx context.Context, id, userID string) (Status, error) {
	session, err := s.Get(ctx, id, userID)
	if err != nil {
		return "", err
	}
	if IsTerminal(session.Status) {
		return session.Status, nil
	}
	if err := s.UpdateStatus(ctx, id, StatusCancelled, ""); err != nil {
		return "", err
	}
	// Re-read: the run may have finished in the window before the update, in
	// which case the terminal guard kept its status.
	updated, err := s.Get(ctx, id, userID)
	if err != nil {
		return "", err
	}
	return updated.Status, nil
}

// listQuery builds the paged list statement. Out-of-range limits fall back to
// 50; negative offsets clamp to zero.
func listQuery(userID string, filter Status, limit, offset int) (string, []any) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, user_id, status, request, files, metadata, warnings, error,
		       created_at, updated_at, completed_at
		FROM generation_sessions
		WHERE user_id = $1
	`
	args := []any{userID}
	if filter != "" {
		args = append(args, filter)
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))
	args = append(args, offset)
	query += fmt.Sprintf(` OFFSET $%d`, len(args))
	return query, args
}

// List returns a page of the user's sessions, newest first. An empty filter
// matches all statuses.
func (s *Store) List(ctx context.Context, userID string, filter Status, limit, offset int) ([]*Session, error) {
	query, args := listQuery(userID, filter, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	return out, rows.Err()
}

// Delete removes a session the user owns.
func (s *Store) Delete(ctx context.Context, id, userID string) error {
	if _, err := s.Get(ctx, id, userID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM generation_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteOlderThan prunes failed and cancelled sessions last updated before
// the cutoff. Used by the scheduled cleanup job.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM generation_sessions
		WHERE status IN ('failed', 'cancelled') AND updated_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune sessions: %w", err)
	}
	return res.RowsAffected()
}
