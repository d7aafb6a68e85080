package apps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/appforge/internal/sessions"
	"github.com/appforge/pkg/models"
)

// Visibility controls who can read an app.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

var (
	// ErrNotFound is returned when no app has the given id.
	ErrNotFound = errors.New("apps: app not found")
	// ErrUnauthorized is returned when an app is private to another user.
	ErrUnauthorized = errors.New("apps: not the app owner")
	// ErrSessionNotCompleted is returned when saving from a session that has
	// not finished generating.
	ErrSessionNotCompleted = errors.New("apps: session has not completed")
)

// App is a saved application snapshot created from a completed session.
type App struct {
	ID          string                 `json:"id"`
	UserID      string                 `json:"userId"`
	SessionID   string                 `json:"sessionId"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Framework   string                 `json:"framework,omitempty"`
	Visibility  Visibility             `json:"visibility"`
	Files       []models.GeneratedFile `json:"files,omitempty"`
	Warnings    []string               `json:"warnings,omitempty"`
	Stars       int                    `json:"stars"`
	Favorites   int                    `json:"favorites"`
	ForkCount   int                    `json:"forkCount"`
	ForkedFrom  *string                `json:"forkedFrom,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
	UpdatedAt   time.Time              `json:"updatedAt"`
}

// Store persists apps and their star/favorite relations.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the apps tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS apps (
			id UUID PRIMARY KEY,
			user_id TEXT NOT NULL,
			session_id UUID NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			framework TEXT NOT NULL DEFAULT '',
			visibility TEXT NOT NULL DEFAULT 'private',
			files JSONB,
			warnings JSONB,
			stars INT NOT NULL DEFAULT 0,
			favorites INT NOT NULL DEFAULT 0,
			fork_count INT NOT NULL DEFAULT 0,
			forked_from UUID,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS app_stars (
			app_id UUID NOT NULL REFERENCES apps(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (app_id, user_id)
		);
		CREATE TABLE IF NOT EXISTS app_favorites (
			app_id UUID NOT NULL REFERENCES apps(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (app_id, user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_apps_user ON apps (user_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_apps_visibility ON apps (visibility, stars DESC);
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure apps schema: %w", err)
	}
	return nil
}

// CreateFromSession snapshots a completed session's files into a new app.
// Warnings (secret scan findings) are attached but never block the save.
func (s *Store) CreateFromSession(ctx context.Context, userID string, session *sessions.Session, name, description string, visibility Visibility, warnings []string) (*App, error) {
	if session.Status != sessions.StatusCompleted {
		return nil, ErrSessionNotCompleted
	}
	if visibility != VisibilityPublic {
		visibility = VisibilityPrivate
	}

	framework := ""
	if session.Metadata != nil {
		framework = session.Metadata.Framework
	}

	app := &App{
		ID:          uuid.NewString(),
		UserID:      userID,
		SessionID:   session.ID,
		Name:        name,
		Description: description,
		Framework:   framework,
		Visibility:  visibility,
		Files:       session.Files,
		Warnings:    warnings,
	}

	filesJSON, err := json.Marshal(app.Files)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal app files: %w", err)
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal app warnings: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO apps (id, user_id, session_id, name, description, framework, visibility, files, warnings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, app.ID, userID, session.ID, name, description, framework, visibility, filesJSON, warningsJSON).
		Scan(&app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create app: %w", err)
	}
	return app, nil
}

// Get returns an app if it is public or owned by the user.
func (s *Store) Get(ctx context.Context, id, userID string) (*App, error) {
	app, err := s.getAny(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.Visibility != VisibilityPublic && app.UserID != userID {
		return nil, ErrUnauthorized
	}
	return app, nil
}

func (s *Store) getAny(ctx context.Context, id string) (*App, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, session_id, name, description, framework, visibility,
		       files, warnings, stars, favorites, fork_count, forked_from,
		       created_at, updated_at
		FROM apps WHERE id = $1
	`, id)
	return scanApp(row)
}

func scanApp(row pgx.Row) (*App, error) {
	var (
		app          App
		filesJSON    []byte
		warningsJSON []byte
	)
	err := row.Scan(&app.ID, &app.UserID, &app.SessionID, &app.Name, &app.Description,
		&app.Framework, &app.Visibility, &filesJSON, &warningsJSON,
		&app.Stars, &app.Favorites, &app.ForkCount, &app.ForkedFrom,
		&app.CreatedAt, &app.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan app: %w", err)
	}

	if len(filesJSON) > 0 {
		if err := json.Unmarshal(filesJSON, &app.Files); err != nil {
			return nil, fmt.Errorf("failed to decode app files: %w", err)
		}
	}
	if len(warningsJSON) > 0 {
		if err := json.Unmarshal(warningsJSON, &app.Warnings); err != nil {
			return nil, fmt.Errorf("failed to decode app warnings: %w", err)
		}
	}
	return &app, nil
}

// List returns the user's own apps plus public apps, newest first.
func (s *Store) List(ctx context.Context, userID string, limit int) ([]*App, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, session_id, name, description, framework, visibility,
		       files, warnings, stars, favorites, fork_count, forked_from,
		       created_at, updated_at
		FROM apps
		WHERE user_id = $1 OR visibility = 'public'
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list apps: %w", err)
	}
	defer rows.Close()

	var out []*App
	for rows.Next() {
		app, err := scanApp(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, app)
	}
	return out, rows.Err()
}

// Star records a star and bumps the counter in one transaction. Starring
// twice is a no-op.
func (s *Store) Star(ctx context.Context, id, userID string) (*App, error) {
	return s.react(ctx, id, userID, "app_stars", "stars")
}

// Favorite records a favorite and bumps the counter in one transaction.
func (s *Store) Favorite(ctx context.Context, id, userID string) (*App, error) {
	return s.react(ctx, id, userID, "app_favorites", "favorites")
}

func (s *Store) react(ctx context.Context, id, userID, relationTable, counterColumn string) (*App, error) {
	if _, err := s.Get(ctx, id, userID); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (app_id, user_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, relationTable), id, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to record reaction: %w", err)
	}

	if tag.RowsAffected() > 0 {
		_, err = tx.Exec(ctx, fmt.Sprintf(`
			UPDATE apps SET %s = %s + 1, updated_at = now() WHERE id = $1
		`, counterColumn, counterColumn), id)
		if err != nil {
			return nil, fmt.Errorf("failed to bump counter: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit reaction: %w", err)
	}
	return s.getAny(ctx, id)
}

// Fork copies an app's snapshot into a new private app owned by the caller
// and bumps the source's fork counter, all in one transaction.
func (s *Store) Fork(ctx context.Context, id, userID string) (*App, error) {
	source, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	filesJSON, err := json.Marshal(source.Files)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fork files: %w", err)
	}
	warningsJSON, err := json.Marshal(source.Warnings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fork warnings: %w", err)
	}

	fork := &App{
		ID:          uuid.NewString(),
		UserID:      userID,
		SessionID:   source.SessionID,
		Name:        source.Name + " (fork)",
		Description: source.Description,
		Framework:   source.Framework,
		Visibility:  VisibilityPrivate,
		Files:       source.Files,
		Warnings:    source.Warnings,
		ForkedFrom:  &source.ID,
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO apps (id, user_id, session_id, name, description, framework,
		                  visibility, files, warnings, forked_from)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`, fork.ID, userID, fork.SessionID, fork.Name, fork.Description, fork.Framework,
		fork.Visibility, filesJSON, warningsJSON, source.ID).
		Scan(&fork.CreatedAt, &fork.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create fork: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE apps SET fork_count = fork_count + 1, updated_at = now() WHERE id = $1`, source.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to bump fork counter: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit fork: %w", err)
	}
	return fork, nil
}

// Delete removes an app the user owns.
func (s *Store) Delete(ctx context.Context, id, userID string) error {
	app, err := s.getAny(ctx, id)
	if err != nil {
		return err
	}
	if app.UserID != userID {
		return ErrUnauthorized
	}
	_, err = s.pool.Exec(ctx, `DELETE FROM apps WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete app: %w", err)
	}
	return nil
}
