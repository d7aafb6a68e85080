package export

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/appforge/internal/apps"
)

// ErrNotConfigured is returned when no GitLab token is configured.
var ErrNotConfigured = errors.New("export: gitlab export not configured")

// GitLabConfig contains the export target settings.
type GitLabConfig struct {
	URL   string `koanf:"gitlab_url"`
	Token string `koanf:"gitlab_token"`
}

// GitLabExporter pushes app snapshots to GitLab as new projects.
type GitLabExporter struct {
	client *gitlab.Client
	config GitLabConfig
}

// NewGitLabExporter builds an exporter. A missing token yields an exporter
// that reports ErrNotConfigured on use, so the server can start without
// export credentials.
func NewGitLabExporter(config GitLabConfig) (*GitLabExporter, error) {
	if config.Token == "" {
		return &GitLabExporter{config: config}, nil
	}

	var opts []gitlab.ClientOptionFunc
	if config.URL != "" {
		opts = append(opts, gitlab.WithBaseURL(fmt.Sprintf("%s/api/v4", config.URL)))
	}
	client, err := gitlab.NewClient(config.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to set GitLab API base URL: %w", err)
	}
	return &GitLabExporter{client: client, config: config}, nil
}

// ExportResult describes the created repository.
type ExportResult struct {
	ProjectID int    `json:"projectId"`
	WebURL    string `json:"webUrl"`
	Branch    string `json:"branch"`
	Files     int    `json:"files"`
}

// Export creates a private GitLab project named after the app and commits
// the whole file snapshot as one initial commit.
func (e *GitLabExporter) Export(ctx context.Context, app *apps.App) (*ExportResult, error) {
	if e.client == nil {
		return nil, ErrNotConfigured
	}
	if len(app.Files) == 0 {
		return nil, errors.New("export: app has no files")
	}

	project, _, err := e.client.Projects.CreateProject(&gitlab.CreateProjectOptions{
		Name:        gitlab.Ptr(app.Name),
		Description: gitlab.Ptr(app.Description),
		Visibility:  gitlab.Ptr(gitlab.PrivateVisibility),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to create GitLab project: %w", err)
	}

	actions := make([]*gitlab.CommitActionOptions, 0, len(app.Files))
	for _, f := range app.Files {
		actions = append(actions, &gitlab.CommitActionOptions{
			Action:   gitlab.Ptr(gitlab.FileCreate),
			FilePath: gitlab.Ptr(f.Path),
			Content:  gitlab.Ptr(f.Content),
		})
	}

	branch := "main"
	_, _, err = e.client.Commits.CreateCommit(project.ID, &gitlab.CreateCommitOptions{
		Branch:        gitlab.Ptr(branch),
		CommitMessage: gitlab.Ptr("Initial import from AppForge"),
		Actions:       actions,
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to commit app files: %w", err)
	}

	log.Info().
		Str("app_id", app.ID).
		Int("project_id", int(project.ID)).
		Int("files", len(app.Files)).
		Msg("Exported app to GitLab")

	return &ExportResult{
		ProjectID: int(project.ID),
		WebURL:    project.WebURL,
		Branch:    branch,
		Files:     len(app.Files),
	}, nil
}
