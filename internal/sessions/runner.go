package sessions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/appforge/internal/generator"
	"github.com/appforge/internal/logging"
	"github.com/appforge/internal/planner"
	"github.com/appforge/pkg/models"
)

// runnerStore is the slice of the session store the runner needs.
type runnerStore interface {
	Cancel(ctx context.Context, id, userID string) (Status, error)
	UpdateStatus(ctx context.Context, id string, status Status, errMsg string) error
	UpdateFiles(ctx context.Context, id string, files []models.GeneratedFile, metadata *models.GenerationMetadata, warnings []string) error
}

// Runner executes generation sessions in the background. Each run gets its
// own cancellable context so Cancel aborts in-flight provider calls.
type Runner struct {
	store        runnerStore
	hub          *Hub
	orchestrator *generator.Orchestrator
	executor     *planner.Executor

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewRunner(store runnerStore, hub *Hub, orchestrator *generator.Orchestrator, executor *planner.Executor) *Runner {
	return &Runner{
		store:        store,
		hub:          hub,
		orchestrator: orchestrator,
		executor:     executor,
		cancels:      make(map[string]context.CancelFunc),
	}
}

// StartCode runs a single-template generation session in a new goroutine.
func (r *Runner) StartCode(session *Session) {
	ctx := r.register(session.ID)
	go func() {
		defer r.unregister(session.ID)
		r.runCode(ctx, session)
	}()
}

// StartProject runs a multi-phase project session in a new goroutine.
func (r *Runner) StartProject(session *Session, plan *planner.ProjectPlan, vars map[string]string) {
	ctx := r.register(session.ID)
	go func() {
		defer r.unregister(session.ID)
		r.runProject(ctx, session, plan, vars)
	}()
}

// Cancel marks a session cancelled and aborts its in-flight work, reporting
// the status the session ended up with. A session that already finished keeps
// its stored status; no cancellation event is published for it. Ownership is
// checked by the store.
func (r *Runner) Cancel(ctx context.Context, id, userID string) (Status, error) {
	status, err := r.store.Cancel(ctx, id, userID)
	if err != nil {
		return "", err
	}
	if status != StatusCancelled {
		return status, nil
	}

	r.mu.Lock()
	cancel, ok := r.cancels[id]
	r.mu.Unlock()
	if ok {
		cancel()
	}

	r.hub.Publish(id, Event{Type: "cancelled", Status: StatusCancelled})
	return status, nil
}

func (r *Runner) register(id string) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.cancels[id] = cancel
	r.mu.Unlock()
	return ctx
}

func (r *Runner) unregister(id string) {
	r.mu.Lock()
	if cancel, ok := r.cancels[id]; ok {
		cancel()
		delete(r.cancels, id)
	}
	r.mu.Unlock()
}

func (r *Runner) runCode(ctx context.Context, session *Session) {
	logger := logging.WithSession(session.ID)
	r.markGenerating(session.ID)

	result, err := r.orchestrator.GenerateCode(ctx, session.Request)
	if err != nil {
		r.markFailed(ctx, session.ID, err)
		return
	}

	files := append(append(append([]models.GeneratedFile{}, result.Files...), result.Tests...), result.Docs...)
	r.complete(session.ID, files, &result.Metadata, result.Warnings)
	logger.Info().Int("files", len(files)).Float64("cost", result.Metadata.Cost).Msg("Generation session completed")
}

func (r *Runner) runProject(ctx context.Context, session *Session, plan *planner.ProjectPlan, vars map[string]string) {
	logger := logging.WithSession(session.ID)
	r.markGenerating(session.ID)

	result, err := r.executor.GenerateProject(ctx, plan, session.Request.Provider, session.Request.Model, vars)
	if err != nil {
		r.markFailed(ctx, session.ID, err)
		return
	}

	metadata := &models.GenerationMetadata{
		Template:    plan.Type,
		Provider:    string(session.Request.Provider),
		Model:       session.Request.Model,
		TokensUsed:  result.TotalTokens,
		Cost:        result.TotalCost,
		GeneratedAt: time.Now().UTC(),
	}
	var warnings []string
	for _, phase := range result.Phases {
		warnings = append(warnings, phase.Result.Warnings...)
	}

	r.complete(session.ID, result.Files(), metadata, warnings)
	logger.Info().
		Str("plan", plan.Type).
		Int("phases", len(result.Phases)).
		Float64("cost", result.TotalCost).
		Msg("Project session completed")
}

func (r *Runner) markGenerating(id string) {
	if err := r.store.UpdateStatus(context.Background(), id, StatusGenerating, ""); err != nil {
		logger := logging.WithSession(id)
		logger.Error().Err(err).Msg("Failed to mark session generating")
	}
	r.hub.Publish(id, Event{Type: "status", Status: StatusGenerating})
}

func (r *Runner) markFailed(ctx context.Context, id string, cause error) {
	// A cancelled run was already marked by Cancel; the terminal-state guard
	// makes this update a no-op in that case.
	logger := logging.WithSession(id)
	if errors.Is(cause, context.Canceled) || ctx.Err() != nil {
		logger.Info().Msg("Generation session cancelled")
		return
	}

	if err := r.store.UpdateStatus(context.Background(), id, StatusFailed, cause.Error()); err != nil {
		logger.Error().Err(err).Msg("Failed to mark session failed")
	}
	r.hub.Publish(id, Event{Type: "failed", Status: StatusFailed, Message: cause.Error()})
	logger.Error().Err(cause).Msg("Generation session failed")
}

func (r *Runner) complete(id string, files []models.GeneratedFile, metadata *models.GenerationMetadata, warnings []string) {
	ctx := context.Background()
	if err := r.store.UpdateFiles(ctx, id, files, metadata, warnings); err != nil {
		r.markFailed(ctx, id, err)
		return
	}
	if err := r.store.UpdateStatus(ctx, id, StatusCompleted, ""); err != nil {
		logger := logging.WithSession(id)
		logger.Error().Err(err).Msg("Failed to mark session completed")
	}
	r.hub.Publish(id, Event{
		Type:     "completed",
		Status:   StatusCompleted,
		Files:    files,
		Metadata: metadata,
		Warnings: warnings,
	})
}
