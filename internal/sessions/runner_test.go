package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/pkg/models"
)

// fakeStore scripts Cancel outcomes and records status updates.
type fakeStore struct {
	cancelStatus Status
	cancelErr    error
	updates      []Status
}

func (f *fakeStore) Cancel(context.Context, string, string) (Status, error) {
	return f.cancelStatus, f.cancelErr
}

func (f *fakeStore) UpdateStatus(_ context.Context, _ string, status Status, _ string) error {
	f.updates = append(f.updates, status)
	return nil
}

func (f *fakeStore) UpdateFiles(context.Context, string, []models.GeneratedFile, *models.GenerationMetadata, []string) error {
	return nil
}

func TestRunnerCancel_RunningSession(t *testing.T) {
	store := &fakeStore{cancelStatus: StatusCancelled}
	hub := NewHub()
	runner := NewRunner(store, hub, nil, nil)

	events, unsubscribe := hub.Subscribe("s1")
	defer unsubscribe()
	runCtx := runner.register("s1")
	defer runner.unregister("s1")

	status, err := runner.Cancel(context.Background(), "s1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, status)

	// The in-flight run's context is aborted
	select {
	case <-runCtx.Done():
	case <-time.After(time.Second):
		t.Fatal("run context was never cancelled")
	}

	// Subscribers hear about the cancellation
	select {
	case event := <-events:
		assert.Equal(t, "cancelled", event.Type)
		assert.Equal(t, StatusCancelled, event.Status)
	case <-time.After(time.Second):
		t.Fatal("cancelled event never arrived")
	}
}

func TestRunnerCancel_FinishedSessionKeepsStatus(t *testing.T) {
	store := &fakeStore{cancelStatus: StatusCompleted}
	hub := NewHub()
	runner := NewRunner(store, hub, nil, nil)

	events, unsubscribe := hub.Subscribe("s1")
	defer unsubscribe()

	status, err := runner.Cancel(context.Background(), "s1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status)

	// No cancelled event for a session that already finished
	select {
	case event := <-events:
		t.Fatalf("unexpected event %q", event.Type)
	default:
	}
}

func TestRunnerCancel_StoreError(t *testing.T) {
	store := &fakeStore{cancelErr: ErrNotFound}
	runner := NewRunner(store, NewHub(), nil, nil)

	_, err := runner.Cancel(context.Background(), "nope", "user-1")
	assert.ErrorIs(t, err, ErrNotFound)
}
