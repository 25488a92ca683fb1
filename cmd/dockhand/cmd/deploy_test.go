package cmd

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dockhand/dockhand/internal/api"
	"github.com/dockhand/dockhand/internal/runlog"
	"github.com/dockhand/dockhand/internal/store"
)

func newTestHistory(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func newTestRunLog(t *testing.T) *runlog.Log {
	t.Helper()
	log, err := runlog.Open(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func seedRunningDeployment(t *testing.T, s store.Store, id string) {
	t.Helper()
	err := s.CreateDeployment(context.Background(), &api.Deployment{
		ID:        id,
		AppName:   "my-app",
		Status:    api.StatusRunning,
		StartedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
}

func TestFinalizeRunAfterInterrupt(t *testing.T) {
	s := newTestHistory(t)
	seedRunningDeployment(t, s, "run-1")

	// A Ctrl-C cancels the pipeline context before the record is finalized.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	finalizeRun(ctx, s, "run-1", "abc123", errors.New("context canceled"), newTestRunLog(t))

	got, err := s.GetDeployment(context.Background(), "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status == api.StatusRunning {
		t.Fatalf("interrupted run was left %q", got.Status)
	}
	if got.Status != api.StatusFailed {
		t.Errorf("expected %q, got %q", api.StatusFailed, got.Status)
	}
	if got.Commit != "abc123" {
		t.Errorf("commit not persisted: %q", got.Commit)
	}
}

func TestFinalizeRunSuccess(t *testing.T) {
	s := newTestHistory(t)
	seedRunningDeployment(t, s, "run-1")

	finalizeRun(context.Background(), s, "run-1", "abc123", nil, newTestRunLog(t))

	got, err := s.GetDeployment(context.Background(), "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != api.StatusSucceeded || got.Error != "" {
		t.Errorf("unexpected record: %+v", got)
	}
}
