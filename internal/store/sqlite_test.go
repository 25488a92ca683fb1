package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dockhand/dockhand/internal/api"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func sampleDeployment(id string, startedAt time.Time) *api.Deployment {
	return &api.Deployment{
		ID:         id,
		AppName:    "my-app",
		RepoURL:    "https://github.com/x/y.git",
		Branch:     "main",
		RemoteHost: "192.168.1.10",
		AppPort:    8080,
		Status:     api.StatusRunning,
		LogPath:    "deploy-20250101-120000.log",
		StartedAt:  startedAt,
	}
}

func TestCreateAndGetDeployment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	started := time.Now().UTC().Truncate(time.Second)
	if err := s.CreateDeployment(ctx, sampleDeployment("run-1", started)); err != nil {
		t.Fatalf("CreateDeployment failed: %v", err)
	}

	got, err := s.GetDeployment(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetDeployment failed: %v", err)
	}
	if got.AppName != "my-app" || got.Status != api.StatusRunning || got.AppPort != 8080 {
		t.Errorf("unexpected record: %+v", got)
	}
}

func TestFinishDeployment(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	started := time.Now().UTC().Truncate(time.Second)
	if err := s.CreateDeployment(ctx, sampleDeployment("run-1", started)); err != nil {
		t.Fatal(err)
	}

	finished := started.Add(time.Minute)
	if err := s.FinishDeployment(ctx, "run-1", api.StatusFailed, "abc123", "deploy failed", finished); err != nil {
		t.Fatalf("FinishDeployment failed: %v", err)
	}

	got, err := s.GetDeployment(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != api.StatusFailed || got.Commit != "abc123" || got.Error != "deploy failed" {
		t.Errorf("finish not persisted: %+v", got)
	}
}

func TestFinishUnknownDeployment(t *testing.T) {
	s := newTestStore(t)
	err := s.FinishDeployment(context.Background(), "absent", api.StatusSucceeded, "", "", time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetUnknownDeployment(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetDeployment(context.Background(), "absent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListDeploymentsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i, id := range []string{"old", "mid", "new"} {
		if err := s.CreateDeployment(ctx, sampleDeployment(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatal(err)
		}
	}

	list, err := s.ListDeployments(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 records, got %d", len(list))
	}
	if list[0].ID != "new" || list[2].ID != "old" {
		t.Errorf("unexpected order: %s, %s, %s", list[0].ID, list[1].ID, list[2].ID)
	}
}
