package history

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/dockhand/dockhand/internal/api"
	"github.com/dockhand/dockhand/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(s.Close)

	handler := NewHandler(s, slog.New(slog.NewTextHandler(io.Discard, nil)))
	server := httptest.NewServer(handler.Router())
	t.Cleanup(server.Close)
	return server, s
}

func seedRun(t *testing.T, s store.Store, id string) {
	t.Helper()
	err := s.CreateDeployment(context.Background(), &api.Deployment{
		ID:         id,
		AppName:    "my-app",
		RepoURL:    "https://github.com/x/y.git",
		Branch:     "main",
		RemoteHost: "192.168.1.10",
		AppPort:    8080,
		Status:     api.StatusSucceeded,
		StartedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
}

func TestListDeployments(t *testing.T) {
	server, s := newTestServer(t)
	seedRun(t, s, "run-1")
	seedRun(t, s, "run-2")

	resp, err := http.Get(server.URL + "/api/v1/deployments/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var payload struct {
		Data []api.Deployment `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatal(err)
	}
	if len(payload.Data) != 2 {
		t.Errorf("expected 2 runs, got %d", len(payload.Data))
	}
}

func TestGetDeployment(t *testing.T) {
	server, s := newTestServer(t)
	seedRun(t, s, "run-1")

	resp, err := http.Get(server.URL + "/api/v1/deployments/run-1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var payload struct {
		Data api.Deployment `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatal(err)
	}
	if payload.Data.AppName != "my-app" {
		t.Errorf("unexpected record: %+v", payload.Data)
	}
}

func TestGetDeploymentNotFound(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/v1/deployments/absent")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
