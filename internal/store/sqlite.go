package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/dockhand/dockhand/internal/api"
)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore initializes the SQLite database and creates the history table.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	query := `
	CREATE TABLE IF NOT EXISTS deployments (
		id TEXT PRIMARY KEY,
		app_name TEXT,
		repo_url TEXT,
		branch TEXT,
		remote_host TEXT,
		app_port INTEGER,
		commit_hash TEXT NOT NULL DEFAULT '',
		status TEXT,
		log_path TEXT,
		error TEXT NOT NULL DEFAULT '',
		started_at DATETIME,
		finished_at DATETIME
	);
	`
	if _, err := db.Exec(query); err != nil {
		return nil, fmt.Errorf("failed to create deployments table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateDeployment(ctx context.Context, d *api.Deployment) error {
	query := `
	INSERT INTO deployments (id, app_name, repo_url, branch, remote_host, app_port, commit_hash, status, log_path, error, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		d.ID,
		d.AppName,
		d.RepoURL,
		d.Branch,
		d.RemoteHost,
		d.AppPort,
		d.Commit,
		d.Status,
		d.LogPath,
		d.Error,
		d.StartedAt,
		d.FinishedAt,
	)
	return err
}

func (s *SQLiteStore) FinishDeployment(ctx context.Context, id, status, commit, errText string, finishedAt time.Time) error {
	query := `UPDATE deployments SET status = ?, commit_hash = ?, error = ?, finished_at = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, status, commit, errText, finishedAt, id)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) GetDeployment(ctx context.Context, id string) (*api.Deployment, error) {
	query := `
	SELECT id, app_name, repo_url, branch, remote_host, app_port, commit_hash, status, log_path, error, started_at, finished_at
	FROM deployments WHERE id = ?
	`
	row := s.db.QueryRowContext(ctx, query, id)

	var d api.Deployment
	err := row.Scan(&d.ID, &d.AppName, &d.RepoURL, &d.Branch, &d.RemoteHost, &d.AppPort, &d.Commit, &d.Status, &d.LogPath, &d.Error, &d.StartedAt, &d.FinishedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (s *SQLiteStore) ListDeployments(ctx context.Context) ([]*api.Deployment, error) {
	query := `
	SELECT id, app_name, repo_url, branch, remote_host, app_port, commit_hash, status, log_path, error, started_at, finished_at
	FROM deployments ORDER BY started_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deployments []*api.Deployment
	for rows.Next() {
		var d api.Deployment
		if err := rows.Scan(&d.ID, &d.AppName, &d.RepoURL, &d.Branch, &d.RemoteHost, &d.AppPort, &d.Commit, &d.Status, &d.LogPath, &d.Error, &d.StartedAt, &d.FinishedAt); err != nil {
			continue
		}
		deployments = append(deployments, &d)
	}
	return deployments, rows.Err()
}

func (s *SQLiteStore) Close() {
	s.db.Close()
}
