package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dockhand/dockhand/internal/api"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
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
		started_at TIMESTAMPTZ,
		finished_at TIMESTAMPTZ
	);
	`
	_, err := s.pool.Exec(ctx, query)
	return err
}

func (s *PostgresStore) CreateDeployment(ctx context.Context, d *api.Deployment) error {
	query := `
	INSERT INTO deployments (id, app_name, repo_url, branch, remote_host, app_port, commit_hash, status, log_path, error, started_at, finished_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.pool.Exec(
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

func (s *PostgresStore) FinishDeployment(ctx context.Context, id, status, commit, errText string, finishedAt time.Time) error {
	query := `UPDATE deployments SET status = $1, commit_hash = $2, error = $3, finished_at = $4 WHERE id = $5`
	ct, err := s.pool.Exec(ctx, query, status, commit, errText, finishedAt, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetDeployment(ctx context.Context, id string) (*api.Deployment, error) {
	query := `
	SELECT id, app_name, repo_url, branch, remote_host, app_port, commit_hash, status, log_path, error, started_at, finished_at
	FROM deployments WHERE id = $1
	`
	row := s.pool.QueryRow(ctx, query, id)

	var d api.Deployment
	err := row.Scan(&d.ID, &d.AppName, &d.RepoURL, &d.Branch, &d.RemoteHost, &d.AppPort, &d.Commit, &d.Status, &d.LogPath, &d.Error, &d.StartedAt, &d.FinishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (s *PostgresStore) ListDeployments(ctx context.Context) ([]*api.Deployment, error) {
	query := `
	SELECT id, app_name, repo_url, branch, remote_host, app_port, commit_hash, status, log_path, error, started_at, finished_at
	FROM deployments ORDER BY started_at DESC
	`
	rows, err := s.pool.Query(ctx, query)
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

func (s *PostgresStore) Close() {
	s.pool.Close()
}
