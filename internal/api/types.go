package api

import "time"

// Deployment statuses as persisted in the run-history store.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCleaned   = "cleaned"
)

// Deployment is one recorded run of the deploy (or cleanup) pipeline.
// Lives here instead of the store package so the CLI and HTTP layers can
// share it without importing the database drivers.
type Deployment struct {
	ID         string    `json:"id"`
	AppName    string    `json:"app_name"`
	RepoURL    string    `json:"repo_url"`
	Branch     string    `json:"branch"`
	RemoteHost string    `json:"remote_host"`
	AppPort    int       `json:"app_port"`
	Commit     string    `json:"commit"`
	Status     string    `json:"status"`
	LogPath    string    `json:"log_path"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Response is a standard wrapper for API responses.
type Response struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
