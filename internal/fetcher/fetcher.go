// Package fetcher clones or updates the target repository in the scratch
// directory. Authentication uses the collected username/token pair as HTTP
// basic auth; the token never appears in the remote URL.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/dockhand/dockhand/internal/config"
	"github.com/dockhand/dockhand/internal/runlog"
)

// Sync makes dir hold a checkout of plan.Branch at its latest remote commit
// and returns that commit hash. A fresh directory is cloned; an existing
// working copy is fetched and hard-reset instead.
func Sync(ctx context.Context, dir string, plan config.Plan, log *runlog.Log) (string, error) {
	auth := &githttp.BasicAuth{
		Username: plan.GitUsername,
		Password: plan.AccessToken,
	}

	gitDir := filepath.Join(dir, ".git")
	if _, err := os.Stat(gitDir); os.IsNotExist(err) {
		return clone(ctx, dir, plan, auth, log)
	}
	return update(ctx, dir, plan, auth, log)
}

func clone(ctx context.Context, dir string, plan config.Plan, auth transport.AuthMethod, log *runlog.Log) (string, error) {
	log.Infof("Cloning %s (branch %s)", plan.RepoURL, plan.Branch)

	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:           plan.RepoURL,
		Auth:          auth,
		ReferenceName: plumbing.NewBranchReferenceName(plan.Branch),
		SingleBranch:  true,
		Progress:      &logWriter{log: log},
	})
	if err != nil {
		return "", fmt.Errorf("git clone failed: %w", err)
	}
	return headCommit(repo)
}

func update(ctx context.Context, dir string, plan config.Plan, auth transport.AuthMethod, log *runlog.Log) (string, error) {
	log.Infof("Working copy found at %s; updating instead of cloning", dir)

	repo, err := git.PlainOpen(dir)
	if err != nil {
		return "", fmt.Errorf("failed to open working copy: %w", err)
	}

	err = repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: "origin",
		Auth:       auth,
		RefSpecs:   []gitconfig.RefSpec{"+refs/heads/*:refs/remotes/origin/*"},
		Progress:   &logWriter{log: log},
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return "", fmt.Errorf("git fetch failed: %w", err)
	}

	remoteRef, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", plan.Branch), true)
	if err != nil {
		return "", fmt.Errorf("remote branch %s not found: %w", plan.Branch, err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to open worktree: %w", err)
	}
	if err := worktree.Checkout(&git.CheckoutOptions{Hash: remoteRef.Hash(), Force: true}); err != nil {
		return "", fmt.Errorf("git checkout failed: %w", err)
	}

	return headCommit(repo)
}

func headCommit(repo *git.Repository) (string, error) {
	ref, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

// logWriter forwards git progress output into the run log line by line.
type logWriter struct {
	log *runlog.Log
}

func (w *logWriter) Write(p []byte) (int, error) {
	for _, line := range strings.FieldsFunc(string(p), func(r rune) bool { return r == '\n' || r == '\r' }) {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			w.log.Infof("git: %s", trimmed)
		}
	}
	return len(p), nil
}
