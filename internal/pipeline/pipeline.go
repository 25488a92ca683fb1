// Package pipeline sequences the deployment stages and maps each stage's
// failure to a distinct exit status, so shell callers can tell where a run
// died without parsing output.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/viper"

	"github.com/dockhand/dockhand/internal/config"
	"github.com/dockhand/dockhand/internal/deploy"
	"github.com/dockhand/dockhand/internal/descriptor"
	"github.com/dockhand/dockhand/internal/fetcher"
	"github.com/dockhand/dockhand/internal/health"
	"github.com/dockhand/dockhand/internal/nginx"
	"github.com/dockhand/dockhand/internal/provision"
	"github.com/dockhand/dockhand/internal/remote"
	"github.com/dockhand/dockhand/internal/runlog"
	"github.com/dockhand/dockhand/internal/transfer"
)

// Exit statuses, one per stage.
const (
	CodeGeneric       = 1
	CodeCredentials   = 2
	CodeFetch         = 3
	CodeDescriptor    = 4
	CodeConnect       = 5
	CodeProvision     = 6
	CodeTransfer      = 7
	CodeDeploy        = 8
	CodeHealth        = 9
	CodeProxyConfig   = 10
	CodeProxyValidate = 11
)

// StageError ties a failure to the stage it happened in and the exit status
// the process should finish with.
type StageError struct {
	Stage string
	Code  int
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ExitCode extracts the stage exit status from err, defaulting to the
// generic failure status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Code
	}
	return CodeGeneric
}

type runnerCloser interface {
	remote.Runner
	io.Closer
}

// Seams for tests; production code never overrides these.
var (
	syncRepo = fetcher.Sync
	push     = transfer.Push
	connect  = func(plan config.Plan) (runnerCloser, error) {
		return remote.Dial(remote.Options{
			Addr:          plan.SSHAddr(),
			User:          plan.RemoteUser,
			KeyPath:       plan.SSHKeyPath,
			Timeout:       viper.GetDuration(config.KeySSHTimeout),
			StrictHostKey: viper.GetBool(config.KeySSHStrictHost),
		})
	}
)

// Run executes a full deployment and returns the deployed commit hash. The
// scratch checkout lives in a temp directory that is removed on every path
// out of the function.
func Run(ctx context.Context, plan config.Plan, log *runlog.Log) (string, error) {
	scratch, err := os.MkdirTemp("", "dockhand-*")
	if err != nil {
		return "", &StageError{Stage: "setup", Code: CodeGeneric, Err: err}
	}
	defer os.RemoveAll(scratch)

	log.Infof("Fetching %s (branch %s)", plan.RepoURL, plan.Branch)
	commit, err := syncRepo(ctx, scratch, plan, log)
	if err != nil {
		return "", &StageError{Stage: "fetch", Code: CodeFetch, Err: err}
	}
	log.Successf("Checked out %s at %s", plan.Branch, commit)

	set, err := descriptor.Probe(scratch)
	if err != nil {
		return commit, &StageError{Stage: "descriptor", Code: CodeDescriptor, Err: err}
	}
	log.Infof("Deployment descriptors: %s", set.Kind())

	log.Infof("Connecting to %s as %s", plan.SSHAddr(), plan.RemoteUser)
	client, err := connect(plan)
	if err != nil {
		return commit, &StageError{Stage: "connect", Code: CodeConnect, Err: err}
	}
	defer client.Close()
	log.Successf("SSH connection established")

	if err := provision.Apply(ctx, client, plan, log); err != nil {
		return commit, &StageError{Stage: "provision", Code: CodeProvision, Err: err}
	}

	log.Infof("Transferring project to %s", plan.RemoteDir())
	if err := push(ctx, scratch, plan, client, log); err != nil {
		return commit, &StageError{Stage: "transfer", Code: CodeTransfer, Err: err}
	}
	log.Successf("Project transferred")

	if err := deploy.Run(ctx, client, plan, set, log); err != nil {
		return commit, &StageError{Stage: "deploy", Code: CodeDeploy, Err: err}
	}

	if err := health.Check(ctx, client, plan, log); err != nil {
		return commit, &StageError{Stage: "health", Code: CodeHealth, Err: err}
	}

	if err := nginx.Install(ctx, client, plan, log); err != nil {
		return commit, &StageError{Stage: "proxy-config", Code: CodeProxyConfig, Err: err}
	}

	if err := nginx.Validate(ctx, client, plan, log); err != nil {
		return commit, &StageError{Stage: "proxy-validate", Code: CodeProxyValidate, Err: err}
	}

	log.Successf("Deployment of %s complete", plan.AppName)
	return commit, nil
}

// Cleanup removes everything a deployment put on the host: containers,
// image, project directory and the proxy site. Individual removals are
// best-effort; only failing to reach the host is fatal.
func Cleanup(ctx context.Context, plan config.Plan, log *runlog.Log) error {
	log.Infof("Connecting to %s as %s", plan.SSHAddr(), plan.RemoteUser)
	client, err := connect(plan)
	if err != nil {
		return &StageError{Stage: "connect", Code: CodeConnect, Err: err}
	}
	defer client.Close()

	deploy.Teardown(ctx, client, plan, log)
	nginx.Remove(ctx, client, plan, log)

	log.Successf("Cleanup of %s complete", plan.AppName)
	return nil
}
