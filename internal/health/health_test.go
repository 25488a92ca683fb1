package health

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/dockhand/dockhand/internal/config"
	"github.com/dockhand/dockhand/internal/remote"
	"github.com/dockhand/dockhand/internal/runlog"
)

func TestMain(m *testing.M) {
	config.SetDefaults()
	viper.Set(config.KeySettleDelay, time.Duration(0))
	os.Exit(m.Run())
}

type fakeRunner struct {
	results  map[string]remote.Result
	commands []string
}

func (f *fakeRunner) Run(_ context.Context, command string) (remote.Result, error) {
	f.commands = append(f.commands, command)
	for key, res := range f.results {
		if strings.Contains(command, key) {
			return res, nil
		}
	}
	return remote.Result{ExitCode: 0}, nil
}

func (f *fakeRunner) RunWithStdin(ctx context.Context, command string, _ io.Reader) (remote.Result, error) {
	return f.Run(ctx, command)
}

func testLog(t *testing.T) *runlog.Log {
	t.Helper()
	log, err := runlog.Open(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func testPlan() config.Plan {
	return config.Plan{RemoteUser: "deploy", RemoteHost: "10.0.0.5", AppName: "my-app", AppPort: 8080}
}

func TestCheckHappyPath(t *testing.T) {
	runner := &fakeRunner{
		results: map[string]remote.Result{
			"docker ps": {ExitCode: 0, Stdout: "my-app\n"},
		},
	}
	if err := Check(context.Background(), runner, testPlan(), testLog(t)); err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	joined := strings.Join(runner.commands, "\n")
	if !strings.Contains(joined, "systemctl is-active docker") {
		t.Errorf("daemon state was not checked:\n%s", joined)
	}
	if !strings.Contains(joined, "curl -sf -m 10 -o /dev/null http://localhost:8080/") {
		t.Errorf("endpoint was not probed:\n%s", joined)
	}
}

func TestCheckDaemonInactive(t *testing.T) {
	runner := &fakeRunner{
		results: map[string]remote.Result{
			"is-active": {ExitCode: 3, Stdout: "inactive"},
		},
	}
	if err := Check(context.Background(), runner, testPlan(), testLog(t)); err == nil {
		t.Fatal("expected an error when the docker daemon is inactive")
	}
}

func TestCheckNoRunningContainer(t *testing.T) {
	runner := &fakeRunner{
		results: map[string]remote.Result{
			"docker ps": {ExitCode: 0, Stdout: ""},
		},
	}
	err := Check(context.Background(), runner, testPlan(), testLog(t))
	if err == nil {
		t.Fatal("expected an error when no container is running")
	}

	joined := strings.Join(runner.commands, "\n")
	if !strings.Contains(joined, "docker logs --tail 20 my-app") {
		t.Errorf("container logs were not pulled for diagnostics:\n%s", joined)
	}
}

func TestCheckProbeFailureIsWarningOnly(t *testing.T) {
	runner := &fakeRunner{
		results: map[string]remote.Result{
			"docker ps": {ExitCode: 0, Stdout: "my-app\n"},
			"curl":      {ExitCode: 7},
		},
	}
	if err := Check(context.Background(), runner, testPlan(), testLog(t)); err != nil {
		t.Fatalf("a failed endpoint probe must not fail the check: %v", err)
	}
}
