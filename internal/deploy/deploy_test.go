package deploy

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/dockhand/dockhand/internal/config"
	"github.com/dockhand/dockhand/internal/descriptor"
	"github.com/dockhand/dockhand/internal/remote"
	"github.com/dockhand/dockhand/internal/runlog"
)

func TestMain(m *testing.M) {
	config.SetDefaults()
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
	return config.Plan{
		RemoteUser: "deploy",
		RemoteHost: "192.168.1.10",
		AppName:    "my-app",
		AppPort:    3000,
	}
}

func TestRunDockerfileOnly(t *testing.T) {
	runner := &fakeRunner{}
	set := descriptor.Set{Dockerfile: true}

	if err := Run(context.Background(), runner, testPlan(), set, testLog(t)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	joined := strings.Join(runner.commands, "\n")
	if !strings.Contains(joined, "docker build -t 'my-app:latest' .") {
		t.Errorf("missing build command:\n%s", joined)
	}
	if !strings.Contains(joined, "--restart always") {
		t.Errorf("container must restart always:\n%s", joined)
	}
	if !strings.Contains(joined, "-p 3000:3000") {
		t.Errorf("missing port mapping:\n%s", joined)
	}
	if strings.Contains(joined, "docker compose") {
		t.Errorf("compose must not run without a compose file:\n%s", joined)
	}
}

func TestRunComposeWins(t *testing.T) {
	runner := &fakeRunner{}
	set := descriptor.Set{Dockerfile: true, ComposeFile: "docker-compose.yml"}

	if err := Run(context.Background(), runner, testPlan(), set, testLog(t)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	joined := strings.Join(runner.commands, "\n")
	if !strings.Contains(joined, "docker compose -p 'my-app' -f 'docker-compose.yml' up -d --build") {
		t.Errorf("missing compose up:\n%s", joined)
	}
	if strings.Contains(joined, "docker run") {
		t.Errorf("plain docker run must not happen when compose is present:\n%s", joined)
	}
}

func TestRunRemovesPriorContainersFirst(t *testing.T) {
	runner := &fakeRunner{
		results: map[string]remote.Result{
			"docker ps -aq": {ExitCode: 0, Stdout: "abc123\ndef456\n"},
		},
	}
	set := descriptor.Set{Dockerfile: true}

	if err := Run(context.Background(), runner, testPlan(), set, testLog(t)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var rmIndex, buildIndex = -1, -1
	for i, command := range runner.commands {
		if strings.Contains(command, "docker rm -f abc123 def456") {
			rmIndex = i
		}
		if strings.Contains(command, "docker build") {
			buildIndex = i
		}
	}
	if rmIndex == -1 {
		t.Fatalf("prior containers were not removed: %v", runner.commands)
	}
	if buildIndex == -1 || rmIndex > buildIndex {
		t.Errorf("removal must happen before the build: rm=%d build=%d", rmIndex, buildIndex)
	}
}

func TestRemovePriorMatchesExactNameOnly(t *testing.T) {
	runner := &fakeRunner{}
	removePrior(context.Background(), runner, testPlan(), testLog(t))

	joined := strings.Join(runner.commands, "\n")
	if !strings.Contains(joined, "name=^/my-app$") {
		t.Errorf("filter must anchor the container name, got:\n%s", joined)
	}
}

func TestRunComposeUpFailure(t *testing.T) {
	runner := &fakeRunner{
		results: map[string]remote.Result{
			"up -d --build": {ExitCode: 1, Stderr: "service failed to build"},
		},
	}
	set := descriptor.Set{ComposeFile: "compose.yaml"}

	err := Run(context.Background(), runner, testPlan(), set, testLog(t))
	if err == nil {
		t.Fatal("expected an error when compose up fails")
	}
	if !strings.Contains(err.Error(), "service failed to build") {
		t.Errorf("error should carry remote output, got %v", err)
	}
}

func TestRunBuildFailureSkipsRun(t *testing.T) {
	runner := &fakeRunner{
		results: map[string]remote.Result{
			"docker build": {ExitCode: 1, Stderr: "missing base image"},
		},
	}
	set := descriptor.Set{Dockerfile: true}

	if err := Run(context.Background(), runner, testPlan(), set, testLog(t)); err == nil {
		t.Fatal("expected an error when the build fails")
	}
	for _, command := range runner.commands {
		if strings.Contains(command, "docker run") {
			t.Errorf("docker run must not execute after a failed build: %s", command)
		}
	}
}

func TestComposeCommandFallsBackToStandalone(t *testing.T) {
	runner := &fakeRunner{
		results: map[string]remote.Result{
			"docker compose version": {ExitCode: 127, Stderr: "not a docker command"},
		},
	}
	if got := composeCommand(context.Background(), runner); got != "docker-compose" {
		t.Errorf("expected the standalone binary, got %q", got)
	}

	runner = &fakeRunner{}
	if got := composeCommand(context.Background(), runner); got != "docker compose" {
		t.Errorf("expected the plugin, got %q", got)
	}
}

func TestTeardownRemovesEverything(t *testing.T) {
	runner := &fakeRunner{
		results: map[string]remote.Result{
			"docker ps -aq": {ExitCode: 0, Stdout: "abc123\n"},
		},
	}

	Teardown(context.Background(), runner, testPlan(), testLog(t))

	joined := strings.Join(runner.commands, "\n")
	for _, want := range []string{
		"down --remove-orphans",
		"docker rm -f abc123",
		"docker rmi -f my-app:latest",
		"rm -rf /home/deploy/deployments/my-app",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected a command containing %q, got:\n%s", want, joined)
		}
	}
}
