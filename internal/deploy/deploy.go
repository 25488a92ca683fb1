// Package deploy drives the container build and launch on the target host.
// All build/run semantics belong to Docker; this package only sequences the
// invocations that the descriptor probe selected.
package deploy

import (
	"context"
	"fmt"
	"strings"

	"github.com/dockhand/dockhand/internal/config"
	"github.com/dockhand/dockhand/internal/descriptor"
	"github.com/dockhand/dockhand/internal/remote"
	"github.com/dockhand/dockhand/internal/runlog"
)

// Run deploys the synced project: prior containers matching the app name are
// removed first, then compose or a plain build+run takes over.
func Run(ctx context.Context, runner remote.Runner, plan config.Plan, descriptors descriptor.Set, log *runlog.Log) error {
	removePrior(ctx, runner, plan, log)

	if descriptors.UseCompose() {
		return composeUp(ctx, runner, plan, descriptors.ComposeFile, log)
	}
	return buildAndRun(ctx, runner, plan, log)
}

// composeCommand picks the compose invocation the host supports. Hosts we
// provision carry the plugin; older hosts may only have the standalone
// docker-compose binary.
func composeCommand(ctx context.Context, runner remote.Runner) string {
	if res, err := runner.Run(ctx, "docker compose version"); err == nil && res.ExitCode == 0 {
		return "docker compose"
	}
	if res, err := runner.Run(ctx, "command -v docker-compose"); err == nil && res.ExitCode == 0 {
		return "docker-compose"
	}
	return "docker compose"
}

// removePrior stops and removes the container named exactly after the app.
// Docker name filters are regexes over names with a leading slash, so the
// match is anchored; my-app must not catch my-app-2. Compose containers are
// project-scoped and torn down by compose down instead. Absence of a prior
// container is not an error.
func removePrior(ctx context.Context, runner remote.Runner, plan config.Plan, log *runlog.Log) {
	list := fmt.Sprintf("docker ps -aq --filter %s", remote.Quote("name=^/"+plan.AppName+"$"))
	res, err := runner.Run(ctx, list)
	if err != nil || res.ExitCode != 0 {
		log.Warnf("Could not list prior containers: %s", diag(res, err))
		return
	}

	ids := strings.Fields(res.Stdout)
	if len(ids) == 0 {
		log.Infof("No prior containers named %s", plan.AppName)
		return
	}

	log.Infof("Removing %d prior container(s) for %s", len(ids), plan.AppName)
	rm := "docker rm -f " + strings.Join(ids, " ")
	if res, err := runner.Run(ctx, rm); err != nil || res.ExitCode != 0 {
		log.Warnf("Failed to remove prior containers: %s", diag(res, err))
	}
}

func composeUp(ctx context.Context, runner remote.Runner, plan config.Plan, composeFile string, log *runlog.Log) error {
	dir := remote.Quote(plan.RemoteDir())
	project := remote.Quote(plan.AppName)
	file := remote.Quote(composeFile)
	compose := composeCommand(ctx, runner)

	down := fmt.Sprintf("cd %s && %s -p %s -f %s down --remove-orphans", dir, compose, project, file)
	log.Infof("Tearing down prior compose stack for %s", plan.AppName)
	if res, err := runner.Run(ctx, down); err != nil || res.ExitCode != 0 {
		log.Warnf("Compose teardown reported: %s (continuing)", diag(res, err))
	}

	up := fmt.Sprintf("cd %s && %s -p %s -f %s up -d --build", dir, compose, project, file)
	log.Infof("Starting compose stack for %s", plan.AppName)
	res, err := runner.Run(ctx, up)
	if err != nil {
		return fmt.Errorf("compose up failed: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("compose up failed (exit %d): %s", res.ExitCode, res.Output())
	}
	log.Successf("Compose stack for %s is up", plan.AppName)
	return nil
}

func buildAndRun(ctx context.Context, runner remote.Runner, plan config.Plan, log *runlog.Log) error {
	build := fmt.Sprintf("cd %s && docker build -t %s .", remote.Quote(plan.RemoteDir()), remote.Quote(plan.Image()))
	log.Infof("Building image %s", plan.Image())
	res, err := runner.Run(ctx, build)
	if err != nil {
		return fmt.Errorf("docker build failed: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("docker build failed (exit %d): %s", res.ExitCode, res.Output())
	}

	run := remote.Command(
		"docker", "run", "-d",
		"--name", plan.AppName,
		"--restart", "always",
		"-p", fmt.Sprintf("%d:%d", plan.AppPort, plan.AppPort),
		plan.Image(),
	)
	log.Infof("Starting container %s on port %d", plan.AppName, plan.AppPort)
	res, err = runner.Run(ctx, run)
	if err != nil {
		return fmt.Errorf("docker run failed: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("docker run failed (exit %d): %s", res.ExitCode, res.Output())
	}
	log.Successf("Container %s started", plan.AppName)
	return nil
}

// Teardown reverses a deployment: containers, image and the remote project
// directory. Every step is best-effort so a half-deployed app can still be
// cleaned up.
func Teardown(ctx context.Context, runner remote.Runner, plan config.Plan, log *runlog.Log) {
	dir := plan.RemoteDir()

	down := fmt.Sprintf("cd %s && %s -p %s down --remove-orphans", remote.Quote(dir), composeCommand(ctx, runner), remote.Quote(plan.AppName))
	if res, err := runner.Run(ctx, down); err != nil || res.ExitCode != 0 {
		log.Infof("No compose stack to tear down for %s", plan.AppName)
	} else {
		log.Successf("Compose stack for %s removed", plan.AppName)
	}

	removePrior(ctx, runner, plan, log)

	rmi := remote.Command("docker", "rmi", "-f", plan.Image())
	if res, err := runner.Run(ctx, rmi); err != nil || res.ExitCode != 0 {
		log.Warnf("Could not remove image %s: %s", plan.Image(), diag(res, err))
	} else {
		log.Successf("Image %s removed", plan.Image())
	}

	rm := remote.Command("rm", "-rf", dir)
	if res, err := runner.Run(ctx, rm); err != nil || res.ExitCode != 0 {
		log.Warnf("Could not remove %s: %s", dir, diag(res, err))
	} else {
		log.Successf("Remote project directory %s removed", dir)
	}
}

func diag(res remote.Result, err error) string {
	if err != nil {
		return err.Error()
	}
	return res.Output()
}
