// Package health validates a deployment after launch: the Docker daemon is
// active, the app's containers are running and the app answers on its port.
package health

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dockhand/dockhand/internal/config"
	"github.com/dockhand/dockhand/internal/remote"
	"github.com/dockhand/dockhand/internal/runlog"
)

// Check waits for the deployment to settle, then probes the Docker daemon,
// the container state and finally the app endpoint. The endpoint probe is a
// warning only: slow starters fail it while still coming up healthy.
func Check(ctx context.Context, runner remote.Runner, plan config.Plan, log *runlog.Log) error {
	settle := viper.GetDuration(config.KeySettleDelay)
	if settle > 0 {
		log.Infof("Waiting %s for services to settle", settle)
		select {
		case <-time.After(settle):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := daemonActive(ctx, runner); err != nil {
		return err
	}
	log.Successf("Docker daemon is active")

	if err := containersRunning(ctx, runner, plan, log); err != nil {
		return err
	}

	probeEndpoint(ctx, runner, plan, log)
	return nil
}

func daemonActive(ctx context.Context, runner remote.Runner) error {
	res, err := runner.Run(ctx, "systemctl is-active docker")
	if err != nil {
		return fmt.Errorf("could not query docker daemon state: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("docker daemon is not active: %s", res.Output())
	}
	return nil
}

// containersRunning requires at least one running container named after the
// app. On failure the last log lines of the container are pulled into the
// run log so the operator sees why it died.
func containersRunning(ctx context.Context, runner remote.Runner, plan config.Plan, log *runlog.Log) error {
	list := fmt.Sprintf("docker ps --filter name=%s --format '{{.Names}}'", plan.AppName)
	res, err := runner.Run(ctx, list)
	if err != nil {
		return fmt.Errorf("could not list containers: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("could not list containers: %s", res.Output())
	}

	names := strings.Fields(res.Stdout)
	if len(names) == 0 {
		dumpContainerLogs(ctx, runner, plan, log)
		return fmt.Errorf("no running container matches %q", plan.AppName)
	}

	log.Successf("Running: %s", strings.Join(names, ", "))
	return nil
}

func dumpContainerLogs(ctx context.Context, runner remote.Runner, plan config.Plan, log *runlog.Log) {
	res, err := runner.Run(ctx, remote.Command("docker", "logs", "--tail", "20", plan.AppName))
	if err != nil || res.ExitCode != 0 {
		log.Warnf("Could not fetch container logs for %s", plan.AppName)
		return
	}
	for _, line := range strings.Split(strings.TrimSpace(res.Output()), "\n") {
		if line != "" {
			log.Infof("container: %s", line)
		}
	}
}

// probeEndpoint curls the app from inside the host so firewalls between
// operator and host cannot skew the result.
func probeEndpoint(ctx context.Context, runner remote.Runner, plan config.Plan, log *runlog.Log) {
	timeout := int(viper.GetDuration(config.KeyProbeTimeout).Seconds())
	if timeout <= 0 {
		timeout = 10
	}

	probe := fmt.Sprintf("curl -sf -m %d -o /dev/null http://localhost:%d/", timeout, plan.AppPort)
	res, err := runner.Run(ctx, probe)
	if err != nil {
		log.Warnf("App endpoint probe failed: %v", err)
		return
	}
	if res.ExitCode != 0 {
		log.Warnf("App did not answer on port %d yet (it may still be starting)", plan.AppPort)
		return
	}
	log.Successf("App answers on port %d", plan.AppPort)
}
