// Package provision installs and enables Docker, the compose plugin and
// Nginx on the target host. Every step probes for an existing installation
// first, so re-running against a prepared host is a no-op.
package provision

import (
	"context"
	"fmt"

	"github.com/dockhand/dockhand/internal/config"
	"github.com/dockhand/dockhand/internal/remote"
	"github.com/dockhand/dockhand/internal/runlog"
)

type step struct {
	name    string
	command string
	fatal   bool
}

// Apply runs the provisioning sequence. Package-index refresh and the
// docker group membership are soft warnings; everything else aborts the run.
func Apply(ctx context.Context, runner remote.Runner, plan config.Plan, log *runlog.Log) error {
	steps := []step{
		{
			name:    "refresh package index",
			command: "sudo apt-get update -y",
			fatal:   false,
		},
		{
			name:    "install docker engine",
			command: "command -v docker >/dev/null 2>&1 || curl -fsSL https://get.docker.com | sudo sh",
			fatal:   true,
		},
		{
			name:    "enable docker service",
			command: "sudo systemctl enable --now docker",
			fatal:   true,
		},
		{
			name:    "install compose plugin",
			command: "docker compose version >/dev/null 2>&1 || sudo apt-get install -y docker-compose-plugin",
			fatal:   true,
		},
		{
			name:    "install nginx",
			command: "command -v nginx >/dev/null 2>&1 || sudo apt-get install -y nginx",
			fatal:   true,
		},
		{
			name:    "enable nginx service",
			command: "sudo systemctl enable --now nginx",
			fatal:   true,
		},
		{
			name:    "add deploy user to docker group",
			command: "sudo usermod -aG docker " + remote.Quote(plan.RemoteUser),
			fatal:   false,
		},
	}

	for _, s := range steps {
		log.Infof("Provisioning: %s", s.name)
		res, err := runner.Run(ctx, s.command)
		if err != nil {
			if s.fatal {
				return fmt.Errorf("%s: %w", s.name, err)
			}
			log.Warnf("%s failed: %v (continuing)", s.name, err)
			continue
		}
		if res.ExitCode != 0 {
			if s.fatal {
				return fmt.Errorf("%s failed (exit %d): %s", s.name, res.ExitCode, res.Output())
			}
			log.Warnf("%s failed (exit %d): %s (continuing)", s.name, res.ExitCode, res.Output())
			continue
		}
		log.Successf("Provisioning: %s", s.name)
	}

	verify(ctx, runner, log)
	return nil
}

// verify reports the installed versions. Failures here are warnings only:
// the installs above already succeeded.
func verify(ctx context.Context, runner remote.Runner, log *runlog.Log) {
	checks := []string{
		"docker --version",
		"docker compose version",
		"nginx -v 2>&1",
	}
	for _, command := range checks {
		res, err := runner.Run(ctx, command)
		if err != nil || res.ExitCode != 0 {
			log.Warnf("version check %q failed", command)
			continue
		}
		log.Infof("Installed: %s", res.Output())
	}
}
