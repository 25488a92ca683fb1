// Package transfer synchronizes the scratch checkout to the project
// directory on the target host. rsync runs on the operator's machine over
// the same key the remote shell uses.
package transfer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dockhand/dockhand/internal/config"
	"github.com/dockhand/dockhand/internal/remote"
	"github.com/dockhand/dockhand/internal/runlog"
)

// Push creates the remote project directory and mirrors localDir into it.
func Push(ctx context.Context, localDir string, plan config.Plan, runner remote.Runner, log *runlog.Log) error {
	remoteDir := plan.RemoteDir()

	res, err := runner.Run(ctx, remote.Command("mkdir", "-p", remoteDir))
	if err != nil {
		return fmt.Errorf("failed to create remote directory: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("failed to create remote directory %s: %s", remoteDir, res.Output())
	}

	args := []string{
		"-az",
		"--delete",
		"--exclude", ".git",
		"-e", sshTransport(plan.SSHKeyPath),
		strings.TrimSuffix(localDir, "/") + "/",
		fmt.Sprintf("%s@%s:%s/", plan.RemoteUser, plan.RemoteHost, remoteDir),
	}

	if err := runLocal(ctx, log, "rsync", args...); err != nil {
		return fmt.Errorf("rsync failed: %w", err)
	}
	return nil
}

// sshTransport builds the value rsync's -e flag is given. rsync splits the
// string into words itself, so the key path is single-quoted to survive
// spaces.
func sshTransport(keyPath string) string {
	cmd := fmt.Sprintf("ssh -p %d -i %s", viper.GetInt(config.KeySSHPort), remote.Quote(keyPath))
	if !viper.GetBool(config.KeySSHStrictHost) {
		cmd += " -o StrictHostKeyChecking=no"
	}
	return cmd
}

// runLocal executes a command on the operator's machine, streaming combined
// output into the run log line by line.
func runLocal(ctx context.Context, log *runlog.Log, name string, args ...string) error {
	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)

	pipeReader, pipeWriter := io.Pipe()
	cmd.Stdout = pipeWriter
	cmd.Stderr = pipeWriter

	done := make(chan struct{})
	go func() {
		scanner := bufio.NewScanner(pipeReader)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				log.Infof("%s: %s", name, line)
			}
		}
		close(done)
	}()

	if err := cmd.Start(); err != nil {
		_ = pipeWriter.Close()
		<-done
		return fmt.Errorf("command start failed: %w", err)
	}

	waitErr := cmd.Wait()
	_ = pipeWriter.Close()
	<-done

	if waitErr != nil {
		return fmt.Errorf("%s exited with error after %s: %w", name, time.Since(start).Round(time.Millisecond), waitErr)
	}
	log.Infof("%s completed in %s", name, time.Since(start).Round(time.Millisecond))
	return nil
}
