// Package remote executes commands on the target host over an SSH
// connection. Every invocation is synchronous: Run blocks until the remote
// command finishes or the context is cancelled.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Result carries the outcome of one remote command. A non-zero ExitCode is
// not an error at the transport level; callers decide severity.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Output returns stderr if present, stdout otherwise. Handy for diagnostics.
func (r Result) Output() string {
	if strings.TrimSpace(r.Stderr) != "" {
		return strings.TrimSpace(r.Stderr)
	}
	return strings.TrimSpace(r.Stdout)
}

// Runner is the remote shell surface the pipeline stages program against.
type Runner interface {
	Run(ctx context.Context, command string) (Result, error)
	RunWithStdin(ctx context.Context, command string, stdin io.Reader) (Result, error)
}

// Options configure the SSH connection.
type Options struct {
	Addr          string // host:port
	User          string
	KeyPath       string
	Timeout       time.Duration
	StrictHostKey bool
}

// Client is an authenticated SSH connection to the deploy target.
type Client struct {
	conn *ssh.Client
	addr string
}

// Dial connects and authenticates with the configured private key. A
// passphrase-protected key falls back to the local ssh-agent.
func Dial(opts Options) (*Client, error) {
	auth, err := keyAuth(opts.KeyPath)
	if err != nil {
		return nil, err
	}

	hostKeyCallback, err := hostKeyPolicy(opts.StrictHostKey)
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	config := &ssh.ClientConfig{
		User:            opts.User,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}

	conn, err := ssh.Dial("tcp", opts.Addr, config)
	if err != nil {
		return nil, fmt.Errorf("ssh connection to %s failed: %w", opts.Addr, err)
	}
	return &Client{conn: conn, addr: opts.Addr}, nil
}

// Close tears down the SSH connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Run executes command on the remote host and waits for it.
func (c *Client) Run(ctx context.Context, command string) (Result, error) {
	return c.run(ctx, command, nil)
}

// RunWithStdin executes command with stdin streamed from r. Used to install
// rendered configuration files without a second transfer channel.
func (c *Client) RunWithStdin(ctx context.Context, command string, stdin io.Reader) (Result, error) {
	return c.run(ctx, command, stdin)
}

func (c *Client) run(ctx context.Context, command string, stdin io.Reader) (Result, error) {
	session, err := c.conn.NewSession()
	if err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("failed to open ssh session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if stdin != nil {
		session.Stdin = stdin
	}

	if err := session.Start(command); err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("failed to start remote command: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return Result{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: -1}, ctx.Err()
	case waitErr := <-done:
		res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
		if waitErr != nil {
			var exitErr *ssh.ExitError
			if errors.As(waitErr, &exitErr) {
				res.ExitCode = exitErr.ExitStatus()
				return res, nil
			}
			res.ExitCode = -1
			return res, fmt.Errorf("remote command failed: %w", waitErr)
		}
		return res, nil
	}
}

func keyAuth(keyPath string) (ssh.AuthMethod, error) {
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read ssh key: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(data)
	if err == nil {
		return ssh.PublicKeys(signer), nil
	}

	var passErr *ssh.PassphraseMissingError
	if !errors.As(err, &passErr) {
		return nil, fmt.Errorf("invalid ssh key %s: %w", keyPath, err)
	}

	// Passphrase-protected key: defer to the operator's ssh-agent.
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, fmt.Errorf("key %s is passphrase-protected and no ssh-agent is available", keyPath)
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, fmt.Errorf("failed to reach ssh-agent: %w", err)
	}
	return ssh.PublicKeysCallback(agent.NewClient(conn).Signers), nil
}

func hostKeyPolicy(strict bool) (ssh.HostKeyCallback, error) {
	if !strict {
		return ssh.InsecureIgnoreHostKey(), nil
	}

	path, err := resolveKnownHostsPath()
	if err != nil {
		return nil, err
	}
	callback, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load known_hosts: %w", err)
	}
	return callback, nil
}

func resolveKnownHostsPath() (string, error) {
	if homeDir, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(homeDir, ".ssh", "known_hosts")
		if info, statErr := os.Stat(path); statErr == nil && !info.IsDir() {
			return path, nil
		}
	}

	systemPath := "/etc/ssh/ssh_known_hosts"
	if info, err := os.Stat(systemPath); err == nil && !info.IsDir() {
		return systemPath, nil
	}

	return "", fmt.Errorf("no known_hosts file found; disable strict host-key checking or create one")
}
