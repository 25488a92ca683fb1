package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/crypto/ssh"
)

// Matches four dot-separated groups of digits. Octet ranges are deliberately
// not checked; the remote connect surfaces a bad address soon enough.
var ipv4Pattern = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)

// ValidateRepoURL accepts only http(s) repository URLs. SSH-style remotes
// (git@host:path) are rejected because the fetcher authenticates with a
// token over HTTP.
func ValidateRepoURL(value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("repository URL is required")
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		return fmt.Errorf("repository URL must start with http:// or https://")
	}
	return nil
}

// ValidateIPv4 checks the dotted-quad shape of a remote address.
func ValidateIPv4(value string) error {
	if !ipv4Pattern.MatchString(strings.TrimSpace(value)) {
		return fmt.Errorf("address must be a dotted-quad IPv4 address")
	}
	return nil
}

// ValidatePort parses a TCP port in [1,65535].
func ValidatePort(value string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("port must be an integer")
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port must be between 1 and 65535")
	}
	return port, nil
}

// ValidateSSHKey checks that the path exists and holds a parseable private
// key. Passphrase-protected keys are accepted; the remote client prompts the
// agent for those at connect time.
func ValidateSSHKey(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("key file not found: %s", path)
	}
	if info.IsDir() {
		return fmt.Errorf("key path is a directory: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("key file not readable: %w", err)
	}
	if _, err := ssh.ParseRawPrivateKey(data); err != nil {
		var passErr *ssh.PassphraseMissingError
		if errors.As(err, &passErr) {
			return nil
		}
		return fmt.Errorf("not a valid private key: %s", path)
	}
	return nil
}

// NormalizeAppName lowercases the name and replaces every rune outside
// [a-z0-9] with '-'. Docker container names only allow [a-zA-Z0-9_.-], so
// non-ASCII letters are replaced rather than kept. The mapping is idempotent,
// so an already-normalized name passes through unchanged.
func NormalizeAppName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('-')
	}
	return b.String()
}
