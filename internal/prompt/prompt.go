// Package prompt collects the deployment parameters interactively. Fields
// already supplied through flags are kept as-is; everything else is asked for
// with validation at the prompt, so bad input never reaches a stage.
package prompt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"

	"github.com/dockhand/dockhand/internal/config"
)

// ErrCredential marks a missing git username or access token. The caller
// maps it to its own exit status.
var ErrCredential = errors.New("git credentials are required")

// Collect fills every empty field of the plan from the terminal. The plan's
// app name is normalized before the function returns.
func Collect(plan *config.Plan) error {
	if plan.RepoURL == "" {
		result, err := ask(promptui.Prompt{
			Label:    "Git Repository URL",
			Validate: config.ValidateRepoURL,
		})
		if err != nil {
			return err
		}
		plan.RepoURL = strings.TrimSpace(result)
	}

	if plan.GitUsername == "" {
		result, err := ask(promptui.Prompt{
			Label:    "Git Username",
			Validate: required("git username"),
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCredential, err)
		}
		plan.GitUsername = strings.TrimSpace(result)
	}

	if plan.AccessToken == "" {
		result, err := ask(promptui.Prompt{
			Label:    "Personal Access Token",
			Mask:     '*',
			Validate: required("access token"),
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCredential, err)
		}
		plan.AccessToken = strings.TrimSpace(result)
	}

	if plan.Branch == "" {
		result, err := ask(promptui.Prompt{
			Label:   "Branch",
			Default: "main",
		})
		if err != nil {
			return err
		}
		plan.Branch = strings.TrimSpace(result)
		if plan.Branch == "" {
			plan.Branch = "main"
		}
	}

	if plan.RemoteUser == "" {
		result, err := ask(promptui.Prompt{
			Label:    "Remote SSH User",
			Validate: required("remote user"),
		})
		if err != nil {
			return err
		}
		plan.RemoteUser = strings.TrimSpace(result)
	}

	if plan.RemoteHost == "" {
		result, err := ask(promptui.Prompt{
			Label:    "Remote Host (IPv4)",
			Validate: config.ValidateIPv4,
		})
		if err != nil {
			return err
		}
		plan.RemoteHost = strings.TrimSpace(result)
	}

	if plan.SSHKeyPath == "" {
		result, err := ask(promptui.Prompt{
			Label:    "SSH Private Key Path",
			Default:  defaultKeyPath(),
			Validate: config.ValidateSSHKey,
		})
		if err != nil {
			return err
		}
		plan.SSHKeyPath = strings.TrimSpace(result)
	}

	if plan.AppPort == 0 {
		result, err := ask(promptui.Prompt{
			Label: "Application Port",
			Validate: func(input string) error {
				_, err := config.ValidatePort(input)
				return err
			},
		})
		if err != nil {
			return err
		}
		plan.AppPort, _ = strconv.Atoi(strings.TrimSpace(result))
	}

	if plan.AppName == "" {
		result, err := ask(promptui.Prompt{
			Label:    "Application Name",
			Validate: required("application name"),
		})
		if err != nil {
			return err
		}
		plan.AppName = result
	}
	plan.AppName = config.NormalizeAppName(plan.AppName)
	if plan.AppName == "" {
		return fmt.Errorf("application name is empty after normalization")
	}

	return nil
}

// CollectCleanup asks only for the fields cleanup needs: where the app lives
// and how to reach the host. Git credentials are never requested.
func CollectCleanup(plan *config.Plan) error {
	if plan.RemoteUser == "" {
		result, err := ask(promptui.Prompt{
			Label:    "Remote SSH User",
			Validate: required("remote user"),
		})
		if err != nil {
			return err
		}
		plan.RemoteUser = strings.TrimSpace(result)
	}

	if plan.RemoteHost == "" {
		result, err := ask(promptui.Prompt{
			Label:    "Remote Host (IPv4)",
			Validate: config.ValidateIPv4,
		})
		if err != nil {
			return err
		}
		plan.RemoteHost = strings.TrimSpace(result)
	}

	if plan.SSHKeyPath == "" {
		result, err := ask(promptui.Prompt{
			Label:    "SSH Private Key Path",
			Default:  defaultKeyPath(),
			Validate: config.ValidateSSHKey,
		})
		if err != nil {
			return err
		}
		plan.SSHKeyPath = strings.TrimSpace(result)
	}

	if plan.AppName == "" {
		result, err := ask(promptui.Prompt{
			Label:    "Application Name",
			Validate: required("application name"),
		})
		if err != nil {
			return err
		}
		plan.AppName = result
	}
	plan.AppName = config.NormalizeAppName(plan.AppName)
	if plan.AppName == "" {
		return fmt.Errorf("application name is empty after normalization")
	}

	return nil
}

// Confirm asks a yes/no question and reports the answer. promptui signals a
// "no" as an error, which this flattens into a bool.
func Confirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) || errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func ask(prompt promptui.Prompt) (string, error) {
	result, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("prompt %q failed: %w", prompt.Label, err)
	}
	return result, nil
}

func required(field string) promptui.ValidateFunc {
	return func(input string) error {
		if strings.TrimSpace(input) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func defaultKeyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	for _, name := range []string{"id_ed25519", "id_rsa"} {
		path := filepath.Join(home, ".ssh", name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return filepath.Join(home, ".ssh", "id_rsa")
}
