package config

import (
	"time"

	"github.com/spf13/viper"
)

// Viper keys for tunables that are not collected interactively. All of them
// can be overridden through DOCKHAND_* environment variables.
const (
	KeySSHPort       = "ssh.port"
	KeySSHTimeout    = "ssh.timeout"
	KeySSHStrictHost = "ssh.strict_host_key"

	KeyGitUsername = "git.username"
	KeyGitToken    = "git.token"

	KeyRemoteBaseDir = "deploy.base_dir"
	KeySettleDelay   = "deploy.settle_delay"

	KeyProbeTimeout = "probe.timeout"

	KeyLogDir = "log.dir"

	KeyStoreBackend = "store.backend"
	KeyStorePath    = "store.path"
	KeyStoreDSN     = "store.dsn"
)

// SetDefaults registers the default values for every tunable.
func SetDefaults() {
	viper.SetDefault(KeySSHPort, 22)
	viper.SetDefault(KeySSHTimeout, 15*time.Second)
	viper.SetDefault(KeySSHStrictHost, false)

	viper.SetDefault(KeyGitUsername, "")
	viper.SetDefault(KeyGitToken, "")

	viper.SetDefault(KeyRemoteBaseDir, "deployments")
	viper.SetDefault(KeySettleDelay, 10*time.Second)

	viper.SetDefault(KeyProbeTimeout, 10*time.Second)

	viper.SetDefault(KeyLogDir, ".")

	viper.SetDefault(KeyStoreBackend, "sqlite")
	viper.SetDefault(KeyStorePath, "dockhand.db")
	viper.SetDefault(KeyStoreDSN, "")
}
