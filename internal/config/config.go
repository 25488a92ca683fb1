// Package config holds the run-scoped deployment parameters collected from
// the operator, plus the validators applied while collecting them. A Plan is
// immutable once collection finishes; every stage receives it by value.
package config

import (
	"fmt"
	"path"

	"github.com/spf13/viper"
)

// Plan is the full set of parameters for one deployment run.
type Plan struct {
	RepoURL     string
	GitUsername string
	AccessToken string
	Branch      string
	RemoteUser  string
	RemoteHost  string
	SSHKeyPath  string
	AppPort     int
	AppName     string
}

// RemoteDir returns the project directory on the target host.
func (p Plan) RemoteDir() string {
	return path.Join("/home", p.RemoteUser, viper.GetString(KeyRemoteBaseDir), p.AppName)
}

// SSHAddr returns the host:port dial address for the remote shell.
func (p Plan) SSHAddr() string {
	return fmt.Sprintf("%s:%d", p.RemoteHost, viper.GetInt(KeySSHPort))
}

// Image returns the image tag built for single-Dockerfile deployments.
func (p Plan) Image() string {
	return p.AppName + ":latest"
}

// SitePath returns the nginx sites-available path for the app.
func (p Plan) SitePath() string {
	return path.Join("/etc/nginx/sites-available", p.AppName)
}

// SiteLinkPath returns the nginx sites-enabled symlink for the app.
func (p Plan) SiteLinkPath() string {
	return path.Join("/etc/nginx/sites-enabled", p.AppName)
}
