// Package descriptor probes a cloned project tree for the files that tell
// the deployment driver how to build and run the application.
package descriptor

import (
	"errors"
	"os"
	"path/filepath"
)

// ErrNoDescriptor means the tree has neither a Dockerfile nor a compose
// file; there is nothing to deploy.
var ErrNoDescriptor = errors.New("no Dockerfile or compose file found in repository")

// Compose file names accepted, in probe order.
var composeNames = []string{
	"docker-compose.yml",
	"docker-compose.yaml",
	"compose.yml",
	"compose.yaml",
}

// Kind classifies which descriptors a project carries.
type Kind string

const (
	KindDockerfile Kind = "dockerfile"
	KindCompose    Kind = "compose"
	KindBoth       Kind = "both"
)

// Set records the probe outcome for one tree.
type Set struct {
	Dockerfile  bool
	ComposeFile string // base name of the compose file, if any
}

// Kind reduces the probe outcome to its deployment mode.
func (s Set) Kind() Kind {
	switch {
	case s.Dockerfile && s.ComposeFile != "":
		return KindBoth
	case s.ComposeFile != "":
		return KindCompose
	default:
		return KindDockerfile
	}
}

// UseCompose reports whether the driver should deploy through compose.
// Compose wins when both descriptors are present.
func (s Set) UseCompose() bool {
	return s.ComposeFile != ""
}

// Probe inspects dir and returns the descriptor set, or ErrNoDescriptor when
// the tree carries neither kind.
func Probe(dir string) (Set, error) {
	var set Set

	if fileExists(filepath.Join(dir, "Dockerfile")) {
		set.Dockerfile = true
	}
	for _, name := range composeNames {
		if fileExists(filepath.Join(dir, name)) {
			set.ComposeFile = name
			break
		}
	}

	if !set.Dockerfile && set.ComposeFile == "" {
		return Set{}, ErrNoDescriptor
	}
	return set, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
