//go:build mage

package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

// Container image constants.
const (
	dockerImageName = "seguimientos"
	dockerImageTag  = "latest"
	dockerfile      = "Dockerfile"
	containerPort   = "8000"
	containerData   = "/data/documents"
	containerConfig = "/data/config"
)

// Docker groups container targets.
type Docker mg.Namespace

// containerRuntime returns "podman" or "docker" if a working runtime
// is available, or "" if neither is usable. It checks both that the
// binary exists on PATH and that it can connect to its daemon/machine.
func containerRuntime() string {
	for _, name := range []string{"podman", "docker"} {
		if _, err := exec.LookPath(name); err != nil {
			continue
		}
		if exec.Command(name, "info").Run() != nil {
			fmt.Fprintf(os.Stderr, "WARNING: %s found on PATH but not usable (is the daemon/machine running?)\n", name)
			continue
		}
		return name
	}
	return ""
}

func requireRuntime() (string, error) {
	rt := containerRuntime()
	if rt == "" {
		return "", fmt.Errorf("no container runtime found (tried podman, docker)")
	}
	return rt, nil
}

// imageRef returns the full image reference (name:tag).
func imageRef() string {
	return dockerImageName + ":" + dockerImageTag
}

// Image builds the container image from the Dockerfile at the repo root.
func (Docker) Image() error {
	rt, err := requireRuntime()
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "Building container image...")
	cmd := exec.Command(rt, "build", "-t", imageRef(), "-f", dockerfile, ".")
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// Run serves ./documents and ./.seguimientos from the container image on
// port 8000.
func (Docker) Run() error {
	mg.Deps(Docker.Image)
	rt, err := requireRuntime()
	if err != nil {
		return err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}
	dataDir := filepath.Join(cwd, "documents")
	configDir := filepath.Join(cwd, ".seguimientos")
	for _, dir := range []string{dataDir, configDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	cmd := exec.Command(rt, "run", "--rm", "-i",
		"-p", containerPort+":"+containerPort,
		"-v", dataDir+":"+containerData,
		"-v", configDir+":"+containerConfig,
		imageRef())
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// Clean removes the container image. Errors are ignored because the image
// may not exist.
func (Docker) Clean() {
	rt := containerRuntime()
	if rt == "" {
		return
	}
	fmt.Fprintln(os.Stderr, "Removing container image...")
	_ = exec.Command(rt, "rmi", imageRef()).Run()
}
