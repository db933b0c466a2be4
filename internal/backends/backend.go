// Package backends maps backend names to their PackageIndex
// constructors.
package backends

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ximion/appstream-generator-sub004/internal/backends/alpine"
	"github.com/ximion/appstream-generator-sub004/internal/backends/arch"
	"github.com/ximion/appstream-generator-sub004/internal/backends/debian"
	"github.com/ximion/appstream-generator-sub004/internal/backends/freebsd"
	"github.com/ximion/appstream-generator-sub004/internal/backends/rpmmd"
	"github.com/ximion/appstream-generator-sub004/internal/backends/ubuntu"
	"github.com/ximion/appstream-generator-sub004/internal/core"
	"github.com/ximion/appstream-generator-sub004/internal/download"
	"github.com/ximion/appstream-generator-sub004/internal/helpers"
)

// New builds the package index for the named backend, rooted at rootDir
// (a local mirror path or a repository URL).
func New(name, rootDir, tmpDir string, res *download.Resolver, runner helpers.CommandRunner, workers int, log *zerolog.Logger) (core.PackageIndex, error) {
	switch name {
	case "debian":
		return debian.New(rootDir, tmpDir, res, log), nil
	case "ubuntu":
		return ubuntu.New(rootDir, tmpDir, res, runner, workers, log), nil
	case "archlinux", "arch":
		return arch.New(rootDir, tmpDir, res, log), nil
	case "alpinelinux", "alpine":
		return alpine.New(rootDir, tmpDir, res, log), nil
	case "rpmmd", "fedora":
		return rpmmd.New(rootDir, tmpDir, res, log), nil
	case "freebsd":
		return freebsd.New(rootDir, tmpDir, res, log), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}
