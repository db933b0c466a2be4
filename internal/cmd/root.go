// Package cmd wires the command-line interface of the generator.
package cmd

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ximion/appstream-generator-sub004/internal/config"
)

// NewRootCmd creates the root command
func NewRootCmd(cfg *config.Config, log *zerolog.Logger, version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "asgen",
		Short:        "Distribution repository metadata extractor",
		Long:         `Reads distribution package repositories (Debian, Ubuntu, Arch, Alpine, rpm-md, FreeBSD) and extracts package metadata and file contents.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewProcessCmd(cfg, log))
	cmd.AddCommand(NewContentsCmd(cfg, log))
	cmd.AddCommand(NewVersionCmd(version))

	return cmd
}
