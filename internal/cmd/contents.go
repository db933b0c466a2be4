package cmd

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ximion/appstream-generator-sub004/internal/backends"
	"github.com/ximion/appstream-generator-sub004/internal/config"
	"github.com/ximion/appstream-generator-sub004/internal/download"
	"github.com/ximion/appstream-generator-sub004/internal/helpers"
)

// NewContentsCmd creates the contents command, which prints the file
// list of one package from a repository slice.
func NewContentsCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contents <suite> <section> <arch> <package>",
		Short: "List the files of one package",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			suite, section, arch, name := args[0], args[1], args[2], args[3]
			ctx := cmd.Context()

			res := download.NewResolver(download.NewClient(log), log)
			idx, err := backends.New(cfg.Backend, cfg.Archive.Root, cfg.Paths.TmpDir,
				res, helpers.NewOSCommandRunner(), cfg.Workers, log)
			if err != nil {
				return err
			}
			defer idx.Release()

			pkgs, err := idx.PackagesFor(ctx, suite, section, arch, false)
			if err != nil {
				return err
			}
			for _, pkg := range pkgs {
				if pkg.Name() != name {
					continue
				}
				files, err := pkg.Contents(ctx)
				if err != nil {
					return fmt.Errorf("read contents of %s: %w", pkg.ID(), err)
				}
				for _, f := range files {
					fmt.Fprintln(cmd.OutOrStdout(), f)
				}
				return nil
			}
			return fmt.Errorf("package %q not found in %s/%s/%s", name, suite, section, arch)
		},
	}

	return cmd
}
