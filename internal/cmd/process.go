package cmd

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ximion/appstream-generator-sub004/internal/backends"
	"github.com/ximion/appstream-generator-sub004/internal/config"
	"github.com/ximion/appstream-generator-sub004/internal/download"
	"github.com/ximion/appstream-generator-sub004/internal/helpers"
	"github.com/ximion/appstream-generator-sub004/internal/store"
)

// NewProcessCmd creates the process command, which loads one repository
// slice and prints its packages.
func NewProcessCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	var withLongDescs bool
	var onlyChanged bool

	cmd := &cobra.Command{
		Use:   "process <suite> <section> <arch>",
		Short: "List the packages of one repository slice",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			suite, section, arch := args[0], args[1], args[2]
			ctx := cmd.Context()

			res := download.NewResolver(download.NewClient(log), log)
			idx, err := backends.New(cfg.Backend, cfg.Archive.Root, cfg.Paths.TmpDir,
				res, helpers.NewOSCommandRunner(), cfg.Workers, log)
			if err != nil {
				return err
			}
			defer idx.Release()

			if onlyChanged {
				st, err := store.Open(ctx, cfg.Paths.DBFile)
				if err != nil {
					return fmt.Errorf("open state database: %w", err)
				}
				defer st.Close()

				changed, err := idx.HasChanges(ctx, st, suite, section, arch)
				if err != nil {
					return err
				}
				if !changed {
					log.Info().
						Str("suite", suite).Str("section", section).Str("arch", arch).
						Msg("repository slice unchanged, nothing to do")
					return nil
				}
			}

			pkgs, err := idx.PackagesFor(ctx, suite, section, arch, withLongDescs)
			if err != nil {
				return err
			}
			for _, pkg := range pkgs {
				summary := pkg.Summary()["C"]
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", pkg.ID(), summary)
			}
			log.Info().Int("packages", len(pkgs)).Msg("slice processed")
			return nil
		},
	}

	cmd.Flags().BoolVar(&withLongDescs, "long-descs", false, "load translated long descriptions where the backend supports them")
	cmd.Flags().BoolVar(&onlyChanged, "only-changed", false, "skip the slice if its index is unchanged since the last run")

	return cmd
}
