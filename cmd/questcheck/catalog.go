package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cgast/questcheck/internal/source"
	"github.com/cgast/questcheck/pkg/audit"
	"github.com/cgast/questcheck/pkg/mission"
)

func newCatalogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Check and export mission content",
	}

	check := &cobra.Command{
		Use:   "check [path]",
		Short: "Validate a catalog and dry-run every mission",
		Long: `Loads the catalog (from path, or the configured source), checks its
integrity and prerequisite graph, then runs every mission's rules against
its starter code so malformed patterns surface before learners hit them.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				cat  *mission.Catalog
				desc string
				err  error
			)
			if len(args) == 1 {
				src := source.File{Path: args[0]}
				desc = src.Describe()
				cat, err = src.Load(cmd.Context())
			} else {
				var src source.Source
				cat, src, err = a.loadCatalog(cmd.Context())
				if src != nil {
					desc = src.Describe()
				}
			}
			if err != nil {
				return err
			}
			return checkCatalog(cmd, cat, desc)
		},
	}

	export := &cobra.Command{
		Use:   "export",
		Short: "Print the built-in catalog as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := cmd.OutOrStdout().Write(mission.DefaultYAML())
			return err
		},
	}

	cmd.AddCommand(check, export)
	return cmd
}

func checkCatalog(cmd *cobra.Command, cat *mission.Catalog, desc string) error {
	out := cmd.OutOrStdout()
	if _, err := cat.Order(); err != nil {
		return err
	}

	engine := audit.NewEngine()
	for _, m := range cat.All() {
		res, err := engine.Validate(m, m.StarterCode)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "ok  %-24s %d checkpoints, starter code %s\n", m.ID, len(m.Checkpoints), res.Summary())
	}
	fmt.Fprintf(out, "catalog %s from %s: %d missions\n", cat.Version(), desc, cat.Len())
	return nil
}
