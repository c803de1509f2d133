package main

import (
	"github.com/spf13/cobra"

	"github.com/cgast/questcheck/internal/config"
)

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "questcheck",
		Short: "Check Arduino sketches against mission checkpoints",
		Long: `questcheck audits learner sketches against the checkpoint rules of a
mission catalog. Results are deterministic: the same sketch and mission
always produce the same checkpoint results.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.sync()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultPath, "config file")
	root.PersistentFlags().StringVar(&a.catalogPath, "catalog", "", "catalog file or directory (overrides config)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().BoolVar(&a.noStore, "no-store", false, "do not record attempts")

	root.AddCommand(
		newValidateCmd(a),
		newMissionsCmd(a),
		newCatalogCmd(a),
		newInitCmd(a),
		newAttemptsCmd(a),
		newServeCmd(a),
		newRPCCmd(a),
	)
	return root
}
