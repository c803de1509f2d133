package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cgast/questcheck/internal/grader"
)

func newInitCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "init <mission-id>",
		Short: "Write a mission's starter sketch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, _, err := a.loadCatalog(cmd.Context())
			if err != nil {
				return err
			}
			m, ok := cat.Get(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", grader.ErrMissionNotFound, args[0])
			}

			path := output
			if path == "" {
				path = m.ID + ".ino"
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("file %q already exists (use --output to specify a different path)", path)
			}
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create output dir: %w", err)
				}
			}
			if err := os.WriteFile(path, []byte(m.StarterCode), 0o644); err != nil {
				return fmt.Errorf("write sketch: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created %s for %q\n", path, m.Title)
			fmt.Fprintln(out, "Edit the sketch, then run:")
			fmt.Fprintf(out, "  questcheck validate %s %s\n", m.ID, path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default <mission-id>.ino)")
	return cmd
}
