package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cgast/questcheck/pkg/attempt"
)

func newAttemptsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attempts",
		Short: "Inspect recorded attempts",
	}

	var (
		f      attempt.Filter
		asJSON bool
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List attempts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.newService(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer svc.Close()

			attempts, err := svc.grader.Attempts(f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				if attempts == nil {
					attempts = []attempt.Attempt{}
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(attempts)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CREATED\tLEARNER\tMISSION\tRESULT\tCHECKPOINTS\tID")
			for _, at := range attempts {
				res := "fail"
				if at.Passed {
					res = "pass"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					at.CreatedAt.Format("2006-01-02 15:04:05"), at.Learner, at.MissionID, res, at.Result.Summary(), at.ID)
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVar(&f.Learner, "learner", "", "only this learner")
	list.Flags().StringVar(&f.MissionID, "mission", "", "only this mission")
	list.Flags().BoolVar(&f.PassedOnly, "passed", false, "only passing attempts")
	list.Flags().IntVar(&f.Limit, "limit", 20, "maximum attempts to show (0 for all)")
	list.Flags().BoolVar(&asJSON, "json", false, "print as JSON")

	cmd.AddCommand(list)
	return cmd
}
