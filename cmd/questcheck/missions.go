package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cgast/questcheck/internal/grader"
	"github.com/cgast/questcheck/pkg/mission"
)

func newMissionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "missions",
		Short: "Browse the mission catalog",
	}

	var difficulty string
	list := &cobra.Command{
		Use:   "list",
		Short: "List missions in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, _, err := a.loadCatalog(cmd.Context())
			if err != nil {
				return err
			}
			missions := cat.All()
			if difficulty != "" {
				missions = cat.ByDifficulty(mission.Difficulty(difficulty))
			}
			printMissions(cmd.OutOrStdout(), missions)
			return nil
		},
	}
	list.Flags().StringVar(&difficulty, "difficulty", "", "only missions of this difficulty")

	show := &cobra.Command{
		Use:   "show <mission-id>",
		Short: "Show a mission's brief and checkpoints",
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
			printMission(cmd.OutOrStdout(), m)
			return nil
		},
	}

	var learner string
	next := &cobra.Command{
		Use:   "next",
		Short: "Show the next mission on the learner's path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.newService(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer svc.Close()

			p, err := svc.grader.Path(learner)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Completed %d of %d missions\n", len(p.Completed), svc.grader.Catalog().Len())
			if p.Next == nil {
				fmt.Fprintln(out, "All missions complete.")
				return nil
			}
			fmt.Fprintf(out, "Next: %s (%s)\n", p.Next.ID, p.Next.Title)
			return nil
		},
	}
	next.Flags().StringVar(&learner, "learner", grader.DefaultLearner, "learner to report on")

	cmd.AddCommand(list, show, next)
	return cmd
}

func printMissions(w io.Writer, missions []mission.Mission) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tID\tDIFFICULTY\tMIN\tXP\tTITLE")
	for _, m := range missions {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\n",
			m.Order, m.ID, m.Difficulty, m.EstimatedMinutes, m.Reward.XP, m.Title)
	}
	tw.Flush()
}

func printMission(w io.Writer, m mission.Mission) {
	fmt.Fprintf(w, "%s\n%s\n\n", m.Title, strings.Repeat("=", len(m.Title)))
	fmt.Fprintf(w, "id:         %s\n", m.ID)
	fmt.Fprintf(w, "difficulty: %s (~%d min)\n", m.Difficulty, m.EstimatedMinutes)
	if len(m.Prerequisites) > 0 {
		fmt.Fprintf(w, "requires:   %s\n", strings.Join(m.Prerequisites, ", "))
	}
	fmt.Fprintf(w, "reward:     %d XP, badge %q\n", m.Reward.XP, m.Reward.BadgeLabel)

	if m.Summary != "" {
		fmt.Fprintf(w, "\n%s\n", m.Summary)
	}
	if m.Objective != "" {
		fmt.Fprintf(w, "\nObjective: %s\n", m.Objective)
	}

	fmt.Fprintln(w, "\nCheckpoints:")
	for _, cp := range m.Checkpoints {
		title := cp.Title
		if title == "" {
			title = cp.ID
		}
		fmt.Fprintf(w, "  - %s: %s\n", cp.ID, title)
	}

	fmt.Fprintln(w, "\nSafety:")
	for _, n := range m.SafetyNotes {
		fmt.Fprintf(w, "  - %s\n", n)
	}
	if len(m.Hints) > 0 {
		fmt.Fprintln(w, "\nHints:")
		for _, h := range m.Hints {
			fmt.Fprintf(w, "  - %s\n", h)
		}
	}
}
