package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cgast/questcheck/internal/grader"
	"github.com/cgast/questcheck/pkg/audit"
)

type validateOptions struct {
	json    bool
	learner string
	workers int
}

func newValidateCmd(a *app) *cobra.Command {
	var opts validateOptions
	cmd := &cobra.Command{
		Use:   "validate <mission-id> <file>...",
		Short: "Check sketches against a mission",
		Long: `Checks each sketch file against the mission's checkpoints and prints
which passed. Use "-" to read a sketch from stdin. Exits 1 if any sketch
fails.

Example:
  questcheck validate mission-blink blink.ino`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, a, opts, args[0], args[1:])
		},
	}
	cmd.Flags().BoolVar(&opts.json, "json", false, "print results as JSON")
	cmd.Flags().StringVar(&opts.learner, "learner", grader.DefaultLearner, "learner the attempts are recorded for")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "concurrent validations (default from config)")
	return cmd
}

// fileReport is one file's outcome in --json output.
type fileReport struct {
	File      string                 `json:"file"`
	AttemptID string                 `json:"attempt_id,omitempty"`
	Cached    bool                   `json:"cached"`
	Result    audit.ValidationResult `json:"result"`
	Unlocked  []string               `json:"unlocked"`
}

func runValidate(cmd *cobra.Command, a *app, opts validateOptions, missionID string, files []string) error {
	ctx := cmd.Context()
	svc, err := a.newService(ctx, nil)
	if err != nil {
		return err
	}
	defer svc.Close()

	subs := make([]grader.Submission, len(files))
	for i, f := range files {
		src, err := readSketch(cmd.InOrStdin(), f)
		if err != nil {
			return err
		}
		subs[i] = grader.Submission{Learner: opts.learner, MissionID: missionID, Source: src}
	}

	workers := opts.workers
	if workers <= 0 {
		workers = a.cfg.Validate.Workers
	}
	outcomes, err := svc.grader.ValidateBatch(ctx, subs, workers)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	failed := false
	reports := make([]fileReport, len(outcomes))
	for i, o := range outcomes {
		if !o.Result().IsPass {
			failed = true
		}
		reports[i] = fileReport{
			File:     files[i],
			Cached:   o.Cached,
			Result:   o.Result(),
			Unlocked: o.Unlocked,
		}
		if svc.store != nil {
			reports[i].AttemptID = o.Attempt.ID
		}
	}

	if opts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return err
		}
	} else {
		m, _ := svc.grader.Catalog().Get(missionID)
		for _, r := range reports {
			printReport(out, m.Title, r)
		}
	}

	if failed {
		return errSubmissionFailed
	}
	return nil
}

func readSketch(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read sketch: %w", err)
	}
	return string(data), nil
}

func printReport(w io.Writer, title string, r fileReport) {
	status := "PASS"
	if !r.Result.IsPass {
		status = "FAIL"
	}
	fmt.Fprintf(w, "%s %s (%s): %s\n", status, r.File, title, r.Result.Summary())
	for _, cp := range r.Result.CheckpointResults {
		if cp.Passed {
			fmt.Fprintf(w, "  [x] %s: %s\n", cp.CheckpointID, strings.Join(cp.Evidence, " "))
		} else {
			fmt.Fprintf(w, "  [ ] %s: %s\n", cp.CheckpointID, cp.FailureReason)
		}
	}
	for _, id := range r.Unlocked {
		fmt.Fprintf(w, "  unlocked %s\n", id)
	}
}
