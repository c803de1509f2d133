package audit

import "fmt"

// Profile stamps a result with the rule content version that produced it.
// Deterministic is always true; it lets callers assert repeatability
// instead of assuming it.
type Profile struct {
	ProfileID     string `json:"profile_id"`
	Deterministic bool   `json:"deterministic"`
}

// CheckpointResult is the verdict for one checkpoint.
type CheckpointResult struct {
	CheckpointID  string   `json:"checkpoint_id"`
	Passed        bool     `json:"passed"`
	Evidence      []string `json:"evidence"`
	FailureReason string   `json:"failure_reason"`
}

// ValidationResult is the verdict for a whole mission.
type ValidationResult struct {
	IsPass               bool               `json:"is_pass"`
	PassedCheckpointIDs  []string           `json:"passed_checkpoint_ids"`
	MissingCheckpointIDs []string           `json:"missing_checkpoint_ids"`
	CheckpointResults    []CheckpointResult `json:"checkpoint_results"`
	Profile              Profile            `json:"profile"`
}

// Checkpoint returns the result for the given checkpoint id.
func (r ValidationResult) Checkpoint(id string) (CheckpointResult, bool) {
	for _, cr := range r.CheckpointResults {
		if cr.CheckpointID == id {
			return cr, true
		}
	}
	return CheckpointResult{}, false
}

// Summary renders a one-line description such as "2/3 checkpoints passed".
func (r ValidationResult) Summary() string {
	return fmt.Sprintf("%d/%d checkpoints passed", len(r.PassedCheckpointIDs), len(r.CheckpointResults))
}

// ruleOutcome is the verdict of a single rule. Evidence is only set on a
// pass and failureReason only on a failure.
type ruleOutcome struct {
	passed        bool
	evidence      []string
	failureReason string
}

func pass(evidence string) ruleOutcome {
	return ruleOutcome{passed: true, evidence: []string{evidence}}
}

func fail(reason string) ruleOutcome {
	return ruleOutcome{failureReason: reason}
}
