// Package mission defines the static learning content the auditor checks
// sketches against: missions, their checkpoints, and the rule language
// checkpoints are written in. Content is authored in YAML, validated once
// at load time, and never mutated afterwards.
package mission

// Difficulty tags a mission for display and filtering.
type Difficulty string

const (
	DifficultyStarter Difficulty = "starter"
	DifficultyEasy    Difficulty = "easy"
	DifficultyMedium  Difficulty = "medium"
	DifficultyHard    Difficulty = "hard"
)

// Mission is a unit of learning content with an ordered checklist the
// learner's sketch must satisfy.
type Mission struct {
	ID               string       `yaml:"id" json:"id"`
	Order            int          `yaml:"order" json:"order"`
	Difficulty       Difficulty   `yaml:"difficulty" json:"difficulty"`
	Prerequisites    []string     `yaml:"prerequisites" json:"prerequisites"`
	ValidatorVersion string       `yaml:"validator_version" json:"validator_version"`
	Title            string       `yaml:"title" json:"title"`
	Summary          string       `yaml:"summary" json:"summary"`
	Objective        string       `yaml:"objective" json:"objective"`
	SafetyNotes      []string     `yaml:"safety_notes" json:"safety_notes"`
	EstimatedMinutes int          `yaml:"estimated_minutes" json:"estimated_minutes"`
	StarterCode      string       `yaml:"starter_code" json:"starter_code"`
	Hints            []string     `yaml:"hints" json:"hints"`
	Checkpoints      []Checkpoint `yaml:"checkpoints" json:"checkpoints"`
	Reward           Reward       `yaml:"reward" json:"reward"`
}

// Checkpoint is one independently evaluated requirement within a mission.
// It passes iff every rule passes. Rules are not serialized to JSON so API
// clients never receive the answer key.
type Checkpoint struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
	Rules       []Rule `yaml:"-" json:"-"`
}

// Reward is granted by the surrounding application when a mission passes.
type Reward struct {
	XP         int    `yaml:"xp" json:"xp"`
	BadgeID    string `yaml:"badge_id" json:"badge_id"`
	BadgeLabel string `yaml:"badge_label" json:"badge_label"`
}

// CheckpointIDs returns the checkpoint ids in declared order.
func (m Mission) CheckpointIDs() []string {
	ids := make([]string, len(m.Checkpoints))
	for i, cp := range m.Checkpoints {
		ids[i] = cp.ID
	}
	return ids
}
