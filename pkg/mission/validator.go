package mission

import (
	"fmt"
	"strings"
)

// ValidationError represents a single content integrity failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult holds all integrity errors found in a catalog.
type ValidationResult struct {
	Errors []ValidationError
}

// Valid returns true if no validation errors were found.
func (r ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// Error returns a combined error message from all validation errors.
func (r ValidationResult) Error() string {
	if r.Valid() {
		return ""
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

func (r *ValidationResult) add(field, format string, args ...any) {
	r.Errors = append(r.Errors, ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	})
}

var validDifficulties = map[Difficulty]bool{
	DifficultyStarter: true,
	DifficultyEasy:    true,
	DifficultyMedium:  true,
	DifficultyHard:    true,
}

// ValidateCatalog checks authored content for the defects the auditor
// refuses to run against: missing identities, broken prerequisite links,
// empty checkpoints and malformed rules.
func ValidateCatalog(version string, missions []Mission) ValidationResult {
	var result ValidationResult

	if strings.TrimSpace(version) == "" {
		result.add("version", "required")
	}

	ids := make(map[string]int, len(missions))
	orders := make(map[int]string, len(missions))
	for i, m := range missions {
		field := fmt.Sprintf("missions[%d]", i)
		if m.ID == "" {
			result.add(field+".id", "required")
		} else if _, dup := ids[m.ID]; dup {
			result.add(field+".id", "duplicate mission id %q", m.ID)
		} else {
			ids[m.ID] = m.Order
			field = fmt.Sprintf("missions[%s]", m.ID)
		}

		if m.Order <= 0 {
			result.add(field+".order", "must be positive, got %d", m.Order)
		} else if other, dup := orders[m.Order]; dup {
			result.add(field+".order", "order %d already used by %q", m.Order, other)
		} else {
			orders[m.Order] = m.ID
		}

		validateMission(field, m, &result)
	}

	// Prerequisites are checked once every id and order is known.
	for i, m := range missions {
		field := fmt.Sprintf("missions[%d]", i)
		if m.ID != "" {
			field = fmt.Sprintf("missions[%s]", m.ID)
		}
		for j, pre := range m.Prerequisites {
			pf := fmt.Sprintf("%s.prerequisites[%d]", field, j)
			preOrder, ok := ids[pre]
			switch {
			case pre == m.ID:
				result.add(pf, "mission cannot require itself")
			case !ok:
				result.add(pf, "unknown mission %q", pre)
			case preOrder >= m.Order:
				result.add(pf, "prerequisite %q (order %d) must come before order %d", pre, preOrder, m.Order)
			}
		}
	}

	return result
}

func validateMission(field string, m Mission, result *ValidationResult) {
	if strings.TrimSpace(m.Title) == "" {
		result.add(field+".title", "required")
	}
	if len(strings.TrimSpace(m.ValidatorVersion)) <= 2 {
		result.add(field+".validator_version", "must be longer than 2 characters")
	}
	if !validDifficulties[m.Difficulty] {
		result.add(field+".difficulty", "unknown difficulty %q", m.Difficulty)
	}
	if len(m.SafetyNotes) == 0 {
		result.add(field+".safety_notes", "at least one safety note is required")
	}
	if m.Reward.XP < 0 {
		result.add(field+".reward.xp", "must not be negative")
	}
	if m.Reward.BadgeID == "" {
		result.add(field+".reward.badge_id", "required")
	}

	if len(m.Checkpoints) == 0 {
		result.add(field+".checkpoints", "at least one checkpoint is required")
	}
	seen := make(map[string]bool, len(m.Checkpoints))
	for i, cp := range m.Checkpoints {
		cf := fmt.Sprintf("%s.checkpoints[%d]", field, i)
		if cp.ID == "" {
			result.add(cf+".id", "required")
		} else if seen[cp.ID] {
			result.add(cf+".id", "duplicate checkpoint id %q", cp.ID)
		} else {
			seen[cp.ID] = true
		}

		if len(cp.Rules) == 0 {
			result.add(cf+".rules", "at least one rule is required")
		}
		for j, r := range cp.Rules {
			validateRule(fmt.Sprintf("%s.rules[%d]", cf, j), r, result)
		}
	}
}

func validateRule(field string, rule Rule, result *ValidationResult) {
	switch r := rule.(type) {
	case ContainsRule:
		if r.Text == "" {
			result.add(field+".text", "required")
		}
	case PatternRule:
		if r.Pattern == "" {
			result.add(field+".pattern", "required")
		} else if _, err := r.Compile(); err != nil {
			result.add(field+".pattern", "%v", err)
		}
	case CallRule:
		if strings.TrimSpace(r.Function) == "" {
			result.add(field+".function", "required")
		}
		if r.MinCount < 0 {
			result.add(field+".min_count", "must not be negative")
		}
		if _, err := parseMatchMode(string(r.Match)); err != nil {
			result.add(field+".match", "%v", err)
		}
	case NumericArgRangeRule:
		if strings.TrimSpace(r.Function) == "" {
			result.add(field+".function", "required")
		}
		if r.MinCount < 0 {
			result.add(field+".min_count", "must not be negative")
		}
		if r.ArgIndex < 0 {
			result.add(field+".arg_index", "must not be negative")
		}
		if r.Min > r.Max {
			result.add(field+".min", "min %v is greater than max %v", r.Min, r.Max)
		}
	case AnyOfRule:
		if len(r.Rules) == 0 {
			result.add(field+".rules", "anyOf needs at least one nested rule")
		}
		for i, nested := range r.Rules {
			validateRule(fmt.Sprintf("%s.rules[%d]", field, i), nested, result)
		}
	case nil:
		result.add(field, "rule is nil")
	default:
		result.add(field, "unsupported rule %T", rule)
	}
}
