// Package attempt records validation attempts so results can be replayed
// without re-evaluating and so learner progress can be derived from them.
package attempt

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/cgast/questcheck/pkg/audit"
)

// ErrNotFound is returned when no attempt matches a lookup.
var ErrNotFound = errors.New("attempt not found")

// Attempt is one sketch submitted against one mission.
type Attempt struct {
	ID         string                 `json:"id"`
	Learner    string                 `json:"learner"`
	MissionID  string                 `json:"mission_id"`
	ProfileID  string                 `json:"profile_id"`
	SourceHash string                 `json:"source_hash"`
	Passed     bool                   `json:"passed"`
	Result     audit.ValidationResult `json:"result"`
	CreatedAt  time.Time              `json:"created_at"`
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Learner    string
	MissionID  string
	PassedOnly bool
	Limit      int
}

func (f Filter) match(a Attempt) bool {
	if f.Learner != "" && a.Learner != f.Learner {
		return false
	}
	if f.MissionID != "" && a.MissionID != f.MissionID {
		return false
	}
	if f.PassedOnly && !a.Passed {
		return false
	}
	return true
}

// Store persists attempts.
type Store interface {
	Save(a Attempt) error
	Get(id string) (Attempt, error)
	Lookup(missionID, profileID, sourceHash string) (Attempt, error)
	List(f Filter) ([]Attempt, error)
	Completed(learner string, profiles map[string]string) ([]string, error)
	Close() error
}

// HashSource returns the hex SHA-256 of a sketch.
func HashSource(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}
