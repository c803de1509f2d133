package audit

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/cgast/questcheck/pkg/mission"
)

// Validator checks a sketch against a mission.
type Validator interface {
	Validate(m mission.Mission, source string) (ValidationResult, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithPatternCache keeps compiled pattern rules for the life of the engine.
// It is on by default; long-running services checking many sketches
// against the same catalog benefit most.
func WithPatternCache(enabled bool) Option {
	return func(e *Engine) {
		e.cachePatterns = enabled
	}
}

// Engine is the standard Validator. It holds no per-call state and is safe
// for concurrent use.
type Engine struct {
	cachePatterns bool

	mu       sync.RWMutex
	patterns map[patternKey]*regexp.Regexp
}

type patternKey struct {
	pattern string
	flags   string
}

// NewEngine creates an engine with the given options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		cachePatterns: true,
		patterns:      make(map[patternKey]*regexp.Regexp),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validate evaluates every checkpoint of m against source. A checkpoint
// passes iff all of its rules pass; its failure reason is that of the
// first failing rule. The only error is ErrInvalidRule for malformed
// content.
func (e *Engine) Validate(m mission.Mission, source string) (ValidationResult, error) {
	canonical := Normalize(source)
	calls := ExtractCalls(source)

	result := ValidationResult{
		PassedCheckpointIDs:  make([]string, 0, len(m.Checkpoints)),
		MissingCheckpointIDs: make([]string, 0),
		CheckpointResults:    make([]CheckpointResult, 0, len(m.Checkpoints)),
		Profile: Profile{
			ProfileID:     m.ValidatorVersion,
			Deterministic: true,
		},
	}

	for _, cp := range m.Checkpoints {
		cr := CheckpointResult{
			CheckpointID: cp.ID,
			Passed:       true,
			Evidence:     make([]string, 0, len(cp.Rules)),
		}
		for i, rule := range cp.Rules {
			out, err := e.evaluate(rule, canonical, calls)
			if err != nil {
				return ValidationResult{}, fmt.Errorf("mission %q checkpoint %q rules[%d]: %w", m.ID, cp.ID, i, err)
			}
			cr.Evidence = append(cr.Evidence, out.evidence...)
			if !out.passed && cr.Passed {
				cr.Passed = false
				cr.FailureReason = out.failureReason
			}
		}

		if cr.Passed {
			result.PassedCheckpointIDs = append(result.PassedCheckpointIDs, cp.ID)
		} else {
			result.MissingCheckpointIDs = append(result.MissingCheckpointIDs, cp.ID)
		}
		result.CheckpointResults = append(result.CheckpointResults, cr)
	}

	result.IsPass = len(result.MissingCheckpointIDs) == 0
	return result, nil
}

func (e *Engine) compile(r mission.PatternRule) (*regexp.Regexp, error) {
	if !e.cachePatterns {
		return r.Compile()
	}

	key := patternKey{pattern: r.Pattern, flags: r.Flags}
	e.mu.RLock()
	re, ok := e.patterns[key]
	e.mu.RUnlock()
	if ok {
		return re, nil
	}

	re, err := r.Compile()
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.patterns[key] = re
	e.mu.Unlock()
	return re, nil
}

// Validate is a convenience function that creates a default engine and
// validates.
func Validate(m mission.Mission, source string) (ValidationResult, error) {
	return NewEngine().Validate(m, source)
}
