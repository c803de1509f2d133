// Package grader runs learner submissions through the audit engine and
// records what happened: attempts go to the store, activity goes to the
// event bus and counters go to Prometheus.
package grader

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cgast/questcheck/pkg/attempt"
	"github.com/cgast/questcheck/pkg/audit"
	"github.com/cgast/questcheck/pkg/events"
	"github.com/cgast/questcheck/pkg/mission"
)

// DefaultLearner is recorded when a submission names no learner.
const DefaultLearner = "local"

var (
	// ErrMissionNotFound is returned for unknown mission ids.
	ErrMissionNotFound = errors.New("mission not found")

	// ErrInvalidSubmission is returned for submissions that cannot be graded.
	ErrInvalidSubmission = errors.New("invalid submission")

	// ErrStoreDisabled is returned by operations that need the attempt store.
	ErrStoreDisabled = errors.New("attempt store disabled")
)

// Submission is one sketch to grade.
type Submission struct {
	Learner   string `json:"learner"`
	MissionID string `json:"mission_id"`
	Source    string `json:"source"`
}

// Outcome is the graded submission.
type Outcome struct {
	Attempt  attempt.Attempt `json:"attempt"`
	Cached   bool            `json:"cached"`
	Unlocked []string        `json:"unlocked"`
}

// Result returns the audit result of the attempt.
func (o Outcome) Result() audit.ValidationResult {
	return o.Attempt.Result
}

// Progress is a learner's position in the mission path.
type Progress struct {
	Completed []string
	Unlocked  []mission.Mission
	Next      *mission.Mission
}

// Option configures a Grader.
type Option func(*Grader)

// WithValidator replaces the default audit engine.
func WithValidator(v audit.Validator) Option {
	return func(g *Grader) {
		g.validator = v
	}
}

// WithStore records attempts and serves repeat submissions from it.
func WithStore(s attempt.Store) Option {
	return func(g *Grader) {
		g.store = s
	}
}

// WithBus publishes grading events.
func WithBus(b events.Bus) Option {
	return func(g *Grader) {
		g.bus = b
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Grader) {
		g.logger = l
	}
}

// WithRegisterer registers grader metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(g *Grader) {
		g.registerer = reg
	}
}

// WithMaxSourceBytes rejects larger sketches. Zero means no limit.
func WithMaxSourceBytes(n int64) Option {
	return func(g *Grader) {
		g.maxSource = n
	}
}

// WithSourceName records where the catalog came from.
func WithSourceName(name string) Option {
	return func(g *Grader) {
		g.sourceName = name
	}
}

// Grader grades submissions against a catalog. It is safe for concurrent
// use.
type Grader struct {
	catalog    atomic.Pointer[mission.Catalog]
	sourceName string
	validator  audit.Validator
	store      attempt.Store
	bus        events.Bus
	logger     *zap.Logger
	registerer prometheus.Registerer
	metrics    *metrics
	maxSource  int64
	now        func() time.Time
	learners   learnerLocks
}

// learnerLocks serializes the completed-check, save and unlock steps per
// learner so concurrent passes report each unlock once.
type learnerLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *learnerLocks) lock(learner string) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[learner]
	if !ok {
		m = &sync.Mutex{}
		l.locks[learner] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// New creates a grader over cat.
func New(cat *mission.Catalog, opts ...Option) *Grader {
	g := &Grader{
		sourceName: "embedded",
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.validator == nil {
		g.validator = audit.NewEngine()
	}
	g.catalog.Store(cat)
	g.metrics = newMetrics(g.registerer)
	return g
}

// Catalog returns the catalog being graded against.
func (g *Grader) Catalog() *mission.Catalog {
	return g.catalog.Load()
}

// Reload swaps in a new catalog. Submissions already in flight finish
// against the catalog they started with.
func (g *Grader) Reload(cat *mission.Catalog) {
	g.catalog.Store(cat)
	g.Announce()
}

// SourceName describes where the catalog came from.
func (g *Grader) SourceName() string {
	return g.sourceName
}

// StoreEnabled reports whether attempts are recorded.
func (g *Grader) StoreEnabled() bool {
	return g.store != nil
}

func (g *Grader) publish(e events.Event) {
	if g.bus != nil {
		g.bus.Publish(e)
	}
}

// Validate grades one submission. A submission identical to an earlier
// one under the same validator version is answered from the store.
func (g *Grader) Validate(ctx context.Context, sub Submission) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	if sub.MissionID == "" {
		return Outcome{}, fmt.Errorf("%w: mission id is required", ErrInvalidSubmission)
	}
	if g.maxSource > 0 && int64(len(sub.Source)) > g.maxSource {
		return Outcome{}, fmt.Errorf("%w: source is %d bytes, limit is %d", ErrInvalidSubmission, len(sub.Source), g.maxSource)
	}
	cat := g.Catalog()
	m, ok := cat.Get(sub.MissionID)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", ErrMissionNotFound, sub.MissionID)
	}
	if sub.Learner == "" {
		sub.Learner = DefaultLearner
	}

	log := g.logger.With(zap.String("mission", m.ID), zap.String("learner", sub.Learner))
	hash := attempt.HashSource(sub.Source)
	g.publish(events.NewEvent(events.EventValidateStart, map[string]string{
		"source_hash": hash,
	}).ForSubmission(m.ID, sub.Learner))

	var (
		result audit.ValidationResult
		cached bool
		err    error
	)
	if g.store != nil {
		prev, err := g.store.Lookup(m.ID, m.ValidatorVersion, hash)
		switch {
		case err == nil:
			result, cached = prev.Result, true
		case !errors.Is(err, attempt.ErrNotFound):
			return Outcome{}, fmt.Errorf("lookup attempt: %w", err)
		}
	}

	if cached {
		g.metrics.validationsTotal.WithLabelValues(m.ID, outcomeCached).Inc()
		g.publish(events.NewEvent(events.EventAttemptCached, result).ForSubmission(m.ID, sub.Learner))
	} else {
		start := g.now()
		result, err = g.validator.Validate(m, sub.Source)
		elapsed := g.now().Sub(start)
		if err != nil {
			g.metrics.validationsTotal.WithLabelValues(m.ID, outcomeError).Inc()
			e := events.NewEvent(events.EventValidateError, map[string]string{"error": err.Error()}).ForSubmission(m.ID, sub.Learner)
			e.Duration = elapsed
			g.publish(e)
			log.Error("validation failed", zap.Error(err))
			return Outcome{}, err
		}
		g.metrics.validationDuration.WithLabelValues(m.ID).Observe(elapsed.Seconds())
		outcome := outcomeFail
		if result.IsPass {
			outcome = outcomePass
		}
		g.metrics.validationsTotal.WithLabelValues(m.ID, outcome).Inc()
		for _, id := range result.MissingCheckpointIDs {
			g.metrics.checkpointsFailed.WithLabelValues(m.ID, id).Inc()
		}
		e := events.NewEvent(events.EventValidateResult, result).ForSubmission(m.ID, sub.Learner)
		e.Duration = elapsed
		g.publish(e)
	}

	unlock := g.learners.lock(sub.Learner)
	defer unlock()

	before, err := g.completed(cat, sub.Learner)
	if err != nil {
		return Outcome{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Outcome{}, fmt.Errorf("new attempt id: %w", err)
	}
	a := attempt.Attempt{
		ID:         id.String(),
		Learner:    sub.Learner,
		MissionID:  m.ID,
		ProfileID:  m.ValidatorVersion,
		SourceHash: hash,
		Passed:     result.IsPass,
		Result:     result,
		CreatedAt:  g.now().UTC(),
	}
	if g.store != nil {
		if err := g.store.Save(a); err != nil {
			return Outcome{}, fmt.Errorf("save attempt: %w", err)
		}
		g.publish(events.NewEvent(events.EventAttemptSaved, map[string]string{
			"attempt_id": a.ID,
		}).ForSubmission(m.ID, sub.Learner))
	}

	unlocked := []string{}
	if result.IsPass && !slices.Contains(before, m.ID) {
		unlocked = newlyUnlocked(cat, before, m.ID)
		for _, id := range unlocked {
			g.publish(events.NewEvent(events.EventMissionUnlocked, map[string]string{
				"unlocked": id,
			}).ForSubmission(m.ID, sub.Learner))
		}
	}

	log.Debug("submission graded",
		zap.Bool("passed", result.IsPass),
		zap.Bool("cached", cached),
		zap.String("summary", result.Summary()),
		zap.Strings("unlocked", unlocked),
	)
	return Outcome{Attempt: a, Cached: cached, Unlocked: unlocked}, nil
}

// newlyUnlocked returns the missions that completing id opens up.
func newlyUnlocked(cat *mission.Catalog, before []string, id string) []string {
	was := make(map[string]bool)
	for _, m := range cat.Unlocked(before) {
		was[m.ID] = true
	}
	after := append(slices.Clone(before), id)
	out := []string{}
	for _, m := range cat.Unlocked(after) {
		if !was[m.ID] {
			out = append(out, m.ID)
		}
	}
	return out
}

func (g *Grader) completed(cat *mission.Catalog, learner string) ([]string, error) {
	if g.store == nil {
		return []string{}, nil
	}
	done, err := g.store.Completed(learner, cat.Profiles())
	if err != nil {
		return nil, fmt.Errorf("completed missions: %w", err)
	}
	return done, nil
}

// ValidateBatch grades submissions concurrently, at most workers at a
// time. Outcomes are returned in submission order. The first error
// cancels the rest.
func (g *Grader) ValidateBatch(ctx context.Context, subs []Submission, workers int) ([]Outcome, error) {
	if workers <= 0 {
		workers = 1
	}
	out := make([]Outcome, len(subs))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, sub := range subs {
		eg.Go(func() error {
			o, err := g.Validate(ctx, sub)
			if err != nil {
				return fmt.Errorf("submission %d (%s): %w", i, sub.MissionID, err)
			}
			out[i] = o
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Path reports which missions the learner has completed, which are open
// and which one to do next.
func (g *Grader) Path(learner string) (Progress, error) {
	if learner == "" {
		learner = DefaultLearner
	}
	cat := g.Catalog()
	done, err := g.completed(cat, learner)
	if err != nil {
		return Progress{}, err
	}
	p := Progress{
		Completed: done,
		Unlocked:  cat.Unlocked(done),
	}
	if next, ok := cat.Next(done); ok {
		p.Next = &next
	}
	return p, nil
}

// Attempts lists recorded attempts, newest first.
func (g *Grader) Attempts(f attempt.Filter) ([]attempt.Attempt, error) {
	if g.store == nil {
		return nil, ErrStoreDisabled
	}
	return g.store.List(f)
}

// Announce publishes the catalog.loaded event.
func (g *Grader) Announce() {
	cat := g.Catalog()
	g.publish(events.NewEvent(events.EventCatalogLoaded, map[string]any{
		"version":  cat.Version(),
		"source":   g.sourceName,
		"missions": cat.Len(),
	}))
	g.logger.Info("catalog loaded",
		zap.String("version", cat.Version()),
		zap.String("source", g.sourceName),
		zap.Int("missions", cat.Len()),
	)
}
