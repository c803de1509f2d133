package attempt

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

const (
	bucketAttempts = "attempts" // id -> attempt JSON
	bucketResults  = "results"  // mission|profile|hash -> latest attempt id
)

// BoltStore is a bbolt-backed Store.
type BoltStore struct {
	db  *bolt.DB
	mu  sync.RWMutex
	now func() time.Time
}

// NewBoltStore opens (or creates) an attempt store at the given path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketAttempts, bucketResults} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	return &BoltStore{db: db, now: time.Now}, nil
}

func resultKey(missionID, profileID, sourceHash string) []byte {
	return []byte(missionID + "|" + profileID + "|" + sourceHash)
}

// Save stores an attempt, assigning an id and timestamp when missing, and
// indexes it as the cached result for its (mission, profile, source).
func (s *BoltStore) Save(a Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("new attempt id: %w", err)
		}
		a.ID = id.String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now().UTC()
	}

	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket([]byte(bucketAttempts)).Put([]byte(a.ID), data); err != nil {
			return fmt.Errorf("put attempt %s: %w", a.ID, err)
		}
		key := resultKey(a.MissionID, a.ProfileID, a.SourceHash)
		return tx.Bucket([]byte(bucketResults)).Put(key, []byte(a.ID))
	})
}

// Get returns the attempt with the given id.
func (s *BoltStore) Get(id string) (Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var a Attempt
	err := s.db.View(func(tx *bolt.Tx) error {
		return getAttempt(tx, id, &a)
	})
	return a, err
}

// Lookup returns the latest attempt for the same mission, profile and
// source. An attempt recorded under another profile never matches, so a
// change to a mission's rules invalidates its cached results.
func (s *BoltStore) Lookup(missionID, profileID, sourceHash string) (Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var a Attempt
	err := s.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket([]byte(bucketResults)).Get(resultKey(missionID, profileID, sourceHash))
		if id == nil {
			return ErrNotFound
		}
		return getAttempt(tx, string(id), &a)
	})
	return a, err
}

func getAttempt(tx *bolt.Tx, id string, a *Attempt) error {
	data := tx.Bucket([]byte(bucketAttempts)).Get([]byte(id))
	if data == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := json.Unmarshal(data, a); err != nil {
		return fmt.Errorf("unmarshal attempt %s: %w", id, err)
	}
	return nil
}

// List returns matching attempts, newest first.
func (s *BoltStore) List(f Filter) ([]Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Attempt{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketAttempts)).ForEach(func(k, v []byte) error {
			var a Attempt
			if err := json.Unmarshal(v, &a); err != nil {
				return fmt.Errorf("unmarshal attempt %s: %w", string(k), err)
			}
			if f.match(a) {
				out = append(out, a)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Completed returns, sorted, the missions the learner has passed under the
// profile currently in effect for each mission.
func (s *BoltStore) Completed(learner string, profiles map[string]string) ([]string, error) {
	passed, err := s.List(Filter{Learner: learner, PassedOnly: true})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	out := []string{}
	for _, a := range passed {
		current, ok := profiles[a.MissionID]
		if !ok || current != a.ProfileID || seen[a.MissionID] {
			continue
		}
		seen[a.MissionID] = true
		out = append(out, a.MissionID)
	}
	sort.Strings(out)
	return out, nil
}

// Close releases the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
