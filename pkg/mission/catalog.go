package mission

import (
	"fmt"
	"sort"
)

// Catalog is an immutable, validated table of missions ordered by their
// rank. Construct it once at startup and pass it to whatever needs it.
type Catalog struct {
	version  string
	missions []Mission
	byID     map[string]int
}

// NewCatalog validates the missions and returns a catalog sorted by order.
// The input slice is copied; later changes to it do not affect the catalog.
func NewCatalog(version string, missions []Mission) (*Catalog, error) {
	vr := ValidateCatalog(version, missions)
	if !vr.Valid() {
		return nil, fmt.Errorf("invalid catalog: %s", vr.Error())
	}

	sorted := make([]Mission, len(missions))
	copy(sorted, missions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Order < sorted[j].Order
	})

	byID := make(map[string]int, len(sorted))
	for i, m := range sorted {
		byID[m.ID] = i
	}

	return &Catalog{
		version:  version,
		missions: sorted,
		byID:     byID,
	}, nil
}

// Version identifies the content release the catalog was built from.
func (c *Catalog) Version() string {
	return c.version
}

// Len returns the number of missions.
func (c *Catalog) Len() int {
	return len(c.missions)
}

// All returns every mission in order.
func (c *Catalog) All() []Mission {
	out := make([]Mission, len(c.missions))
	copy(out, c.missions)
	return out
}

// Get looks up a mission by id.
func (c *Catalog) Get(id string) (Mission, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Mission{}, false
	}
	return c.missions[i], true
}

// ByDifficulty returns the missions tagged with the given difficulty.
func (c *Catalog) ByDifficulty(d Difficulty) []Mission {
	var out []Mission
	for _, m := range c.missions {
		if m.Difficulty == d {
			out = append(out, m)
		}
	}
	return out
}

// Profiles maps each mission id to its current validator version.
func (c *Catalog) Profiles() map[string]string {
	out := make(map[string]string, len(c.missions))
	for _, m := range c.missions {
		out[m.ID] = m.ValidatorVersion
	}
	return out
}
