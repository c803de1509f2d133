package mission

import (
	"fmt"
	"sort"
	"strings"
)

// Order returns the missions in prerequisite order using Kahn's algorithm.
// Ties are broken by mission order, so the result is deterministic.
func (c *Catalog) Order() ([]Mission, error) {
	inDegree := make(map[string]int, len(c.missions))
	dependents := make(map[string][]string, len(c.missions))

	for _, m := range c.missions {
		if _, ok := inDegree[m.ID]; !ok {
			inDegree[m.ID] = 0
		}
		for _, pre := range m.Prerequisites {
			inDegree[m.ID]++
			dependents[pre] = append(dependents[pre], m.ID)
		}
	}

	var queue []string
	for _, m := range c.missions {
		if inDegree[m.ID] == 0 {
			queue = append(queue, m.ID)
		}
	}

	ordered := make([]Mission, 0, len(c.missions))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		ordered = append(ordered, c.missions[c.byID[id]])

		next := dependents[id]
		sort.Slice(next, func(i, j int) bool {
			return c.missions[c.byID[next[i]]].Order < c.missions[c.byID[next[j]]].Order
		})
		for _, dep := range next {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(ordered) != len(c.missions) {
		var stuck []string
		for _, m := range c.missions {
			if inDegree[m.ID] > 0 {
				stuck = append(stuck, m.ID)
			}
		}
		return nil, fmt.Errorf("circular prerequisites among: %s", strings.Join(stuck, ", "))
	}
	return ordered, nil
}

// Unlocked returns the missions that are not completed and whose
// prerequisites all are, in catalog order.
func (c *Catalog) Unlocked(completed []string) []Mission {
	done := make(map[string]bool, len(completed))
	for _, id := range completed {
		done[id] = true
	}

	var out []Mission
	for _, m := range c.missions {
		if done[m.ID] {
			continue
		}
		ready := true
		for _, pre := range m.Prerequisites {
			if !done[pre] {
				ready = false
				break
			}
		}
		if ready {
			out = append(out, m)
		}
	}
	return out
}

// Next returns the lowest-ordered unlocked mission.
func (c *Catalog) Next(completed []string) (Mission, bool) {
	unlocked := c.Unlocked(completed)
	if len(unlocked) == 0 {
		return Mission{}, false
	}
	return unlocked[0], true
}
