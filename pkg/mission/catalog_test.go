package mission

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewCatalogSortsByOrder(t *testing.T) {
	c := validMission("c", 3)
	a := validMission("a", 1)
	b := validMission("b", 2)
	b.Difficulty = DifficultyHard

	input := []Mission{c, a, b}
	cat, err := NewCatalog("1", input)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}

	var ids []string
	for _, m := range cat.All() {
		ids = append(ids, m.ID)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, ids); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	// The catalog owns its copy.
	input[0].Title = "changed"
	if m, _ := cat.Get("c"); m.Title == "changed" {
		t.Error("catalog shares storage with the input slice")
	}
	all := cat.All()
	all[0].ID = "mutated"
	if _, ok := cat.Get("a"); !ok {
		t.Error("All() leaked internal storage")
	}

	hard := cat.ByDifficulty(DifficultyHard)
	if len(hard) != 1 || hard[0].ID != "b" {
		t.Errorf("ByDifficulty(hard) = %v", hard)
	}

	want := map[string]string{"a": "v1-a", "b": "v1-b", "c": "v1-c"}
	if diff := cmp.Diff(want, cat.Profiles()); diff != "" {
		t.Errorf("Profiles mismatch (-want +got):\n%s", diff)
	}
}

func TestNewCatalogRejectsInvalid(t *testing.T) {
	_, err := NewCatalog("1", []Mission{validMission("a", 1), validMission("a", 2)})
	if err == nil || !strings.Contains(err.Error(), "duplicate mission id") {
		t.Errorf("error = %v, want duplicate id failure", err)
	}
}

func TestCatalogGetMissing(t *testing.T) {
	cat, err := NewCatalog("1", []Mission{validMission("a", 1)})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	if _, ok := cat.Get("missing"); ok {
		t.Error("Get(missing) returned ok")
	}
}

func TestDefaultCatalogIntegrity(t *testing.T) {
	cat, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if cat.Len() != 12 {
		t.Fatalf("Len = %d, want 12", cat.Len())
	}

	byID := make(map[string]Mission)
	for i, m := range cat.All() {
		if m.Order != i+1 {
			t.Errorf("mission %d order = %d, want %d", i, m.Order, i+1)
		}
		if len(strings.TrimSpace(m.ValidatorVersion)) <= 2 {
			t.Errorf("%s: validator version %q too short", m.ID, m.ValidatorVersion)
		}
		if len(m.SafetyNotes) == 0 {
			t.Errorf("%s: no safety notes", m.ID)
		}
		if strings.TrimSpace(m.StarterCode) == "" {
			t.Errorf("%s: no starter code", m.ID)
		}
		for _, cp := range m.Checkpoints {
			if len(cp.Rules) == 0 {
				t.Errorf("%s/%s: no rules", m.ID, cp.ID)
			}
		}
		byID[m.ID] = m
	}

	for _, m := range cat.All() {
		for _, pre := range m.Prerequisites {
			p, ok := byID[pre]
			if !ok {
				t.Errorf("%s: unknown prerequisite %q", m.ID, pre)
				continue
			}
			if p.Order >= m.Order {
				t.Errorf("%s: prerequisite %s is not earlier", m.ID, pre)
			}
		}
	}

	first, _ := cat.Get("mission-blink")
	if first.Reward.BadgeID != "first-flash" || first.Reward.XP != 40 {
		t.Errorf("mission-blink reward = %+v", first.Reward)
	}
	last, _ := cat.Get("mission-distance-alarm")
	if last.Difficulty != DifficultyHard || last.Reward.XP != 100 {
		t.Errorf("mission-distance-alarm = %s / %d xp", last.Difficulty, last.Reward.XP)
	}
}

func TestDefaultYAMLIsCopy(t *testing.T) {
	a := DefaultYAML()
	a[0] = '#'
	if b := DefaultYAML(); b[0] == '#' {
		t.Error("DefaultYAML returned shared storage")
	}
}
