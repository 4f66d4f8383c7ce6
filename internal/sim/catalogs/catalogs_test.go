package catalogs

import (
	"encoding/json"
	"math"
	"testing"
)

func TestLoad_DefaultConfigs(t *testing.T) {
	c, err := Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	if len(c.Skills.Order) == 0 || len(c.Actions.ByID) == 0 || len(c.Items.Defs) == 0 {
		t.Fatalf("empty catalogs: skills=%d actions=%d items=%d", len(c.Skills.Order), len(c.Actions.ByID), len(c.Items.Defs))
	}
	if c.Actions.Digest == "" || c.Digest() == "" {
		t.Fatalf("expected digests to be set")
	}
	if _, ok := c.Action("burn_oak"); !ok {
		t.Fatalf("expected burn_oak in default actions")
	}
}

func TestActionsForSkill_SortedByUnlockLevel(t *testing.T) {
	c := Fixture()
	acts := c.ActionsForSkill("woodcutting")
	if len(acts) != 3 {
		t.Fatalf("expected 3 woodcutting actions, got %d", len(acts))
	}
	for i := 1; i < len(acts); i++ {
		if acts[i-1].UnlockLevel > acts[i].UnlockLevel {
			t.Fatalf("actions not sorted: %s(%d) before %s(%d)", acts[i-1].ID, acts[i-1].UnlockLevel, acts[i].ID, acts[i].UnlockLevel)
		}
	}
}

func TestProducersAndConsumers(t *testing.T) {
	c := Fixture()
	if got := c.Producers("normal_logs"); len(got) != 1 || got[0] != "normal_tree" {
		t.Fatalf("producers(normal_logs) = %v", got)
	}
	if got := c.Consumers("normal_logs"); len(got) != 1 || got[0] != "burn_normal" {
		t.Fatalf("consumers(normal_logs) = %v", got)
	}
	if got := c.Producers("rune_essence"); len(got) != 0 {
		t.Fatalf("expected no producers for rune_essence, got %v", got)
	}
}

func TestDropTableExpected(t *testing.T) {
	tbl := DropTable{Rolls: 2, Entries: []TableEntry{
		{Item: "a", Min: 1, Max: 3, Weight: 3},
		{Item: "", Weight: 1},
	}}
	got := map[string]float64{}
	tbl.Expected(func(item string, n float64) { got[item] += n })
	// 2 rolls * 3/4 * mean(2)
	if math.Abs(got["a"]-3.0) > 1e-9 {
		t.Fatalf("expected 3.0 a per completion, got %v", got["a"])
	}
	if _, ok := got[""]; ok {
		t.Fatalf("empty entry must not produce items")
	}
}

func TestDropListJSONRoundTrip(t *testing.T) {
	in := DropList{
		FixedDrop{Item: "x", Count: 2},
		ChanceDrop{Chance: 0.25, Item: "y", Count: 1},
		DropTable{Rolls: 1, Entries: []TableEntry{{Item: "z", Min: 1, Max: 2, Weight: 5}}},
	}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out DropList
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 drops, got %d", len(out))
	}
	if d, ok := out[1].(ChanceDrop); !ok || d.Chance != 0.25 || d.Item != "y" {
		t.Fatalf("chance drop mismatch: %#v", out[1])
	}
	if d, ok := out[2].(DropTable); !ok || d.Entries[0].Max != 2 {
		t.Fatalf("table drop mismatch: %#v", out[2])
	}
}

func TestDropListRejectsUnknownType(t *testing.T) {
	var out DropList
	if err := json.Unmarshal([]byte(`[{"type":"mystery","item":"x"}]`), &out); err == nil {
		t.Fatalf("expected error for unknown drop type")
	}
}

func TestNew_RejectsBadActions(t *testing.T) {
	skills := []Skill{"woodcutting"}
	items := []ItemDef{{ID: "logs"}}
	cases := []ActionDef{
		{ID: "a", Skill: "fishing", Kind: KindSkill, UnlockLevel: 1, DurationTicks: 10},
		{ID: "b", Skill: "woodcutting", Kind: KindSkill, UnlockLevel: 1, DurationTicks: 0},
		{ID: "c", Skill: "woodcutting", Kind: KindSkill, UnlockLevel: 1, DurationTicks: 10, Inputs: []ItemCount{{Item: "nope", Count: 1}}},
		{ID: "d", Skill: "woodcutting", Kind: KindMining, UnlockLevel: 1, DurationTicks: 10},
		{ID: "e", Skill: "woodcutting", Kind: "DANCE", UnlockLevel: 1, DurationTicks: 10},
	}
	for _, a := range cases {
		if _, err := New(skills, items, []ActionDef{a}, nil); err == nil {
			t.Fatalf("expected error for action %s", a.ID)
		}
	}
}

func TestCostCurve(t *testing.T) {
	c := CostCurve{Base: 20, Growth: 1.5}
	if got := c.At(0); got != 20 {
		t.Fatalf("At(0)=%d", got)
	}
	if got := c.At(2); got != 45 {
		t.Fatalf("At(2)=%d, want 45", got)
	}
	flat := CostCurve{Base: 50}
	if got := flat.At(3); got != 50 {
		t.Fatalf("flat At(3)=%d", got)
	}
}

func TestSuccessChance(t *testing.T) {
	c := Fixture()
	a, _ := c.Action("pickpocket_man")
	if got := a.SuccessChance(1); math.Abs(got-0.7) > 1e-9 {
		t.Fatalf("success at unlock = %v", got)
	}
	if got := a.SuccessChance(99); got != 0.95 {
		t.Fatalf("success capped = %v", got)
	}
	tree, _ := c.Action("normal_tree")
	if tree.SuccessChance(1) != 1 {
		t.Fatalf("non-thieving actions always succeed")
	}
}
