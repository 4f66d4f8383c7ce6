package state

import (
	"testing"

	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/tuning"
)

func TestXPTable(t *testing.T) {
	if XPForLevel(1) != 0 {
		t.Fatalf("level 1 xp: %v", XPForLevel(1))
	}
	if XPForLevel(2) != 83 {
		t.Fatalf("level 2 xp: got %v want 83", XPForLevel(2))
	}
	if XPForLevel(99) != 13034431 {
		t.Fatalf("level 99 xp: got %v want 13034431", XPForLevel(99))
	}
	for l := 2; l <= MaxLevel; l++ {
		if XPForLevel(l) <= XPForLevel(l-1) {
			t.Fatalf("table not increasing at %d", l)
		}
		if got := LevelForXP(XPForLevel(l)); got != l {
			t.Fatalf("LevelForXP(XPForLevel(%d)) = %d", l, got)
		}
		if got := LevelForXP(XPForLevel(l) - 1); got != l-1 {
			t.Fatalf("LevelForXP just below %d = %d", l, got)
		}
	}
	if LevelForXP(1e12) != MaxLevel {
		t.Fatalf("level must cap at %d", MaxLevel)
	}
}

func TestBuilder_DoesNotMutateBase(t *testing.T) {
	base := Empty(tuning.Defaults())
	b := base.Edit()
	b.AddGP(10).AddXP("woodcutting", 100).SetActive(SkillActivity{Action: "normal_tree", TotalTicks: 60})
	if !b.AddItem("normal_logs", 3) {
		t.Fatalf("add item failed")
	}
	next := b.Build()

	if base.GP() != 0 || base.XP("woodcutting") != 0 || base.Count("normal_logs") != 0 || base.Active() != nil {
		t.Fatalf("base mutated: %s", base)
	}
	if next.GP() != 10 || next.Level("woodcutting") != 2 || next.Count("normal_logs") != 3 {
		t.Fatalf("unexpected next: %s", next)
	}

	// A second edit of next must not leak into next.
	b2 := next.Edit()
	b2.RemoveItem("normal_logs", 3)
	b2.AddXP("woodcutting", 1)
	after := b2.Build()
	if next.Count("normal_logs") != 3 || next.XP("woodcutting") != 100 {
		t.Fatalf("next mutated by later edit")
	}
	if after.Count("normal_logs") != 0 || len(after.Items()) != 0 {
		t.Fatalf("remove should delete empty stacks: %v", after.Items())
	}
}

func TestBuilder_SlotCapacity(t *testing.T) {
	tune := tuning.Defaults()
	tune.BaseInventorySlots = 2
	b := Empty(tune).Edit()
	if !b.AddItem("a", 1) || !b.AddItem("b", 1) {
		t.Fatalf("expected room for two items")
	}
	if b.AddItem("c", 1) {
		t.Fatalf("third distinct item should not fit")
	}
	if !b.AddItem("a", 5) {
		t.Fatalf("stacking onto an existing slot should fit")
	}
	g := b.Build()
	if g.SlotsUsed() != 2 || g.Fullness() != 1 {
		t.Fatalf("slots used=%d fullness=%v", g.SlotsUsed(), g.Fullness())
	}
	if err := g.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidate_RejectsBadProgress(t *testing.T) {
	g := Empty(tuning.Defaults()).Edit().SetActive(SkillActivity{Action: "x", ProgressTicks: 10, TotalTicks: 5}).Build()
	if err := g.Validate(); err == nil {
		t.Fatalf("expected progress > total to be rejected")
	}
}

func TestSnapshot_RoundTrip(t *testing.T) {
	cats := catalogs.Fixture()
	b := Empty(tuning.Defaults()).Edit()
	b.SetTick(500).AddGP(42).AddXP("woodcutting", 900).AddMastery("normal_tree", 225)
	b.AddItem("normal_logs", 7)
	b.SetActive(CombatActivity{Action: "fight_chicken", ProgressTicks: 4, TotalTicks: 50, Kills: 3})
	b.SetPurchased("iron_axe", 1).SetHP(80).SetStunTicks(0)
	b.SetRock("copper_rock", Rock{HP: 0, RespawnTicks: 40})
	b.SetPlots([]Plot{{Action: "plant_potato", GrowthTicks: 10, TotalTicks: 600}})
	b.AddDeath()
	g := b.Build()

	back, err := ImportSnapshot(cats, ExportSnapshot(g))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !back.Equal(g) {
		t.Fatalf("round trip mismatch:\n got=%s\nwant=%s", back, g)
	}
}

func TestSnapshot_RejectsUnknownIDs(t *testing.T) {
	cats := catalogs.Fixture()
	s := ExportSnapshot(Empty(tuning.Defaults()))
	s.Inventory.Items["mystery_box"] = 1
	if _, err := ImportSnapshot(cats, s); err == nil {
		t.Fatalf("expected unknown item error")
	}

	s = ExportSnapshot(Empty(tuning.Defaults()))
	s.Inventory.Slots = 0
	s.Inventory.Items["normal_logs"] = 1
	if _, err := ImportSnapshot(cats, s); err == nil {
		t.Fatalf("expected over-capacity inventory error")
	}
}
