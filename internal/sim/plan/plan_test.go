package plan

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"idlecraft.ai/internal/protocol"
	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/engine"
	"idlecraft.ai/internal/sim/goal"
	"idlecraft.ai/internal/sim/state"
	"idlecraft.ai/internal/sim/tuning"
)

func atLevel(level int) state.GlobalState {
	b := state.Empty(tuning.Defaults()).Edit()
	b.AddXP("woodcutting", state.XPForLevel(level))
	return b.Build()
}

func TestCompressMergesMonotoneWaits(t *testing.T) {
	cats := catalogs.Fixture()
	g := goal.ReachSkillLevel{SkillTarget: goal.SkillTarget{Skill: "woodcutting", Level: 5}}
	steps := []Step{
		InteractionStep{Interaction: engine.SwitchActivity{ActionID: "normal_tree"}},
		WaitStep{Until: SkillLevel{Skill: "woodcutting", Level: 2}, MaxTicks: 600, PlannedTicks: 540, Action: "normal_tree"},
		WaitStep{Until: SkillLevel{Skill: "woodcutting", Level: 3}, MaxTicks: 600, PlannedTicks: 600, Action: "normal_tree"},
		WaitStep{Until: GoalReached{Goal: g}, MaxTicks: 5000, PlannedTicks: 1200, Action: "normal_tree", Reason: "goal_reached"},
		WaitStep{Until: ItemCount{Item: "normal_logs", Count: 80}, MaxTicks: 900, PlannedTicks: 300, Action: "normal_tree"},
	}
	base := state.Empty(tuning.Defaults())
	ends := []state.GlobalState{base, atLevel(2), atLevel(3), atLevel(5), atLevel(5)}

	out := Compress(cats, steps, ends)
	if len(out) != 3 {
		t.Fatalf("expected 3 steps, got %d: %#v", len(out), out)
	}
	m, ok := out[1].(MacroStep)
	if !ok {
		t.Fatalf("expected macro step, got %T", out[1])
	}
	if m.Merged != 3 || m.PlannedTicks != 2340 {
		t.Fatalf("macro: merged=%d planned=%d", m.Merged, m.PlannedTicks)
	}
	if m.MaxTicks != 540+600+5000 {
		t.Fatalf("macro max ticks: %d", m.MaxTicks)
	}
	if _, ok := m.Until.(GoalReached); !ok || m.Reason != "goal_reached" {
		t.Fatalf("macro must keep the last condition: %#v", m)
	}
	if _, ok := out[2].(WaitStep); !ok {
		t.Fatalf("non-monotone wait must stay separate, got %T", out[2])
	}
	if total(out) != total(steps) {
		t.Fatalf("compression changed total ticks: %d vs %d", total(out), total(steps))
	}
}

func TestCompressStopsWhenConditionHeldEarlier(t *testing.T) {
	cats := catalogs.Fixture()
	steps := []Step{
		WaitStep{Until: SkillLevel{Skill: "woodcutting", Level: 3}, MaxTicks: 600, PlannedTicks: 600, Action: "normal_tree"},
		WaitStep{Until: SkillLevel{Skill: "woodcutting", Level: 3}, MaxTicks: 600, PlannedTicks: 100, Action: "normal_tree"},
	}
	out := Compress(cats, steps, []state.GlobalState{atLevel(3), atLevel(3)})
	if len(out) != 2 {
		t.Fatalf("waits whose condition already held must not merge, got %d steps", len(out))
	}
}

func total(steps []Step) int64 {
	var n int64
	for _, s := range steps {
		n += s.Ticks()
	}
	return n
}

func samplePlan() Plan {
	g := goal.ReachGP{Target: 100}
	steps := []Step{
		InteractionStep{Interaction: engine.SwitchActivity{ActionID: "pickpocket_man"}},
		MacroStep{Until: CreditsAtLeast{Credits: 100}, MaxTicks: 2400, PlannedTicks: 1400, Action: "pickpocket_man", Reason: "goal_reached", Merged: 2},
		InteractionStep{Interaction: engine.SellAll{}},
		WaitStep{Until: HorizonCap{}, MaxTicks: 20, PlannedTicks: 20, Action: "pickpocket_man", Reason: "horizon"},
	}
	p := New(g, 7, steps, 0.5)
	p.CatalogDigest = catalogs.Fixture().Digest()
	return p
}

func TestNewCountsTotals(t *testing.T) {
	p := samplePlan()
	if p.TotalTicks != 1420 || p.InteractionCount != 2 {
		t.Fatalf("totals: ticks=%d interactions=%d", p.TotalTicks, p.InteractionCount)
	}
	q := samplePlan()
	p.Append(q, "upgrade_affordable")
	if p.TotalTicks != 2840 || p.InteractionCount != 4 || len(p.Segments) != 1 || p.Segments[0].StartStep != 4 {
		t.Fatalf("append: %+v", p)
	}
}

func TestDescribe(t *testing.T) {
	cats := catalogs.Fixture()
	lines := samplePlan().Describe(cats)
	if len(lines) != 4 {
		t.Fatalf("lines: %v", lines)
	}
	if !strings.Contains(lines[0], "switch to pickpocket_man") {
		t.Fatalf("line 0: %q", lines[0])
	}
	if !strings.Contains(lines[1], "[2 waits]") || !strings.Contains(lines[1], "100 credits") {
		t.Fatalf("line 1: %q", lines[1])
	}
	if !strings.Contains(lines[2], "sell all") {
		t.Fatalf("line 2: %q", lines[2])
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cats := catalogs.Fixture()
	p := samplePlan()
	raw, err := Encode(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(cats, raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.TotalTicks != p.TotalTicks || got.InteractionCount != p.InteractionCount || got.Seed != 7 {
		t.Fatalf("decoded totals: %+v", got)
	}
	if got.Goal.String() != "gp:100" || got.CatalogDigest != p.CatalogDigest {
		t.Fatalf("decoded header: %+v", got)
	}
	again, err := Encode(got)
	if err != nil {
		t.Fatalf("re-encode: %v", err)
	}
	if !bytes.Equal(raw, again) {
		t.Fatalf("re-encoded plan differs:\n%s\n%s", raw, again)
	}
}

func TestDecodeRejectsBadTotals(t *testing.T) {
	cats := catalogs.Fixture()
	raw, err := Encode(samplePlan())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	bad := bytes.Replace(raw, []byte(`"total_ticks": 1420`), []byte(`"total_ticks": 1421`), 1)
	if bytes.Equal(bad, raw) {
		t.Fatalf("test setup: total_ticks not found in %s", raw)
	}
	_, err = Decode(cats, bad)
	var perr *protocol.Error
	if !errors.As(err, &perr) || perr.Code != protocol.ErrBadPlan {
		t.Fatalf("expected %s, got %v", protocol.ErrBadPlan, err)
	}
}

func TestDecodeRejectsUnknownAction(t *testing.T) {
	cats := catalogs.Fixture()
	raw, _ := Encode(samplePlan())
	bad := bytes.Replace(raw, []byte(`"action": "pickpocket_man"`), []byte(`"action": "pickpocket_king"`), 1)
	if _, err := Decode(cats, bad); err == nil {
		t.Fatalf("expected unknown action to be rejected")
	}
}

func TestBoundaryForReason(t *testing.T) {
	if b, ok := BoundaryForReason("unlock_imminent"); !ok || b != BoundaryUnlockObserved {
		t.Fatalf("unlock_imminent -> %q %v", b, ok)
	}
	if _, ok := BoundaryForReason("item_target"); ok {
		t.Fatalf("item targets anticipate no boundary")
	}
}
