package delta

import (
	"reflect"
	"testing"

	"idlecraft.ai/internal/sim/candidates"
	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/engine"
	"idlecraft.ai/internal/sim/goal"
	"idlecraft.ai/internal/sim/plan"
	"idlecraft.ai/internal/sim/state"
	"idlecraft.ai/internal/sim/tuning"
)

func next(cats *catalogs.Catalogs, tune tuning.Tuning, st state.GlobalState, g goal.Goal) Delta {
	return Next(cats, tune, st, g, candidates.Enumerate(cats, tune, st, g))
}

func active(t *testing.T, cats *catalogs.Catalogs, st state.GlobalState, id string) state.GlobalState {
	t.Helper()
	out, err := engine.Apply(cats, st, engine.SwitchActivity{ActionID: id})
	if err != nil {
		t.Fatalf("switch %s: %v", id, err)
	}
	return out
}

func TestNext_SatisfiedGoalIsFixedPoint(t *testing.T) {
	cats, tune := catalogs.Fixture(), tuning.Defaults()
	b := state.Empty(tune).Edit().AddGP(500).AddXP("woodcutting", state.XPForLevel(20))
	st := active(t, cats, b.Build(), "normal_tree")
	for _, g := range []goal.Goal{
		goal.ReachGP{Target: 500},
		goal.ReachSkillLevel{SkillTarget: goal.SkillTarget{Skill: "woodcutting", Level: 20}},
		goal.MultiSkill{Targets: []goal.SkillTarget{{Skill: "woodcutting", Level: 5}}},
		goal.AllSkills{Level: 1},
	} {
		d := next(cats, tune, st, g)
		if d.Ticks != 0 || d.Reason != GoalReached {
			t.Fatalf("%s: got %+v", g, d)
		}
	}
}

func TestNext_IdleIsDeadEnd(t *testing.T) {
	cats, tune := catalogs.Fixture(), tuning.Defaults()
	d := next(cats, tune, state.Empty(tune), goal.ReachSkillLevel{SkillTarget: goal.SkillTarget{Skill: "woodcutting", Level: 2}})
	if !d.IsInfinite() || d.Reason != DeadEnd || d.Until != nil {
		t.Fatalf("idle: %+v", d)
	}
}

func TestNext_GoalUnderCurrentRate(t *testing.T) {
	cats, tune := catalogs.Fixture(), tuning.Defaults()
	st := active(t, cats, state.Empty(tune), "normal_tree")
	g := goal.ReachSkillLevel{SkillTarget: goal.SkillTarget{Skill: "woodcutting", Level: 2}}
	d := next(cats, tune, st, g)
	if d.Ticks != 498 || d.Reason != GoalReached {
		t.Fatalf("got %+v", d)
	}
	if _, ok := d.Until.(plan.GoalReached); !ok {
		t.Fatalf("single remaining target should wait on the goal itself, got %T", d.Until)
	}
}

func TestNext_UpgradeBeforeGoal(t *testing.T) {
	cats, tune := catalogs.Fixture(), tuning.Defaults()
	st := active(t, cats, state.Empty(tune), "normal_tree")
	d := next(cats, tune, st, goal.ReachSkillLevel{SkillTarget: goal.SkillTarget{Skill: "woodcutting", Level: 30}})
	// iron axe at 50 credits: 50 / (1.25/60) = 2400 ticks, before any unlock
	if d.Reason != UpgradeAffordable || d.Ticks != 2400 {
		t.Fatalf("got %+v", d)
	}
	if d.Until != (plan.CreditsAtLeast{Credits: 50}) {
		t.Fatalf("until: %v", d.Until)
	}
}

func TestNext_InputsDepleted(t *testing.T) {
	cats, tune := catalogs.Fixture(), tuning.Defaults()
	b := state.Empty(tune).Edit()
	b.AddItem("normal_logs", 3)
	st := active(t, cats, b.Build(), "burn_normal")
	d := next(cats, tune, st, goal.ReachSkillLevel{SkillTarget: goal.SkillTarget{Skill: "firemaking", Level: 10}})
	if d.Reason != InputsDepleted || d.Ticks != 120 {
		t.Fatalf("got %+v", d)
	}
}

func TestNext_ItemTarget(t *testing.T) {
	cats, tune := catalogs.Fixture(), tuning.Defaults()
	st := active(t, cats, state.Empty(tune), "normal_tree")
	d := next(cats, tune, st, goal.ReachSkillLevel{SkillTarget: goal.SkillTarget{Skill: "firemaking", Level: 10}})
	if d.Reason != ItemTarget || d.Ticks != 600 {
		t.Fatalf("got %+v", d)
	}
}

func TestNext_Deterministic(t *testing.T) {
	cats, tune := catalogs.Fixture(), tuning.Defaults()
	st := active(t, cats, state.Empty(tune).Edit().AddGP(10).Build(), "fish_shrimp")
	g := goal.ReachGP{Target: 1000}
	a := next(cats, tune, st, g)
	for i := 0; i < 5; i++ {
		if b := next(cats, tune, st, g); !reflect.DeepEqual(a, b) {
			t.Fatalf("not deterministic: %+v vs %+v", a, b)
		}
	}
}
