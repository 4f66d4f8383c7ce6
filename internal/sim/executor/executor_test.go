package executor

import (
	"testing"

	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/engine"
	"idlecraft.ai/internal/sim/goal"
	"idlecraft.ai/internal/sim/plan"
	"idlecraft.ai/internal/sim/rng"
	"idlecraft.ai/internal/sim/state"
	"idlecraft.ai/internal/sim/tuning"
)

func woodcuttingPlan(planned int64) plan.Plan {
	g := goal.ReachSkillLevel{SkillTarget: goal.SkillTarget{Skill: "woodcutting", Level: 2}}
	return plan.New(g, 1, []plan.Step{
		plan.InteractionStep{Interaction: engine.SwitchActivity{ActionID: "normal_tree"}},
		plan.WaitStep{Until: plan.GoalReached{Goal: g}, MaxTicks: 2000, PlannedTicks: planned, Action: "normal_tree", Reason: "goal_reached"},
	}, 0)
}

func TestExecuteExact(t *testing.T) {
	cats := catalogs.Fixture()
	tune := tuning.Defaults()
	r := rng.New(1)
	var reports []StepReport
	res := ExecutePlan(cats, tune, state.Empty(tune), woodcuttingPlan(540), &r, func(s StepReport) {
		reports = append(reports, s)
	})
	if res.Outcome != OutcomeExact {
		t.Fatalf("outcome: %s (%+v)", res.Outcome, res.UnexpectedBoundaries)
	}
	if res.ActualTicks != 540 || res.PlannedTicks != 540 {
		t.Fatalf("ticks: planned=%d actual=%d", res.PlannedTicks, res.ActualTicks)
	}
	if res.FinalState.Level("woodcutting") != 2 {
		t.Fatalf("level: %d", res.FinalState.Level("woodcutting"))
	}
	if len(reports) != 2 || !reports[1].Met || reports[1].State.Tick() != 540 {
		t.Fatalf("reports: %+v", reports)
	}
}

func TestExecuteDeviation(t *testing.T) {
	cats := catalogs.Fixture()
	tune := tuning.Defaults()
	r := rng.New(1)
	res := ExecutePlan(cats, tune, state.Empty(tune), woodcuttingPlan(500), &r, nil)
	if res.Outcome != OutcomeDeviated {
		t.Fatalf("outcome: %s", res.Outcome)
	}
	if res.ActualTicks != 540 || res.PlannedTicks != 500 {
		t.Fatalf("ticks: planned=%d actual=%d", res.PlannedTicks, res.ActualTicks)
	}
}

func TestExecuteDeterministic(t *testing.T) {
	cats := catalogs.Fixture()
	tune := tuning.Defaults()
	g := goal.ReachGP{Target: 1000}
	p := plan.New(g, 3, []plan.Step{
		plan.InteractionStep{Interaction: engine.SwitchActivity{ActionID: "pickpocket_man"}},
		plan.WaitStep{Until: plan.HorizonCap{}, MaxTicks: 5000, PlannedTicks: 5000, Action: "pickpocket_man", Reason: "horizon"},
	}, 0)
	run := func() ExecutionResult {
		r := rng.New(3)
		return ExecutePlan(cats, tune, state.Empty(tune), p, &r, nil)
	}
	a, b := run(), run()
	if !a.FinalState.Equal(b.FinalState) || a.TotalDeaths != b.TotalDeaths {
		t.Fatalf("execution is not deterministic")
	}
	if a.FinalState.GP() == 0 {
		t.Fatalf("expected some gp from thieving")
	}
}

func TestExecuteReportsUnexpectedBoundaries(t *testing.T) {
	cats := catalogs.Fixture()
	tune := tuning.Defaults()
	b := state.Empty(tune).Edit()
	b.AddItem("normal_logs", 2)
	st := b.Build()

	g := goal.ReachSkillLevel{SkillTarget: goal.SkillTarget{Skill: "firemaking", Level: 2}}
	p := plan.New(g, 1, []plan.Step{
		plan.InteractionStep{Interaction: engine.BuyUpgrade{PurchaseID: "iron_axe"}},
		plan.InteractionStep{Interaction: engine.SwitchActivity{ActionID: "burn_normal"}},
		plan.WaitStep{Until: plan.HorizonCap{}, MaxTicks: 200, PlannedTicks: 200, Action: "burn_normal", Reason: "horizon"},
	}, 0)
	r := rng.New(1)
	res := ExecutePlan(cats, tune, st, p, &r, nil)
	if res.Outcome != OutcomeBoundary {
		t.Fatalf("outcome: %s", res.Outcome)
	}
	seen := map[plan.Boundary]bool{}
	for _, h := range res.UnexpectedBoundaries {
		seen[h.Boundary] = true
	}
	if !seen[plan.BoundaryInteractionRejected] || !seen[plan.BoundaryInputsDepleted] {
		t.Fatalf("boundaries: %+v", res.UnexpectedBoundaries)
	}
	if res.FinalState.Count("normal_logs") != 0 || res.FinalState.Active() != nil {
		t.Fatalf("final state: %s", res.FinalState)
	}
	if res.ActualTicks != 200 {
		t.Fatalf("an idle wait still runs to its cap, got %d", res.ActualTicks)
	}
}

func TestBoundariesUpgradeAffordable(t *testing.T) {
	cats := catalogs.Fixture()
	tune := tuning.Defaults()
	before := state.Empty(tune)
	after := before.Edit().SetGP(60).Build()
	hits := Boundaries(cats, before, after, nil)
	found := false
	for _, h := range hits {
		if h.Boundary == plan.BoundaryUpgradeAffordable && h.Detail == "iron_axe" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected iron_axe to become affordable: %+v", hits)
	}
}

func TestBoundariesUnlockFromLevelUp(t *testing.T) {
	cats := catalogs.Fixture()
	tune := tuning.Defaults()
	st := state.Empty(tune)
	hits := Boundaries(cats, st, st, []engine.Event{{Kind: engine.EventLevelUp, Skill: "woodcutting", Level: 10}})
	if len(hits) != 1 || hits[0].Detail != "oak_tree" {
		t.Fatalf("hits: %+v", hits)
	}
}

func TestBoundariesUnlockAcrossLevelJump(t *testing.T) {
	cats := catalogs.Fixture()
	tune := tuning.Defaults()
	before := state.Empty(tune).Edit().AddXP("woodcutting", state.XPForLevel(8)).Build()
	after := before.Edit().AddXP("woodcutting", state.XPForLevel(13)-state.XPForLevel(8)).Build()
	events := []engine.Event{
		{Kind: engine.EventLevelUp, Skill: "woodcutting", Level: 12},
		{Kind: engine.EventLevelUp, Skill: "woodcutting", Level: 13},
	}
	hits := Boundaries(cats, before, after, events)
	if len(hits) != 1 || hits[0].Detail != "oak_tree" || hits[0].Boundary != plan.BoundaryUnlockObserved {
		t.Fatalf("hits: %+v", hits)
	}
	if hits := Boundaries(cats, after, after, events[1:]); len(hits) != 0 {
		t.Fatalf("unlock reported twice: %+v", hits)
	}
}
