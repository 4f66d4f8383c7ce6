package solver

import (
	"bytes"
	"testing"

	"idlecraft.ai/internal/protocol"
	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/engine"
	"idlecraft.ai/internal/sim/executor"
	"idlecraft.ai/internal/sim/goal"
	"idlecraft.ai/internal/sim/plan"
	"idlecraft.ai/internal/sim/rng"
	"idlecraft.ai/internal/sim/state"
	"idlecraft.ai/internal/sim/tuning"
)

func mustGoal(t *testing.T, cats *catalogs.Catalogs, s string) goal.Goal {
	t.Helper()
	g, err := goal.Parse(cats, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return g
}

func mustSolve(t *testing.T, cats *catalogs.Catalogs, tune tuning.Tuning, st state.GlobalState, g goal.Goal, opts Options) Success {
	t.Helper()
	switch r := Solve(cats, tune, st, g, opts).(type) {
	case Success:
		return r
	case Failed:
		t.Fatalf("solve %s: %s (expanded=%d enqueued=%d)", g, r.Error(), r.Expanded, r.Enqueued)
	}
	t.Fatalf("unexpected result type")
	return Success{}
}

func execute(cats *catalogs.Catalogs, tune tuning.Tuning, st state.GlobalState, p plan.Plan, seed int64) executor.ExecutionResult {
	r := rng.New(seed)
	return executor.ExecutePlan(cats, tune, st, p, &r, nil)
}

func TestSolveGPFromScratch(t *testing.T) {
	cats := catalogs.Fixture()
	tune := tuning.Defaults()
	st := state.Empty(tune)
	g := mustGoal(t, cats, "gp:100")

	sol := mustSolve(t, cats, tune, st, g, Options{Seed: 42})
	switched := false
	for _, s := range sol.Plan.Steps {
		if in, ok := s.(plan.InteractionStep); ok {
			if _, ok := in.Interaction.(engine.SwitchActivity); ok {
				switched = true
			}
		}
	}
	if !switched {
		t.Fatalf("plan never starts an activity: %v", sol.Plan.Describe(cats))
	}
	res := execute(cats, tune, st, sol.Plan, 42)
	if res.FinalState.GP() < 100 {
		t.Fatalf("execution ended with %d gp: %v", res.FinalState.GP(), sol.Plan.Describe(cats))
	}
}

func TestSolveWoodcuttingTen(t *testing.T) {
	cats := catalogs.Fixture()
	tune := tuning.Defaults()
	st := state.Empty(tune)
	g := mustGoal(t, cats, "skill:woodcutting:10")

	sol := mustSolve(t, cats, tune, st, g, Options{Seed: 1})
	if sol.Final.Level("woodcutting") < 10 {
		t.Fatalf("final level %d", sol.Final.Level("woodcutting"))
	}
	// Chopping normal trees alone takes 116 completions of 60 ticks.
	if sol.Plan.TotalTicks <= 0 || sol.Plan.TotalTicks > 116*60 {
		t.Fatalf("plan takes %d ticks", sol.Plan.TotalTicks)
	}
	res := execute(cats, tune, st, sol.Plan, 1)
	if res.FinalState.Level("woodcutting") < 10 {
		t.Fatalf("executed level %d", res.FinalState.Level("woodcutting"))
	}
}

func TestSolveUnreachableSkill(t *testing.T) {
	cats := catalogs.Fixture()
	tune := tuning.Defaults()
	g := mustGoal(t, cats, "skill:runecrafting:2")
	r, ok := Solve(cats, tune, state.Empty(tune), g, Options{Seed: 1}).(Failed)
	if !ok {
		t.Fatalf("expected failure")
	}
	if r.Code != protocol.ErrDeadEnd {
		t.Fatalf("code: %s", r.Code)
	}
}

func TestSolveAlreadySatisfied(t *testing.T) {
	cats := catalogs.Fixture()
	tune := tuning.Defaults()
	st := state.Empty(tune).Edit().SetGP(500).Build()
	sol := mustSolve(t, cats, tune, st, goal.ReachGP{Target: 100}, Options{})
	if len(sol.Plan.Steps) != 0 || sol.Plan.TotalTicks != 0 {
		t.Fatalf("satisfied goal should give an empty plan: %v", sol.Plan.Describe(cats))
	}
}

func TestSolveDeterministic(t *testing.T) {
	cats := catalogs.Fixture()
	tune := tuning.Defaults()
	st := state.Empty(tune)
	g := mustGoal(t, cats, "skill:woodcutting:10")

	a := mustSolve(t, cats, tune, st, g, Options{Seed: 9})
	b := mustSolve(t, cats, tune, st, g, Options{Seed: 9})
	ra, err := plan.Encode(a.Plan)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	rb, _ := plan.Encode(b.Plan)
	if !bytes.Equal(ra, rb) {
		t.Fatalf("plans differ:\n%s\n%s", ra, rb)
	}
}

func TestReplayMatchesPrediction(t *testing.T) {
	cats := catalogs.Fixture()
	tune := tuning.Defaults()
	st := state.Empty(tune)
	for _, gs := range []string{"gp:100", "skill:woodcutting:10", "skill:fishing:5"} {
		g := mustGoal(t, cats, gs)
		sol := mustSolve(t, cats, tune, st, g, Options{Seed: 5})
		res := execute(cats, tune, st, sol.Plan, 5)
		if res.Outcome != executor.OutcomeExact {
			t.Fatalf("%s: outcome %s planned=%d actual=%d boundaries=%+v", gs, res.Outcome, res.PlannedTicks, res.ActualTicks, res.UnexpectedBoundaries)
		}
		if res.ActualTicks != sol.Plan.TotalTicks || !res.FinalState.Equal(sol.Final) {
			t.Fatalf("%s: replay diverged from the solver's prediction", gs)
		}
		if !g.IsSatisfied(cats, res.FinalState) {
			t.Fatalf("%s: replay does not satisfy the goal", gs)
		}
	}
}

func TestDominanceKeepsOptimalCost(t *testing.T) {
	cats := catalogs.Fixture()
	tune := tuning.Defaults()
	empty := state.Empty(tune)
	seeded := state.Empty(tune).Edit()
	seeded.AddItem("potato_seed", 20)
	cases := []struct {
		goal  string
		start state.GlobalState
	}{
		{"gp:60", empty},
		{"skill:woodcutting:5", empty},
		{"skill:fishing:3", empty},
		{"skill:mining:5", empty},
		{"skill:thieving:5", empty},
		{"gp:60", seeded.Build()},
	}
	for _, tc := range cases {
		g := mustGoal(t, cats, tc.goal)
		pruned := mustSolve(t, cats, tune, tc.start, g, Options{Seed: 3})
		full := mustSolve(t, cats, tune, tc.start, g, Options{Seed: 3, DisableDominance: true})
		if a, b := planCost(tune, pruned.Plan), planCost(tune, full.Plan); a != b {
			t.Fatalf("%s from %s: pruned plan costs %d, unpruned %d", tc.goal, tc.start, a, b)
		}
	}
}

// planCost mirrors the search cost: ticks plus a fixed overhead per interaction.
func planCost(tune tuning.Tuning, p plan.Plan) int64 {
	cost := p.TotalTicks
	for _, s := range p.Steps {
		if _, ok := s.(plan.InteractionStep); ok {
			cost += tune.Solver.InteractionOverheadTicks
		}
	}
	return cost
}

func TestSolveExpansionBudget(t *testing.T) {
	cats := catalogs.Fixture()
	tune := tuning.Defaults()
	tune.Solver.MaxExpansions = 1
	g := mustGoal(t, cats, "skill:woodcutting:10")
	r, ok := Solve(cats, tune, state.Empty(tune), g, Options{Seed: 1}).(Failed)
	if !ok || r.Code != protocol.ErrExpansionBudget {
		t.Fatalf("expected %s, got %#v", protocol.ErrExpansionBudget, r)
	}
	if r.Expanded != 1 || r.Enqueued == 0 {
		t.Fatalf("counters: %+v", r)
	}
}

func TestSolveDiagnostics(t *testing.T) {
	cats := catalogs.Fixture()
	tune := tuning.Defaults()
	g := mustGoal(t, cats, "skill:woodcutting:5")
	sol := mustSolve(t, cats, tune, state.Empty(tune), g, Options{Seed: 1, CollectDiagnostics: true})
	if sol.Profile == nil || sol.Profile.Expanded == 0 || sol.Profile.WaitEdges == 0 {
		t.Fatalf("profile: %+v", sol.Profile)
	}
	if sol.Profile.WaitReasons["goal_reached"] == 0 {
		t.Fatalf("wait reasons: %v", sol.Profile.WaitReasons)
	}
	quiet := mustSolve(t, cats, tune, state.Empty(tune), g, Options{Seed: 1})
	if quiet.Profile != nil {
		t.Fatalf("profile collected without being asked for")
	}
}

func TestSolveHorizonIsPartial(t *testing.T) {
	cats := catalogs.Fixture()
	tune := tuning.Defaults()
	g := mustGoal(t, cats, "skill:woodcutting:20")
	sol := mustSolve(t, cats, tune, state.Empty(tune), g, Options{Seed: 1, HorizonTicks: 600})
	if !sol.Partial {
		t.Fatalf("expected a partial plan")
	}
	if sol.Plan.TotalTicks != 600 {
		t.Fatalf("partial plan should stop at the horizon, got %d ticks", sol.Plan.TotalTicks)
	}
}

func TestSolveWithReplanning(t *testing.T) {
	cats := catalogs.Fixture()
	tune := tuning.Defaults()
	tune.Solver.ReplanHorizonTicks = 1500
	st := state.Empty(tune)
	g := mustGoal(t, cats, "skill:woodcutting:10")

	var segments []SegmentReport
	res := SolveWithReplanning(cats, tune, st, g, ReplanOptions{
		Options:   Options{Seed: 11},
		OnSegment: func(s SegmentReport) { segments = append(segments, s) },
	})
	sol, ok := res.(Success)
	if !ok {
		t.Fatalf("expected success, got %#v", res)
	}
	if sol.Final.Level("woodcutting") < 10 || sol.Replans < 2 || len(segments) != sol.Replans {
		t.Fatalf("final level=%d replans=%d segments=%d", sol.Final.Level("woodcutting"), sol.Replans, len(segments))
	}
	if len(sol.Plan.Segments) != sol.Replans || sol.Plan.Segments[0].Reason != "start" {
		t.Fatalf("segment markers: %+v", sol.Plan.Segments)
	}
	replay := execute(cats, tune, st, sol.Plan, 11)
	if !replay.FinalState.Equal(sol.Final) {
		t.Fatalf("concatenated plan does not replay to the same state")
	}
}

func TestSolveWithReplanningBudget(t *testing.T) {
	cats := catalogs.Fixture()
	tune := tuning.Defaults()
	tune.Solver.ReplanHorizonTicks = 300
	tune.Solver.MaxReplans = 2
	g := mustGoal(t, cats, "skill:woodcutting:10")
	res := SolveWithReplanning(cats, tune, state.Empty(tune), g, ReplanOptions{Options: Options{Seed: 1}})
	f, ok := res.(ReplanFailure)
	if !ok || f.Code != protocol.ErrReplanBudget {
		t.Fatalf("expected %s, got %#v", protocol.ErrReplanBudget, res)
	}
	if f.Replans != 2 || f.Executed.TotalTicks == 0 || f.Final.XP("woodcutting") == 0 {
		t.Fatalf("failure: replans=%d ticks=%d", f.Replans, f.Executed.TotalTicks)
	}
}

func TestSolveWithReplanningDeadEnd(t *testing.T) {
	cats := catalogs.Fixture()
	tune := tuning.Defaults()
	g := mustGoal(t, cats, "skill:runecrafting:2")
	res := SolveWithReplanning(cats, tune, state.Empty(tune), g, ReplanOptions{Options: Options{Seed: 1}})
	f, ok := res.(ReplanFailure)
	if !ok || f.Code != protocol.ErrDeadEnd || f.Search == nil || f.LastBoundary != "start" {
		t.Fatalf("expected dead end, got %#v", res)
	}
}
