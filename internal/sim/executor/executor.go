// Package executor replays a plan against the simulator and measures it against its own
// predictions.
package executor

import (
	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/engine"
	"idlecraft.ai/internal/sim/plan"
	"idlecraft.ai/internal/sim/rng"
	"idlecraft.ai/internal/sim/state"
	"idlecraft.ai/internal/sim/tuning"
)

type Outcome string

const (
	// OutcomeExact: every step took its planned ticks and no unplanned boundary was crossed.
	OutcomeExact Outcome = "exact"
	// OutcomeDeviated: some step took a different number of ticks than planned.
	OutcomeDeviated Outcome = "deviated"
	// OutcomeBoundary: execution crossed a boundary the plan did not anticipate.
	OutcomeBoundary Outcome = "boundary"
)

type BoundaryHit struct {
	Step     int           `json:"step"`
	Tick     int64         `json:"tick"`
	Boundary plan.Boundary `json:"boundary"`
	Detail   string        `json:"detail,omitempty"`
}

type StepReport struct {
	Index        int
	Step         plan.Step
	PlannedTicks int64
	ActualTicks  int64
	// Met is false when a wait ended on its tick cap instead of its condition.
	Met        bool
	State      state.GlobalState
	Events     []engine.Event
	Boundaries []BoundaryHit
}

type ExecutionResult struct {
	FinalState           state.GlobalState
	PlannedTicks         int64
	ActualTicks          int64
	TotalDeaths          int
	UnexpectedBoundaries []BoundaryHit
	Outcome              Outcome
}

// ExecutePlan runs every step of p from st. onStepComplete may be nil. Rejected interactions
// and unplanned boundaries are recorded and execution continues.
func ExecutePlan(cats *catalogs.Catalogs, tune tuning.Tuning, st state.GlobalState, p plan.Plan, r *rng.RNG, onStepComplete func(StepReport)) ExecutionResult {
	res := ExecutionResult{Outcome: OutcomeExact}
	deathsAtStart := st.Deaths()
	deviated := false

	for i, s := range p.Steps {
		rep := StepReport{Index: i, Step: s, PlannedTicks: s.Ticks(), Met: true}
		switch s := s.(type) {
		case plan.InteractionStep:
			next, err := engine.Apply(cats, st, s.Interaction)
			if err != nil {
				rep.Boundaries = append(rep.Boundaries, BoundaryHit{Step: i, Tick: st.Tick(), Boundary: plan.BoundaryInteractionRejected, Detail: err.Error()})
			} else {
				st = next
			}
		case plan.WaitStep:
			st, rep = runWait(cats, tune, st, r, rep, s.Until, s.MaxTicks, s.Reason)
		case plan.MacroStep:
			st, rep = runWait(cats, tune, st, r, rep, s.Until, s.MaxTicks, s.Reason)
		}
		rep.State = st
		res.PlannedTicks += rep.PlannedTicks
		res.ActualTicks += rep.ActualTicks
		if rep.ActualTicks != rep.PlannedTicks {
			deviated = true
		}
		res.UnexpectedBoundaries = append(res.UnexpectedBoundaries, rep.Boundaries...)
		if onStepComplete != nil {
			onStepComplete(rep)
		}
	}

	res.FinalState = st
	res.TotalDeaths = st.Deaths() - deathsAtStart
	switch {
	case len(res.UnexpectedBoundaries) > 0:
		res.Outcome = OutcomeBoundary
	case deviated:
		res.Outcome = OutcomeDeviated
	}
	return res
}

func runWait(cats *catalogs.Catalogs, tune tuning.Tuning, st state.GlobalState, r *rng.RNG, rep StepReport, until plan.Condition, maxTicks int64, reason string) (state.GlobalState, StepReport) {
	cond := func(g state.GlobalState) bool { return until.Holds(cats, g) }
	var events []engine.Event
	next, elapsed, met := engine.AdvanceUntil(cats, tune, st, maxTicks, r, cond, func(e engine.Event) { events = append(events, e) })
	rep.ActualTicks = elapsed
	rep.Met = met
	rep.Events = events

	expected, _ := plan.BoundaryForReason(reason)
	for _, hit := range Boundaries(cats, st, next, events) {
		if hit.Boundary == expected {
			continue
		}
		hit.Step = rep.Index
		rep.Boundaries = append(rep.Boundaries, hit)
	}
	return next, rep
}

// Boundaries lists the replan boundaries crossed between before and after, given the events
// emitted in between. Goal and horizon boundaries are the caller's concern.
func Boundaries(cats *catalogs.Catalogs, before, after state.GlobalState, events []engine.Event) []BoundaryHit {
	var out []BoundaryHit
	levels := map[catalogs.Skill]int{}
	for _, e := range events {
		switch e.Kind {
		case engine.EventStopped:
			if e.Reason == engine.StopInputsExhausted {
				out = append(out, BoundaryHit{Tick: e.Tick, Boundary: plan.BoundaryInputsDepleted, Detail: e.Action})
			}
		case engine.EventDropped:
			out = append(out, BoundaryHit{Tick: e.Tick, Boundary: plan.BoundaryInventoryPressure, Detail: e.Item})
		case engine.EventLevelUp:
			from, ok := levels[e.Skill]
			if !ok {
				from = before.Level(e.Skill)
			}
			levels[e.Skill] = e.Level
			// one completion can jump several levels
			for _, a := range cats.ActionsForSkill(e.Skill) {
				if from < a.UnlockLevel && a.UnlockLevel <= e.Level {
					out = append(out, BoundaryHit{Tick: e.Tick, Boundary: plan.BoundaryUnlockObserved, Detail: a.ID})
				}
			}
		}
	}
	for _, p := range cats.Purchases() {
		owned := after.Purchased(p.ID)
		if owned >= p.Limit() {
			continue
		}
		cost := p.Cost.At(owned)
		if before.GP() < cost && after.GP() >= cost {
			out = append(out, BoundaryHit{Tick: after.Tick(), Boundary: plan.BoundaryUpgradeAffordable, Detail: p.ID})
		}
	}
	return out
}
