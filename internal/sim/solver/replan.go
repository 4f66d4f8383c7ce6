package solver

import (
	"fmt"

	"idlecraft.ai/internal/protocol"
	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/executor"
	"idlecraft.ai/internal/sim/goal"
	"idlecraft.ai/internal/sim/plan"
	"idlecraft.ai/internal/sim/rng"
	"idlecraft.ai/internal/sim/state"
	"idlecraft.ai/internal/sim/tuning"
)

// ReplanFailure ends SolveWithReplanning without reaching the goal. Executed holds the
// segments that did run and Final the state they left behind.
type ReplanFailure struct {
	Code         string
	Reason       string
	Replans      int
	LastBoundary plan.Boundary
	Executed     plan.Plan
	Final        state.GlobalState
	Search       *Failed
}

func (ReplanFailure) result() {}

func (f ReplanFailure) Error() string { return f.Code + ": " + f.Reason }

// SegmentReport is passed to the OnSegment hook after every executed segment.
type SegmentReport struct {
	Index     int
	Boundary  plan.Boundary
	Segment   plan.Plan
	Execution executor.ExecutionResult
}

// ReplanOptions extends Options for SolveWithReplanning.
type ReplanOptions struct {
	Options
	OnSegment func(SegmentReport)
}

const boundaryStart plan.Boundary = "start"

// SolveWithReplanning solves up to a replan boundary, executes that segment, and solves again
// from the state execution actually produced, until the goal holds or max_replans is spent.
// The concatenated plan replays from st with rng.New(opts.Seed) (or *opts.RNG).
func SolveWithReplanning(cats *catalogs.Catalogs, tune tuning.Tuning, st state.GlobalState, g goal.Goal, opts ReplanOptions) Result {
	world := rng.New(opts.Seed)
	if opts.RNG != nil {
		world = *opts.RNG
	}
	combined := plan.New(g, opts.Seed, nil, 0)
	combined.CatalogDigest = cats.Digest()
	last := boundaryStart

	fail := func(code, reason string, replans int, search *Failed) ReplanFailure {
		return ReplanFailure{Code: code, Reason: reason, Replans: replans, LastBoundary: last, Executed: combined, Final: st, Search: search}
	}

	for replans := 0; ; replans++ {
		if g.IsSatisfied(cats, st) {
			return Success{Plan: combined, Final: st, Replans: replans}
		}
		if replans >= tune.Solver.MaxReplans {
			return fail(protocol.ErrReplanBudget, fmt.Sprintf("goal not reached after %d segments", replans), replans, nil)
		}

		segOpts := opts.Options
		snapshot := world
		segOpts.RNG = &snapshot
		segOpts.HorizonTicks = tune.Solver.ReplanHorizonTicks
		var sol Success
		switch r := Solve(cats, tune, st, g, segOpts).(type) {
		case Failed:
			return fail(r.Code, r.Reason, replans, &r)
		case Success:
			sol = r
		}

		steps, boundary := cutAtBoundary(sol.Plan.Steps)
		if boundary == "" {
			boundary = plan.BoundaryGoalReached
			if sol.Partial {
				boundary = plan.BoundaryHorizonCap
			}
		}
		seg := plan.New(g, opts.Seed, steps, segmentDeaths(sol.Plan, steps))
		if seg.TotalTicks == 0 && seg.InteractionCount == 0 {
			return fail(protocol.ErrSearchExhausted, "segment made no progress", replans, nil)
		}

		exec := executor.ExecutePlan(cats, tune, st, seg, &world, nil)
		combined.Append(seg, string(last))
		st = exec.FinalState
		if opts.OnSegment != nil {
			opts.OnSegment(SegmentReport{Index: replans, Boundary: boundary, Segment: seg, Execution: exec})
		}
		last = boundary
	}
}

// cutAtBoundary keeps steps up to and including the first wait that ends on a replan
// boundary.
func cutAtBoundary(steps []plan.Step) ([]plan.Step, plan.Boundary) {
	for i, s := range steps {
		var reason string
		switch s := s.(type) {
		case plan.WaitStep:
			reason = s.Reason
		case plan.MacroStep:
			reason = s.Reason
		default:
			continue
		}
		if b, ok := plan.BoundaryForReason(reason); ok && b != plan.BoundaryGoalReached {
			return steps[:i+1], b
		}
	}
	return steps, ""
}

func segmentDeaths(full plan.Plan, steps []plan.Step) float64 {
	if full.TotalTicks == 0 {
		return 0
	}
	var ticks int64
	for _, s := range steps {
		ticks += s.Ticks()
	}
	return full.ExpectedDeaths * float64(ticks) / float64(full.TotalTicks)
}
