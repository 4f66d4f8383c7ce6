package meta

import (
	"fmt"
	"log"

	"idlecraft.ai/internal/protocol"
	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/executor"
	"idlecraft.ai/internal/sim/goal"
	"idlecraft.ai/internal/sim/plan"
	"idlecraft.ai/internal/sim/rng"
	"idlecraft.ai/internal/sim/solver"
	"idlecraft.ai/internal/sim/state"
	"idlecraft.ai/internal/sim/tuning"
)

type PhaseStatus string

const (
	PhaseDone PhaseStatus = "done"
	// PhaseRetried: the milestone did not converge and a nearer level was solved instead.
	PhaseRetried PhaseStatus = "retried"
	PhaseFailed  PhaseStatus = "failed"
	// PhaseSkipped: a prerequisite milestone failed.
	PhaseSkipped PhaseStatus = "skipped"
)

type Phase struct {
	Index     int
	Milestone Milestone
	// Target is the level actually solved; lower than Milestone.Level after a retry.
	Target    Milestone
	Status    PhaseStatus
	Attempts  int
	Plan      plan.Plan
	Execution executor.ExecutionResult
	Code      string
	Reason    string
}

type MetaPlan struct {
	Goal   goal.Goal
	Graph  *Graph
	Phases []Phase
	// Plan is every executed phase stitched together; it replays from the initial state.
	Plan     plan.Plan
	Final    state.GlobalState
	Complete bool
	Code     string
	Reason   string
}

// Planner runs phases sequentially; each phase starts from the state the previous one
// actually executed to.
type Planner struct {
	Cats *catalogs.Catalogs
	Tune tuning.Tuning
	Seed int64
	// Replan solves each phase with solver.SolveWithReplanning.
	Replan  bool
	Logger  *log.Logger
	OnPhase func(Phase)
}

// Solve rejects goals that are not skill targets; every other outcome, including
// non-convergence, is reported in the MetaPlan.
func (p *Planner) Solve(st state.GlobalState, metaGoal goal.Goal) (MetaPlan, error) {
	ex := Extractor{Cats: p.Cats, CheckpointStep: p.Tune.Meta.CheckpointStep}
	gr, err := ex.Extract(st, metaGoal)
	if err != nil {
		return MetaPlan{}, err
	}
	mp := MetaPlan{Goal: metaGoal, Graph: gr, Plan: plan.New(metaGoal, p.Seed, nil, 0)}
	mp.Plan.CatalogDigest = p.Cats.Digest()
	world := rng.New(p.Seed)
	failed := map[string]bool{}

	for _, m := range gr.Milestones() {
		if blocked := p.blockedBy(gr, m, failed); blocked != "" {
			failed[m.ID()] = true
			p.record(&mp, Phase{Milestone: m, Target: m, Status: PhaseSkipped, Code: protocol.ErrPhaseNoConverge, Reason: "prerequisite " + blocked + " failed"})
			continue
		}
		for st.Level(m.Skill) < m.Level {
			if len(mp.Phases) >= p.Tune.Meta.MaxPhases {
				mp.Final = st
				mp.Code = protocol.ErrPhaseBudget
				mp.Reason = fmt.Sprintf("max_phases %d reached before %s", p.Tune.Meta.MaxPhases, m.ID())
				return mp, nil
			}
			ph := p.phase(st, m, &world)
			p.record(&mp, ph)
			if ph.Status == PhaseFailed {
				failed[m.ID()] = true
				break
			}
			mp.Plan.Append(ph.Plan, "milestone "+ph.Target.ID())
			st = ph.Execution.FinalState
		}
	}

	mp.Final = st
	mp.Complete = metaGoal.IsSatisfied(p.Cats, st)
	if !mp.Complete && mp.Code == "" {
		mp.Code = protocol.ErrPhaseNoConverge
		mp.Reason = fmt.Sprintf("%d milestones did not converge", len(failed))
	}
	return mp, nil
}

func (p *Planner) record(mp *MetaPlan, ph Phase) {
	ph.Index = len(mp.Phases)
	mp.Phases = append(mp.Phases, ph)
	if p.Logger != nil {
		p.Logger.Printf("phase %d %s target=%s status=%s attempts=%d ticks=%d %s",
			ph.Index, ph.Milestone.ID(), ph.Target.ID(), ph.Status, ph.Attempts, ph.Plan.TotalTicks, ph.Reason)
	}
	if p.OnPhase != nil {
		p.OnPhase(ph)
	}
}

func (p *Planner) blockedBy(gr *Graph, m Milestone, failed map[string]bool) string {
	for _, d := range gr.Deps(m) {
		if failed[d] {
			return d
		}
	}
	return ""
}

// phase solves m within the phase tick budget, retrying at the midpoint between the current
// level and the target while retries are enabled and there is room. On success the plan is
// executed against world.
func (p *Planner) phase(st state.GlobalState, m Milestone, world *rng.RNG) Phase {
	ph := Phase{Milestone: m, Target: m}
	cur := st.Level(m.Skill)
	for {
		ph.Attempts++
		pl, code, reason := p.solveOne(st, ph.Target.Goal(), *world)
		if code == "" {
			ph.Plan = pl
			ph.Execution = executor.ExecutePlan(p.Cats, p.Tune, st, pl, world, nil)
			ph.Status = PhaseDone
			if ph.Target != m {
				ph.Status = PhaseRetried
			}
			return ph
		}
		ph.Code, ph.Reason = code, reason
		if !p.Tune.Meta.RetryOnFailure || ph.Target.Level <= cur+1 {
			ph.Status = PhaseFailed
			return ph
		}
		ph.Target.Level = cur + (ph.Target.Level-cur)/2
	}
}

func (p *Planner) solveOne(st state.GlobalState, g goal.Goal, r rng.RNG) (plan.Plan, string, string) {
	opts := solver.Options{Seed: p.Seed, RNG: &r}
	var res solver.Result
	if p.Replan {
		res = solver.SolveWithReplanning(p.Cats, p.Tune, st, g, solver.ReplanOptions{Options: opts})
	} else {
		res = solver.Solve(p.Cats, p.Tune, st, g, opts)
	}
	switch r := res.(type) {
	case solver.Success:
		if r.Plan.TotalTicks > p.Tune.Meta.PhaseTickBudget {
			return plan.Plan{}, protocol.ErrPhaseNoConverge,
				fmt.Sprintf("%s needs %d ticks, budget is %d", g, r.Plan.TotalTicks, p.Tune.Meta.PhaseTickBudget)
		}
		return r.Plan, "", ""
	case solver.Failed:
		return plan.Plan{}, r.Code, r.Reason
	case solver.ReplanFailure:
		return plan.Plan{}, r.Code, r.Reason
	}
	return plan.Plan{}, protocol.ErrInternal, fmt.Sprintf("unexpected solver result %T", res)
}
