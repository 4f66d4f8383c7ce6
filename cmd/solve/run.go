package main

import (
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"idlecraft.ai/internal/persistence/archive"
	"idlecraft.ai/internal/persistence/indexdb"
	persistlog "idlecraft.ai/internal/persistence/log"
	"idlecraft.ai/internal/persistence/planfile"
	"idlecraft.ai/internal/persistence/r2s3"
	"idlecraft.ai/internal/persistence/snapshot"
	"idlecraft.ai/internal/protocol"
	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/executor"
	"idlecraft.ai/internal/sim/goal"
	"idlecraft.ai/internal/sim/meta"
	"idlecraft.ai/internal/sim/plan"
	"idlecraft.ai/internal/sim/rng"
	"idlecraft.ai/internal/sim/solver"
	"idlecraft.ai/internal/sim/state"
	"idlecraft.ai/internal/sim/tuning"
	"idlecraft.ai/internal/transport/observer"
)

const (
	modeSolve  = "single"
	modeReplan = "replan"
	modeMeta   = "meta"
)

type runner struct {
	cats   *catalogs.Catalogs
	tune   tuning.Tuning
	logger *log.Logger
	idx    indexdb.Index
	trace  *persistlog.TraceLogger
	obs    *observer.Server
	mirror *r2s3.Mirror

	runID   string
	mode    string
	seed    int64
	diag    bool
	verbose bool
	execute bool
	// metaReplan solves every meta phase with replanning.
	metaReplan bool

	outPath   string
	reproDir  string
	ckptDir   string
	startedAt time.Time
}

// summary is printed to stdout as the command's result.
type summary struct {
	RunID          string          `json:"run_id"`
	Mode           string          `json:"mode"`
	Goal           string          `json:"goal"`
	Seed           int64           `json:"seed"`
	Outcome        string          `json:"outcome"`
	Code           string          `json:"code,omitempty"`
	Reason         string          `json:"reason,omitempty"`
	PlannedTicks   int64           `json:"planned_ticks"`
	ActualTicks    int64           `json:"actual_ticks,omitempty"`
	Interactions   int             `json:"interactions"`
	Steps          int             `json:"steps"`
	ExpectedDeaths float64         `json:"expected_deaths"`
	Deaths         int             `json:"deaths,omitempty"`
	Replans        int             `json:"replans,omitempty"`
	Phases         int             `json:"phases,omitempty"`
	PlanPath       string          `json:"plan_path,omitempty"`
	BundlePath     string          `json:"bundle_path,omitempty"`
	Profile        *solver.Profile `json:"profile,omitempty"`
}

func (r *runner) run(st state.GlobalState, g goal.Goal) summary {
	sum := summary{RunID: r.runID, Mode: r.mode, Goal: g.String(), Seed: r.seed}

	var (
		p    plan.Plan
		ok   bool
		fail failure
	)
	switch r.mode {
	case modeMeta:
		p, ok, fail = r.solveMeta(st, g, &sum)
	case modeReplan:
		p, ok, fail = r.solveReplan(st, g, &sum)
	default:
		p, ok, fail = r.solveOnce(st, g, &sum)
	}

	sum.PlannedTicks = p.TotalTicks
	sum.Interactions = p.InteractionCount
	sum.Steps = len(p.Steps)
	sum.ExpectedDeaths = p.ExpectedDeaths

	if ok && r.outPath != "" {
		if err := planfile.Write(r.outPath, p); err != nil {
			r.logger.Printf("write plan: %v", err)
		} else {
			sum.PlanPath = r.outPath
			r.mirror.Enqueue(r2s3.Artifact{RunID: r.runID, Kind: r2s3.KindPlan, Path: r.outPath})
		}
	}
	if r.verbose {
		for i, line := range p.Describe(r.cats) {
			r.logger.Printf("step %d: %s", i, line)
		}
	}

	sum.Outcome = "solved"
	if !ok {
		sum.Outcome = "failed"
		sum.Code = fail.Code
		sum.Reason = fail.Reason
		if r.reproDir != "" {
			path, err := r.writeBundle(st, g, fail)
			if err != nil {
				r.logger.Printf("write repro bundle: %v", err)
			} else {
				sum.BundlePath = path
				r.mirror.Enqueue(r2s3.Artifact{RunID: r.runID, Kind: r2s3.KindRepro, Path: path})
			}
		}
		if r.idx != nil {
			r.idx.RecordFailure(indexdb.FailureRow{
				RunID: r.runID, Code: fail.Code, Reason: fail.Reason,
				Expanded: fail.Expanded, Enqueued: fail.Enqueued, Pruned: fail.Pruned,
				BestCredits: fail.BestCredits, BundlePath: sum.BundlePath,
			})
		}
	}

	if ok && (r.execute || r.trace != nil || r.obs != nil) {
		res := r.executePlan(st, p)
		sum.Outcome = string(res.Outcome)
		sum.ActualTicks = res.ActualTicks
		sum.Deaths = res.TotalDeaths
	}

	if r.obs != nil && !ok {
		_ = r.obs.RunEnd(r.runID, sum.Outcome, sum.Code, executor.ExecutionResult{})
	}
	if r.idx != nil {
		r.idx.RecordRun(indexdb.RunRow{
			RunID:          r.runID,
			Goal:           sum.Goal,
			Mode:           r.mode,
			Seed:           r.seed,
			Outcome:        sum.Outcome,
			Code:           sum.Code,
			PlannedTicks:   sum.PlannedTicks,
			ActualTicks:    sum.ActualTicks,
			Interactions:   sum.Interactions,
			Deaths:         sum.Deaths,
			ExpectedDeaths: sum.ExpectedDeaths,
			CatalogDigest:  r.cats.Digest(),
			TuningDigest:   indexdb.TuningDigest(r.tune),
			PlanPath:       sum.PlanPath,
			StartedAt:      r.startedAt,
			FinishedAt:     time.Now().UTC(),
		})
	}
	return sum
}

// failure is the common shape of search, replan and phase failures.
type failure struct {
	Code        string
	Reason      string
	Expanded    int
	Enqueued    int
	Pruned      int
	BestCredits int64
	Replans     int
}

func fromFailed(f solver.Failed) failure {
	return failure{Code: f.Code, Reason: f.Reason, Expanded: f.Expanded, Enqueued: f.Enqueued, Pruned: f.Pruned, BestCredits: f.BestCredits}
}

func (r *runner) solveOnce(st state.GlobalState, g goal.Goal, sum *summary) (plan.Plan, bool, failure) {
	res := solver.Solve(r.cats, r.tune, st, g, solver.Options{Seed: r.seed, CollectDiagnostics: r.diag})
	switch res := res.(type) {
	case solver.Success:
		sum.Profile = res.Profile
		r.logProfile(res.Profile)
		return res.Plan, true, failure{}
	case solver.Failed:
		sum.Profile = res.Profile
		r.logProfile(res.Profile)
		return plan.Plan{}, false, fromFailed(res)
	}
	return plan.Plan{}, false, failure{Code: protocol.ErrInternal, Reason: fmt.Sprintf("unexpected result %T", res)}
}

func (r *runner) solveReplan(st state.GlobalState, g goal.Goal, sum *summary) (plan.Plan, bool, failure) {
	opts := solver.ReplanOptions{
		Options: solver.Options{Seed: r.seed, CollectDiagnostics: r.diag},
		OnSegment: func(seg solver.SegmentReport) {
			r.logger.Printf("segment %d (%s): %d steps, %d ticks planned, %d executed (%s)",
				seg.Index, seg.Boundary, len(seg.Segment.Steps), seg.Segment.TotalTicks,
				seg.Execution.ActualTicks, seg.Execution.Outcome)
		},
	}
	res := solver.SolveWithReplanning(r.cats, r.tune, st, g, opts)
	switch res := res.(type) {
	case solver.Success:
		sum.Replans = res.Replans
		sum.Profile = res.Profile
		r.logProfile(res.Profile)
		return res.Plan, true, failure{}
	case solver.ReplanFailure:
		sum.Replans = res.Replans
		f := failure{Code: res.Code, Reason: res.Reason, Replans: res.Replans}
		if res.Search != nil {
			f = fromFailed(*res.Search)
			f.Replans = res.Replans
			sum.Profile = res.Search.Profile
		}
		r.logger.Printf("replanning stopped after %d replans at boundary %s", res.Replans, res.LastBoundary)
		return res.Executed, false, f
	case solver.Failed:
		return plan.Plan{}, false, fromFailed(res)
	}
	return plan.Plan{}, false, failure{Code: protocol.ErrInternal, Reason: fmt.Sprintf("unexpected result %T", res)}
}

func (r *runner) solveMeta(st state.GlobalState, g goal.Goal, sum *summary) (plan.Plan, bool, failure) {
	pl := &meta.Planner{
		Cats:   r.cats,
		Tune:   r.tune,
		Seed:   r.seed,
		Replan: r.metaReplan,
		Logger: r.logger,
		OnPhase: func(ph meta.Phase) {
			r.checkpoint(ph)
			if r.obs != nil {
				_ = r.obs.Phase(r.runID, ph)
			}
			if r.idx != nil {
				r.idx.RecordPhase(indexdb.PhaseRow{
					RunID:        r.runID,
					Index:        ph.Index,
					Milestone:    ph.Milestone.ID(),
					Target:       ph.Target.ID(),
					Status:       string(ph.Status),
					Attempts:     ph.Attempts,
					PlannedTicks: ph.Plan.TotalTicks,
					ActualTicks:  ph.Execution.ActualTicks,
					Code:         ph.Code,
				})
			}
		},
	}
	mp, err := pl.Solve(st, g)
	if err != nil {
		return plan.Plan{}, false, failure{Code: protocol.ErrBadGoal, Reason: err.Error()}
	}
	sum.Phases = len(mp.Phases)
	if !mp.Complete {
		return mp.Plan, false, failure{Code: mp.Code, Reason: mp.Reason}
	}
	return mp.Plan, true, failure{}
}

// checkpoint archives the state a converged phase executed to.
func (r *runner) checkpoint(ph meta.Phase) {
	if r.ckptDir == "" || (ph.Status != meta.PhaseDone && ph.Status != meta.PhaseRetried) {
		return
	}
	path, err := archive.ArchiveMilestone(filepath.Join(r.ckptDir, r.runID), archive.MilestoneMeta{
		RunID:     r.runID,
		Phase:     ph.Index,
		Milestone: ph.Milestone.ID(),
		Target:    ph.Target.ID(),
		Status:    string(ph.Status),
		Seed:      r.seed,
	}, state.ExportSnapshot(ph.Execution.FinalState))
	if err != nil {
		r.logger.Printf("checkpoint phase %d: %v", ph.Index, err)
		return
	}
	r.logger.Printf("checkpoint phase %d (%s): %s", ph.Index, ph.Target.ID(), path)
}

func (r *runner) logProfile(p *solver.Profile) {
	if p == nil {
		return
	}
	b, _ := json.Marshal(p)
	r.logger.Printf("profile: %s", b)
}

// executePlan replays p from st with the plan's own seed and fans step reports out to the
// trace files, the index and the observer feed.
func (r *runner) executePlan(st state.GlobalState, p plan.Plan) executor.ExecutionResult {
	if r.obs != nil {
		_ = r.obs.RunStart(r.runID, r.mode, p)
	}
	world := rng.New(p.Seed)
	res := executor.ExecutePlan(r.cats, r.tune, st, p, &world, func(rep executor.StepReport) {
		desc := plan.Describe(r.cats, rep.Step)
		kind := observer.StepKind(rep.Step)
		if r.trace != nil {
			rec := persistlog.StepRecord{
				RunID: r.runID, Index: rep.Index, Kind: kind, Description: desc,
				PlannedTicks: rep.PlannedTicks, ActualTicks: rep.ActualTicks,
				Tick: rep.State.Tick(), GP: rep.State.GP(), Met: rep.Met,
			}
			for _, b := range rep.Boundaries {
				rec.Boundaries = append(rec.Boundaries, string(b.Boundary))
			}
			if err := r.trace.WriteStep(rec); err != nil {
				r.logger.Printf("trace: %v", err)
			}
			for _, ev := range rep.Events {
				_ = r.trace.WriteEvent(persistlog.EventRecord{RunID: r.runID, Step: rep.Index, Event: ev})
			}
		}
		if r.idx != nil {
			r.idx.RecordStep(indexdb.StepRow{
				RunID: r.runID, Index: rep.Index, Kind: kind, Description: desc,
				PlannedTicks: rep.PlannedTicks, ActualTicks: rep.ActualTicks,
				Tick: rep.State.Tick(), GP: rep.State.GP(),
			})
		}
		if r.obs != nil {
			_ = r.obs.Step(r.cats, r.runID, rep)
		}
		if r.verbose && rep.ActualTicks != rep.PlannedTicks {
			r.logger.Printf("step %d deviated: planned %d actual %d", rep.Index, rep.PlannedTicks, rep.ActualTicks)
		}
	})
	for _, b := range res.UnexpectedBoundaries {
		r.logger.Printf("unexpected boundary at step %d tick %d: %s %s", b.Step, b.Tick, b.Boundary, b.Detail)
	}
	if r.obs != nil {
		_ = r.obs.RunEnd(r.runID, string(res.Outcome), "", res)
	}
	return res
}

func (r *runner) writeBundle(st state.GlobalState, g goal.Goal, f failure) (string, error) {
	tuneJSON, err := json.Marshal(r.tune)
	if err != nil {
		return "", err
	}
	b := snapshot.ReproBundleV1{
		Goal:          g.String(),
		Seed:          r.seed,
		Mode:          r.mode,
		MetaReplan:    r.mode == modeMeta && r.metaReplan,
		CatalogDigest: r.cats.Digest(),
		Tuning:        tuneJSON,
		State:         state.ExportSnapshot(st),
		Failure: snapshot.FailureV1{
			Code:        f.Code,
			Reason:      f.Reason,
			Expanded:    f.Expanded,
			Enqueued:    f.Enqueued,
			Pruned:      f.Pruned,
			BestCredits: f.BestCredits,
			Replans:     f.Replans,
		},
	}
	path := filepath.Join(r.reproDir, r.runID+".repro.zst")
	if err := snapshot.WriteBundle(path, b); err != nil {
		return "", err
	}
	r.logger.Printf("repro bundle: %s", path)
	return path, nil
}
