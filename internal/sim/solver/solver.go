// Package solver searches for a time-optimal plan with best-first search over decision
// points. Edges are interactions (free apart from a fixed overhead) and waits that run the
// simulator until the next predicted decision-relevant threshold.
package solver

import (
	"container/heap"
	"fmt"
	"math"
	"time"

	"idlecraft.ai/internal/protocol"
	"idlecraft.ai/internal/sim/candidates"
	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/delta"
	"idlecraft.ai/internal/sim/engine"
	"idlecraft.ai/internal/sim/goal"
	"idlecraft.ai/internal/sim/plan"
	"idlecraft.ai/internal/sim/rates"
	"idlecraft.ai/internal/sim/rng"
	"idlecraft.ai/internal/sim/state"
	"idlecraft.ai/internal/sim/tuning"
)

type Options struct {
	Seed int64
	// RNG replaces the stream derived from Seed. It is copied, never advanced.
	RNG *rng.RNG

	CollectDiagnostics bool

	// HorizonTicks > 0 stops the search at the first node popped at or past the horizon.
	HorizonTicks int64
	// DisableDominance keeps every node; only useful to cross-check pruning.
	DisableDominance bool
}

// Result variants: Success, Failed, ReplanFailure.
type Result interface {
	result()
}

type Success struct {
	Plan  plan.Plan
	Final state.GlobalState
	// Partial is set when the search ended at the horizon instead of the goal.
	Partial bool
	Replans int
	Profile *Profile
}

type Failed struct {
	Code     string
	Reason   string
	Expanded int
	Enqueued int
	Pruned   int
	// Best progress seen before giving up.
	BestCredits   int64
	BestRemaining float64
	Profile       *Profile
}

func (Success) result() {}
func (Failed) result()  {}

func (f Failed) Error() string { return f.Code + ": " + f.Reason }

// Profile is filled when Options.CollectDiagnostics is set.
type Profile struct {
	Expanded         int            `json:"expanded"`
	Enqueued         int            `json:"enqueued"`
	Pruned           int            `json:"pruned"`
	Dominated        int            `json:"dominated"`
	Unreachable      int            `json:"unreachable"`
	MaxFrontier      int            `json:"max_frontier"`
	InteractionEdges int            `json:"interaction_edges"`
	WaitEdges        int            `json:"wait_edges"`
	WaitReasons      map[string]int `json:"wait_reasons"`
	SimulatedTicks   int64          `json:"simulated_ticks"`
	Elapsed          time.Duration  `json:"elapsed"`
}

const reasonHorizon = "horizon"

type search struct {
	cats   *catalogs.Catalogs
	tune   tuning.Tuning
	g      goal.Goal
	opts   Options
	bounds rates.Bounds

	open  frontier
	dom   *dominance
	seq   int
	prof  Profile
	waits int

	bestRemaining float64
	bestCredits   int64
}

// Solve searches from st toward g. The same inputs always produce the same plan.
func Solve(cats *catalogs.Catalogs, tune tuning.Tuning, st state.GlobalState, g goal.Goal, opts Options) Result {
	started := time.Now()
	s := &search{
		cats:          cats,
		tune:          tune,
		g:             g,
		opts:          opts,
		bounds:        rates.NewBounds(cats, tune),
		dom:           newDominance(cats, tune),
		prof:          Profile{WaitReasons: map[string]int{}},
		bestRemaining: math.Inf(1),
	}
	root := &node{st: st, r: rng.New(opts.Seed)}
	if opts.RNG != nil {
		root.r = *opts.RNG
	}
	res := s.run(root)
	s.prof.Elapsed = time.Since(started)
	switch r := res.(type) {
	case Success:
		if opts.CollectDiagnostics {
			p := s.prof
			r.Profile = &p
		}
		return r
	case Failed:
		r.Expanded, r.Enqueued, r.Pruned = s.prof.Expanded, s.prof.Enqueued, s.prof.Pruned
		r.BestCredits, r.BestRemaining = s.bestCredits, s.bestRemaining
		if opts.CollectDiagnostics {
			p := s.prof
			r.Profile = &p
		}
		return r
	}
	return res
}

func (s *search) run(root *node) Result {
	if !s.push(root) {
		return Failed{Code: protocol.ErrDeadEnd, Reason: "goal is unreachable from the start state"}
	}
	for s.open.Len() > 0 {
		n := heap.Pop(&s.open).(*node)
		if s.g.IsSatisfied(s.cats, n.st) {
			return s.success(n, false)
		}
		if s.opts.HorizonTicks > 0 && n.ticks >= s.opts.HorizonTicks {
			return s.success(n, true)
		}
		if s.prof.Expanded >= s.tune.Solver.MaxExpansions {
			return Failed{Code: protocol.ErrExpansionBudget, Reason: fmt.Sprintf("expanded %d nodes", s.prof.Expanded)}
		}
		s.prof.Expanded++
		s.observe(n)
		s.expand(n)
		if s.prof.Enqueued > s.tune.Solver.MaxEnqueued {
			return Failed{Code: protocol.ErrEnqueueBudget, Reason: fmt.Sprintf("enqueued %d nodes", s.tune.Solver.MaxEnqueued)}
		}
	}
	if s.waits == 0 {
		return Failed{Code: protocol.ErrDeadEnd, Reason: "no reachable action makes progress toward " + s.g.String()}
	}
	return Failed{Code: protocol.ErrSearchExhausted, Reason: "every reachable decision point was explored"}
}

func (s *search) observe(n *node) {
	if rem := s.g.Remaining(s.cats, n.st); rem < s.bestRemaining {
		s.bestRemaining = rem
	}
	if c := n.st.Credits(s.cats); c > s.bestCredits {
		s.bestCredits = c
	}
}

// push scores n and enqueues it unless it is unreachable or dominated.
func (s *search) push(n *node) bool {
	n.h = s.g.LowerBoundTicks(s.cats, n.st, s.bounds)
	if math.IsInf(n.h, 1) {
		s.prof.Pruned++
		s.prof.Unreachable++
		return false
	}
	if !s.opts.DisableDominance && !s.dom.admit(n) {
		s.prof.Pruned++
		s.prof.Dominated++
		return false
	}
	n.seq = s.seq
	s.seq++
	heap.Push(&s.open, n)
	s.prof.Enqueued++
	if l := s.open.Len(); l > s.prof.MaxFrontier {
		s.prof.MaxFrontier = l
	}
	return true
}

func (s *search) expand(n *node) {
	c := candidates.Enumerate(s.cats, s.tune, n.st, s.g)

	if !n.switched {
		for _, id := range c.SwitchTo {
			if id != n.st.ActiveAction() {
				s.interact(n, engine.SwitchActivity{ActionID: id})
			}
		}
	}
	for _, id := range c.BuyUpgrades {
		s.interact(n, engine.BuyUpgrade{PurchaseID: id})
	}
	if c.IncludeSellAll && n.st.SlotsUsed() > 0 {
		s.interact(n, engine.SellAll{})
	}
	s.wait(n, c)
}

func (s *search) interact(n *node, in engine.Interaction) {
	next, err := engine.Apply(s.cats, n.st, in)
	if err != nil {
		return
	}
	_, isSwitch := in.(engine.SwitchActivity)
	child := &node{
		st:           next,
		r:            n.r,
		cost:         n.cost + s.tune.Solver.InteractionOverheadTicks,
		ticks:        n.ticks,
		interactions: n.interactions + 1,
		deaths:       n.deaths,
		switched:     n.switched || isSwitch,
		parent:       n,
		step:         plan.InteractionStep{Interaction: in},
	}
	s.prof.InteractionEdges++
	s.push(child)
}

// wait runs the simulator until the next predicted decision point. The wait edge records the
// condition and cap it ran with, so executing it later reproduces it exactly.
func (s *search) wait(n *node, c candidates.Candidates) {
	if n.st.Active() == nil {
		return
	}
	d := delta.Next(s.cats, s.tune, n.st, s.g, c)
	if d.IsInfinite() || d.Ticks == 0 {
		return
	}
	until, reason := d.Until, string(d.Reason)
	limit := s.tune.Solver.MaxWaitTicks
	if d.Ticks > limit {
		reason = reasonHorizon
	}
	if h := s.opts.HorizonTicks; h > 0 && h-n.ticks < limit {
		limit = h - n.ticks
		if d.Ticks > limit {
			until, reason = plan.HorizonCap{}, reasonHorizon
		}
	}

	r := n.r
	est := rates.Estimate(s.cats, s.tune, n.st)
	next, elapsed, _ := engine.AdvanceUntil(s.cats, s.tune, n.st, limit, &r, func(st state.GlobalState) bool {
		return until.Holds(s.cats, st)
	}, nil)
	if elapsed == 0 {
		return
	}
	s.waits++
	s.prof.WaitEdges++
	s.prof.WaitReasons[reason]++
	s.prof.SimulatedTicks += elapsed
	child := &node{
		st:           next,
		r:            r,
		cost:         n.cost + elapsed,
		ticks:        n.ticks + elapsed,
		interactions: n.interactions,
		deaths:       n.deaths + est.DeathsPerTick*float64(elapsed),
		parent:       n,
		step: plan.WaitStep{
			Until:        until,
			MaxTicks:     limit,
			PlannedTicks: elapsed,
			Action:       n.st.ActiveAction(),
			Reason:       reason,
		},
	}
	s.push(child)
}

func (s *search) success(n *node, partial bool) Success {
	var path []*node
	for p := n; p.parent != nil; p = p.parent {
		path = append(path, p)
	}
	steps := make([]plan.Step, len(path))
	ends := make([]state.GlobalState, len(path))
	for i := range path {
		p := path[len(path)-1-i]
		steps[i], ends[i] = p.step, p.st
	}
	pl := plan.New(s.g, s.opts.Seed, plan.Compress(s.cats, steps, ends), n.deaths)
	pl.CatalogDigest = s.cats.Digest()
	return Success{Plan: pl, Final: n.st, Partial: partial}
}
