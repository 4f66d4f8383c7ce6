// Package plan holds solver output: ordered steps that can be re-executed without solving.
package plan

import (
	"fmt"

	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/engine"
	"idlecraft.ai/internal/sim/goal"
	"idlecraft.ai/internal/sim/state"
)

// Step variants: InteractionStep, WaitStep, MacroStep.
type Step interface {
	// Ticks is the planned duration of the step.
	Ticks() int64
	step()
}

type InteractionStep struct {
	Interaction engine.Interaction
}

// WaitStep advances until Until holds or MaxTicks pass.
type WaitStep struct {
	Until        Condition
	MaxTicks     int64
	PlannedTicks int64
	Action       string
	Reason       string
}

// MacroStep is a run of waits under one action, compressed into a single termination
// condition. Executing it reproduces the merged waits exactly.
type MacroStep struct {
	Until        Condition
	MaxTicks     int64
	PlannedTicks int64
	Action       string
	Reason       string
	Merged       int
}

func (InteractionStep) step() {}
func (WaitStep) step()        {}
func (MacroStep) step()       {}

func (s InteractionStep) Ticks() int64 { return 0 }
func (s WaitStep) Ticks() int64        { return s.PlannedTicks }
func (s MacroStep) Ticks() int64       { return s.PlannedTicks }

type Segment struct {
	StartStep int    `json:"start_step"`
	Reason    string `json:"reason"`
}

type Plan struct {
	Goal          goal.Goal
	Seed          int64
	CatalogDigest string
	Steps         []Step

	TotalTicks       int64
	InteractionCount int
	ExpectedDeaths   float64
	Segments         []Segment
}

// New computes the aggregate stats from steps.
func New(g goal.Goal, seed int64, steps []Step, expectedDeaths float64) Plan {
	p := Plan{Goal: g, Seed: seed, Steps: steps, ExpectedDeaths: expectedDeaths}
	p.recount()
	return p
}

func (p *Plan) recount() {
	p.TotalTicks, p.InteractionCount = 0, 0
	for _, s := range p.Steps {
		p.TotalTicks += s.Ticks()
		if _, ok := s.(InteractionStep); ok {
			p.InteractionCount++
		}
	}
}

// Append concatenates q onto p and records a segment marker at the seam.
func (p *Plan) Append(q Plan, reason string) {
	p.Segments = append(p.Segments, Segment{StartStep: len(p.Steps), Reason: reason})
	p.Steps = append(p.Steps, q.Steps...)
	p.ExpectedDeaths += q.ExpectedDeaths
	p.recount()
}

// Describe renders one step for humans.
func Describe(cats *catalogs.Catalogs, s Step) string {
	switch s := s.(type) {
	case InteractionStep:
		return describeInteraction(cats, s.Interaction)
	case WaitStep:
		return fmt.Sprintf("wait ~%d ticks (%s) until %s", s.PlannedTicks, actionName(cats, s.Action), s.Until)
	case MacroStep:
		return fmt.Sprintf("%s for ~%d ticks until %s [%d waits]", actionName(cats, s.Action), s.PlannedTicks, s.Until, s.Merged)
	}
	return fmt.Sprintf("unknown step %T", s)
}

func describeInteraction(cats *catalogs.Catalogs, in engine.Interaction) string {
	switch in := in.(type) {
	case engine.SwitchActivity:
		return "switch to " + actionName(cats, in.ActionID)
	case engine.BuyUpgrade:
		if p, ok := cats.Purchase(in.PurchaseID); ok && p.Name != "" {
			return "buy " + p.Name
		}
		return "buy " + in.PurchaseID
	case engine.SellAll:
		return "sell all"
	case engine.StopActivity:
		return "stop"
	}
	return fmt.Sprintf("unknown interaction %T", in)
}

func actionName(cats *catalogs.Catalogs, id string) string {
	if id == "" {
		return "idle"
	}
	if a, ok := cats.Action(id); ok && a.Name != "" {
		return a.Name
	}
	return id
}

// Describe renders every step, numbered.
func (p Plan) Describe(cats *catalogs.Catalogs) []string {
	out := make([]string, 0, len(p.Steps))
	for i, s := range p.Steps {
		out = append(out, fmt.Sprintf("%3d. %s", i+1, Describe(cats, s)))
	}
	return out
}

// Compress merges consecutive waits under the same action into MacroSteps. ends[i] is the
// state after steps[i]. A run is merged only while the final condition is monotone and
// false at every intermediate end, which keeps execution of the macro identical to the
// waits it replaces.
func Compress(cats *catalogs.Catalogs, steps []Step, ends []state.GlobalState) []Step {
	out := make([]Step, 0, len(steps))
	for i := 0; i < len(steps); {
		w, ok := steps[i].(WaitStep)
		if !ok {
			out = append(out, steps[i])
			i++
			continue
		}
		j := i + 1
		for j < len(steps) {
			next, ok := steps[j].(WaitStep)
			if !ok || next.Action != w.Action || !next.Until.Monotone() {
				break
			}
			clean := true
			for k := i; k < j; k++ {
				if next.Until.Holds(cats, ends[k]) {
					clean = false
					break
				}
			}
			if !clean {
				break
			}
			j++
		}
		if j == i+1 {
			out = append(out, w)
			i++
			continue
		}
		last := steps[j-1].(WaitStep)
		m := MacroStep{Until: last.Until, Action: w.Action, Reason: last.Reason, Merged: j - i}
		for k := i; k < j; k++ {
			m.PlannedTicks += steps[k].Ticks()
		}
		m.MaxTicks = m.PlannedTicks - last.PlannedTicks + last.MaxTicks
		out = append(out, m)
		i = j
	}
	return out
}
