// Package delta predicts, from steady-state rates alone, how long the current state can run
// before something decision-relevant happens.
package delta

import (
	"math"

	"idlecraft.ai/internal/sim/candidates"
	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/goal"
	"idlecraft.ai/internal/sim/plan"
	"idlecraft.ai/internal/sim/rates"
	"idlecraft.ai/internal/sim/state"
	"idlecraft.ai/internal/sim/tuning"
)

type Reason string

const (
	GoalReached       Reason = "goal_reached"
	UpgradeAffordable Reason = "upgrade_affordable"
	UnlockImminent    Reason = "unlock_imminent"
	InputsDepleted    Reason = "inputs_depleted"
	InventoryPressure Reason = "inventory_pressure"
	ItemTarget        Reason = "item_target"
	DeadEnd           Reason = "dead_end"
)

// Infinite is the delta when current rates make no progress toward any watched threshold.
const Infinite int64 = math.MaxInt64

type Delta struct {
	Ticks  int64
	Reason Reason
	// Until is the state predicate the prediction refers to; nil for dead ends.
	Until plan.Condition
}

func (d Delta) IsInfinite() bool { return d.Ticks == Infinite }

// Next returns the earliest predicted threshold crossing. A satisfied goal always yields
// (0, goal_reached).
func Next(cats *catalogs.Catalogs, tune tuning.Tuning, st state.GlobalState, g goal.Goal, c candidates.Candidates) Delta {
	if g.IsSatisfied(cats, st) {
		return Delta{Ticks: 0, Reason: GoalReached, Until: plan.GoalReached{Goal: g}}
	}
	r := rates.Estimate(cats, tune, st)
	creditRate := r.CreditsPerTick() + rates.PassiveGPPerTick(cats, tune, st)
	credits := st.Credits(cats)

	best := Delta{Ticks: Infinite, Reason: DeadEnd}
	consider := func(ticks int64, why Reason, until plan.Condition) {
		if ticks < best.Ticks {
			best = Delta{Ticks: ticks, Reason: why, Until: until}
		}
	}

	switch g := g.(type) {
	case goal.ReachGP:
		if credits >= g.Target {
			consider(0, GoalReached, plan.CreditsAtLeast{Credits: g.Target})
		} else {
			consider(ticksFor(float64(g.Target-credits), creditRate), GoalReached, plan.CreditsAtLeast{Credits: g.Target})
		}
	default:
		targets := skillTargets(cats, g)
		unmet := 0
		for _, t := range targets {
			if st.Level(t.Skill) < t.Level {
				unmet++
			}
		}
		for _, t := range targets {
			if st.Level(t.Skill) >= t.Level {
				continue
			}
			need := state.XPForLevel(t.Level) - st.XP(t.Skill)
			var until plan.Condition = plan.SkillLevel{Skill: t.Skill, Level: t.Level}
			if unmet == 1 {
				until = plan.GoalReached{Goal: g}
			}
			consider(ticksFor(need, r.XP(t.Skill)), GoalReached, until)
		}
	}

	for _, u := range c.Watch.Upgrades {
		if u.Cost > credits {
			consider(ticksFor(float64(u.Cost-credits), creditRate), UpgradeAffordable, plan.CreditsAtLeast{Credits: u.Cost})
		}
	}

	for _, u := range c.Watch.Unlocks {
		need := state.XPForLevel(u.Level) - st.XP(u.Skill)
		if need > 0 {
			consider(ticksFor(need, r.XP(u.Skill)), UnlockImminent, plan.SkillLevel{Skill: u.Skill, Level: u.Level})
		}
	}

	if a, ok := cats.Action(st.ActiveAction()); ok {
		for _, in := range a.Inputs {
			consider(ticksFor(float64(st.Count(in.Item)), -r.Item(in.Item)), InputsDepleted, plan.InputsDepleted{})
		}
		if c.Watch.Inventory && st.Slots() > 0 &&
			float64(st.SlotsUsed()+1)/float64(st.Slots()) > tune.Solver.SellThreshold {
			for _, item := range a.OutputItems() {
				if st.Count(item) == 0 {
					consider(ticksFor(1, r.Item(item)), InventoryPressure, plan.SlotsUsed{Slots: st.SlotsUsed() + 1})
				}
			}
		}
	}

	for _, it := range c.Watch.Items {
		if have := st.Count(it.Item); have < it.Count {
			consider(ticksFor(float64(it.Count-have), r.Item(it.Item)), ItemTarget, plan.ItemCount{Item: it.Item, Count: it.Count})
		}
	}
	return best
}

func skillTargets(cats *catalogs.Catalogs, g goal.Goal) []goal.SkillTarget {
	switch g := g.(type) {
	case goal.ReachSkillLevel:
		return []goal.SkillTarget{g.SkillTarget}
	case goal.MultiSkill:
		return g.Targets
	case goal.AllSkills:
		return g.Expand(cats).Targets
	}
	return nil
}

// ticksFor is ceil(amount/rate), or Infinite when the rate makes no progress.
func ticksFor(amount, rate float64) int64 {
	if amount <= 0 {
		return 0
	}
	if rate <= 0 || math.IsNaN(rate) {
		return Infinite
	}
	// absorb float noise so exact multiples do not round up a tick
	t := math.Ceil(amount/rate - 1e-9)
	if t >= float64(Infinite/2) {
		return Infinite
	}
	return int64(t)
}
