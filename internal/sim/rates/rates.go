// Package rates turns an action and its modifiers into expected per-tick flows. Nothing here
// samples randomness: drop tables contribute weight / total-weight * mean-quantity.
package rates

import (
	"math"

	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/engine"
	"idlecraft.ai/internal/sim/state"
	"idlecraft.ai/internal/sim/tuning"
)

type Rates struct {
	Action string

	// CycleTicks is the expected time per attempt including stun, respawn and plot waits.
	CycleTicks float64

	XPPerTick      map[catalogs.Skill]float64
	MasteryPerTick float64
	// ItemsPerTick is the net flow: outputs positive, inputs negative.
	ItemsPerTick     map[string]float64
	GPPerTick        float64
	SellValuePerTick float64
	DeathsPerTick    float64
}

func (r Rates) IsZero() bool {
	return r.Action == "" && len(r.XPPerTick) == 0 && len(r.ItemsPerTick) == 0 &&
		r.GPPerTick == 0 && r.SellValuePerTick == 0 && r.DeathsPerTick == 0
}

// CreditsPerTick is direct GP plus the sell value of the net item flow.
func (r Rates) CreditsPerTick() float64 {
	return r.GPPerTick + r.SellValuePerTick
}

func (r Rates) XP(s catalogs.Skill) float64 { return r.XPPerTick[s] }

func (r Rates) Item(id string) float64 { return r.ItemsPerTick[id] }

// Estimate assumes the active action runs forever unchanged. Idle states yield zero rates.
func Estimate(cats *catalogs.Catalogs, tune tuning.Tuning, st state.GlobalState) Rates {
	if st.Active() == nil {
		return Rates{}
	}
	return EstimateAction(cats, tune, st, st.ActiveAction())
}

// EstimateAction is the rate st would see with actionID active.
func EstimateAction(cats *catalogs.Catalogs, tune tuning.Tuning, st state.GlobalState, actionID string) Rates {
	a, ok := cats.Action(actionID)
	if !ok {
		return Rates{}
	}
	mult := engine.DurationMultiplier(cats, st, a.Skill)
	cycle := float64(engine.EffectiveDuration(a.DurationTicks, mult))
	if a.Randomized() {
		cycle = float64(engine.EffectiveDuration(a.DurationTicks, mult)+engine.EffectiveDuration(a.MaxDurationTicks, mult)) / 2
	}

	success := a.SuccessChance(st.Level(a.Skill))
	switch a.Kind {
	case catalogs.KindThieving:
		cycle += (1 - success) * float64(a.StunTicks)
	case catalogs.KindMining:
		cycle += float64(a.RespawnTicks) / float64(a.RockHP)
	case catalogs.KindFarming:
		if tune.FarmingPlots <= 0 {
			return Rates{Action: a.ID, CycleTicks: math.Inf(1)}
		}
		cycle = math.Max(cycle, float64(a.GrowTicks)/float64(tune.FarmingPlots))
	}

	r := Rates{
		Action:       a.ID,
		CycleTicks:   cycle,
		XPPerTick:    map[catalogs.Skill]float64{a.Skill: success * a.XP / cycle},
		ItemsPerTick: map[string]float64{},
	}
	r.MasteryPerTick = r.XPPerTick[a.Skill] * tune.MasteryXPFraction
	r.GPPerTick = success * float64(a.GP) / cycle

	// harvests roll doubling against the planting action too
	doubling := 1 + engine.DoublingChance(cats, st, a)
	for item, n := range a.ExpectedDrops() {
		r.ItemsPerTick[item] += success * n * doubling / cycle
	}
	for _, in := range a.Inputs {
		r.ItemsPerTick[in.Item] -= success * float64(in.Count) / cycle
	}
	for item, flow := range r.ItemsPerTick {
		r.SellValuePerTick += flow * float64(cats.SellValue(item))
	}

	var dmg float64
	switch a.Kind {
	case catalogs.KindThieving:
		dmg = (1 - success) * float64(a.FailDamage) / cycle
	case catalogs.KindCombat:
		dmg = float64(a.DamagePerCompletion) / cycle
	}
	if dmg > 0 {
		regen := 0.0
		if tune.HPRegenEveryTicks > 0 {
			regen = float64(tune.HPRegenAmount) / float64(tune.HPRegenEveryTicks)
		}
		if net := dmg - regen; net > 0 && st.MaxHP() > 0 {
			r.DeathsPerTick = net / float64(st.MaxHP())
		}
	}
	return r
}

// PassiveGPPerTick is income that accrues regardless of the active action.
func PassiveGPPerTick(cats *catalogs.Catalogs, tune tuning.Tuning, st state.GlobalState) float64 {
	if tune.TownshipCycleTicks <= 0 {
		return 0
	}
	return float64(engine.TownshipIncome(cats, st)) / float64(tune.TownshipCycleTicks)
}
