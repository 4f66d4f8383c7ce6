package rates

import (
	"math"

	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/engine"
	"idlecraft.ai/internal/sim/state"
	"idlecraft.ai/internal/sim/tuning"
)

// Bounds are optimistic per-tick rates over the whole catalog: every upgrade owned at its
// limit, every roll successful, no respawn or plot waits, and all inputs free. They never
// underestimate what any reachable state can achieve, so times derived from them are
// admissible search heuristics.
type Bounds struct {
	XPPerTick      map[catalogs.Skill]float64
	CreditsPerTick float64
}

func NewBounds(cats *catalogs.Catalogs, tune tuning.Tuning) Bounds {
	durMult := map[catalogs.Skill]float64{}
	doubling := map[catalogs.Skill]float64{}
	var anyDoubling, township float64
	for _, p := range cats.Purchases() {
		n := float64(p.Limit())
		switch p.Effect.Kind {
		case catalogs.EffectDurationMultiplier:
			if _, ok := durMult[p.Effect.Skill]; !ok {
				durMult[p.Effect.Skill] = 1
			}
			durMult[p.Effect.Skill] *= math.Pow(1-p.Effect.Value, n)
		case catalogs.EffectDoublingChance:
			if p.Effect.Skill == "" {
				anyDoubling += p.Effect.Value * n
			} else {
				doubling[p.Effect.Skill] += p.Effect.Value * n
			}
		case catalogs.EffectTownshipIncome:
			township += p.Effect.Value * n
		}
	}

	b := Bounds{XPPerTick: map[catalogs.Skill]float64{}}
	var bestForeground, farming float64
	for _, id := range sortedActionIDs(cats) {
		a, _ := cats.Action(id)
		mult, ok := durMult[a.Skill]
		if !ok {
			mult = 1
		}
		cycle := float64(engine.EffectiveDuration(a.DurationTicks, mult))
		if xp := a.XP / cycle; xp > b.XPPerTick[a.Skill] {
			b.XPPerTick[a.Skill] = xp
		}

		dbl := 1 + math.Min(1, float64(state.MaxLevel-1)*engine.MasteryDoublingPerLevel+doubling[a.Skill]+anyDoubling)
		var value float64
		for item, n := range a.ExpectedDrops() {
			value += n * float64(cats.SellValue(item))
		}
		if a.Kind == catalogs.KindFarming {
			if tune.FarmingPlots > 0 && a.GrowTicks > 0 {
				farming = math.Max(farming, value*dbl*float64(tune.FarmingPlots)/float64(a.GrowTicks))
			}
			continue
		}
		if c := (float64(a.GP) + value*dbl) / cycle; c > bestForeground {
			bestForeground = c
		}
	}
	b.CreditsPerTick = bestForeground + farming
	if tune.TownshipCycleTicks > 0 {
		b.CreditsPerTick += math.Round(township) / float64(tune.TownshipCycleTicks)
	}
	return b
}

func sortedActionIDs(cats *catalogs.Catalogs) []string {
	var out []string
	for _, s := range cats.Skills.Order {
		out = append(out, cats.Actions.BySkill[s]...)
	}
	return out
}
