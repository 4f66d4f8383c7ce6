package engine

import (
	"math"

	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/state"
)

// MasteryDoublingPerLevel is the doubling chance each mastery level above 1 adds.
const MasteryDoublingPerLevel = 0.0015

// DurationMultiplier is the product of owned duration reductions for skill.
func DurationMultiplier(cats *catalogs.Catalogs, st state.GlobalState, skill catalogs.Skill) float64 {
	m := 1.0
	for _, id := range st.PurchaseIDs() {
		p, ok := cats.Purchase(id)
		if !ok || p.Effect.Kind != catalogs.EffectDurationMultiplier || p.Effect.Skill != skill {
			continue
		}
		m *= math.Pow(1-p.Effect.Value, float64(st.Purchased(id)))
	}
	return m
}

// EffectiveDuration scales a base duration and never returns less than one tick.
func EffectiveDuration(base int, mult float64) int {
	d := int(math.Round(float64(base) * mult))
	if d < 1 {
		return 1
	}
	return d
}

// DoublingChance is the per-completion chance that every drop is doubled.
func DoublingChance(cats *catalogs.Catalogs, st state.GlobalState, a catalogs.ActionDef) float64 {
	p := float64(st.MasteryLevel(a.ID)-1) * MasteryDoublingPerLevel
	for _, id := range st.PurchaseIDs() {
		pd, ok := cats.Purchase(id)
		if !ok || pd.Effect.Kind != catalogs.EffectDoublingChance {
			continue
		}
		if pd.Effect.Skill != "" && pd.Effect.Skill != a.Skill {
			continue
		}
		p += pd.Effect.Value * float64(st.Purchased(id))
	}
	return math.Max(0, math.Min(p, 1))
}

// TownshipIncome is the GP paid every township cycle.
func TownshipIncome(cats *catalogs.Catalogs, st state.GlobalState) int64 {
	var total float64
	for _, id := range st.PurchaseIDs() {
		p, ok := cats.Purchase(id)
		if !ok || p.Effect.Kind != catalogs.EffectTownshipIncome {
			continue
		}
		total += p.Effect.Value * float64(st.Purchased(id))
	}
	return int64(math.Round(total))
}
