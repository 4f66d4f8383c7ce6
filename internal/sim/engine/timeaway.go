package engine

import (
	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/rng"
	"idlecraft.ai/internal/sim/state"
	"idlecraft.ai/internal/sim/tuning"
)

// TimeAway aggregates what happened over a bulk advance (offline catch-up).
type TimeAway struct {
	Ticks         int64                      `json:"ticks"`
	XPGained      map[catalogs.Skill]float64 `json:"xp_gained,omitempty"`
	LevelsGained  map[catalogs.Skill]int     `json:"levels_gained,omitempty"`
	ItemsGained   map[string]int             `json:"items_gained,omitempty"`
	ItemsConsumed map[string]int             `json:"items_consumed,omitempty"`
	ItemsDropped  map[string]int             `json:"items_dropped,omitempty"`
	GPGained      int64                      `json:"gp_gained"`
	Completions   int                        `json:"completions"`
	Deaths        int                        `json:"deaths"`
	Stopped       StopReason                 `json:"stopped,omitempty"`
}

func newTimeAway() *TimeAway {
	return &TimeAway{
		XPGained:      map[catalogs.Skill]float64{},
		LevelsGained:  map[catalogs.Skill]int{},
		ItemsGained:   map[string]int{},
		ItemsConsumed: map[string]int{},
		ItemsDropped:  map[string]int{},
	}
}

func (t *TimeAway) record(e Event) {
	switch e.Kind {
	case EventCompleted:
		t.Completions++
		t.GPGained += e.GP
	case EventTownshipIncome:
		t.GPGained += e.GP
	case EventItemGained:
		t.ItemsGained[e.Item] += e.Count
	case EventItemConsumed:
		t.ItemsConsumed[e.Item] += e.Count
	case EventDropped:
		t.ItemsDropped[e.Item] += e.Count
	case EventDeath:
		t.Deaths++
	case EventStopped:
		t.Stopped = e.Reason
	}
}

func (t *TimeAway) finish(cats *catalogs.Catalogs, before, after state.GlobalState) {
	t.Ticks = after.Tick() - before.Tick()
	for _, sk := range cats.Skills.Order {
		if d := after.XP(sk) - before.XP(sk); d > 0 {
			t.XPGained[sk] = d
		}
		if d := after.Level(sk) - before.Level(sk); d > 0 {
			t.LevelsGained[sk] = d
		}
	}
}

// ConsumeManyTicks advances exactly ticks and summarizes the result.
func ConsumeManyTicks(cats *catalogs.Catalogs, tune tuning.Tuning, st state.GlobalState, ticks int64, r *rng.RNG) (state.GlobalState, TimeAway) {
	ta := newTimeAway()
	out, _, _ := AdvanceUntil(cats, tune, st, ticks, r, nil, ta.record)
	ta.finish(cats, st, out)
	return out, *ta
}

// ConsumeAllTicks advances until nothing further would change or maxTicks elapse.
func ConsumeAllTicks(cats *catalogs.Catalogs, tune tuning.Tuning, st state.GlobalState, maxTicks int64, r *rng.RNG) (state.GlobalState, TimeAway) {
	ta := newTimeAway()
	quiet := func(g state.GlobalState) bool { return Quiescent(cats, g) }
	out, _, _ := AdvanceUntil(cats, tune, st, maxTicks, r, quiet, ta.record)
	ta.finish(cats, st, out)
	return out, *ta
}
