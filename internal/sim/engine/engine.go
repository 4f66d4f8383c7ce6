// Package engine advances a GlobalState through time. It jumps from one event to the next
// (completion, respawn, regen, harvest, township payout) instead of stepping single ticks,
// so a multi-hour advance costs one iteration per completion.
package engine

import (
	"math"

	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/rng"
	"idlecraft.ai/internal/sim/state"
	"idlecraft.ai/internal/sim/tuning"
)

// Advance runs st forward by ticks and returns the new state with the events that fired.
// Advance(st, 0) returns st unchanged.
func Advance(cats *catalogs.Catalogs, tune tuning.Tuning, st state.GlobalState, ticks int64, r *rng.RNG) (state.GlobalState, []Event) {
	var events []Event
	out, _, _ := AdvanceUntil(cats, tune, st, ticks, r, nil, func(e Event) { events = append(events, e) })
	return out, events
}

// AdvanceUntil runs st forward until cond holds or maxTicks elapse. cond is evaluated at the
// start and after every event, which is exact for conditions over XP, items, GP or the
// active activity. It returns the elapsed ticks and whether cond was met. sink may be nil.
func AdvanceUntil(cats *catalogs.Catalogs, tune tuning.Tuning, st state.GlobalState, maxTicks int64, r *rng.RNG, cond func(state.GlobalState) bool, sink func(Event)) (state.GlobalState, int64, bool) {
	if cond != nil && cond(st) {
		return st, 0, true
	}
	if maxTicks <= 0 {
		return st, 0, false
	}
	s := &sim{cats: cats, tune: tune, b: st.Edit(), r: r, sink: sink}
	remaining := maxTicks
	for {
		s.prepare()
		if cond != nil && cond(s.b.View()) {
			return s.b.Build(), maxTicks - remaining, true
		}
		if remaining == 0 {
			break
		}
		d := s.nextEventIn(remaining)
		s.elapse(d)
		remaining -= d
		s.fire()
		if cond != nil && cond(s.b.View()) {
			return s.b.Build(), maxTicks - remaining, true
		}
	}
	return s.b.Build(), maxTicks, false
}

type sim struct {
	cats *catalogs.Catalogs
	tune tuning.Tuning
	b    *state.Builder
	r    *rng.RNG
	sink func(Event)

	// blocked: the active action waits on a depleted rock or a free farming plot.
	blocked bool
}

func (s *sim) emit(e Event) {
	if s.sink == nil {
		return
	}
	e.Tick = s.b.View().Tick()
	s.sink(e)
}

// prepare starts a pending cycle (total == 0): it checks inputs, rock and plot availability
// and rolls the cycle length.
func (s *sim) prepare() {
	s.blocked = false
	st := s.b.View()
	act := st.Active()
	if act == nil {
		return
	}
	a, ok := s.cats.Action(act.ActionID())
	if !ok {
		s.b.SetActive(nil)
		return
	}
	if act.Total() > 0 {
		s.blocked = s.isBlocked(st, a)
		return
	}
	for _, in := range a.Inputs {
		if st.Count(in.Item) < in.Count {
			s.stop(a, StopInputsExhausted)
			return
		}
	}
	if s.isBlocked(st, a) {
		s.blocked = true
		return
	}
	total := a.DurationTicks
	if a.Randomized() {
		total = s.r.Range(a.DurationTicks, a.MaxDurationTicks)
	}
	total = EffectiveDuration(total, DurationMultiplier(s.cats, st, a.Skill))
	s.b.SetActive(state.WithProgress(act, 0, total))
}

func (s *sim) isBlocked(st state.GlobalState, a catalogs.ActionDef) bool {
	switch a.Kind {
	case catalogs.KindMining:
		if rock, ok := st.Rock(a.ID); ok && rock.HP <= 0 {
			return true
		}
	case catalogs.KindFarming:
		return len(st.Plots()) >= s.tune.FarmingPlots
	}
	return false
}

func (s *sim) nextEventIn(limit int64) int64 {
	st := s.b.View()
	d := limit
	min := func(v int64) {
		if v < d {
			d = v
		}
	}
	if st.StunTicks() > 0 {
		min(int64(st.StunTicks()))
	} else if act := st.Active(); act != nil && !s.blocked && act.Total() > 0 {
		min(int64(act.Total() - act.Progress()))
	}
	if s.regenerating(st) {
		min(int64(max(st.RegenTicks(), 0)))
	}
	for _, id := range st.RockIDs() {
		if rock, _ := st.Rock(id); rock.RespawnTicks > 0 {
			min(int64(rock.RespawnTicks))
		}
	}
	for _, p := range st.Plots() {
		min(int64(p.TotalTicks - p.GrowthTicks))
	}
	if TownshipIncome(s.cats, st) > 0 {
		min(int64(max(st.TownshipCountdown(), 0)))
	}
	if d < 0 {
		d = 0
	}
	return d
}

func (s *sim) regenerating(st state.GlobalState) bool {
	return s.tune.HPRegenEveryTicks > 0 && s.tune.HPRegenAmount > 0 && st.HP() < st.MaxHP()
}

func (s *sim) elapse(d int64) {
	if d == 0 {
		return
	}
	st := s.b.View()
	s.b.AddTicks(d)
	if st.StunTicks() > 0 {
		s.b.SetStunTicks(st.StunTicks() - int(d))
	} else if act := st.Active(); act != nil && !s.blocked && act.Total() > 0 {
		s.b.SetActive(state.WithProgress(act, act.Progress()+int(d), act.Total()))
	}
	if s.regenerating(st) {
		s.b.SetRegenTicks(st.RegenTicks() - int(d))
	}
	for _, id := range st.RockIDs() {
		if rock, _ := st.Rock(id); rock.RespawnTicks > 0 {
			rock.RespawnTicks -= int(d)
			s.b.SetRock(id, rock)
		}
	}
	if plots := st.Plots(); len(plots) > 0 {
		for i := range plots {
			plots[i].GrowthTicks = min(plots[i].GrowthTicks+int(d), plots[i].TotalTicks)
		}
		s.b.SetPlots(plots)
	}
	if TownshipIncome(s.cats, st) > 0 {
		s.b.SetTownshipCountdown(st.TownshipCountdown() - int(d))
	}
}

// fire processes every timer that reached zero, background systems first.
func (s *sim) fire() {
	st := s.b.View()
	if s.regenerating(st) && st.RegenTicks() <= 0 {
		s.b.SetHP(st.HP() + s.tune.HPRegenAmount)
		s.b.SetRegenTicks(s.tune.HPRegenEveryTicks)
	}
	for _, id := range st.RockIDs() {
		rock, _ := st.Rock(id)
		if rock.HP > 0 || rock.RespawnTicks > 0 {
			continue
		}
		a, _ := s.cats.Action(id)
		s.b.SetRock(id, state.Rock{HP: a.RockHP})
		s.emit(Event{Kind: EventRockRespawned, Action: id})
	}
	if plots := st.Plots(); len(plots) > 0 {
		kept := plots[:0]
		var ready []state.Plot
		for _, p := range plots {
			if p.Ready() {
				ready = append(ready, p)
			} else {
				kept = append(kept, p)
			}
		}
		if len(ready) > 0 {
			s.b.SetPlots(kept)
			for _, p := range ready {
				s.harvest(p)
			}
		}
	}
	if income := TownshipIncome(s.cats, st); income > 0 && st.TownshipCountdown() <= 0 {
		s.b.AddGP(income)
		s.b.SetTownshipCountdown(s.tune.TownshipCycleTicks)
		s.emit(Event{Kind: EventTownshipIncome, GP: income})
	}

	st = s.b.View()
	if act := st.Active(); act != nil && !s.blocked && st.StunTicks() == 0 && act.Total() > 0 && act.Progress() >= act.Total() {
		s.complete(act)
	}
}

func (s *sim) harvest(p state.Plot) {
	a, ok := s.cats.Action(p.Action)
	if !ok {
		return
	}
	drops := s.rollDrops(a)
	s.emit(Event{Kind: EventHarvested, Action: a.ID, Skill: a.Skill})
	s.addDrops(a, drops)
}

func (s *sim) complete(act state.Activity) {
	a, _ := s.cats.Action(act.ActionID())
	st := s.b.View()

	if a.Kind == catalogs.KindThieving && !s.r.Chance(a.SuccessChance(st.Level(a.Skill))) {
		s.b.SetActive(state.WithProgress(act, 0, 0))
		s.b.SetStunTicks(a.StunTicks)
		s.emit(Event{Kind: EventFailed, Action: a.ID, Skill: a.Skill})
		s.damage(a, a.FailDamage)
		return
	}

	for _, in := range a.Inputs {
		n := s.b.RemoveItem(in.Item, in.Count)
		s.emit(Event{Kind: EventItemConsumed, Action: a.ID, Item: in.Item, Count: n})
	}

	before := st.Level(a.Skill)
	s.b.AddXP(a.Skill, a.XP)
	s.b.AddMastery(a.ID, a.XP*s.tune.MasteryXPFraction)
	if a.GP > 0 {
		s.b.AddGP(int64(a.GP))
	}
	s.emit(Event{Kind: EventCompleted, Action: a.ID, Skill: a.Skill, GP: int64(a.GP)})
	if after := s.b.View().Level(a.Skill); after > before {
		s.emit(Event{Kind: EventLevelUp, Skill: a.Skill, Level: after})
	}

	next := state.WithProgress(act, 0, 0)
	if c, ok := next.(state.CombatActivity); ok {
		c.Kills++
		next = c
	}
	s.b.SetActive(next)

	full := false
	switch a.Kind {
	case catalogs.KindFarming:
		plots := s.b.View().Plots()
		s.b.SetPlots(append(plots, state.Plot{Action: a.ID, TotalTicks: a.GrowTicks}))
		s.emit(Event{Kind: EventPlanted, Action: a.ID, Skill: a.Skill})
	default:
		full = s.addDrops(a, s.rollDrops(a))
	}

	if a.Kind == catalogs.KindMining {
		rock, ok := s.b.View().Rock(a.ID)
		if !ok {
			rock = state.Rock{HP: a.RockHP}
		}
		rock.HP--
		if rock.HP <= 0 {
			rock.HP = 0
			rock.RespawnTicks = a.RespawnTicks
			s.emit(Event{Kind: EventRockDepleted, Action: a.ID})
		}
		s.b.SetRock(a.ID, rock)
	}

	if full {
		s.stop(a, StopInventoryFull)
		return
	}
	if a.Kind == catalogs.KindCombat {
		s.damage(a, a.DamagePerCompletion)
	}
}

type drop struct {
	item  string
	count int
}

// rollDrops resolves the action's drop list. RNG draws happen in declaration order, then
// one doubling roll.
func (s *sim) rollDrops(a catalogs.ActionDef) []drop {
	var out []drop
	for _, d := range a.Drops {
		switch d := d.(type) {
		case catalogs.FixedDrop:
			out = append(out, drop{d.Item, d.Count})
		case catalogs.DropTable:
			total := d.TotalWeight()
			for i := 0; i < d.RollCount(); i++ {
				pick := s.r.Intn(total)
				for _, e := range d.Entries {
					if pick < e.Weight {
						if e.Item != "" {
							out = append(out, drop{e.Item, s.r.Range(e.Min, e.Max)})
						}
						break
					}
					pick -= e.Weight
				}
			}
		case catalogs.ChanceDrop:
			if s.r.Chance(d.Chance) {
				out = append(out, drop{d.Item, d.Count})
			}
		}
	}
	if len(out) > 0 && s.r.Chance(DoublingChance(s.cats, s.b.View(), a)) {
		for i := range out {
			out[i].count *= 2
		}
	}
	return out
}

// addDrops puts drops into the inventory and reports whether anything was lost to a full
// inventory.
func (s *sim) addDrops(a catalogs.ActionDef, drops []drop) bool {
	full := false
	for _, d := range drops {
		if s.b.AddItem(d.item, d.count) {
			s.emit(Event{Kind: EventItemGained, Action: a.ID, Item: d.item, Count: d.count})
			continue
		}
		full = true
		s.emit(Event{Kind: EventDropped, Action: a.ID, Item: d.item, Count: d.count})
	}
	return full
}

func (s *sim) damage(a catalogs.ActionDef, dmg int) {
	if dmg <= 0 {
		return
	}
	st := s.b.View()
	if st.HP() >= st.MaxHP() {
		s.b.SetRegenTicks(s.tune.HPRegenEveryTicks)
	}
	hp := st.HP() - dmg
	if hp > 0 {
		s.b.SetHP(hp)
		return
	}
	s.b.SetActive(nil)
	s.b.SetHP(st.MaxHP())
	s.b.SetStunTicks(0)
	s.b.SetRegenTicks(s.tune.HPRegenEveryTicks)
	s.b.AddDeath()
	s.emit(Event{Kind: EventDeath, Action: a.ID, Skill: a.Skill})
	s.emit(Event{Kind: EventStopped, Action: a.ID, Reason: StopDeath})
}

func (s *sim) stop(a catalogs.ActionDef, why StopReason) {
	s.b.SetActive(nil)
	s.blocked = false
	s.emit(Event{Kind: EventStopped, Action: a.ID, Reason: why})
}

// Quiescent reports whether advancing st can change anything but the tick counter.
func Quiescent(cats *catalogs.Catalogs, st state.GlobalState) bool {
	if st.Active() != nil || st.StunTicks() > 0 || st.HP() < st.MaxHP() || len(st.Plots()) > 0 {
		return false
	}
	for _, id := range st.RockIDs() {
		if rock, _ := st.Rock(id); rock.RespawnTicks > 0 {
			return false
		}
	}
	return TownshipIncome(cats, st) == 0
}

// Unbounded is the tick budget used when a caller wants "until done".
const Unbounded = int64(math.MaxInt64 / 4)
