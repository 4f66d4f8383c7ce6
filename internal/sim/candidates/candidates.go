// Package candidates narrows the catalog down to the interactions worth trying next and the
// thresholds that would change that set.
package candidates

import (
	"sort"

	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/goal"
	"idlecraft.ai/internal/sim/rates"
	"idlecraft.ai/internal/sim/state"
	"idlecraft.ai/internal/sim/tuning"
)

type Candidates struct {
	SwitchTo       []string
	BuyUpgrades    []string
	IncludeSellAll bool
	Watch          Watch
}

// Watch lists thresholds that would change the candidate set once crossed.
type Watch struct {
	Unlocks  []Unlock
	Upgrades []Upgrade
	Items    []ItemTarget
	// Inventory is set when the active action can fill new slots.
	Inventory bool
}

type Unlock struct {
	Skill  catalogs.Skill
	Level  int
	Action string
}

type Upgrade struct {
	Purchase string
	Cost     int64
}

type ItemTarget struct {
	Item  string
	Count int
}

type scored struct {
	id    string
	value float64
}

func rank(s []scored) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].value != s[j].value {
			return s[i].value > s[j].value
		}
		return s[i].id < s[j].id
	})
}

// Enumerate is deterministic: identical inputs give identical output, order included.
func Enumerate(cats *catalogs.Catalogs, tune tuning.Tuning, st state.GlobalState, g goal.Goal) Candidates {
	e := enumerator{cats: cats, tune: tune, st: st, g: g, seen: map[string]bool{}}
	_, e.gpGoal = g.(goal.ReachGP)
	e.skills = e.relevantSkills()

	var c Candidates
	c.SwitchTo = e.switchTargets()
	c.BuyUpgrades, c.Watch.Upgrades = e.upgrades()
	c.Watch.Unlocks = e.unlocks()
	c.Watch.Items = e.itemTargets()
	c.Watch.Inventory = e.tracksInventory()
	c.IncludeSellAll = e.sellAll(c.Watch.Upgrades)
	return c
}

type enumerator struct {
	cats   *catalogs.Catalogs
	tune   tuning.Tuning
	st     state.GlobalState
	g      goal.Goal
	gpGoal bool
	skills []catalogs.Skill
	seen   map[string]bool
}

// relevantSkills are the unmet goal skills; a GP goal can use every skill.
func (e *enumerator) relevantSkills() []catalogs.Skill {
	if e.gpGoal {
		return e.cats.Skills.Order
	}
	var out []catalogs.Skill
	for _, s := range e.g.Skills(e.cats) {
		if e.st.Level(s) < e.targetLevel(s) {
			out = append(out, s)
		}
	}
	return out
}

func (e *enumerator) targetLevel(s catalogs.Skill) int {
	switch g := e.g.(type) {
	case goal.ReachSkillLevel:
		return g.Level
	case goal.MultiSkill:
		for _, t := range g.Targets {
			if t.Skill == s {
				return t.Level
			}
		}
	case goal.AllSkills:
		return g.Level
	}
	return state.MaxLevel
}

func (e *enumerator) unlocked(a catalogs.ActionDef) bool {
	return e.st.Level(a.Skill) >= a.UnlockLevel
}

func (e *enumerator) hasInputs(a catalogs.ActionDef) bool {
	for _, in := range a.Inputs {
		if e.st.Count(in.Item) < in.Count {
			return false
		}
	}
	return true
}

func (e *enumerator) value(a catalogs.ActionDef) float64 {
	r := rates.EstimateAction(e.cats, e.tune, e.st, a.ID)
	if e.gpGoal {
		return r.CreditsPerTick()
	}
	return r.XP(a.Skill)
}

func (e *enumerator) add(out *[]string, id string) {
	if id == e.st.ActiveAction() || e.seen[id] {
		return
	}
	e.seen[id] = true
	*out = append(*out, id)
}

func (e *enumerator) switchTargets() []string {
	var out []string
	k := e.tune.Solver.MaxCandidatesPerSkill
	if e.gpGoal {
		var all []scored
		for _, s := range e.skills {
			for _, a := range e.cats.ActionsForSkill(s) {
				if !e.unlocked(a) || !e.hasInputs(a) {
					continue
				}
				if v := e.value(a); v > 0 {
					all = append(all, scored{a.ID, v})
				}
			}
		}
		rank(all)
		for i := 0; i < len(all) && i < 2*k; i++ {
			e.add(&out, all[i].id)
		}
		return out
	}

	for _, s := range e.skills {
		var ready []scored
		var starved []catalogs.ActionDef
		for _, a := range e.cats.ActionsForSkill(s) {
			if !e.unlocked(a) {
				continue
			}
			if !e.hasInputs(a) {
				starved = append(starved, a)
				continue
			}
			if v := e.value(a); v > 0 {
				ready = append(ready, scored{a.ID, v})
			}
		}
		rank(ready)
		for i := 0; i < len(ready) && i < k; i++ {
			e.add(&out, ready[i].id)
		}
		// Gatherers for the best starved consumers.
		sort.SliceStable(starved, func(i, j int) bool {
			return e.value(starved[i]) > e.value(starved[j])
		})
		for i := 0; i < len(starved) && i < k; i++ {
			for _, in := range starved[i].Inputs {
				if e.st.Count(in.Item) < in.Count {
					e.addProducer(&out, in.Item, 2)
				}
			}
		}
	}
	return out
}

// addProducer adds the unlocked action producing item fastest, recursing into its own
// missing inputs up to depth.
func (e *enumerator) addProducer(out *[]string, item string, depth int) {
	var best scored
	var bestDef catalogs.ActionDef
	for _, id := range e.cats.Producers(item) {
		a, _ := e.cats.Action(id)
		if !e.unlocked(a) {
			continue
		}
		r := rates.EstimateAction(e.cats, e.tune, e.st, id)
		v := r.Item(item)
		if v > best.value || (v == best.value && v > 0 && id < best.id) {
			best, bestDef = scored{id, v}, a
		}
	}
	if best.id == "" {
		return
	}
	e.add(out, best.id)
	if depth <= 1 {
		return
	}
	for _, in := range bestDef.Inputs {
		if e.st.Count(in.Item) < in.Count {
			e.addProducer(out, in.Item, depth-1)
		}
	}
}

func (e *enumerator) relevantSkillSet() map[catalogs.Skill]bool {
	set := map[catalogs.Skill]bool{}
	for _, s := range e.skills {
		set[s] = true
	}
	if a, ok := e.cats.Action(e.st.ActiveAction()); ok {
		set[a.Skill] = true
	}
	return set
}

// upgrades splits relevant, purchasable-in-principle upgrades into affordable ones and a
// watch list of the rest.
func (e *enumerator) upgrades() ([]string, []Upgrade) {
	skills := e.relevantSkillSet()
	var buy []string
	var watch []Upgrade
	for _, p := range e.cats.Purchases() {
		owned := e.st.Purchased(p.ID)
		if owned >= p.Limit() {
			continue
		}
		if p.RequiresSkill != "" && e.st.Level(p.RequiresSkill) < p.RequiresLevel {
			continue
		}
		if !e.relevantEffect(p.Effect, skills) {
			continue
		}
		cost := p.Cost.At(owned)
		if e.st.GP() >= cost {
			buy = append(buy, p.ID)
		} else {
			watch = append(watch, Upgrade{Purchase: p.ID, Cost: cost})
		}
	}
	sort.SliceStable(watch, func(i, j int) bool {
		if watch[i].Cost != watch[j].Cost {
			return watch[i].Cost < watch[j].Cost
		}
		return watch[i].Purchase < watch[j].Purchase
	})
	return buy, watch
}

func (e *enumerator) relevantEffect(eff catalogs.Effect, skills map[catalogs.Skill]bool) bool {
	switch eff.Kind {
	case catalogs.EffectDurationMultiplier, catalogs.EffectDoublingChance:
		return eff.Skill == "" || skills[eff.Skill]
	case catalogs.EffectInventorySlots:
		return e.st.SlotsUsed() >= e.st.Slots()-1
	case catalogs.EffectTownshipIncome:
		return e.gpGoal
	}
	return false
}

// unlocks returns, per relevant skill, the nearest locked action.
func (e *enumerator) unlocks() []Unlock {
	var out []Unlock
	for _, s := range e.skills {
		lvl := e.st.Level(s)
		for _, a := range e.cats.ActionsForSkill(s) {
			if a.UnlockLevel > lvl {
				out = append(out, Unlock{Skill: s, Level: a.UnlockLevel, Action: a.ID})
				break
			}
		}
	}
	return out
}

// itemTargets are the next bucket boundaries for inputs of the active action's downstream
// consumers, so gathering can stop at useful batch sizes.
func (e *enumerator) itemTargets() []ItemTarget {
	a, ok := e.cats.Action(e.st.ActiveAction())
	if !ok || e.gpGoal {
		return nil
	}
	relevant := map[catalogs.Skill]bool{}
	for _, s := range e.skills {
		relevant[s] = true
	}
	if relevant[a.Skill] {
		return nil
	}
	var out []ItemTarget
	for _, item := range a.OutputItems() {
		useful := false
		for _, id := range e.cats.Consumers(item) {
			c, _ := e.cats.Action(id)
			if e.feedsRelevant(c, relevant, 2) {
				useful = true
				break
			}
		}
		if !useful {
			continue
		}
		bucket := e.tune.Solver.ItemBucket
		next := (e.st.Count(item)/bucket + 1) * bucket
		out = append(out, ItemTarget{Item: item, Count: next})
	}
	return out
}

func (e *enumerator) feedsRelevant(a catalogs.ActionDef, relevant map[catalogs.Skill]bool, depth int) bool {
	if relevant[a.Skill] {
		return e.unlocked(a)
	}
	if depth <= 1 {
		return false
	}
	for _, item := range a.OutputItems() {
		for _, id := range e.cats.Consumers(item) {
			c, _ := e.cats.Action(id)
			if e.feedsRelevant(c, relevant, depth-1) {
				return true
			}
		}
	}
	return false
}

func (e *enumerator) tracksInventory() bool {
	a, ok := e.cats.Action(e.st.ActiveAction())
	if !ok {
		return false
	}
	for _, item := range a.OutputItems() {
		if e.st.Count(item) == 0 {
			return true
		}
	}
	return false
}

func (e *enumerator) sellAll(watch []Upgrade) bool {
	if e.st.SlotsUsed() == 0 {
		return false
	}
	if e.st.Fullness() > e.tune.Solver.SellThreshold {
		return true
	}
	credits := e.st.Credits(e.cats)
	if credits <= e.st.GP() {
		return false
	}
	if g, ok := e.g.(goal.ReachGP); ok && credits >= g.Target {
		return true
	}
	for _, u := range watch {
		if credits >= u.Cost {
			return true
		}
	}
	return false
}
