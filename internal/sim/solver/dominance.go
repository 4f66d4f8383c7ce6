package solver

import (
	"fmt"
	"reflect"
	"strings"

	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/state"
	"idlecraft.ai/internal/sim/tuning"
)

// dominance groups states under a coarse key and discards a new state when an already seen
// state under the same key is at least as good everywhere the goal can observe and was
// reached no later.
type dominance struct {
	cats *catalogs.Catalogs
	tune tuning.Tuning
	seen map[string][]*node
}

func newDominance(cats *catalogs.Catalogs, tune tuning.Tuning) *dominance {
	return &dominance{cats: cats, tune: tune, seen: map[string][]*node{}}
}

// key: active action, skill levels, gp bucket, item buckets and purchases.
func (d *dominance) key(st state.GlobalState) string {
	var sb strings.Builder
	sb.WriteString(st.ActiveAction())
	sb.WriteByte('|')
	for _, s := range d.cats.Skills.Order {
		if lvl := st.Level(s); lvl > 1 {
			fmt.Fprintf(&sb, "%s=%d,", s, lvl)
		}
	}
	fmt.Fprintf(&sb, "|%d|", st.GP()/d.tune.Solver.GPBucket)
	for _, item := range st.Items() {
		fmt.Fprintf(&sb, "%s=%d,", item, st.Count(item)/d.tune.Solver.ItemBucket)
	}
	sb.WriteByte('|')
	for _, id := range st.PurchaseIDs() {
		fmt.Fprintf(&sb, "%s=%d,", id, st.Purchased(id))
	}
	return sb.String()
}

// admit records n unless a seen node dominates it.
func (d *dominance) admit(n *node) bool {
	k := d.key(n.st)
	for _, o := range d.seen[k] {
		if o.cost <= n.cost && d.covers(o.st, n.st) {
			return false
		}
	}
	d.seen[k] = append(d.seen[k], n)
	return true
}

// covers reports whether a is at least as far along as b in every skill, in mastery, in GP,
// in every item and in the running action, holding the same number of distinct items. Plots,
// rocks and the regen and township countdowns have no ordering and must match exactly.
func (d *dominance) covers(a, b state.GlobalState) bool {
	if a.GP() < b.GP() || a.SlotsUsed() != b.SlotsUsed() || a.Slots() < b.Slots() {
		return false
	}
	for _, s := range d.cats.Skills.Order {
		if a.XP(s) < b.XP(s) {
			return false
		}
	}
	for id := range d.cats.Actions.ByID {
		if a.MasteryXP(id) < b.MasteryXP(id) {
			return false
		}
	}
	for _, item := range b.Items() {
		if a.Count(item) < b.Count(item) {
			return false
		}
	}
	if !aheadOn(a.Active(), b.Active()) {
		return false
	}
	if a.RegenTicks() != b.RegenTicks() || a.TownshipCountdown() != b.TownshipCountdown() {
		return false
	}
	if !reflect.DeepEqual(a.Plots(), b.Plots()) || !sameRocks(a, b) {
		return false
	}
	return a.HP() >= b.HP() && a.StunTicks() <= b.StunTicks()
}

// aheadOn: same action with no more ticks left to its next completion.
func aheadOn(a, b state.Activity) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.ActionID() != b.ActionID() || a.Total()-a.Progress() > b.Total()-b.Progress() {
		return false
	}
	ca, aCombat := a.(state.CombatActivity)
	cb, bCombat := b.(state.CombatActivity)
	if aCombat != bCombat {
		return false
	}
	return !aCombat || ca.Kills >= cb.Kills
}

func sameRocks(a, b state.GlobalState) bool {
	ids := a.RockIDs()
	if len(ids) != len(b.RockIDs()) {
		return false
	}
	for _, id := range ids {
		ra, _ := a.Rock(id)
		rb, ok := b.Rock(id)
		if !ok || ra != rb {
			return false
		}
	}
	return true
}
