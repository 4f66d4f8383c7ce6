package state

import (
	"fmt"
	"reflect"
	"sort"

	"idlecraft.ai/internal/sim/catalogs"
	"idlecraft.ai/internal/sim/tuning"
)

type Rock struct {
	HP           int
	RespawnTicks int // >0 while depleted
}

type Plot struct {
	Action      string
	GrowthTicks int
	TotalTicks  int
}

func (p Plot) Ready() bool { return p.GrowthTicks >= p.TotalTicks }

// GlobalState is an immutable economy snapshot. Every change produces a new value through
// Builder; accessors never expose internal maps.
type GlobalState struct {
	tick int64
	gp   int64

	xp      map[catalogs.Skill]float64
	mastery map[string]float64

	inventory map[string]int
	slots     int

	active    Activity
	purchases map[string]int

	hp         int
	maxHP      int
	regenTicks int
	stunTicks  int
	deaths     int

	rocks        map[string]Rock
	plots        []Plot
	townshipTick int
}

// Empty returns a fresh character: no XP, no items, full health.
func Empty(t tuning.Tuning) GlobalState {
	return GlobalState{
		xp:           map[catalogs.Skill]float64{},
		mastery:      map[string]float64{},
		inventory:    map[string]int{},
		slots:        t.BaseInventorySlots,
		purchases:    map[string]int{},
		hp:           t.MaxHP,
		maxHP:        t.MaxHP,
		regenTicks:   t.HPRegenEveryTicks,
		rocks:        map[string]Rock{},
		townshipTick: t.TownshipCycleTicks,
	}
}

func (g GlobalState) Tick() int64 { return g.tick }
func (g GlobalState) GP() int64   { return g.gp }

func (g GlobalState) XP(s catalogs.Skill) float64 { return g.xp[s] }
func (g GlobalState) Level(s catalogs.Skill) int  { return LevelForXP(g.xp[s]) }

func (g GlobalState) MasteryXP(action string) float64 { return g.mastery[action] }
func (g GlobalState) MasteryLevel(action string) int  { return LevelForXP(g.mastery[action]) }

func (g GlobalState) Count(item string) int { return g.inventory[item] }

// Items returns inventory item ids in sorted order.
func (g GlobalState) Items() []string {
	out := make([]string, 0, len(g.inventory))
	for k := range g.inventory {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (g GlobalState) SlotsUsed() int { return len(g.inventory) }
func (g GlobalState) Slots() int     { return g.slots }

// HasRoomFor reports whether adding item would not need a slot beyond capacity.
func (g GlobalState) HasRoomFor(item string) bool {
	if g.inventory[item] > 0 {
		return true
	}
	return len(g.inventory) < g.slots
}

func (g GlobalState) Fullness() float64 {
	if g.slots <= 0 {
		return 1
	}
	return float64(len(g.inventory)) / float64(g.slots)
}

func (g GlobalState) Active() Activity { return g.active }

func (g GlobalState) ActiveAction() string {
	if g.active == nil {
		return ""
	}
	return g.active.ActionID()
}

func (g GlobalState) Purchased(id string) int { return g.purchases[id] }

// PurchaseIDs returns owned purchase ids in sorted order.
func (g GlobalState) PurchaseIDs() []string {
	out := make([]string, 0, len(g.purchases))
	for k := range g.purchases {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (g GlobalState) HP() int         { return g.hp }
func (g GlobalState) MaxHP() int      { return g.maxHP }
func (g GlobalState) RegenTicks() int { return g.regenTicks }
func (g GlobalState) StunTicks() int  { return g.stunTicks }
func (g GlobalState) Deaths() int     { return g.deaths }

func (g GlobalState) Rock(action string) (Rock, bool) {
	r, ok := g.rocks[action]
	return r, ok
}

// RockIDs returns action ids with tracked rock state in sorted order.
func (g GlobalState) RockIDs() []string {
	out := make([]string, 0, len(g.rocks))
	for k := range g.rocks {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (g GlobalState) Plots() []Plot {
	return append([]Plot(nil), g.plots...)
}

func (g GlobalState) TownshipCountdown() int { return g.townshipTick }

// Credits is GP plus the sell value of the whole inventory.
func (g GlobalState) Credits(cats *catalogs.Catalogs) int64 {
	total := g.gp
	for item, n := range g.inventory {
		total += int64(cats.SellValue(item)) * int64(n)
	}
	return total
}

// Equal reports full structural equality.
func (g GlobalState) Equal(o GlobalState) bool {
	return reflect.DeepEqual(g, o)
}

// Validate checks the structural invariants every reachable state holds.
func (g GlobalState) Validate() error {
	if g.gp < 0 {
		return fmt.Errorf("negative gp %d", g.gp)
	}
	if len(g.inventory) > g.slots {
		return fmt.Errorf("inventory uses %d slots, capacity %d", len(g.inventory), g.slots)
	}
	for item, n := range g.inventory {
		if n <= 0 {
			return fmt.Errorf("inventory item %s has count %d", item, n)
		}
	}
	if g.active != nil {
		if g.active.ActionID() == "" {
			return fmt.Errorf("active activity without action")
		}
		if g.active.Progress() < 0 || g.active.Progress() > g.active.Total() {
			return fmt.Errorf("activity progress %d outside [0,%d]", g.active.Progress(), g.active.Total())
		}
	}
	if g.hp < 0 || g.hp > g.maxHP {
		return fmt.Errorf("hp %d outside [0,%d]", g.hp, g.maxHP)
	}
	for s, xp := range g.xp {
		if xp < 0 {
			return fmt.Errorf("negative xp for %s", s)
		}
	}
	for _, p := range g.plots {
		if p.GrowthTicks < 0 || p.GrowthTicks > p.TotalTicks {
			return fmt.Errorf("plot %s growth %d outside [0,%d]", p.Action, p.GrowthTicks, p.TotalTicks)
		}
	}
	return nil
}

func (g GlobalState) String() string {
	return fmt.Sprintf("tick=%d gp=%d slots=%d/%d hp=%d/%d active=%s", g.tick, g.gp, len(g.inventory), g.slots, g.hp, g.maxHP, describeActivity(g.active))
}
