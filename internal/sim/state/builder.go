package state

import "idlecraft.ai/internal/sim/catalogs"

// Builder accumulates changes against a base snapshot and materializes a new GlobalState.
// Maps are copied on first write, so a built value never shares mutable storage with a
// later write.
type Builder struct {
	s GlobalState

	ownXP, ownMastery, ownInventory, ownPurchases, ownRocks bool
}

func (g GlobalState) Edit() *Builder {
	return &Builder{s: g}
}

// View exposes the in-progress state for reads. It must not be retained across writes.
func (b *Builder) View() GlobalState { return b.s }

func (b *Builder) Build() GlobalState {
	out := b.s
	b.ownXP, b.ownMastery, b.ownInventory, b.ownPurchases, b.ownRocks = false, false, false, false, false
	return out
}

func (b *Builder) AddTicks(n int64) *Builder {
	b.s.tick += n
	return b
}

func (b *Builder) SetTick(t int64) *Builder {
	b.s.tick = t
	return b
}

func (b *Builder) AddGP(n int64) *Builder {
	b.s.gp += n
	if b.s.gp < 0 {
		b.s.gp = 0
	}
	return b
}

func (b *Builder) SetGP(n int64) *Builder {
	b.s.gp = n
	return b
}

func (b *Builder) AddXP(s catalogs.Skill, xp float64) *Builder {
	if xp == 0 {
		return b
	}
	if !b.ownXP {
		b.s.xp = cloneMap(b.s.xp)
		b.ownXP = true
	}
	b.s.xp[s] += xp
	return b
}

func (b *Builder) AddMastery(action string, xp float64) *Builder {
	if xp == 0 {
		return b
	}
	if !b.ownMastery {
		b.s.mastery = cloneMap(b.s.mastery)
		b.ownMastery = true
	}
	b.s.mastery[action] += xp
	return b
}

// AddItem adds n of item. It returns false (and changes nothing) when the item would need
// a new slot and the inventory is full.
func (b *Builder) AddItem(item string, n int) bool {
	if n <= 0 {
		return true
	}
	if !b.s.HasRoomFor(item) {
		return false
	}
	if !b.ownInventory {
		b.s.inventory = cloneMap(b.s.inventory)
		b.ownInventory = true
	}
	b.s.inventory[item] += n
	return true
}

// RemoveItem removes up to n of item and returns how many were removed.
func (b *Builder) RemoveItem(item string, n int) int {
	have := b.s.inventory[item]
	if have == 0 || n <= 0 {
		return 0
	}
	if n > have {
		n = have
	}
	if !b.ownInventory {
		b.s.inventory = cloneMap(b.s.inventory)
		b.ownInventory = true
	}
	if have == n {
		delete(b.s.inventory, item)
	} else {
		b.s.inventory[item] = have - n
	}
	return n
}

func (b *Builder) SetSlots(n int) *Builder {
	b.s.slots = n
	return b
}

func (b *Builder) SetActive(a Activity) *Builder {
	b.s.active = a
	return b
}

func (b *Builder) SetPurchased(id string, n int) *Builder {
	if !b.ownPurchases {
		b.s.purchases = cloneMap(b.s.purchases)
		b.ownPurchases = true
	}
	if n <= 0 {
		delete(b.s.purchases, id)
	} else {
		b.s.purchases[id] = n
	}
	return b
}

func (b *Builder) SetHP(hp int) *Builder {
	if hp > b.s.maxHP {
		hp = b.s.maxHP
	}
	if hp < 0 {
		hp = 0
	}
	b.s.hp = hp
	return b
}

func (b *Builder) SetMaxHP(hp int) *Builder {
	b.s.maxHP = hp
	return b
}

func (b *Builder) SetRegenTicks(n int) *Builder {
	b.s.regenTicks = n
	return b
}

func (b *Builder) SetStunTicks(n int) *Builder {
	if n < 0 {
		n = 0
	}
	b.s.stunTicks = n
	return b
}

func (b *Builder) AddDeath() *Builder {
	b.s.deaths++
	return b
}

func (b *Builder) SetDeaths(n int) *Builder {
	b.s.deaths = n
	return b
}

func (b *Builder) SetRock(action string, r Rock) *Builder {
	if !b.ownRocks {
		b.s.rocks = cloneMap(b.s.rocks)
		b.ownRocks = true
	}
	b.s.rocks[action] = r
	return b
}

func (b *Builder) SetPlots(plots []Plot) *Builder {
	if len(plots) == 0 {
		b.s.plots = nil
	} else {
		b.s.plots = append([]Plot(nil), plots...)
	}
	return b
}

func (b *Builder) SetTownshipCountdown(n int) *Builder {
	b.s.townshipTick = n
	return b
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
