package state

import (
	"fmt"

	"idlecraft.ai/internal/persistence/snapshot"
	"idlecraft.ai/internal/sim/catalogs"
)

// ExportSnapshot converts g into its serialized form. Maps are always non-nil.
func ExportSnapshot(g GlobalState) snapshot.StateV1 {
	s := snapshot.StateV1{
		Version:   snapshot.Version,
		Tick:      g.tick,
		GP:        g.gp,
		Skills:    make(map[string]snapshot.SkillV1, len(g.xp)),
		Inventory: snapshot.InventoryV1{Slots: g.slots, Items: make(map[string]int, len(g.inventory))},
		Health: snapshot.HealthV1{
			HP:         g.hp,
			MaxHP:      g.maxHP,
			RegenTicks: g.regenTicks,
			StunTicks:  g.stunTicks,
			Deaths:     g.deaths,
		},
		Township: snapshot.TownshipV1{Countdown: g.townshipTick},
	}
	for sk, xp := range g.xp {
		s.Skills[string(sk)] = snapshot.SkillV1{XP: xp}
	}
	if len(g.mastery) > 0 {
		s.Mastery = cloneMap(g.mastery)
	}
	for item, n := range g.inventory {
		s.Inventory.Items[item] = n
	}
	if len(g.purchases) > 0 {
		s.Purchases = cloneMap(g.purchases)
	}
	switch a := g.active.(type) {
	case nil:
	case SkillActivity:
		s.Active = &snapshot.ActivityV1{Type: snapshot.ActivitySkill, Action: a.Action, Progress: a.ProgressTicks, Total: a.TotalTicks}
	case CombatActivity:
		s.Active = &snapshot.ActivityV1{Type: snapshot.ActivityCombat, Action: a.Action, Progress: a.ProgressTicks, Total: a.TotalTicks, Kills: a.Kills}
	}
	if len(g.rocks) > 0 {
		s.Mining = make(map[string]snapshot.RockV1, len(g.rocks))
		for id, r := range g.rocks {
			s.Mining[id] = snapshot.RockV1{HP: r.HP, RespawnTicks: r.RespawnTicks}
		}
	}
	for _, p := range g.plots {
		s.Farming = append(s.Farming, snapshot.PlotV1{Action: p.Action, GrowthTicks: p.GrowthTicks, TotalTicks: p.TotalTicks})
	}
	return s
}

// ImportSnapshot rebuilds a GlobalState and checks it against the registries and the
// structural invariants. Unknown ids are rejected rather than dropped.
func ImportSnapshot(cats *catalogs.Catalogs, s snapshot.StateV1) (GlobalState, error) {
	if s.Version != snapshot.Version {
		return GlobalState{}, fmt.Errorf("state: unsupported version %d", s.Version)
	}
	g := GlobalState{
		tick:         s.Tick,
		gp:           s.GP,
		xp:           make(map[catalogs.Skill]float64, len(s.Skills)),
		mastery:      map[string]float64{},
		inventory:    make(map[string]int, len(s.Inventory.Items)),
		slots:        s.Inventory.Slots,
		purchases:    map[string]int{},
		hp:           s.Health.HP,
		maxHP:        s.Health.MaxHP,
		regenTicks:   s.Health.RegenTicks,
		stunTicks:    s.Health.StunTicks,
		deaths:       s.Health.Deaths,
		rocks:        map[string]Rock{},
		townshipTick: s.Township.Countdown,
	}
	for name, sk := range s.Skills {
		if !cats.HasSkill(catalogs.Skill(name)) {
			return GlobalState{}, fmt.Errorf("state: unknown skill %q", name)
		}
		if sk.XP != 0 {
			g.xp[catalogs.Skill(name)] = sk.XP
		}
	}
	for id, xp := range s.Mastery {
		if _, ok := cats.Action(id); !ok {
			return GlobalState{}, fmt.Errorf("state: mastery for unknown action %q", id)
		}
		if xp < 0 {
			return GlobalState{}, fmt.Errorf("state: negative mastery for %s", id)
		}
		if xp != 0 {
			g.mastery[id] = xp
		}
	}
	for item, n := range s.Inventory.Items {
		if _, ok := cats.Item(item); !ok {
			return GlobalState{}, fmt.Errorf("state: unknown item %q", item)
		}
		g.inventory[item] = n
	}
	for id, n := range s.Purchases {
		if _, ok := cats.Purchase(id); !ok {
			return GlobalState{}, fmt.Errorf("state: unknown purchase %q", id)
		}
		if n > 0 {
			g.purchases[id] = n
		}
	}
	if a := s.Active; a != nil {
		def, ok := cats.Action(a.Action)
		if !ok {
			return GlobalState{}, fmt.Errorf("state: unknown active action %q", a.Action)
		}
		switch a.Type {
		case snapshot.ActivitySkill:
			if def.Kind == catalogs.KindCombat {
				return GlobalState{}, fmt.Errorf("state: combat action %s stored as skill activity", a.Action)
			}
			g.active = SkillActivity{Action: a.Action, ProgressTicks: a.Progress, TotalTicks: a.Total}
		case snapshot.ActivityCombat:
			if def.Kind != catalogs.KindCombat {
				return GlobalState{}, fmt.Errorf("state: %s is not a combat action", a.Action)
			}
			g.active = CombatActivity{Action: a.Action, ProgressTicks: a.Progress, TotalTicks: a.Total, Kills: a.Kills}
		default:
			return GlobalState{}, fmt.Errorf("state: unknown activity type %q", a.Type)
		}
	}
	for id, r := range s.Mining {
		def, ok := cats.Action(id)
		if !ok || def.Kind != catalogs.KindMining {
			return GlobalState{}, fmt.Errorf("state: rock state for non-mining action %q", id)
		}
		g.rocks[id] = Rock{HP: r.HP, RespawnTicks: r.RespawnTicks}
	}
	for _, p := range s.Farming {
		def, ok := cats.Action(p.Action)
		if !ok || def.Kind != catalogs.KindFarming {
			return GlobalState{}, fmt.Errorf("state: plot for non-farming action %q", p.Action)
		}
		g.plots = append(g.plots, Plot{Action: p.Action, GrowthTicks: p.GrowthTicks, TotalTicks: p.TotalTicks})
	}
	if err := g.Validate(); err != nil {
		return GlobalState{}, fmt.Errorf("state: %w", err)
	}
	return g, nil
}
