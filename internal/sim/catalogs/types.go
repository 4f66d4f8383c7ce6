package catalogs

import (
	"encoding/json"
	"fmt"
	"math"
)

type Skill string

type ActionKind string

const (
	KindSkill    ActionKind = "SKILL"
	KindMining   ActionKind = "MINING"
	KindThieving ActionKind = "THIEVING"
	KindCombat   ActionKind = "COMBAT"
	KindFarming  ActionKind = "FARMING"
)

type ItemDef struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	SellValue int    `json:"sell_value"`
}

type ItemCount struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

type ActionDef struct {
	ID          string     `json:"id"`
	Name        string     `json:"name,omitempty"`
	Skill       Skill      `json:"skill"`
	Kind        ActionKind `json:"kind"`
	UnlockLevel int        `json:"unlock_level"`

	// Randomized per completion in [DurationTicks, MaxDurationTicks] when MaxDurationTicks is set.
	DurationTicks    int `json:"duration_ticks"`
	MaxDurationTicks int `json:"max_duration_ticks,omitempty"`

	XP     float64     `json:"xp"`
	GP     int         `json:"gp,omitempty"`
	Inputs []ItemCount `json:"inputs,omitempty"`
	Drops  DropList    `json:"drops,omitempty"`

	// MINING
	RockHP       int `json:"rock_hp,omitempty"`
	RespawnTicks int `json:"respawn_ticks,omitempty"`

	// THIEVING
	BaseSuccess float64 `json:"base_success,omitempty"`
	FailDamage  int     `json:"fail_damage,omitempty"`
	StunTicks   int     `json:"stun_ticks,omitempty"`

	// COMBAT
	DamagePerCompletion int `json:"damage_per_completion,omitempty"`

	// FARMING: drops are produced at harvest, GrowTicks after planting.
	GrowTicks int `json:"grow_ticks,omitempty"`
}

// Randomized reports whether completion time is rolled per completion.
func (a ActionDef) Randomized() bool {
	return a.MaxDurationTicks > a.DurationTicks
}

func (a ActionDef) MeanDurationTicks() float64 {
	if a.Randomized() {
		return float64(a.DurationTicks+a.MaxDurationTicks) / 2
	}
	return float64(a.DurationTicks)
}

// SuccessChance is the per-completion success probability at the given skill level.
// Only thieving can fail.
func (a ActionDef) SuccessChance(level int) float64 {
	if a.Kind != KindThieving {
		return 1
	}
	p := a.BaseSuccess
	if p <= 0 {
		p = 0.5
	}
	if level > a.UnlockLevel {
		p += 0.01 * float64(level-a.UnlockLevel)
	}
	return math.Min(p, 0.95)
}

// OutputItems lists every item the action can produce, in declaration order.
func (a ActionDef) OutputItems() []string {
	var out []string
	seen := map[string]bool{}
	for _, d := range a.Drops {
		for _, it := range d.Items() {
			if !seen[it] {
				seen[it] = true
				out = append(out, it)
			}
		}
	}
	return out
}

// ExpectedDrops returns expected item counts per successful completion.
func (a ActionDef) ExpectedDrops() map[string]float64 {
	out := map[string]float64{}
	for _, d := range a.Drops {
		d.Expected(func(item string, n float64) { out[item] += n })
	}
	return out
}

// Droppable is one entry of an action's output. The set of variants is closed:
// FixedDrop, DropTable and ChanceDrop.
type Droppable interface {
	Items() []string
	Expected(fn func(item string, n float64))
	validate() error
}

type FixedDrop struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

type TableEntry struct {
	Item   string `json:"item,omitempty"` // empty: nothing
	Min    int    `json:"min"`
	Max    int    `json:"max"`
	Weight int    `json:"weight"`
}

type DropTable struct {
	Rolls   int          `json:"rolls"`
	Entries []TableEntry `json:"entries"`
}

type ChanceDrop struct {
	Chance float64 `json:"chance"`
	Item   string  `json:"item"`
	Count  int     `json:"count"`
}

func (d FixedDrop) Items() []string { return []string{d.Item} }

func (d FixedDrop) Expected(fn func(string, float64)) {
	fn(d.Item, float64(d.Count))
}

func (d FixedDrop) validate() error {
	if d.Item == "" || d.Count <= 0 {
		return fmt.Errorf("fixed drop: item and count required")
	}
	return nil
}

func (t DropTable) Items() []string {
	out := make([]string, 0, len(t.Entries))
	for _, e := range t.Entries {
		if e.Item != "" {
			out = append(out, e.Item)
		}
	}
	return out
}

func (t DropTable) TotalWeight() int {
	total := 0
	for _, e := range t.Entries {
		total += e.Weight
	}
	return total
}

// Expected uses weight / total-weight * mean-quantity per roll.
func (t DropTable) Expected(fn func(string, float64)) {
	total := t.TotalWeight()
	if total <= 0 {
		return
	}
	rolls := t.rolls()
	for _, e := range t.Entries {
		if e.Item == "" {
			continue
		}
		mean := float64(e.Min+e.Max) / 2
		fn(e.Item, float64(rolls)*float64(e.Weight)/float64(total)*mean)
	}
}

func (t DropTable) rolls() int {
	if t.Rolls <= 0 {
		return 1
	}
	return t.Rolls
}

// RollCount is the number of independent rolls per completion.
func (t DropTable) RollCount() int { return t.rolls() }

func (t DropTable) validate() error {
	if t.TotalWeight() <= 0 {
		return fmt.Errorf("drop table: total weight must be > 0")
	}
	for _, e := range t.Entries {
		if e.Weight < 0 {
			return fmt.Errorf("drop table: negative weight")
		}
		if e.Item != "" && (e.Min <= 0 || e.Max < e.Min) {
			return fmt.Errorf("drop table %s: bad quantity range %d..%d", e.Item, e.Min, e.Max)
		}
	}
	return nil
}

func (d ChanceDrop) Items() []string { return []string{d.Item} }

func (d ChanceDrop) Expected(fn func(string, float64)) {
	fn(d.Item, d.Chance*float64(d.Count))
}

func (d ChanceDrop) validate() error {
	if d.Item == "" || d.Count <= 0 {
		return fmt.Errorf("chance drop: item and count required")
	}
	if d.Chance <= 0 || d.Chance > 1 {
		return fmt.Errorf("chance drop %s: chance must be in (0,1]", d.Item)
	}
	return nil
}

// DropList decodes the tagged JSON form {"type":"fixed"|"table"|"chance", ...}.
type DropList []Droppable

type dropWire struct {
	Type string `json:"type"`
	FixedDrop
	Rolls   int          `json:"rolls,omitempty"`
	Entries []TableEntry `json:"entries,omitempty"`
	Chance  float64      `json:"chance,omitempty"`
}

func (l *DropList) UnmarshalJSON(b []byte) error {
	var raw []dropWire
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(DropList, 0, len(raw))
	for i, w := range raw {
		switch w.Type {
		case "fixed":
			out = append(out, FixedDrop{Item: w.Item, Count: w.Count})
		case "table":
			out = append(out, DropTable{Rolls: w.Rolls, Entries: w.Entries})
		case "chance":
			out = append(out, ChanceDrop{Chance: w.Chance, Item: w.Item, Count: w.Count})
		default:
			return fmt.Errorf("drops[%d]: unknown type %q", i, w.Type)
		}
	}
	*l = out
	return nil
}

func (l DropList) MarshalJSON() ([]byte, error) {
	raw := make([]dropWire, 0, len(l))
	for _, d := range l {
		switch d := d.(type) {
		case FixedDrop:
			raw = append(raw, dropWire{Type: "fixed", FixedDrop: d})
		case DropTable:
			raw = append(raw, dropWire{Type: "table", Rolls: d.Rolls, Entries: d.Entries})
		case ChanceDrop:
			raw = append(raw, dropWire{Type: "chance", FixedDrop: FixedDrop{Item: d.Item, Count: d.Count}, Chance: d.Chance})
		}
	}
	return json.Marshal(raw)
}

type EffectKind string

const (
	EffectDurationMultiplier EffectKind = "duration_multiplier"
	EffectDoublingChance     EffectKind = "doubling_chance"
	EffectInventorySlots     EffectKind = "inventory_slots"
	EffectTownshipIncome     EffectKind = "township_income"
)

type Effect struct {
	Kind  EffectKind `json:"kind"`
	Skill Skill      `json:"skill,omitempty"`
	Value float64    `json:"value"`
}

type CostCurve struct {
	Base   int64   `json:"base"`
	Growth float64 `json:"growth,omitempty"`
}

// At returns the price of the next purchase given how many are already owned.
func (c CostCurve) At(owned int) int64 {
	if c.Growth <= 1 || owned <= 0 {
		return c.Base
	}
	return int64(math.Round(float64(c.Base) * math.Pow(c.Growth, float64(owned))))
}

type PurchaseDef struct {
	ID            string    `json:"id"`
	Name          string    `json:"name,omitempty"`
	Cost          CostCurve `json:"cost"`
	MaxCount      int       `json:"max_count,omitempty"`
	RequiresSkill Skill     `json:"requires_skill,omitempty"`
	RequiresLevel int       `json:"requires_level,omitempty"`
	Effect        Effect    `json:"effect"`
}

func (p PurchaseDef) Limit() int {
	if p.MaxCount <= 0 {
		return 1
	}
	return p.MaxCount
}
