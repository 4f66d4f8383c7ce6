package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Catalogs is the read-only registry of skills, items, actions and shop purchases.
// It is built once (Load or New) and never mutated afterwards.
type Catalogs struct {
	Skills  SkillCatalog
	Items   ItemCatalog
	Actions ActionCatalog
	Shop    ShopCatalog
}

type SkillCatalog struct {
	Order  []Skill
	Index  map[Skill]int
	Digest string
}

type ItemCatalog struct {
	Defs   map[string]ItemDef
	Digest string
}

type ActionCatalog struct {
	ByID    map[string]ActionDef
	BySkill map[Skill][]string
	Digest  string

	producers map[string][]string
	consumers map[string][]string
}

type ShopCatalog struct {
	ByID   map[string]PurchaseDef
	Order  []string
	Digest string
}

// Load reads skills.json, items.json, actions.json and shop.json from configDir.
func Load(configDir string) (*Catalogs, error) {
	var (
		skills  []Skill
		items   []ItemDef
		actions []ActionDef
		shop    []PurchaseDef
	)
	skillsRaw, err := readJSON(filepath.Join(configDir, "skills.json"), &skills)
	if err != nil {
		return nil, err
	}
	itemsRaw, err := readJSON(filepath.Join(configDir, "items.json"), &items)
	if err != nil {
		return nil, err
	}
	actionsRaw, err := readJSON(filepath.Join(configDir, "actions.json"), &actions)
	if err != nil {
		return nil, err
	}
	shopRaw, err := readJSON(filepath.Join(configDir, "shop.json"), &shop)
	if err != nil {
		// A content pack without a shop is valid.
		if !os.IsNotExist(err) {
			return nil, err
		}
		shop = nil
	}

	c, err := New(skills, items, actions, shop)
	if err != nil {
		return nil, err
	}
	c.Skills.Digest = sha256Hex(skillsRaw)
	c.Items.Digest = sha256Hex(itemsRaw)
	c.Actions.Digest = sha256Hex(actionsRaw)
	c.Shop.Digest = sha256Hex(shopRaw)
	return c, nil
}

func readJSON(path string, out any) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return raw, nil
}

// New validates and indexes in-memory definitions. Digests are computed over the canonical
// JSON encoding of the inputs.
func New(skills []Skill, items []ItemDef, actions []ActionDef, shop []PurchaseDef) (*Catalogs, error) {
	c := &Catalogs{}

	c.Skills.Order = make([]Skill, 0, len(skills))
	c.Skills.Index = make(map[Skill]int, len(skills))
	for _, s := range skills {
		s = Skill(strings.TrimSpace(string(s)))
		if s == "" {
			return nil, fmt.Errorf("skills: empty skill id")
		}
		if _, dup := c.Skills.Index[s]; dup {
			return nil, fmt.Errorf("skills: duplicate skill %q", s)
		}
		c.Skills.Index[s] = len(c.Skills.Order)
		c.Skills.Order = append(c.Skills.Order, s)
	}

	c.Items.Defs = make(map[string]ItemDef, len(items))
	for _, it := range items {
		if it.ID == "" {
			return nil, fmt.Errorf("items: empty id")
		}
		if _, dup := c.Items.Defs[it.ID]; dup {
			return nil, fmt.Errorf("items: duplicate item %q", it.ID)
		}
		c.Items.Defs[it.ID] = it
	}

	c.Actions.ByID = make(map[string]ActionDef, len(actions))
	c.Actions.BySkill = map[Skill][]string{}
	c.Actions.producers = map[string][]string{}
	c.Actions.consumers = map[string][]string{}
	for _, a := range actions {
		if err := c.validateAction(a); err != nil {
			return nil, err
		}
		if _, dup := c.Actions.ByID[a.ID]; dup {
			return nil, fmt.Errorf("actions: duplicate action %q", a.ID)
		}
		c.Actions.ByID[a.ID] = a
		c.Actions.BySkill[a.Skill] = append(c.Actions.BySkill[a.Skill], a.ID)
		for _, in := range a.Inputs {
			c.Actions.consumers[in.Item] = append(c.Actions.consumers[in.Item], a.ID)
		}
		for _, item := range a.OutputItems() {
			c.Actions.producers[item] = append(c.Actions.producers[item], a.ID)
		}
	}
	for skill, ids := range c.Actions.BySkill {
		sort.Slice(ids, func(i, j int) bool {
			ai, aj := c.Actions.ByID[ids[i]], c.Actions.ByID[ids[j]]
			if ai.UnlockLevel != aj.UnlockLevel {
				return ai.UnlockLevel < aj.UnlockLevel
			}
			return ai.ID < aj.ID
		})
		c.Actions.BySkill[skill] = ids
	}
	for _, m := range []map[string][]string{c.Actions.producers, c.Actions.consumers} {
		for k := range m {
			sort.Strings(m[k])
		}
	}

	c.Shop.ByID = make(map[string]PurchaseDef, len(shop))
	for _, p := range shop {
		if p.ID == "" {
			return nil, fmt.Errorf("shop: empty id")
		}
		if _, dup := c.Shop.ByID[p.ID]; dup {
			return nil, fmt.Errorf("shop: duplicate purchase %q", p.ID)
		}
		if p.Effect.Skill != "" && !c.HasSkill(p.Effect.Skill) {
			return nil, fmt.Errorf("shop %s: unknown skill %q", p.ID, p.Effect.Skill)
		}
		if p.Cost.Base < 0 {
			return nil, fmt.Errorf("shop %s: negative cost", p.ID)
		}
		c.Shop.ByID[p.ID] = p
		c.Shop.Order = append(c.Shop.Order, p.ID)
	}
	sort.Strings(c.Shop.Order)

	c.Skills.Digest = digestOf(skills)
	c.Items.Digest = digestOf(items)
	c.Actions.Digest = digestOf(actions)
	c.Shop.Digest = digestOf(shop)
	return c, nil
}

func (c *Catalogs) validateAction(a ActionDef) error {
	if a.ID == "" {
		return fmt.Errorf("actions: empty id")
	}
	if !c.HasSkill(a.Skill) {
		return fmt.Errorf("action %s: unknown skill %q", a.ID, a.Skill)
	}
	if a.DurationTicks <= 0 {
		return fmt.Errorf("action %s: duration_ticks must be > 0", a.ID)
	}
	if a.MaxDurationTicks != 0 && a.MaxDurationTicks < a.DurationTicks {
		return fmt.Errorf("action %s: max_duration_ticks < duration_ticks", a.ID)
	}
	if a.UnlockLevel < 1 {
		return fmt.Errorf("action %s: unlock_level must be >= 1", a.ID)
	}
	for _, in := range a.Inputs {
		if _, ok := c.Items.Defs[in.Item]; !ok {
			return fmt.Errorf("action %s: unknown input item %q", a.ID, in.Item)
		}
		if in.Count <= 0 {
			return fmt.Errorf("action %s: input %s count must be > 0", a.ID, in.Item)
		}
	}
	for _, d := range a.Drops {
		if err := d.validate(); err != nil {
			return fmt.Errorf("action %s: %w", a.ID, err)
		}
	}
	for _, item := range a.OutputItems() {
		if _, ok := c.Items.Defs[item]; !ok {
			return fmt.Errorf("action %s: unknown output item %q", a.ID, item)
		}
	}
	switch a.Kind {
	case KindSkill, KindMining, KindThieving, KindCombat, KindFarming:
	default:
		return fmt.Errorf("action %s: unknown kind %q", a.ID, a.Kind)
	}
	if a.Kind == KindMining && (a.RockHP <= 0 || a.RespawnTicks <= 0) {
		return fmt.Errorf("action %s: mining requires rock_hp and respawn_ticks", a.ID)
	}
	if a.Kind == KindFarming && a.GrowTicks <= 0 {
		return fmt.Errorf("action %s: farming requires grow_ticks", a.ID)
	}
	return nil
}

func (c *Catalogs) HasSkill(s Skill) bool {
	_, ok := c.Skills.Index[s]
	return ok
}

func (c *Catalogs) Action(id string) (ActionDef, bool) {
	a, ok := c.Actions.ByID[id]
	return a, ok
}

// ActionsForSkill returns the skill's actions ordered by unlock level, then id.
func (c *Catalogs) ActionsForSkill(s Skill) []ActionDef {
	ids := c.Actions.BySkill[s]
	out := make([]ActionDef, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.Actions.ByID[id])
	}
	return out
}

func (c *Catalogs) Item(id string) (ItemDef, bool) {
	it, ok := c.Items.Defs[id]
	return it, ok
}

func (c *Catalogs) SellValue(item string) int {
	return c.Items.Defs[item].SellValue
}

func (c *Catalogs) Purchase(id string) (PurchaseDef, bool) {
	p, ok := c.Shop.ByID[id]
	return p, ok
}

// Purchases returns all shop purchases in id order.
func (c *Catalogs) Purchases() []PurchaseDef {
	out := make([]PurchaseDef, 0, len(c.Shop.Order))
	for _, id := range c.Shop.Order {
		out = append(out, c.Shop.ByID[id])
	}
	return out
}

// Producers returns ids of actions that can output item.
func (c *Catalogs) Producers(item string) []string {
	return c.Actions.producers[item]
}

// Consumers returns ids of actions that take item as input.
func (c *Catalogs) Consumers(item string) []string {
	return c.Actions.consumers[item]
}

// Digest identifies the content a plan was solved against.
func (c *Catalogs) Digest() string {
	return sha256Hex([]byte(c.Skills.Digest + c.Items.Digest + c.Actions.Digest + c.Shop.Digest))
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func digestOf(v any) string {
	b, _ := json.Marshal(v)
	return sha256Hex(b)
}
