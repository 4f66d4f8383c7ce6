package catalogs

// Fixture returns a small but complete economy used by unit tests across the sim packages.
// It mirrors configs/ at a smaller scale and adds an unreachable skill (runecrafting needs
// rune_essence, which nothing produces).
func Fixture() *Catalogs {
	skills := []Skill{"woodcutting", "firemaking", "fishing", "cooking", "mining", "smithing", "thieving", "attack", "farming", "runecrafting"}
	items := []ItemDef{
		{ID: "normal_logs", SellValue: 1},
		{ID: "oak_logs", SellValue: 5},
		{ID: "willow_logs", SellValue: 10},
		{ID: "bird_nest", SellValue: 50},
		{ID: "raw_shrimp", SellValue: 1},
		{ID: "raw_sardine", SellValue: 3},
		{ID: "old_boot", SellValue: 0},
		{ID: "shrimp", SellValue: 3},
		{ID: "sardine", SellValue: 6},
		{ID: "copper_ore", SellValue: 2},
		{ID: "tin_ore", SellValue: 2},
		{ID: "bronze_bar", SellValue: 8},
		{ID: "feathers", SellValue: 1},
		{ID: "potato_seed", SellValue: 1},
		{ID: "potatoes", SellValue: 4},
		{ID: "rune_essence", SellValue: 2},
		{ID: "air_rune", SellValue: 5},
	}
	actions := []ActionDef{
		{ID: "normal_tree", Skill: "woodcutting", Kind: KindSkill, UnlockLevel: 1, DurationTicks: 60, XP: 10,
			Drops: DropList{FixedDrop{Item: "normal_logs", Count: 1}, ChanceDrop{Chance: 0.005, Item: "bird_nest", Count: 1}}},
		{ID: "oak_tree", Skill: "woodcutting", Kind: KindSkill, UnlockLevel: 10, DurationTicks: 80, XP: 15,
			Drops: DropList{FixedDrop{Item: "oak_logs", Count: 1}, ChanceDrop{Chance: 0.005, Item: "bird_nest", Count: 1}}},
		{ID: "willow_tree", Skill: "woodcutting", Kind: KindSkill, UnlockLevel: 25, DurationTicks: 100, XP: 22,
			Drops: DropList{FixedDrop{Item: "willow_logs", Count: 1}}},
		{ID: "burn_normal", Skill: "firemaking", Kind: KindSkill, UnlockLevel: 1, DurationTicks: 40, XP: 19,
			Inputs: []ItemCount{{Item: "normal_logs", Count: 1}}},
		{ID: "burn_oak", Skill: "firemaking", Kind: KindSkill, UnlockLevel: 10, DurationTicks: 50, XP: 39,
			Inputs: []ItemCount{{Item: "oak_logs", Count: 1}}},
		{ID: "fish_shrimp", Skill: "fishing", Kind: KindSkill, UnlockLevel: 1, DurationTicks: 80, MaxDurationTicks: 120, XP: 10,
			Drops: DropList{DropTable{Rolls: 1, Entries: []TableEntry{
				{Item: "raw_shrimp", Min: 1, Max: 1, Weight: 90},
				{Item: "old_boot", Min: 1, Max: 1, Weight: 10},
			}}}},
		{ID: "fish_sardine", Skill: "fishing", Kind: KindSkill, UnlockLevel: 5, DurationTicks: 100, MaxDurationTicks: 140, XP: 15,
			Drops: DropList{DropTable{Rolls: 1, Entries: []TableEntry{
				{Item: "raw_sardine", Min: 1, Max: 2, Weight: 80},
				{Item: "old_boot", Min: 1, Max: 1, Weight: 20},
			}}}},
		{ID: "cook_shrimp", Skill: "cooking", Kind: KindSkill, UnlockLevel: 1, DurationTicks: 60, XP: 5,
			Inputs: []ItemCount{{Item: "raw_shrimp", Count: 1}},
			Drops:  DropList{FixedDrop{Item: "shrimp", Count: 1}}},
		{ID: "cook_sardine", Skill: "cooking", Kind: KindSkill, UnlockLevel: 5, DurationTicks: 60, XP: 10,
			Inputs: []ItemCount{{Item: "raw_sardine", Count: 1}},
			Drops:  DropList{FixedDrop{Item: "sardine", Count: 1}}},
		{ID: "copper_rock", Skill: "mining", Kind: KindMining, UnlockLevel: 1, DurationTicks: 60, XP: 7,
			RockHP: 5, RespawnTicks: 100, Drops: DropList{FixedDrop{Item: "copper_ore", Count: 1}}},
		{ID: "tin_rock", Skill: "mining", Kind: KindMining, UnlockLevel: 1, DurationTicks: 60, XP: 7,
			RockHP: 5, RespawnTicks: 100, Drops: DropList{FixedDrop{Item: "tin_ore", Count: 1}}},
		{ID: "smelt_bronze", Skill: "smithing", Kind: KindSkill, UnlockLevel: 1, DurationTicks: 40, XP: 5,
			Inputs: []ItemCount{{Item: "copper_ore", Count: 1}, {Item: "tin_ore", Count: 1}},
			Drops:  DropList{FixedDrop{Item: "bronze_bar", Count: 1}}},
		{ID: "pickpocket_man", Skill: "thieving", Kind: KindThieving, UnlockLevel: 1, DurationTicks: 60, XP: 5, GP: 6,
			BaseSuccess: 0.7, FailDamage: 8, StunTicks: 60},
		{ID: "pickpocket_farmer", Skill: "thieving", Kind: KindThieving, UnlockLevel: 10, DurationTicks: 60, XP: 12, GP: 12,
			BaseSuccess: 0.6, FailDamage: 12, StunTicks: 60,
			Drops: DropList{ChanceDrop{Chance: 0.2, Item: "potato_seed", Count: 2}}},
		{ID: "fight_chicken", Skill: "attack", Kind: KindCombat, UnlockLevel: 1, DurationTicks: 50, XP: 8,
			DamagePerCompletion: 3, Drops: DropList{FixedDrop{Item: "feathers", Count: 5}}},
		{ID: "plant_potato", Skill: "farming", Kind: KindFarming, UnlockLevel: 1, DurationTicks: 20, XP: 9, GrowTicks: 600,
			Inputs: []ItemCount{{Item: "potato_seed", Count: 1}},
			Drops:  DropList{DropTable{Rolls: 1, Entries: []TableEntry{{Item: "potatoes", Min: 2, Max: 6, Weight: 1}}}}},
		{ID: "craft_air_rune", Skill: "runecrafting", Kind: KindSkill, UnlockLevel: 1, DurationTicks: 40, XP: 5,
			Inputs: []ItemCount{{Item: "rune_essence", Count: 1}},
			Drops:  DropList{FixedDrop{Item: "air_rune", Count: 1}}},
	}
	shop := []PurchaseDef{
		{ID: "iron_axe", Cost: CostCurve{Base: 50}, Effect: Effect{Kind: EffectDurationMultiplier, Skill: "woodcutting", Value: 0.2}},
		{ID: "steel_axe", Cost: CostCurve{Base: 750}, RequiresSkill: "woodcutting", RequiresLevel: 10,
			Effect: Effect{Kind: EffectDurationMultiplier, Skill: "woodcutting", Value: 0.2}},
		{ID: "fishing_rod", Cost: CostCurve{Base: 100}, Effect: Effect{Kind: EffectDurationMultiplier, Skill: "fishing", Value: 0.15}},
		{ID: "lucky_charm", Cost: CostCurve{Base: 400}, Effect: Effect{Kind: EffectDoublingChance, Skill: "woodcutting", Value: 0.1}},
		{ID: "extra_slot", Cost: CostCurve{Base: 20, Growth: 1.5}, MaxCount: 10, Effect: Effect{Kind: EffectInventorySlots, Value: 1}},
		{ID: "township_hut", Cost: CostCurve{Base: 200, Growth: 2}, MaxCount: 3, Effect: Effect{Kind: EffectTownshipIncome, Value: 4}},
	}
	c, err := New(skills, items, actions, shop)
	if err != nil {
		panic("catalogs: bad fixture: " + err.Error())
	}
	return c
}
