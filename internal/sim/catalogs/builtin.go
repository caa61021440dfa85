package catalogs

// militaryFile is the default economy: points buy assets and nothing else.
func militaryFile() fileV1 {
	return fileV1{
		Variant: VariantMilitary,
		Assets: []AssetDef{
			{ID: "soldier", DisplayName: "Soldier", Cost: 10, Power: 1},
			{ID: "tank", DisplayName: "Tank", Cost: 150, Power: 20},
			{ID: "artillery", DisplayName: "Artillery", Cost: 300, Power: 45},
			{ID: "aircraft", DisplayName: "Aircraft", Cost: 500, Power: 80},
			{ID: "warship", DisplayName: "Warship", Cost: 800, Power: 130},
		},
	}
}

// extendedFile is the richer economy: worker units harvest materials and
// the heavier assets need materials on top of points.
func extendedFile() fileV1 {
	return fileV1{
		Variant: VariantExtended,
		Materials: []MaterialDef{
			{ID: "wood", DisplayName: "Wood"},
			{ID: "stone", DisplayName: "Stone"},
			{ID: "iron", DisplayName: "Iron"},
			{ID: "oil", DisplayName: "Oil"},
		},
		Units: []UnitDef{
			{ID: "lumberjack", DisplayName: "Lumberjack", Cost: 50, Yields: map[string]int64{"wood": 5}},
			{ID: "mason", DisplayName: "Mason", Cost: 60, Yields: map[string]int64{"stone": 4}},
			{ID: "miner", DisplayName: "Miner", Cost: 80, Yields: map[string]int64{"iron": 3}},
			{ID: "driller", DisplayName: "Driller", Cost: 120, Yields: map[string]int64{"oil": 2}},
		},
		Assets: []AssetDef{
			{ID: "soldier", DisplayName: "Soldier", Cost: 10, Power: 1},
			{ID: "archer", DisplayName: "Archer", Cost: 25, Power: 3, Materials: map[string]int64{"wood": 2}},
			{ID: "tank", DisplayName: "Tank", Cost: 150, Power: 20, Materials: map[string]int64{"iron": 10, "oil": 2}},
			{ID: "fortress", DisplayName: "Fortress", Cost: 400, Power: 60, Materials: map[string]int64{"stone": 40, "wood": 10}},
			{ID: "aircraft", DisplayName: "Aircraft", Cost: 500, Power: 80, Materials: map[string]int64{"iron": 20, "oil": 10}},
		},
		Quests: []QuestTemplate{
			{ID: "chatter", Title: "Send 50 messages", Type: QuestActivity, Target: 50, Reward: 100},
			{ID: "recruiter", Title: "Buy 20 military assets", Type: QuestPurchase, Target: 20, Reward: 150},
			{ID: "conqueror", Title: "Win 5 battles", Type: QuestBattleWin, Target: 5, Reward: 300},
			{ID: "warlord", Title: "Win 25 battles", Type: QuestBattleWin, Target: 25, Reward: 2000},
		},
	}
}
