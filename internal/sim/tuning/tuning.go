package tuning

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	Map     MapTuning     `yaml:"map"`
	Periods PeriodTuning  `yaml:"periods"`
	Economy EconomyTuning `yaml:"economy"`
	Costs   CostTuning    `yaml:"costs"`

	Raid        RaidTuning        `yaml:"raid"`
	Archipelago HarvestTuning     `yaml:"archipelago"`
	Resources   ResourceTuning    `yaml:"resources"`
	Capture     CaptureTuning     `yaml:"capture"`
	Caravans    CaravanTuning     `yaml:"caravans"`
	Fleet       FleetCombatTuning `yaml:"fleet"`
	PvP         PvPTuning         `yaml:"pvp"`
	Defense     DefenseTuning     `yaml:"defense"`
	Passive     PassiveTuning     `yaml:"passive"`

	SnapshotEveryMs int `yaml:"snapshot_every_ms"`
}

type MapTuning struct {
	Width             float64 `yaml:"width"`
	Height            float64 `yaml:"height"`
	SpawnMargin       float64 `yaml:"spawn_margin"`
	PlayerMinDistance float64 `yaml:"player_min_distance"`
	SpawnAttempts     int     `yaml:"spawn_attempts"`
}

type PeriodTuning struct {
	EconomyMs   int `yaml:"economy_ms"`
	SweepMs     int `yaml:"sweep_ms"`
	CaravanMs   int `yaml:"caravan_ms"`
	PvPMotionMs int `yaml:"pvp_motion_ms"`
	BroadcastMs int `yaml:"broadcast_ms"`
	FlushMs     int `yaml:"flush_ms"`
}

type EconomyTuning struct {
	BaseRumPerSec         float64 `yaml:"base_rum_per_sec"`
	RumPerTavernLevel     float64 `yaml:"rum_per_tavern_level"`
	ArchipelagoWoodPerSec float64 `yaml:"archipelago_wood_per_sec"`
	OfflineRate           float64 `yaml:"offline_rate"`
	OfflineMaxHours       float64 `yaml:"offline_max_hours"`
	OfflineMinSeconds     float64 `yaml:"offline_min_seconds"`

	RepairRumPerLevel     float64 `yaml:"repair_rum_per_level"`
	RepairProgressPerHour float64 `yaml:"repair_progress_per_hour"`

	DebrisDrainRate  float64 `yaml:"debris_drain_rate"`
	DebrisLifetimeMs int     `yaml:"debris_lifetime_ms"`

	BaseBoatCapacity int `yaml:"base_boat_capacity"`
	BoatsPerDock     int `yaml:"boats_per_dock"`
}

type CostTuning struct {
	Multiplier float64 `yaml:"multiplier"`

	TavernRum      float64 `yaml:"tavern_rum"`
	DockWood       float64 `yaml:"dock_wood"`
	CannonRum      float64 `yaml:"cannon_rum"`
	CannonWood     float64 `yaml:"cannon_wood"`
	IslandRum      float64 `yaml:"island_rum"`
	IslandWood     float64 `yaml:"island_wood"`
	ShipWood       float64 `yaml:"ship_wood"`
	ShipGold       float64 `yaml:"ship_gold"`
	ShieldGoldPerL float64 `yaml:"shield_gold_per_level"`

	ShieldDurationMs int `yaml:"shield_duration_ms"`
	ShieldCooldownMs int `yaml:"shield_cooldown_ms"`
}

type LootRange struct {
	Resource string `yaml:"resource"`
	Min      int    `yaml:"min"`
	Max      int    `yaml:"max"`
}

type RaidTuning struct {
	MinDurationMs int     `yaml:"min_duration_ms"`
	MaxDurationMs int     `yaml:"max_duration_ms"`
	LootMin       int     `yaml:"loot_min"`
	LootMax       int     `yaml:"loot_max"`
	LossChance    float64 `yaml:"loss_chance"`
}

type HarvestTuning struct {
	Speed       float64              `yaml:"speed"`
	MinTravelMs int                  `yaml:"min_travel_ms"`
	DepletionMs int                  `yaml:"depletion_ms"`
	LossChance  float64              `yaml:"loss_chance"`
	Loot        map[string]LootRange `yaml:"loot"`
}

type ResourceTuning struct {
	HarvestTuning `yaml:",inline"`

	Count    int `yaml:"count"`
	GridCols int `yaml:"grid_cols"`
	GridRows int `yaml:"grid_rows"`
}

type CaptureTuning struct {
	Count            int                  `yaml:"count"`
	Speed            float64              `yaml:"speed"`
	MinTravelMs      int                  `yaml:"min_travel_ms"`
	HoldMs           int                  `yaml:"hold_ms"`
	RespawnMs        int                  `yaml:"respawn_ms"`
	InterceptFloorMs int                  `yaml:"intercept_floor_ms"`
	Loot             map[string]LootRange `yaml:"loot"`
}

type CaravanTuning struct {
	Count       int     `yaml:"count"`
	Step        float64 `yaml:"step"`
	Escort      float64 `yaml:"escort"`
	LootMin     int     `yaml:"loot_min"`
	LootMax     int     `yaml:"loot_max"`
	CooldownMs  int     `yaml:"cooldown_ms"`
	RoutePoints int     `yaml:"route_points"`
	RouteRadius float64 `yaml:"route_radius"`
	// Intercepting fleets sail at Speed with at least MinTravelMs in transit.
	Speed       float64 `yaml:"speed"`
	MinTravelMs int     `yaml:"min_travel_ms"`
}

type FleetCombatTuning struct {
	PowerMin      float64 `yaml:"power_min"`
	PowerMax      float64 `yaml:"power_max"`
	WinnerLossMin float64 `yaml:"winner_loss_min"`
	WinnerLossMax float64 `yaml:"winner_loss_max"`
	LoserLossMin  float64 `yaml:"loser_loss_min"`
	LoserLossMax  float64 `yaml:"loser_loss_max"`
	NPCLossMin    float64 `yaml:"npc_loss_min"`
	NPCLossMax    float64 `yaml:"npc_loss_max"`
}

type PvPTuning struct {
	Speed         float64 `yaml:"speed"`
	ArrivalRadius float64 `yaml:"arrival_radius"`
	CooldownMs    int     `yaml:"cooldown_ms"`

	AttackPerShip    float64 `yaml:"attack_per_ship"`
	AttackPerLevel   float64 `yaml:"attack_per_level"`
	DefensePerCannon float64 `yaml:"defense_per_cannon"`
	DefensePerLevel  float64 `yaml:"defense_per_level"`
	Noise            float64 `yaml:"noise"`

	VictoryAt float64 `yaml:"victory_at"`
	PyrrhicAt float64 `yaml:"pyrrhic_at"`

	VictoryStealMin float64 `yaml:"victory_steal_min"`
	VictoryStealMax float64 `yaml:"victory_steal_max"`
	PyrrhicStealMin float64 `yaml:"pyrrhic_steal_min"`
	PyrrhicStealMax float64 `yaml:"pyrrhic_steal_max"`
	StealCap        float64 `yaml:"steal_cap"`
	WinStealBonus   float64 `yaml:"win_steal_bonus"`
	WinStealCap     float64 `yaml:"win_steal_cap"`
	DefeatLossMin   float64 `yaml:"defeat_loss_min"`
	DefeatLossMax   float64 `yaml:"defeat_loss_max"`

	DebrisRatio         float64 `yaml:"debris_ratio"`
	DebrisAttackerShare float64 `yaml:"debris_attacker_share"`

	ShieldAfterMinMs int `yaml:"shield_after_min_ms"`
	ShieldAfterMaxMs int `yaml:"shield_after_max_ms"`

	EnhancedRaidShips int     `yaml:"enhanced_raid_ships"`
	BreachChance      float64 `yaml:"breach_chance"`

	WipeThresholdMin int     `yaml:"wipe_threshold_min"`
	WipeThresholdMax int     `yaml:"wipe_threshold_max"`
	LegacyPerWipe    float64 `yaml:"legacy_per_wipe"`
	LegacyPerLevel   float64 `yaml:"legacy_per_level"`
	LegacyPerDestroy float64 `yaml:"legacy_per_destroy"`
}

type DefenseTuning struct {
	VolleyMultiplier   float64 `yaml:"volley_multiplier"`
	VolleyRumPerCannon float64 `yaml:"volley_rum_per_cannon"`
	MercenaryDefense   float64 `yaml:"mercenary_defense"`
	MercenaryGold      float64 `yaml:"mercenary_gold"`
	ShieldStealFactor  float64 `yaml:"shield_steal_factor"`
	ShieldGold         float64 `yaml:"shield_gold"`
}

type PassiveTuning struct {
	UpgradeIncome float64 `yaml:"upgrade_income"`
	MissionIncome float64 `yaml:"mission_income"`
	IncomeCap     float64 `yaml:"income_cap"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		Map: MapTuning{
			Width:             3000,
			Height:            2000,
			SpawnMargin:       300,
			PlayerMinDistance: 450,
			SpawnAttempts:     50,
		},
		Periods: PeriodTuning{
			EconomyMs:   1000,
			SweepMs:     5000,
			CaravanMs:   1000,
			PvPMotionMs: 100,
			BroadcastMs: 2000,
			FlushMs:     20000,
		},
		Economy: EconomyTuning{
			BaseRumPerSec:         2,
			RumPerTavernLevel:     1,
			ArchipelagoWoodPerSec: 0.4,
			OfflineRate:           0.40,
			OfflineMaxHours:       12,
			OfflineMinSeconds:     60,
			RepairRumPerLevel:     10,
			RepairProgressPerHour: 0.015,
			DebrisDrainRate:       0.001,
			DebrisLifetimeMs:      24 * 3600 * 1000,
			BaseBoatCapacity:      2,
			BoatsPerDock:          1,
		},
		Costs: CostTuning{
			Multiplier:       2,
			TavernRum:        400,
			DockWood:         300,
			CannonRum:        300,
			CannonWood:       200,
			IslandRum:        1000,
			IslandWood:       500,
			ShipWood:         200,
			ShipGold:         50,
			ShieldGoldPerL:   400,
			ShieldDurationMs: 4 * 3600 * 1000,
			ShieldCooldownMs: 24 * 3600 * 1000,
		},
		Raid: RaidTuning{
			MinDurationMs: 8 * 60 * 1000,
			MaxDurationMs: 20 * 60 * 1000,
			LootMin:       150,
			LootMax:       1200,
			LossChance:    0.12,
		},
		Archipelago: HarvestTuning{
			Speed:       120,
			MinTravelMs: 5000,
			DepletionMs: 15 * 60 * 1000,
			LossChance:  0.05,
			Loot: map[string]LootRange{
				"wood":  {Resource: "wood", Min: 60, Max: 180},
				"stone": {Resource: "gold", Min: 30, Max: 100},
				"rum":   {Resource: "rum", Min: 80, Max: 250},
			},
		},
		Resources: ResourceTuning{
			HarvestTuning: HarvestTuning{
				Speed:       120,
				MinTravelMs: 5000,
				DepletionMs: 30 * 60 * 1000,
				LossChance:  0.08,
				Loot: map[string]LootRange{
					"wood": {Resource: "wood", Min: 100, Max: 300},
					"gold": {Resource: "gold", Min: 80, Max: 200},
					"rum":  {Resource: "rum", Min: 150, Max: 400},
				},
			},
			Count:    20,
			GridCols: 5,
			GridRows: 4,
		},
		Capture: CaptureTuning{
			Count:            4,
			Speed:            120,
			MinTravelMs:      5000,
			HoldMs:           120 * 1000,
			RespawnMs:        10 * 60 * 1000,
			InterceptFloorMs: 10 * 1000,
			Loot: map[string]LootRange{
				"gold": {Resource: "gold", Min: 300, Max: 900},
				"rum":  {Resource: "rum", Min: 400, Max: 1200},
				"wood": {Resource: "wood", Min: 300, Max: 900},
			},
		},
		Caravans: CaravanTuning{
			Count:       3,
			Step:        8,
			Escort:      12,
			LootMin:     250,
			LootMax:     800,
			CooldownMs:  10 * 60 * 1000,
			RoutePoints: 4,
			RouteRadius: 350,
			Speed:       70,
			MinTravelMs: 5 * 1000,
		},
		Fleet: FleetCombatTuning{
			PowerMin:      0.8,
			PowerMax:      1.2,
			WinnerLossMin: 0.05,
			WinnerLossMax: 0.25,
			LoserLossMin:  0.20,
			LoserLossMax:  0.60,
			NPCLossMin:    0.50,
			NPCLossMax:    0.90,
		},
		PvP: PvPTuning{
			Speed:               70,
			ArrivalRadius:       10,
			CooldownMs:          30 * 60 * 1000,
			AttackPerShip:       10,
			AttackPerLevel:      5,
			DefensePerCannon:    15,
			DefensePerLevel:     3,
			Noise:               0.15,
			VictoryAt:           0.60,
			PyrrhicAt:           0.35,
			VictoryStealMin:     0.30,
			VictoryStealMax:     0.50,
			PyrrhicStealMin:     0.10,
			PyrrhicStealMax:     0.30,
			StealCap:            0.65,
			WinStealBonus:       0.02,
			WinStealCap:         0.15,
			DefeatLossMin:       0.70,
			DefeatLossMax:       1.00,
			DebrisRatio:         0.40,
			DebrisAttackerShare: 0.70,
			ShieldAfterMinMs:    4 * 3600 * 1000,
			ShieldAfterMaxMs:    8 * 3600 * 1000,
			EnhancedRaidShips:   5,
			BreachChance:        0.25,
			WipeThresholdMin:    3,
			WipeThresholdMax:    6,
			LegacyPerWipe:       0.05,
			LegacyPerLevel:      0.01,
			LegacyPerDestroy:    0.01,
		},
		Defense: DefenseTuning{
			VolleyMultiplier:   1.5,
			VolleyRumPerCannon: 150,
			MercenaryDefense:   20,
			MercenaryGold:      250,
			ShieldStealFactor:  0.5,
			ShieldGold:         300,
		},
		Passive: PassiveTuning{
			UpgradeIncome: 0.005,
			MissionIncome: 0.002,
			IncomeCap:     1.0,
		},
		SnapshotEveryMs: 10 * 60 * 1000,
	}
}

// Load reads a tuning.yaml on top of Defaults. Keys absent from the file keep
// their default values.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	periods := map[string]int{
		"periods.economy_ms":    t.Periods.EconomyMs,
		"periods.sweep_ms":      t.Periods.SweepMs,
		"periods.caravan_ms":    t.Periods.CaravanMs,
		"periods.pvp_motion_ms": t.Periods.PvPMotionMs,
		"periods.broadcast_ms":  t.Periods.BroadcastMs,
		"periods.flush_ms":      t.Periods.FlushMs,
	}
	for name, v := range periods {
		if v <= 0 {
			return fmt.Errorf("%s must be > 0", name)
		}
	}
	if t.Map.Width <= 2*t.Map.SpawnMargin || t.Map.Height <= 2*t.Map.SpawnMargin {
		return fmt.Errorf("map must be larger than twice the spawn margin")
	}
	if t.Caravans.Speed <= 0 {
		return fmt.Errorf("caravans.speed must be > 0")
	}
	if t.Economy.BaseBoatCapacity < 1 {
		return fmt.Errorf("economy.base_boat_capacity must be >= 1")
	}
	bands := []struct {
		name     string
		min, max float64
	}{
		{"raid duration", float64(t.Raid.MinDurationMs), float64(t.Raid.MaxDurationMs)},
		{"raid loot", float64(t.Raid.LootMin), float64(t.Raid.LootMax)},
		{"fleet power", t.Fleet.PowerMin, t.Fleet.PowerMax},
		{"fleet winner loss", t.Fleet.WinnerLossMin, t.Fleet.WinnerLossMax},
		{"fleet loser loss", t.Fleet.LoserLossMin, t.Fleet.LoserLossMax},
		{"fleet npc loss", t.Fleet.NPCLossMin, t.Fleet.NPCLossMax},
		{"pvp victory steal", t.PvP.VictoryStealMin, t.PvP.VictoryStealMax},
		{"pvp pyrrhic steal", t.PvP.PyrrhicStealMin, t.PvP.PyrrhicStealMax},
		{"pvp defeat loss", t.PvP.DefeatLossMin, t.PvP.DefeatLossMax},
		{"pvp post-attack shield", float64(t.PvP.ShieldAfterMinMs), float64(t.PvP.ShieldAfterMaxMs)},
		{"pvp wipe threshold", float64(t.PvP.WipeThresholdMin), float64(t.PvP.WipeThresholdMax)},
		{"caravan loot", float64(t.Caravans.LootMin), float64(t.Caravans.LootMax)},
	}
	for _, b := range bands {
		if b.min < 0 || b.max < b.min {
			return fmt.Errorf("%s band invalid: [%v, %v]", b.name, b.min, b.max)
		}
	}
	if t.Fleet.LoserLossMin < t.Fleet.WinnerLossMin || t.Fleet.LoserLossMax < t.Fleet.WinnerLossMax {
		return fmt.Errorf("fleet loser loss band must sit above the winner band")
	}
	if t.PvP.PyrrhicAt > t.PvP.VictoryAt {
		return fmt.Errorf("pvp.pyrrhic_at must be <= pvp.victory_at")
	}
	if t.PvP.WipeThresholdMin < 1 {
		return fmt.Errorf("pvp.wipe_threshold_min must be >= 1")
	}
	for name, m := range map[string]map[string]LootRange{
		"archipelago": t.Archipelago.Loot,
		"resources":   t.Resources.Loot,
		"capture":     t.Capture.Loot,
	} {
		for k, r := range m {
			if r.Max < r.Min || r.Min < 0 {
				return fmt.Errorf("%s.loot.%s band invalid", name, k)
			}
			switch r.Resource {
			case "rum", "gold", "wood":
			default:
				return fmt.Errorf("%s.loot.%s: unknown resource %q", name, k, r.Resource)
			}
		}
	}
	return nil
}

func Ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
