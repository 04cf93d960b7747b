package world

import (
	"cmp"
	"encoding/hex"
	"math"
	"slices"

	"lukechampine.com/blake3"

	"pirateisles/internal/sim/archipelago"
)

type Player struct {
	Nick       string
	SecretHash string
	X, Y       float64

	Tavern int
	Dock   int
	Cannon int
	Island int

	// Boats are ships at home. Committed are ships out on open missions.
	Boats     int
	Committed int

	Rum  float64
	Gold float64
	Wood float64

	PvPUntilMs       int64
	ShieldUntilMs    int64
	ShieldBuyUntilMs int64

	Passive Passive
	Wipe    WipeState

	Destruction int
	Repair      float64

	Debris        float64
	DebrisUntilMs int64

	ArchiDepleted map[int]int64

	CreatedMs  int64
	LastSeenMs int64
	Online     bool
}

// Passive holds permanent bonuses. Income and Legacy are fractions added to
// the income multiplier; PvPSteal is added to the PvP steal fraction.
type Passive struct {
	Income   float64
	PvPSteal float64
	Legacy   float64
	Missions int
	PvPWins  int
}

type WipeState struct {
	Threshold int
	Count     int
	Wipes     int
}

func (w *World) capacity(p *Player) int {
	return w.tun.Economy.BaseBoatCapacity + (p.Dock-1)*w.tun.Economy.BoatsPerDock
}

func (w *World) incomeMultiplier(p *Player) float64 {
	income := math.Min(p.Passive.Income, w.tun.Passive.IncomeCap)
	return 1 + income + p.Passive.Legacy
}

// rumRate is rum per second while online.
func (w *World) rumRate(p *Player) float64 {
	e := w.tun.Economy
	return (e.BaseRumPerSec + float64(p.Tavern-1)*e.RumPerTavernLevel) * w.incomeMultiplier(p)
}

// woodRate is the archipelago wood income per second.
func (w *World) woodRate(p *Player) float64 {
	return w.tun.Economy.ArchipelagoWoodPerSec * float64(archipelago.Count(p.Nick))
}

func (w *World) scaled(base float64, exp int) float64 {
	return math.Floor(base * math.Pow(w.tun.Costs.Multiplier, float64(exp)))
}

func (w *World) tavernCost(level int) float64 { return w.scaled(w.tun.Costs.TavernRum, level-1) }
func (w *World) dockCost(level int) float64   { return w.scaled(w.tun.Costs.DockWood, level-1) }

func (w *World) cannonCost(level int) (rum, wood float64) {
	return w.scaled(w.tun.Costs.CannonRum, level), w.scaled(w.tun.Costs.CannonWood, level)
}

func (w *World) islandCost(level int) (rum, wood float64) {
	return w.scaled(w.tun.Costs.IslandRum, level-1), w.scaled(w.tun.Costs.IslandWood, level-1)
}

func (w *World) shieldCost(p *Player) float64 {
	return w.tun.Costs.ShieldGoldPerL * float64(p.Island)
}

func (w *World) addIncomeBonus(p *Player, v float64) {
	p.Passive.Income = math.Min(p.Passive.Income+v, w.tun.Passive.IncomeCap)
}

func (p *Player) add(resource string, amount float64) {
	switch resource {
	case "rum":
		p.Rum += amount
	case "gold":
		p.Gold += amount
	case "wood":
		p.Wood += amount
	}
}

func hashSecret(secret string) string {
	sum := blake3.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// PlayerView is the externally observable form of a player. Balances are
// floored here and nowhere else.
type PlayerView struct {
	Nick          string        `json:"nick"`
	X             float64       `json:"pos_x"`
	Y             float64       `json:"pos_y"`
	Island        int           `json:"island_level"`
	Tavern        int           `json:"tavern_level"`
	Dock          int           `json:"dock_level"`
	Cannon        int           `json:"cannon_level"`
	Rum           int           `json:"rum"`
	Gold          int           `json:"gold"`
	Wood          int           `json:"wood"`
	Boats         int           `json:"boats"`
	BoatsMax      int           `json:"boats_max"`
	Committed     int           `json:"boats_out"`
	ShieldUntil   int64         `json:"shield_until"`
	PvPCooldown   int64         `json:"pvp_cooldown"`
	Destruction   int           `json:"destruction_state"`
	IncomeBonus   float64       `json:"income_bonus"`
	Legacy        float64       `json:"legacy_bonus"`
	DebrisGold    int           `json:"debris_gold"`
	Online        bool          `json:"online"`
	ActiveRaids   int           `json:"active_raids"`
	ArchiDepleted map[int]int64 `json:"archi_depleted,omitempty"`
}

func floorInt(v float64) int {
	if v <= 0 {
		return 0
	}
	return int(math.Floor(v))
}

func (w *World) playerView(p *Player) PlayerView {
	raids := 0
	for _, m := range w.missions {
		if m.Owner == p.Nick && m.Kind == KindRaid {
			raids++
		}
	}
	return PlayerView{
		Nick:          p.Nick,
		X:             p.X,
		Y:             p.Y,
		Island:        p.Island,
		Tavern:        p.Tavern,
		Dock:          p.Dock,
		Cannon:        p.Cannon,
		Rum:           floorInt(p.Rum),
		Gold:          floorInt(p.Gold),
		Wood:          floorInt(p.Wood),
		Boats:         p.Boats,
		BoatsMax:      w.capacity(p),
		Committed:     p.Committed,
		ShieldUntil:   p.ShieldUntilMs,
		PvPCooldown:   p.PvPUntilMs,
		Destruction:   p.Destruction,
		IncomeBonus:   p.Passive.Income,
		Legacy:        p.Passive.Legacy,
		DebrisGold:    floorInt(p.Debris),
		Online:        p.Online,
		ActiveRaids:   raids,
		ArchiDepleted: p.ArchiDepleted,
	}
}

func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	out := make([]K, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
