package combat

import "math"

type Defense string

const (
	DefenseNone        Defense = ""
	DefenseVolley      Defense = "volley"
	DefenseMercenaries Defense = "mercenaries"
	DefenseShield      Defense = "shield"
)

func ParseDefense(s string) (Defense, bool) {
	switch Defense(s) {
	case DefenseVolley, DefenseMercenaries, DefenseShield:
		return Defense(s), true
	}
	return DefenseNone, false
}

type Tier string

const (
	TierVictory Tier = "victory"
	TierPyrrhic Tier = "pyrrhic"
	TierDefeat  Tier = "defeat"
)

type PvPParams struct {
	AttackPerShip    float64
	AttackPerLevel   float64
	DefensePerCannon float64
	DefensePerLevel  float64
	Noise            float64

	VictoryAt float64
	PyrrhicAt float64

	VictoryStealMin float64
	VictoryStealMax float64
	PyrrhicStealMin float64
	PyrrhicStealMax float64
	StealCap        float64
	WinStealCap     float64

	DefeatLossMin float64
	DefeatLossMax float64

	VolleyMultiplier  float64
	MercenaryDefense  float64
	ShieldStealFactor float64
}

type PvPInput struct {
	Ships          int
	AttackerLevel  int
	StealBonus     float64
	DefenderCannon int
	DefenderLevel  int
	Defense        Defense
}

type PvPOutcome struct {
	AttackPower   float64
	DefensePower  float64
	Ratio         float64
	Survivor      float64
	Tier          Tier
	StealFraction float64
	BoatsLost     int
	BoatsReturned int
}

func AttackPower(p PvPParams, ships, level int) float64 {
	return float64(ships)*p.AttackPerShip + float64(level)*p.AttackPerLevel
}

func DefensePower(p PvPParams, cannon, level int, d Defense) float64 {
	def := float64(cannon)*p.DefensePerCannon + float64(level)*p.DefensePerLevel
	switch d {
	case DefenseVolley:
		def *= p.VolleyMultiplier
	case DefenseMercenaries:
		def += p.MercenaryDefense
	}
	return def
}

// ResolvePvP picks the outcome tier of a raid on a player island.
// BoatsLost + BoatsReturned always equals in.Ships.
func ResolvePvP(r Rand, p PvPParams, in PvPInput) PvPOutcome {
	out := PvPOutcome{
		AttackPower:  AttackPower(p, in.Ships, in.AttackerLevel),
		DefensePower: DefensePower(p, in.DefenderCannon, in.DefenderLevel, in.Defense),
	}
	total := out.AttackPower + out.DefensePower
	if total > 0 {
		out.Ratio = out.AttackPower / total
	}
	out.Survivor = clamp01(out.Ratio + Uniform(r, -p.Noise, p.Noise))

	switch {
	case out.Survivor >= p.VictoryAt:
		out.Tier = TierVictory
		out.StealFraction = Uniform(r, p.VictoryStealMin, p.VictoryStealMax)
	case out.Survivor >= p.PyrrhicAt:
		out.Tier = TierPyrrhic
		out.StealFraction = Uniform(r, p.PyrrhicStealMin, p.PyrrhicStealMax)
	default:
		out.Tier = TierDefeat
	}

	if out.Tier == TierDefeat {
		out.BoatsLost = lossShips(in.Ships, Uniform(r, p.DefeatLossMin, p.DefeatLossMax))
	} else {
		bonus := math.Min(math.Max(in.StealBonus, 0), p.WinStealCap)
		out.StealFraction += bonus
		if p.StealCap > 0 && out.StealFraction > p.StealCap {
			out.StealFraction = p.StealCap
		}
		if in.Defense == DefenseShield {
			out.StealFraction *= p.ShieldStealFactor
		}
		out.BoatsLost = int(math.Floor(float64(in.Ships) * (1 - out.Survivor)))
		if out.BoatsLost > in.Ships {
			out.BoatsLost = in.Ships
		}
	}
	out.BoatsReturned = in.Ships - out.BoatsLost
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

type Loot struct {
	Rum  int `json:"rum"`
	Gold int `json:"gold"`
	Wood int `json:"wood"`
}

func (l Loot) Total() int { return l.Rum + l.Gold + l.Wood }

// Steal takes frac of each balance, floored.
func Steal(rum, gold, wood, frac float64) Loot {
	return Loot{
		Rum:  int(math.Floor(math.Max(rum, 0) * frac)),
		Gold: int(math.Floor(math.Max(gold, 0) * frac)),
		Wood: int(math.Floor(math.Max(wood, 0) * frac)),
	}
}

type Plunder struct {
	Stolen         Loot
	ToAttacker     Loot
	DebrisTotal    int
	AttackerDebris int
	DefenderDebris int
}

// SplitPlunder turns a stolen amount into what the attacker carries home and
// the debris left behind. Debris is taken from each resource separately and
// the attacker's share of it is folded back in the same proportions, so
// ToAttacker plus DefenderDebris always equals the stolen total.
func SplitPlunder(stolen Loot, debrisRatio, attackerShare float64) Plunder {
	pl := Plunder{Stolen: stolen}
	debris := func(v int) int { return int(math.Floor(float64(max(v, 0)) * debrisRatio)) }
	dr, dg, dw := debris(stolen.Rum), debris(stolen.Gold), debris(stolen.Wood)
	pl.DebrisTotal = dr + dg + dw
	pl.AttackerDebris = int(math.Floor(float64(pl.DebrisTotal) * attackerShare))
	pl.DefenderDebris = pl.DebrisTotal - pl.AttackerDebris

	back := func(d int) int {
		if pl.DebrisTotal == 0 {
			return 0
		}
		return pl.AttackerDebris * d / pl.DebrisTotal
	}
	br, bg, bw := back(dr), back(dg), back(dw)
	// Rounding leftovers go to the resource that shed the most debris.
	rest := pl.AttackerDebris - br - bg - bw
	switch {
	case dr >= dg && dr >= dw:
		br += rest
	case dg >= dw:
		bg += rest
	default:
		bw += rest
	}
	pl.ToAttacker = Loot{Rum: stolen.Rum - dr + br, Gold: stolen.Gold - dg + bg, Wood: stolen.Wood - dw + bw}
	return pl
}

// SplitRaidLoot divides a PvE raid roll 70/20/10 into rum/wood/gold.
func SplitRaidLoot(total int) Loot {
	return Loot{
		Rum:  int(math.Floor(float64(total) * 0.70)),
		Wood: int(math.Floor(float64(total) * 0.20)),
		Gold: int(math.Floor(float64(total) * 0.10)),
	}
}
