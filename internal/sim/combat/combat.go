// Package combat resolves fleet engagements and PvP raids.
//
// Every function here is pure over its inputs and the supplied random source,
// so callers can replay an outcome by reseeding.
package combat

import "math"

// Rand is the subset of *math/rand.Rand the resolvers draw from.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// Uniform draws from [min, max).
func Uniform(r Rand, min, max float64) float64 {
	if max <= min {
		return min
	}
	return min + r.Float64()*(max-min)
}

// RollRange draws an integer loot amount in [min, max).
func RollRange(r Rand, min, max int) int {
	if max <= min {
		return min
	}
	return min + int(math.Floor(r.Float64()*float64(max-min)))
}

// RollInclusive draws an integer in [min, max].
func RollInclusive(r Rand, min, max int) int {
	if max <= min {
		return min
	}
	return min + r.Intn(max-min+1)
}

// Chance reports whether an event with probability p happened.
func Chance(r Rand, p float64) bool {
	if p <= 0 {
		return false
	}
	return r.Float64() < p
}

// lossShips converts a loss fraction into whole ships, clamped to [0, ships].
func lossShips(ships int, frac float64) int {
	if ships <= 0 {
		return 0
	}
	lost := int(math.Round(float64(ships) * frac))
	if lost < 0 {
		lost = 0
	}
	if lost > ships {
		lost = ships
	}
	return lost
}

// winnerLoss is lossShips with the winner always keeping one ship afloat.
func winnerLoss(ships int, frac float64) int {
	lost := lossShips(ships, frac)
	if ships > 0 && lost >= ships {
		lost = ships - 1
	}
	return lost
}

type FleetParams struct {
	PowerMin      float64
	PowerMax      float64
	WinnerLossMin float64
	WinnerLossMax float64
	LoserLossMin  float64
	LoserLossMax  float64
	NPCLossMin    float64
	NPCLossMax    float64
}

type FleetOutcome struct {
	AttackerPower float64
	DefenderPower float64
	AttackerWins  bool
	AttackerLost  int
	DefenderLost  int
}

func (o FleetOutcome) AttackerSurvivors(ships int) int { return ships - o.AttackerLost }
func (o FleetOutcome) DefenderSurvivors(ships int) int { return ships - o.DefenderLost }

// FleetVsFleet resolves two player fleets. Power is ships times a uniform
// multiplier; the defender keeps the field on a tie.
func FleetVsFleet(r Rand, p FleetParams, attackerShips, defenderShips int) FleetOutcome {
	out := FleetOutcome{
		AttackerPower: float64(attackerShips) * Uniform(r, p.PowerMin, p.PowerMax),
		DefenderPower: float64(defenderShips) * Uniform(r, p.PowerMin, p.PowerMax),
	}
	out.AttackerWins = out.AttackerPower > out.DefenderPower

	winnerFrac := Uniform(r, p.WinnerLossMin, p.WinnerLossMax)
	loserFrac := Uniform(r, p.LoserLossMin, p.LoserLossMax)
	if out.AttackerWins {
		out.AttackerLost = winnerLoss(attackerShips, winnerFrac)
		out.DefenderLost = lossShips(defenderShips, loserFrac)
	} else {
		out.DefenderLost = winnerLoss(defenderShips, winnerFrac)
		out.AttackerLost = lossShips(attackerShips, loserFrac)
	}
	return out
}

type NPCOutcome struct {
	Power  float64
	Escort float64
	Won    bool
	Lost   int
}

// FleetVsNPC resolves a player fleet against a fixed escort strength.
func FleetVsNPC(r Rand, p FleetParams, ships int, escort float64) NPCOutcome {
	out := NPCOutcome{
		Power:  float64(ships) * Uniform(r, p.PowerMin, p.PowerMax),
		Escort: escort,
	}
	out.Won = out.Power > escort
	if out.Won {
		out.Lost = winnerLoss(ships, Uniform(r, p.WinnerLossMin, p.WinnerLossMax))
	} else {
		out.Lost = lossShips(ships, Uniform(r, p.NPCLossMin, p.NPCLossMax))
	}
	return out
}
