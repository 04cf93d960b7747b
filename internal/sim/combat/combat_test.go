package combat

import (
	"math/rand"
	"testing"
)

func testFleetParams() FleetParams {
	return FleetParams{
		PowerMin:      0.8,
		PowerMax:      1.2,
		WinnerLossMin: 0.05,
		WinnerLossMax: 0.25,
		LoserLossMin:  0.20,
		LoserLossMax:  0.60,
		NPCLossMin:    0.50,
		NPCLossMax:    0.90,
	}
}

func testPvPParams() PvPParams {
	return PvPParams{
		AttackPerShip:     10,
		AttackPerLevel:    5,
		DefensePerCannon:  15,
		DefensePerLevel:   3,
		Noise:             0.15,
		VictoryAt:         0.60,
		PyrrhicAt:         0.35,
		VictoryStealMin:   0.30,
		VictoryStealMax:   0.50,
		PyrrhicStealMin:   0.10,
		PyrrhicStealMax:   0.30,
		StealCap:          0.65,
		WinStealCap:       0.15,
		DefeatLossMin:     0.70,
		DefeatLossMax:     1.00,
		VolleyMultiplier:  1.5,
		MercenaryDefense:  20,
		ShieldStealFactor: 0.5,
	}
}

func TestFleetVsFleet_WinnerKeepsShipAndLosesLess(t *testing.T) {
	p := testFleetParams()
	for seed := int64(0); seed < 500; seed++ {
		r := rand.New(rand.NewSource(seed))
		a, d := 1+int(seed%7), 1+int(seed%5)
		out := FleetVsFleet(r, p, a, d)
		if out.AttackerWins != (out.AttackerPower > out.DefenderPower) {
			t.Fatalf("seed %d: winner does not match power %+v", seed, out)
		}
		if out.AttackerLost < 0 || out.AttackerLost > a || out.DefenderLost < 0 || out.DefenderLost > d {
			t.Fatalf("seed %d: losses out of range %+v", seed, out)
		}
		if out.AttackerWins && out.AttackerSurvivors(a) < 1 {
			t.Fatalf("seed %d: winning attacker sank: %+v", seed, out)
		}
		if !out.AttackerWins && out.DefenderSurvivors(d) < 1 {
			t.Fatalf("seed %d: winning defender sank: %+v", seed, out)
		}
	}
}

func TestFleetVsFleet_DeterministicUnderSeed(t *testing.T) {
	p := testFleetParams()
	a := FleetVsFleet(rand.New(rand.NewSource(42)), p, 4, 4)
	b := FleetVsFleet(rand.New(rand.NewSource(42)), p, 4, 4)
	if a != b {
		t.Fatalf("same seed produced different outcomes: %+v vs %+v", a, b)
	}
}

func TestFleetVsNPC_Bounds(t *testing.T) {
	p := testFleetParams()
	for seed := int64(0); seed < 200; seed++ {
		// 20 ships at the weakest multiplier still beat escort 12.
		win := FleetVsNPC(rand.New(rand.NewSource(seed)), p, 20, 12)
		if !win.Won {
			t.Fatalf("seed %d: expected win %+v", seed, win)
		}
		if win.Lost < 1 || win.Lost > 5 {
			t.Fatalf("seed %d: winner loss out of band: %d", seed, win.Lost)
		}

		// 5 ships at the strongest multiplier still lose to escort 12.
		lose := FleetVsNPC(rand.New(rand.NewSource(seed)), p, 5, 12)
		if lose.Won {
			t.Fatalf("seed %d: expected loss %+v", seed, lose)
		}
		if lose.Lost < 3 || lose.Lost > 5 {
			t.Fatalf("seed %d: defeat loss out of band: %d", seed, lose.Lost)
		}
	}
}

func TestResolvePvP_UndefendedLevelOneIsVictory(t *testing.T) {
	p := testPvPParams()
	in := PvPInput{Ships: 2, AttackerLevel: 1, DefenderCannon: 0, DefenderLevel: 1}
	for seed := int64(0); seed < 1000; seed++ {
		out := ResolvePvP(rand.New(rand.NewSource(seed)), p, in)
		if out.Tier != TierVictory {
			t.Fatalf("seed %d: tier=%s survivor=%.3f", seed, out.Tier, out.Survivor)
		}
		if out.StealFraction < 0.30 || out.StealFraction >= 0.50 {
			t.Fatalf("seed %d: steal=%.3f", seed, out.StealFraction)
		}
		if out.BoatsLost != 0 || out.BoatsReturned != 2 {
			t.Fatalf("seed %d: lost=%d returned=%d", seed, out.BoatsLost, out.BoatsReturned)
		}
	}
}

func TestResolvePvP_ShipConservation(t *testing.T) {
	p := testPvPParams()
	defenses := []Defense{DefenseNone, DefenseVolley, DefenseMercenaries, DefenseShield}
	for seed := int64(0); seed < 600; seed++ {
		in := PvPInput{
			Ships:          1 + int(seed%9),
			AttackerLevel:  1 + int(seed%4),
			StealBonus:     float64(seed%10) * 0.02,
			DefenderCannon: int(seed % 6),
			DefenderLevel:  1 + int(seed%5),
			Defense:        defenses[seed%4],
		}
		out := ResolvePvP(rand.New(rand.NewSource(seed)), p, in)
		if out.BoatsLost+out.BoatsReturned != in.Ships {
			t.Fatalf("seed %d: lost %d + returned %d != %d", seed, out.BoatsLost, out.BoatsReturned, in.Ships)
		}
		if out.BoatsLost < 0 || out.BoatsReturned < 0 {
			t.Fatalf("seed %d: negative ships %+v", seed, out)
		}
		if out.Tier == TierDefeat && out.StealFraction != 0 {
			t.Fatalf("seed %d: defeat stole %.3f", seed, out.StealFraction)
		}
		if out.StealFraction > p.StealCap {
			t.Fatalf("seed %d: steal %.3f above cap", seed, out.StealFraction)
		}
	}
}

func TestResolvePvP_HeavyDefenseIsDefeat(t *testing.T) {
	p := testPvPParams()
	in := PvPInput{Ships: 1, AttackerLevel: 1, DefenderCannon: 10, DefenderLevel: 5}
	for seed := int64(0); seed < 200; seed++ {
		out := ResolvePvP(rand.New(rand.NewSource(seed)), p, in)
		if out.Tier != TierDefeat {
			t.Fatalf("seed %d: tier=%s", seed, out.Tier)
		}
		if out.BoatsLost != 1 || out.BoatsReturned != 0 {
			t.Fatalf("seed %d: lost=%d returned=%d", seed, out.BoatsLost, out.BoatsReturned)
		}
	}
}

func TestDefensePower_Modifiers(t *testing.T) {
	p := testPvPParams()
	base := DefensePower(p, 2, 1, DefenseNone)
	if base != 33 {
		t.Fatalf("base defense=%v", base)
	}
	if got := DefensePower(p, 2, 1, DefenseVolley); got != 49.5 {
		t.Fatalf("volley defense=%v", got)
	}
	if got := DefensePower(p, 2, 1, DefenseMercenaries); got != 53 {
		t.Fatalf("mercenary defense=%v", got)
	}
	if got := DefensePower(p, 2, 1, DefenseShield); got != base {
		t.Fatalf("shield should not change defense power: %v", got)
	}
}

func TestResolvePvP_ShieldHalvesSteal(t *testing.T) {
	p := testPvPParams()
	in := PvPInput{Ships: 2, AttackerLevel: 1, DefenderLevel: 1}
	plain := ResolvePvP(rand.New(rand.NewSource(7)), p, in)
	in.Defense = DefenseShield
	shielded := ResolvePvP(rand.New(rand.NewSource(7)), p, in)
	if shielded.StealFraction != plain.StealFraction*0.5 {
		t.Fatalf("shielded steal=%.4f plain=%.4f", shielded.StealFraction, plain.StealFraction)
	}
}

func TestSplitPlunder(t *testing.T) {
	pl := SplitPlunder(Loot{Rum: 100}, 0.4, 0.7)
	if pl.DebrisTotal != 40 || pl.AttackerDebris != 28 || pl.DefenderDebris != 12 {
		t.Fatalf("debris split: %+v", pl)
	}
	if pl.ToAttacker.Rum != 88 || pl.ToAttacker.Gold != 0 || pl.ToAttacker.Wood != 0 {
		t.Fatalf("attacker share: %+v", pl.ToAttacker)
	}

	empty := SplitPlunder(Loot{}, 0.4, 0.7)
	if empty.ToAttacker.Total() != 0 || empty.DebrisTotal != 0 {
		t.Fatalf("empty plunder: %+v", empty)
	}
}

func TestSplitPlunder_ConservesStolenTotal(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for i := 0; i < 1000; i++ {
		stolen := Loot{Rum: r.Intn(500), Gold: r.Intn(50), Wood: r.Intn(5)}
		pl := SplitPlunder(stolen, 0.4, 0.7)
		if got := pl.ToAttacker.Total() + pl.DefenderDebris; got != stolen.Total() {
			t.Fatalf("stolen %+v: attacker %+v + debris %d = %d", stolen, pl.ToAttacker, pl.DefenderDebris, got)
		}
		if pl.ToAttacker.Rum < 0 || pl.ToAttacker.Gold < 0 || pl.ToAttacker.Wood < 0 {
			t.Fatalf("negative share: %+v", pl.ToAttacker)
		}
	}
}

func TestSplitRaidLoot(t *testing.T) {
	l := SplitRaidLoot(1000)
	if l.Rum != 700 || l.Wood != 200 || l.Gold != 100 {
		t.Fatalf("split=%+v", l)
	}
}

func TestRollHelpers(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for i := 0; i < 500; i++ {
		if v := RollRange(r, 60, 180); v < 60 || v >= 180 {
			t.Fatalf("RollRange=%d", v)
		}
		if v := RollInclusive(r, 3, 6); v < 3 || v > 6 {
			t.Fatalf("RollInclusive=%d", v)
		}
	}
	if Chance(r, 0) {
		t.Fatalf("zero chance fired")
	}
}
