package world

import (
	"testing"
	"time"

	"pirateisles/internal/protocol"
	"pirateisles/internal/sim/combat"
	"pirateisles/internal/sim/tuning"
)

func attackCmd(target string, ships int) protocol.CommandMsg {
	c := cmd(protocol.CmdAttack)
	c.Target = target
	c.Ships = ships
	return c
}

// neighbours joins two players and parks the second island d units east of
// the first.
func neighbours(t *testing.T, w *World, a, b string, d float64) (*Player, *Player) {
	t.Helper()
	pa := mustJoin(t, w, a)
	pb := mustJoin(t, w, b)
	pb.X, pb.Y = pa.X+d, pa.Y
	return pa, pb
}

// sail runs the motion evaluator until mission id lands.
func sail(t *testing.T, w *World, clk *manualClock, id string) {
	t.Helper()
	for i := 0; i < 10000; i++ {
		if w.missions[id] == nil {
			return
		}
		step(w, clk, 100*time.Millisecond)
	}
	t.Fatalf("mission %s never arrived", id)
}

func TestPvP_LevelOneRaidIsAVictory(t *testing.T) {
	w, clk := newTestWorld(t, nil)
	anne, bob := neighbours(t, w, "anne", "bob", 200)
	bob.Rum, bob.Gold, bob.Wood = 1000, 500, 800

	launchMs := clk.Now().UnixMilli()
	ack := mustAccept(t, w, "anne", attackCmd("bob", 1))
	m := missionOf(t, w, ack)
	if eta := ack.Data.(attackLaunch).EtaSec; eta != 3 {
		t.Fatalf("eta=%ds, want ceil(200/70)=3", eta)
	}
	if anne.PvPUntilMs != launchMs+int64(w.tun.PvP.CooldownMs) {
		t.Fatalf("cooldown=%d", anne.PvPUntilMs)
	}
	if !hasEvent(events(t, w, "bob"), protocol.EventIncomingAttack) {
		t.Fatalf("bob not warned")
	}
	mustReject(t, w, "anne", attackCmd("bob", 1), protocol.ErrCooldown)

	// Keep income out of the books while the fleet is at sea.
	w.HandleLeave("anne")
	w.HandleLeave("bob")
	aBefore := anne.Rum + anne.Gold + anne.Wood
	bBefore := bob.Rum + bob.Gold + bob.Wood

	sail(t, w, clk, m.ID)
	landedMs := clk.Now().UnixMilli()

	if anne.Passive.PvPWins != 1 || anne.Passive.PvPSteal != w.tun.PvP.WinStealBonus {
		t.Fatalf("attacker passive: %+v", anne.Passive)
	}
	if anne.Boats != 2 || anne.Committed != 0 {
		t.Fatalf("attacker fleet: boats=%d committed=%d", anne.Boats, anne.Committed)
	}
	if bob.Rum < 500 || bob.Rum > 700 || bob.Gold < 250 || bob.Gold > 350 {
		t.Fatalf("steal outside 30-50%%: rum=%.0f gold=%.0f", bob.Rum, bob.Gold)
	}

	stolen := bBefore - (bob.Rum + bob.Gold + bob.Wood)
	gained := anne.Rum + anne.Gold + anne.Wood - aBefore
	if gained <= 0 || gained+bob.Debris != stolen {
		t.Fatalf("plunder not conserved: stolen=%.0f gained=%.0f debris=%.0f", stolen, gained, bob.Debris)
	}
	if bob.Debris <= 0 || bob.DebrisUntilMs != landedMs+int64(w.tun.Economy.DebrisLifetimeMs) {
		t.Fatalf("debris=%.0f until=%d", bob.Debris, bob.DebrisUntilMs)
	}
	minShield := landedMs + int64(w.tun.PvP.ShieldAfterMinMs)
	maxShield := landedMs + int64(w.tun.PvP.ShieldAfterMaxMs)
	if bob.ShieldUntilMs < minShield || bob.ShieldUntilMs > maxShield {
		t.Fatalf("shield until %d outside [%d,%d]", bob.ShieldUntilMs, minShield, maxShield)
	}
	if bob.Destruction != 1 || bob.Wipe.Count != 1 {
		t.Fatalf("destruction=%d wipe count=%d", bob.Destruction, bob.Wipe.Count)
	}
	checkInvariants(t, w)
}

func TestPvP_SelfAndUnknownTargets(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	mustJoin(t, w, "anne")
	mustReject(t, w, "anne", attackCmd("anne", 1), protocol.ErrInvalidTarget)
	mustReject(t, w, "anne", attackCmd("nobody", 1), protocol.ErrNotFound)
}

func TestPvP_ShieldedTargetRejectedAtLaunch(t *testing.T) {
	w, clk := newTestWorld(t, func(tun *tuning.Tuning) { tun.Economy.BaseBoatCapacity = 6 })
	anne, bob := neighbours(t, w, "anne", "bob", 200)
	bob.ShieldUntilMs = clk.Now().Add(time.Hour).UnixMilli()

	mustReject(t, w, "anne", attackCmd("bob", 1), protocol.ErrShielded)
	if anne.Boats != 6 || anne.PvPUntilMs != 0 {
		t.Fatalf("rejection changed attacker: boats=%d cooldown=%d", anne.Boats, anne.PvPUntilMs)
	}
	// An enhanced raid may try its luck against the shield.
	mustAccept(t, w, "anne", attackCmd("bob", w.tun.PvP.EnhancedRaidShips))
}

func TestPvP_ShieldRaisedInFlightAbortsCleanly(t *testing.T) {
	w, clk := newTestWorld(t, nil)
	anne, bob := neighbours(t, w, "anne", "bob", 500)
	bob.Rum = 1000

	ack := mustAccept(t, w, "anne", attackCmd("bob", 2))
	m := missionOf(t, w, ack)
	bob.ShieldUntilMs = clk.Now().Add(time.Hour).UnixMilli()
	events(t, w, "anne")

	sail(t, w, clk, m.ID)
	if anne.Boats != 2 || anne.Committed != 0 || anne.PvPUntilMs != 0 {
		t.Fatalf("abort not refunded: boats=%d committed=%d cooldown=%d", anne.Boats, anne.Committed, anne.PvPUntilMs)
	}
	if bob.Rum < 1000 || bob.Wipe.Count != 0 || bob.Destruction != 0 || anne.Passive.PvPWins != 0 {
		t.Fatalf("abort had side effects: bob rum=%.0f wipe=%d destruction=%d", bob.Rum, bob.Wipe.Count, bob.Destruction)
	}
	if !hasEvent(events(t, w, "anne"), protocol.EventAttackResult) {
		t.Fatalf("attacker not told about the abort")
	}
	checkInvariants(t, w)
}

func TestPvP_TargetRemovedInFlightAborts(t *testing.T) {
	w, clk := newTestWorld(t, nil)
	anne, _ := neighbours(t, w, "anne", "bob", 300)
	ack := mustAccept(t, w, "anne", attackCmd("bob", 1))
	m := missionOf(t, w, ack)

	w.HandleLeave("bob")
	delete(w.players, "bob")
	sail(t, w, clk, m.ID)
	if anne.Boats != 2 || anne.PvPUntilMs != 0 {
		t.Fatalf("boats=%d cooldown=%d", anne.Boats, anne.PvPUntilMs)
	}
}

func TestPvP_WipeResetsDefender(t *testing.T) {
	w, clk := newTestWorld(t, func(tun *tuning.Tuning) {
		tun.PvP.WipeThresholdMin, tun.PvP.WipeThresholdMax = 1, 1
		tun.PvP.ShieldAfterMinMs, tun.PvP.ShieldAfterMaxMs = 0, 0
		tun.Raid.MinDurationMs = 60 * 60 * 1000
		tun.Raid.MaxDurationMs = 60 * 60 * 1000
	})
	anne, bob := neighbours(t, w, "anne", "bob", 150)
	bob.Island, bob.Dock, bob.Tavern, bob.Cannon = 3, 3, 4, 0
	bob.Boats = w.capacity(bob)
	bob.Rum, bob.Gold, bob.Wood = 5000, 5000, 5000
	oldX, oldY := bob.X, bob.Y

	mustAccept(t, w, "bob", cmd(protocol.CmdRaid))
	if bob.Committed != 1 {
		t.Fatalf("bob raid not launched")
	}
	ack := mustAccept(t, w, "anne", attackCmd("bob", 1))
	m := missionOf(t, w, ack)
	carl := mustJoin(t, w, "carl")
	carl.X, carl.Y = bob.X+1500, bob.Y
	late := missionOf(t, w, mustAccept(t, w, "carl", attackCmd("bob", 1)))
	events(t, w, "bob")

	sail(t, w, clk, m.ID)
	if lp := late.Payload.(*PvPPayload); w.missions[late.ID] == nil || lp.TX != bob.X || lp.TY != bob.Y {
		t.Fatalf("fleet in flight still aims at the old island: (%v,%v) vs (%v,%v)", lp.TX, lp.TY, bob.X, bob.Y)
	}
	if bob.Wipe.Wipes != 1 || bob.Wipe.Count != 0 || bob.Wipe.Threshold != 1 {
		t.Fatalf("wipe state: %+v", bob.Wipe)
	}
	if bob.Tavern != 1 || bob.Dock != 1 || bob.Cannon != 0 || bob.Island != 1 {
		t.Fatalf("levels not reset: %d/%d/%d/%d", bob.Tavern, bob.Dock, bob.Cannon, bob.Island)
	}
	if bob.Gold != 0 || bob.Wood != 0 || bob.Debris != 0 {
		t.Fatalf("resources not reset: gold=%.0f wood=%.0f debris=%.0f", bob.Gold, bob.Wood, bob.Debris)
	}
	if bob.Committed != 0 || bob.Boats != w.capacity(bob) {
		t.Fatalf("fleet not reset: boats=%d committed=%d", bob.Boats, bob.Committed)
	}
	for _, open := range w.missions {
		if open.Owner == "bob" {
			t.Fatalf("bob's raid survived the wipe")
		}
	}
	wantLegacy := w.tun.PvP.LegacyPerWipe + w.tun.PvP.LegacyPerLevel*3
	if d := bob.Passive.Legacy - wantLegacy; d < -1e-9 || d > 1e-9 {
		t.Fatalf("legacy=%.4f, want %.4f", bob.Passive.Legacy, wantLegacy)
	}
	if bob.X == oldX && bob.Y == oldY {
		t.Fatalf("island not relocated")
	}
	if !hasEvent(events(t, w, "bob"), protocol.EventWiped) {
		t.Fatalf("no wiped event")
	}
	if anne.Passive.PvPWins != 1 {
		t.Fatalf("attacker win not counted")
	}
	checkInvariants(t, w)
}

func TestChooseDefense_OncePerAttack(t *testing.T) {
	w, clk := newTestWorld(t, nil)
	_, bob := neighbours(t, w, "anne", "bob", 600)
	mustJoin(t, w, "carl")
	bob.Cannon = 2

	ack := mustAccept(t, w, "anne", attackCmd("bob", 1))
	m := missionOf(t, w, ack)

	choose := func(defense string) protocol.CommandMsg {
		c := cmd(protocol.CmdChooseDefense)
		c.MissionID = m.ID
		c.Defense = defense
		return c
	}
	mustReject(t, w, "bob", choose(string(combat.DefenseVolley)), protocol.ErrNoResource)
	mustReject(t, w, "carl", choose(string(combat.DefenseVolley)), protocol.ErrInvalidTarget)
	mustReject(t, w, "bob", choose("prayer"), protocol.ErrBadRequest)

	bob.Rum = 1000
	mustAccept(t, w, "bob", choose(string(combat.DefenseVolley)))
	if bob.Rum != 700 {
		t.Fatalf("volley cost: rum=%.0f, want 700", bob.Rum)
	}
	if m.Payload.(*PvPPayload).Defense != combat.DefenseVolley {
		t.Fatalf("defense not armed")
	}
	bob.Gold = 1000
	mustReject(t, w, "bob", choose(string(combat.DefenseMercenaries)), protocol.ErrConflict)

	sail(t, w, clk, m.ID)
	mustReject(t, w, "bob", choose(string(combat.DefenseShield)), protocol.ErrNotFound)
	checkInvariants(t, w)
}

func TestPvPMissions_BroadcastPositions(t *testing.T) {
	w, clk := newTestWorld(t, nil)
	neighbours(t, w, "anne", "bob", 1000)
	ack := mustAccept(t, w, "anne", attackCmd("bob", 1))
	m := missionOf(t, w, ack)
	pl := m.Payload.(*PvPPayload)
	x := pl.X

	events(t, w, "bob")
	step(w, clk, 100*time.Millisecond)
	if pl.X <= x {
		t.Fatalf("fleet did not move east: %.1f -> %.1f", x, pl.X)
	}
	if !hasEvent(events(t, w, "bob"), protocol.EventPvPMissions) {
		t.Fatalf("no pvpMissions broadcast")
	}
}
