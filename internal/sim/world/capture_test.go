package world

import (
	"math/rand"
	"testing"
	"time"

	"pirateisles/internal/protocol"
	"pirateisles/internal/sim/combat"
	"pirateisles/internal/sim/tuning"
)

func bigFleets(tun *tuning.Tuning) { tun.Economy.BaseBoatCapacity = 20 }

func captureCmd(kind string, pointID, ships int) protocol.CommandMsg {
	c := cmd(kind)
	c.PointID = pointID
	c.Ships = ships
	return c
}

func caravanCmd(caravanID, ships int) protocol.CommandMsg {
	c := cmd(protocol.CmdInterceptCaravan)
	c.CaravanID = caravanID
	c.Ships = ships
	return c
}

func TestCapture_DispatchRules(t *testing.T) {
	w, _ := newTestWorld(t, bigFleets)
	mustJoin(t, w, "anne")
	mustJoin(t, w, "bob")
	pt := w.points[0]

	mustReject(t, w, "bob", captureCmd(protocol.CmdInterceptCapture, pt.ID, 1), protocol.ErrInvalidTarget)
	mustAccept(t, w, "anne", captureCmd(protocol.CmdCapture, pt.ID, 2))
	if pt.MissionID == "" {
		t.Fatalf("point not marked held")
	}
	mustReject(t, w, "anne", captureCmd(protocol.CmdCapture, pt.ID, 1), protocol.ErrConflict)
	mustReject(t, w, "bob", captureCmd(protocol.CmdCapture, pt.ID, 1), protocol.ErrConflict)
	mustReject(t, w, "anne", captureCmd(protocol.CmdInterceptCapture, pt.ID, 1), protocol.ErrInvalidTarget)
	mustReject(t, w, "bob", captureCmd(protocol.CmdCapture, 9999, 1), protocol.ErrNotFound)
	checkInvariants(t, w)
}

func TestInterceptCapture_ChallengerTakesOwnership(t *testing.T) {
	w, clk := newTestWorld(t, bigFleets)
	anne := mustJoin(t, w, "anne")
	bob := mustJoin(t, w, "bob")
	pt := w.points[0]

	ack := mustAccept(t, w, "anne", captureCmd(protocol.CmdCapture, pt.ID, 1))
	m := missionOf(t, w, ack)
	oldDeadline := m.DeadlineMs()

	clk.Advance(time.Minute)
	ack = mustAccept(t, w, "bob", captureCmd(protocol.CmdInterceptCapture, pt.ID, 10))
	res := ack.Data.(contestResult)
	if !res.Won {
		t.Fatalf("10 ships lost to 1: %+v", res)
	}
	if m.Owner != "bob" || pt.MissionID != m.ID {
		t.Fatalf("owner=%s point mission=%s", m.Owner, pt.MissionID)
	}
	if m.Ships != 10-res.AttackerLost || m.Ships < 1 {
		t.Fatalf("mission ships=%d lost=%d", m.Ships, res.AttackerLost)
	}
	if anne.Committed != 0 || bob.Committed != m.Ships {
		t.Fatalf("committed anne=%d bob=%d ships=%d", anne.Committed, bob.Committed, m.Ships)
	}
	nowMs := clk.Now().UnixMilli()
	if m.DeadlineMs() < oldDeadline || m.DeadlineMs() < nowMs+int64(w.tun.Capture.InterceptFloorMs) {
		t.Fatalf("deadline %d moved before old %d or floor", m.DeadlineMs(), oldDeadline)
	}
	if !hasEvent(events(t, w, "anne"), protocol.EventCaptureContested) {
		t.Fatalf("holder not told about the contest")
	}
	checkInvariants(t, w)

	events(t, w, "bob")
	clk.t = time.UnixMilli(m.DeadlineMs())
	w.Advance(clk.Now())
	if w.missions[m.ID] != nil {
		t.Fatalf("capture not resolved at deadline")
	}
	if !hasEvent(events(t, w, "bob"), protocol.EventCaptureResult) {
		t.Fatalf("bob got no captureResult")
	}
	if bob.Passive.Missions != 1 {
		t.Fatalf("capture not counted as a mission: %+v", bob.Passive)
	}
	if bob.Committed != 0 || pt.MissionID != "" || pt.RespawnUntilMs <= clk.Now().UnixMilli() {
		t.Fatalf("after capture: committed=%d mission=%q respawn=%d", bob.Committed, pt.MissionID, pt.RespawnUntilMs)
	}
	mustReject(t, w, "anne", captureCmd(protocol.CmdCapture, pt.ID, 1), protocol.ErrCooldown)
	checkInvariants(t, w)
}

func TestInterceptCapture_HolderKeepsPoint(t *testing.T) {
	w, _ := newTestWorld(t, bigFleets)
	anne := mustJoin(t, w, "anne")
	bob := mustJoin(t, w, "bob")
	pt := w.points[1]

	ack := mustAccept(t, w, "anne", captureCmd(protocol.CmdCapture, pt.ID, 10))
	m := missionOf(t, w, ack)
	deadline := m.DeadlineMs()

	ack = mustAccept(t, w, "bob", captureCmd(protocol.CmdInterceptCapture, pt.ID, 1))
	res := ack.Data.(contestResult)
	if res.Won {
		t.Fatalf("1 ship beat 10: %+v", res)
	}
	if m.Owner != "anne" || m.DeadlineMs() != deadline {
		t.Fatalf("owner=%s deadline %d -> %d", m.Owner, deadline, m.DeadlineMs())
	}
	if anne.Committed != m.Ships || bob.Committed != 0 {
		t.Fatalf("committed anne=%d bob=%d ships=%d", anne.Committed, bob.Committed, m.Ships)
	}
	if bob.Boats != 20-res.AttackerLost {
		t.Fatalf("bob boats=%d lost=%d", bob.Boats, res.AttackerLost)
	}
	checkInvariants(t, w)
}

func TestInterceptCapture_EqualFleetsUnderFixedSeeds(t *testing.T) {
	w, clk := newTestWorld(t, bigFleets)
	players := map[string]*Player{"anne": mustJoin(t, w, "anne"), "bob": mustJoin(t, w, "bob")}
	pt := w.points[2]
	m := missionOf(t, w, mustAccept(t, w, "anne", captureCmd(protocol.CmdCapture, pt.ID, 6)))

	transfers := 0
	for seed := int64(1); seed <= 16; seed++ {
		clk.Advance(3 * time.Second)
		holder := m.Owner
		challenger := "bob"
		if holder == "bob" {
			challenger = "anne"
		}
		// Keep both fleets home at full strength so every battle is even.
		for _, p := range players {
			p.Boats = w.capacity(p) - p.Committed
		}
		ships := m.Ships
		before := m.DeadlineMs()

		want := combat.FleetVsFleet(rand.New(rand.NewSource(seed)), w.fleetParams(), ships, ships)
		w.rng = rand.New(rand.NewSource(seed))
		res := mustAccept(t, w, challenger, captureCmd(protocol.CmdInterceptCapture, pt.ID, ships)).Data.(contestResult)

		if res.Won != want.AttackerWins {
			t.Fatalf("seed %d: won=%v, resolver picked %v", seed, res.Won, want.AttackerWins)
		}
		if want.AttackerWins {
			transfers++
			if m.Owner != challenger || m.Ships != want.AttackerSurvivors(ships) {
				t.Fatalf("seed %d: owner=%s ships=%d after takeover", seed, m.Owner, m.Ships)
			}
			if m.DeadlineMs() < clk.Now().UnixMilli()+int64(w.tun.Capture.InterceptFloorMs) {
				t.Fatalf("seed %d: deadline %d under the floor", seed, m.DeadlineMs())
			}
		} else if m.Owner != holder || m.Ships != want.DefenderSurvivors(ships) {
			t.Fatalf("seed %d: owner=%s ships=%d after a failed challenge", seed, m.Owner, m.Ships)
		}
		if m.DeadlineMs() < before {
			t.Fatalf("seed %d: deadline moved back %d -> %d", seed, before, m.DeadlineMs())
		}
		if pt.MissionID != m.ID {
			t.Fatalf("seed %d: point lost its mission", seed)
		}
		checkInvariants(t, w)
	}
	t.Logf("%d of 16 challenges took the point", transfers)
}

func TestInterceptCaravan_WinsCargo(t *testing.T) {
	w, clk := newTestWorld(t, bigFleets)
	p := mustJoin(t, w, "anne")
	cv := w.caravans[0]

	m := missionOf(t, w, mustAccept(t, w, "anne", caravanCmd(cv.ID, 20)))
	if want := travelMs(dist(p.X, p.Y, cv.X, cv.Y), w.tun.Caravans.Speed, w.tun.Caravans.MinTravelMs); m.Duration != want {
		t.Fatalf("intercept travel %dms, want %dms", m.Duration, want)
	}
	if cv.MissionID == "" {
		t.Fatalf("caravan not marked targeted")
	}
	mustReject(t, w, "anne", caravanCmd(cv.ID, 1), protocol.ErrConflict)

	before := map[string]float64{"rum": p.Rum, "gold": p.Gold, "wood": p.Wood}
	step(w, clk, 2*time.Minute)
	if len(w.missions) != 0 {
		t.Fatalf("intercept not resolved")
	}
	after := map[string]float64{"rum": p.Rum, "gold": p.Gold, "wood": p.Wood}
	if after[cv.Cargo]-before[cv.Cargo] < float64(w.tun.Caravans.LootMin) {
		t.Fatalf("%s loot %.0f below minimum", cv.Cargo, after[cv.Cargo]-before[cv.Cargo])
	}
	if cv.CooldownUntilMs <= clk.Now().UnixMilli() || cv.MissionID != "" {
		t.Fatalf("caravan cooldown=%d mission=%q", cv.CooldownUntilMs, cv.MissionID)
	}
	if p.Boats < 1 || p.Committed != 0 {
		t.Fatalf("boats=%d committed=%d", p.Boats, p.Committed)
	}
	mustReject(t, w, "anne", caravanCmd(cv.ID, 1), protocol.ErrCooldown)
	checkInvariants(t, w)
}

func TestInterceptCaravan_ContentionBattle(t *testing.T) {
	w, clk := newTestWorld(t, bigFleets)
	anne := mustJoin(t, w, "anne")
	bob := mustJoin(t, w, "bob")
	cv := w.caravans[1]

	ack := mustAccept(t, w, "anne", caravanCmd(cv.ID, 1))
	m := missionOf(t, w, ack)
	ack = mustAccept(t, w, "bob", caravanCmd(cv.ID, 12))
	res := ack.Data.(contestResult)
	if !res.Won || m.Owner != "bob" || cv.MissionID != m.ID {
		t.Fatalf("contention: %+v owner=%s", res, m.Owner)
	}
	if anne.Committed != 0 || bob.Committed != m.Ships {
		t.Fatalf("committed anne=%d bob=%d", anne.Committed, bob.Committed)
	}
	checkInvariants(t, w)

	step(w, clk, 2*time.Minute)
	if len(w.missions) != 0 {
		t.Fatalf("intercept not resolved")
	}
	if !hasEvent(events(t, w, "bob"), protocol.EventCaravanResult) {
		t.Fatalf("bob got no caravanResult")
	}
	checkInvariants(t, w)
}

func TestCaravans_PatrolTheirRoute(t *testing.T) {
	w, clk := newTestWorld(t, nil)
	cv := w.caravans[0]
	x, y := cv.X, cv.Y
	step(w, clk, time.Second)
	// Turning at a waypoint shortens the straight-line distance.
	if moved := dist(x, y, cv.X, cv.Y); moved == 0 || moved > w.tun.Caravans.Step+1e-6 {
		t.Fatalf("caravan moved %.2f, want up to %.2f", moved, w.tun.Caravans.Step)
	}
}
