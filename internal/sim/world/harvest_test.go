package world

import (
	"regexp"
	"testing"
	"time"

	"pirateisles/internal/protocol"
	"pirateisles/internal/sim/tuning"
)

func harvestCmd(nodeID int) protocol.CommandMsg {
	c := cmd(protocol.CmdHarvestResource)
	c.NodeID = nodeID
	return c
}

func archiCmd(idx int) protocol.CommandMsg {
	c := cmd(protocol.CmdHarvestArchipelago)
	c.Index = &idx
	return c
}

func TestHarvestResource_DuplicateTargetRejected(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	p := mustJoin(t, w, "anne")
	id := w.nodes[0].ID

	mustAccept(t, w, "anne", harvestCmd(id))
	mustReject(t, w, "anne", harvestCmd(id), protocol.ErrConflict)
	if p.Boats != 1 || p.Committed != 1 || len(w.missions) != 1 {
		t.Fatalf("duplicate changed state: boats=%d committed=%d missions=%d", p.Boats, p.Committed, len(w.missions))
	}

	// Other nodes are still fair game.
	mustAccept(t, w, "anne", harvestCmd(w.nodes[1].ID))
	checkInvariants(t, w)
}

func TestHarvestResource_DepletedNodeRejectedForEveryone(t *testing.T) {
	w, clk := newTestWorld(t, func(tun *tuning.Tuning) { tun.Resources.LossChance = 0 })
	anne := mustJoin(t, w, "anne")
	bob := mustJoin(t, w, "bob")
	n := w.nodes[0]

	mustAccept(t, w, "anne", harvestCmd(n.ID))
	step(w, clk, time.Minute)
	if len(w.missions) != 0 {
		t.Fatalf("harvest did not resolve")
	}
	if anne.Boats != 2 {
		t.Fatalf("anne boats=%d", anne.Boats)
	}
	if n.DepletedUntilMs != clk.Now().UnixMilli()+int64(w.tun.Resources.DepletionMs) {
		t.Fatalf("depleted until %d", n.DepletedUntilMs)
	}
	if !hasEvent(events(t, w, "anne"), protocol.EventResourceRaidResult) {
		t.Fatalf("no resourceRaidResult event")
	}

	ack := mustReject(t, w, "bob", harvestCmd(n.ID), protocol.ErrDepleted)
	if !regexp.MustCompile(`\(\d+s\)`).MatchString(ack.Msg) {
		t.Fatalf("rejection %q does not carry seconds left", ack.Msg)
	}
	if bob.Boats != 2 || bob.Committed != 0 {
		t.Fatalf("bob fleet changed: boats=%d committed=%d", bob.Boats, bob.Committed)
	}

	clk.Advance(31 * time.Minute)
	mustAccept(t, w, "bob", harvestCmd(n.ID))
}

func TestHarvestResource_UnknownNode(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	mustJoin(t, w, "anne")
	mustReject(t, w, "anne", harvestCmd(9999), protocol.ErrNotFound)
}

func TestHarvestArchipelago_PerPlayerDepletion(t *testing.T) {
	w, clk := newTestWorld(t, func(tun *tuning.Tuning) { tun.Archipelago.LossChance = 0 })
	p := mustJoin(t, w, "anne")
	mustJoin(t, w, "bob")

	mustReject(t, w, "anne", cmd(protocol.CmdHarvestArchipelago), protocol.ErrBadRequest)
	mustReject(t, w, "anne", archiCmd(99), protocol.ErrBadRequest)

	ack := mustAccept(t, w, "anne", archiCmd(0))
	if m := missionOf(t, w, ack); m.Duration < int64(w.tun.Archipelago.MinTravelMs) {
		t.Fatalf("travel %dms below floor", m.Duration)
	}
	mustReject(t, w, "anne", archiCmd(0), protocol.ErrConflict)

	total := p.Rum + p.Gold + p.Wood
	step(w, clk, 10*time.Second)
	if len(w.missions) != 0 {
		t.Fatalf("archipelago harvest did not resolve")
	}
	if p.Rum+p.Gold+p.Wood <= total {
		t.Fatalf("no loot credited")
	}
	if p.ArchiDepleted[0] <= clk.Now().UnixMilli() {
		t.Fatalf("islet not depleted: %v", p.ArchiDepleted)
	}
	mustReject(t, w, "anne", archiCmd(0), protocol.ErrDepleted)

	// Depletion is private to each player.
	mustAccept(t, w, "bob", archiCmd(0))
	checkInvariants(t, w)
}

func TestSameSeedSameOutcome(t *testing.T) {
	run := func() (string, [3]float64) {
		w, clk := newTestWorld(t, nil)
		p := mustJoin(t, w, "anne")
		first := missionOf(t, w, mustAccept(t, w, "anne", archiCmd(0)))
		second := missionOf(t, w, mustAccept(t, w, "anne", archiCmd(1)))
		if first.DeadlineMs() != second.DeadlineMs() {
			t.Fatalf("deadlines differ: %d vs %d", first.DeadlineMs(), second.DeadlineMs())
		}
		ids := first.ID + "," + second.ID
		step(w, clk, 10*time.Second)
		return ids, [3]float64{p.Rum, p.Gold, p.Wood}
	}

	wantIDs, want := run()
	for i := 0; i < 20; i++ {
		ids, got := run()
		if ids != wantIDs || got != want {
			t.Fatalf("run %d: ids=%s res=%v, want ids=%s res=%v", i, ids, got, wantIDs, want)
		}
	}
}
