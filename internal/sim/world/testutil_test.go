package world

import (
	"encoding/json"
	"testing"
	"time"

	"pirateisles/internal/protocol"
	"pirateisles/internal/sim/tuning"
)

type manualClock struct{ t time.Time }

func (c *manualClock) Now() time.Time          { return c.t }
func (c *manualClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestWorld(t *testing.T, tweak func(*tuning.Tuning)) (*World, *manualClock) {
	t.Helper()
	tun := tuning.Defaults()
	if tweak != nil {
		tweak(&tun)
	}
	clk := &manualClock{t: time.UnixMilli(1_700_000_000_000)}
	w, err := New(Config{Seed: 42, Now: clk.Now}, tun)
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	return w, clk
}

func mustJoin(t *testing.T, w *World, nick string) *Player {
	t.Helper()
	resp := w.HandleJoin(JoinRequest{Nick: nick, Out: make(chan []byte, 512)})
	if !resp.OK() {
		t.Fatalf("join %s: %s %s", nick, resp.Code, resp.Msg)
	}
	p, ok := w.GetPlayer(nick)
	if !ok {
		t.Fatalf("join %s: player missing", nick)
	}
	return p
}

func cmd(name string) protocol.CommandMsg {
	return protocol.CommandMsg{Type: protocol.TypeCommand, Seq: 1, Cmd: name}
}

func mustAccept(t *testing.T, w *World, nick string, c protocol.CommandMsg) protocol.AckMsg {
	t.Helper()
	ack := w.HandleCommand(nick, c)
	if !ack.OK {
		t.Fatalf("%s %s rejected: %s %s", nick, c.Cmd, ack.Code, ack.Msg)
	}
	return ack
}

func mustReject(t *testing.T, w *World, nick string, c protocol.CommandMsg, code string) protocol.AckMsg {
	t.Helper()
	ack := w.HandleCommand(nick, c)
	if ack.OK {
		t.Fatalf("%s %s accepted, want %s", nick, c.Cmd, code)
	}
	if ack.Code != code {
		t.Fatalf("%s %s: code=%s msg=%q, want %s", nick, c.Cmd, ack.Code, ack.Msg, code)
	}
	return ack
}

// step moves the clock forward and runs every due evaluator once.
func step(w *World, clk *manualClock, d time.Duration) {
	clk.Advance(d)
	w.Advance(clk.Now())
}

func checkInvariants(t *testing.T, w *World) {
	t.Helper()
	if err := w.CheckInvariants(); err != nil {
		t.Fatalf("invariants: %v", err)
	}
}

func missionOf(t *testing.T, w *World, ack protocol.AckMsg) *Mission {
	t.Helper()
	var id string
	switch d := ack.Data.(type) {
	case dispatchResult:
		id = d.MissionID
	case attackLaunch:
		id = d.MissionID
	default:
		t.Fatalf("ack data %T carries no mission", ack.Data)
	}
	m := w.missions[id]
	if m == nil {
		t.Fatalf("mission %s not open", id)
	}
	return m
}

// events decodes every EVENT queued for a client so far, draining its channel.
func events(t *testing.T, w *World, nick string) []protocol.EventMsg {
	t.Helper()
	c := w.clients[nick]
	if c == nil {
		return nil
	}
	var out []protocol.EventMsg
	for {
		select {
		case b := <-c.Out:
			var ev protocol.EventMsg
			if err := json.Unmarshal(b, &ev); err != nil {
				t.Fatalf("decode event: %v", err)
			}
			if ev.Type == protocol.TypeEvent {
				out = append(out, ev)
			}
		default:
			return out
		}
	}
}

func hasEvent(evs []protocol.EventMsg, name string) bool {
	for _, ev := range evs {
		if ev.Event == name {
			return true
		}
	}
	return false
}
