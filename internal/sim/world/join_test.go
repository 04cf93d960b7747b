package world

import (
	"strings"
	"testing"

	"pirateisles/internal/protocol"
	"pirateisles/internal/sim/archipelago"
)

func TestHandleJoin_NickLength(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	for _, nick := range []string{"", "ab", "  ab  ", strings.Repeat("x", 17)} {
		resp := w.HandleJoin(JoinRequest{Nick: nick})
		if resp.Code != protocol.ErrBadRequest {
			t.Fatalf("nick %q: code=%q, want %s", nick, resp.Code, protocol.ErrBadRequest)
		}
	}
	if len(w.players) != 0 {
		t.Fatalf("rejected joins created players")
	}

	resp := w.HandleJoin(JoinRequest{Nick: "  ñandú  "})
	if !resp.OK() || resp.Welcome.PlayerID != "ñandú" {
		t.Fatalf("trimmed multibyte nick: %+v", resp)
	}
}

func TestHandleJoin_AbandonedRequestHasNoEffect(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	gone := make(chan struct{})
	close(gone)
	resp := w.HandleJoin(JoinRequest{Nick: "anne", Out: make(chan []byte, 8), Abandoned: gone})
	if resp.OK() {
		t.Fatalf("abandoned join accepted")
	}
	if _, ok := w.GetPlayer("anne"); ok || len(w.clients) != 0 {
		t.Fatalf("abandoned join left state behind")
	}
	mustJoin(t, w, "anne")
}

func TestHandleJoin_Welcome(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	out := make(chan []byte, 64)
	resp := w.HandleJoin(JoinRequest{Nick: "anne", Out: out})
	if !resp.OK() {
		t.Fatalf("join: %s %s", resp.Code, resp.Msg)
	}
	wm := resp.Welcome
	if wm.Type != protocol.TypeWelcome || wm.PlayerID != "anne" || wm.OfflineGains != nil {
		t.Fatalf("welcome: %+v", wm)
	}
	if wm.WorldParams.BaseCapacity != w.tun.Economy.BaseBoatCapacity || wm.WorldParams.MapWidth != w.tun.Map.Width {
		t.Fatalf("world params: %+v", wm.WorldParams)
	}
	wp, ok := wm.Player.(welcomePlayer)
	if !ok {
		t.Fatalf("player payload %T", wm.Player)
	}
	if len(wp.Islets) != archipelago.Count("anne") {
		t.Fatalf("islets=%d, want %d", len(wp.Islets), archipelago.Count("anne"))
	}
	if wp.Boats != 2 || wp.Tavern != 1 || wp.Island != 1 {
		t.Fatalf("player view: %+v", wp.PlayerView)
	}

	evs := events(t, w, "anne")
	if !hasEvent(evs, protocol.EventState) || !hasEvent(evs, protocol.EventChat) {
		t.Fatalf("join events: %+v", evs)
	}
}

func TestHandleJoin_PasswordBindsOnFirstUse(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	if resp := w.HandleJoin(JoinRequest{Nick: "anne", Secret: "parrot"}); !resp.OK() {
		t.Fatalf("first join: %s", resp.Msg)
	}
	w.HandleLeave("anne")

	cases := []struct {
		secret, code, msg string
	}{
		{"", protocol.ErrNotAuthenticated, "Password required for this nick"},
		{"kraken", protocol.ErrNotAuthenticated, "Wrong password"},
	}
	for _, tc := range cases {
		resp := w.HandleJoin(JoinRequest{Nick: "anne", Secret: tc.secret})
		if resp.Code != tc.code || resp.Msg != tc.msg {
			t.Fatalf("secret %q: %s %q", tc.secret, resp.Code, resp.Msg)
		}
	}
	if p, _ := w.GetPlayer("anne"); p.Online {
		t.Fatalf("rejected join brought the player online")
	}
	if resp := w.HandleJoin(JoinRequest{Nick: "anne", Secret: "parrot"}); !resp.OK() {
		t.Fatalf("correct password rejected: %s", resp.Msg)
	}
}

func TestHandleJoin_SecretAddedToOpenNick(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	p := mustJoin(t, w, "anne")
	w.HandleLeave("anne")
	if p.SecretHash != "" {
		t.Fatalf("hash set without a secret")
	}
	if resp := w.HandleJoin(JoinRequest{Nick: "anne", Secret: "parrot"}); !resp.OK() {
		t.Fatalf("join: %s", resp.Msg)
	}
	if p.SecretHash == "" || p.SecretHash == "parrot" {
		t.Fatalf("secret not hashed: %q", p.SecretHash)
	}
}

func TestHandleJoin_NickAlreadyConnected(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	mustJoin(t, w, "anne")
	resp := w.HandleJoin(JoinRequest{Nick: "anne"})
	if resp.Code != protocol.ErrConflict {
		t.Fatalf("second session: %s %q", resp.Code, resp.Msg)
	}
	if len(w.clients) != 1 {
		t.Fatalf("clients=%d", len(w.clients))
	}
}

func TestHandleLeave_KeepsMissionsRunning(t *testing.T) {
	w, clk := newTestWorld(t, nil)
	p := mustJoin(t, w, "anne")
	mustAccept(t, w, "anne", cmd(protocol.CmdRaid))
	w.HandleLeave("anne")
	w.HandleLeave("anne")

	if p.Online || p.LastSeenMs != clk.Now().UnixMilli() {
		t.Fatalf("online=%v lastSeen=%d", p.Online, p.LastSeenMs)
	}
	if len(w.missions) != 1 || w.clients["anne"] != nil {
		t.Fatalf("missions=%d client=%v", len(w.missions), w.clients["anne"])
	}
	checkInvariants(t, w)
}
