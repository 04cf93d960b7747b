package world

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"pirateisles/internal/protocol"
	"pirateisles/internal/sim/archipelago"
)

const (
	minNickLen = 3
	maxNickLen = 16
)

type welcomePlayer struct {
	PlayerView
	Islets []archipelago.Islet `json:"islets"`
}

func joinRejected(code, msg string) JoinResponse {
	return JoinResponse{Code: code, Msg: msg}
}

// HandleJoin authenticates a nick and brings its player online, creating the
// player on first sight. The first secret given for a nick becomes its
// password.
func (w *World) HandleJoin(req JoinRequest) JoinResponse {
	defer w.flushDirty()

	select {
	case <-req.Abandoned:
		return joinRejected(protocol.ErrBadRequest, "Join abandoned")
	default:
	}

	nick := strings.TrimSpace(req.Nick)
	if n := utf8.RuneCountInString(nick); n < minNickLen || n > maxNickLen {
		return joinRejected(protocol.ErrBadRequest, fmt.Sprintf("Nick must be %d-%d characters", minNickLen, maxNickLen))
	}
	nowMs := w.nowMs()

	p := w.players[nick]
	if p == nil {
		hash := ""
		if req.Secret != "" {
			hash = hashSecret(req.Secret)
		}
		p = w.newPlayer(nick, hash, nowMs)
		w.players[nick] = p
		w.logger.Printf("join %s: new player at (%.0f,%.0f)", nick, p.X, p.Y)
	} else {
		if p.Online {
			return joinRejected(protocol.ErrConflict, "Nick already connected")
		}
		if p.SecretHash != "" {
			if req.Secret == "" {
				return joinRejected(protocol.ErrNotAuthenticated, "Password required for this nick")
			}
			if hashSecret(req.Secret) != p.SecretHash {
				return joinRejected(protocol.ErrNotAuthenticated, "Wrong password")
			}
		} else if req.Secret != "" {
			p.SecretHash = hashSecret(req.Secret)
		}
	}

	gains := w.offlineGains(p, nowMs)
	if gains != nil {
		w.logger.Printf("join %s: offline %ds +%d rum +%d wood", nick, gains.Seconds, gains.Rum, gains.Wood)
	}
	p.Online = true
	p.LastSeenMs = nowMs
	w.markDirty(nick)
	w.clients[nick] = &clientState{Out: req.Out}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: w.tun.ProtocolVersion,
		PlayerID:        nick,
		Player:          welcomePlayer{PlayerView: w.playerView(p), Islets: archipelago.Islets(nick)},
		OfflineGains:    gains,
		WorldParams:     w.worldParams(),
	}
	w.emit(nick, protocol.EventState, w.statePayload())
	w.chat("World", fmt.Sprintf("%s joined the seas", nick))
	return JoinResponse{Welcome: welcome}
}

// HandleLeave takes a player offline. The record stays in the world and
// missions at sea keep running.
func (w *World) HandleLeave(nick string) {
	defer w.flushDirty()

	delete(w.clients, nick)
	p := w.players[nick]
	if p == nil || !p.Online {
		return
	}
	p.Online = false
	p.LastSeenMs = w.nowMs()
	w.markDirty(nick)
	w.logger.Printf("leave %s", nick)
}

func (w *World) worldParams() protocol.WorldParams {
	return protocol.WorldParams{
		MapWidth:        w.tun.Map.Width,
		MapHeight:       w.tun.Map.Height,
		EconomyMs:       w.tun.Periods.EconomyMs,
		BroadcastMs:     w.tun.Periods.BroadcastMs,
		BaseCapacity:    w.tun.Economy.BaseBoatCapacity,
		PvPSpeed:        w.tun.PvP.Speed,
		CostMultiplier:  w.tun.Costs.Multiplier,
		ArchipelagoSlot: archipelago.MaxCount,
	}
}
