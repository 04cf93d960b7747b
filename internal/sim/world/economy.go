package world

import (
	"math"

	"pirateisles/internal/protocol"
)

// economyTick credits passive income to online players, advances repair of
// damaged islands and bleeds debris into gold. Income alone does not mark a
// player dirty; the periodic flush persists it.
func (w *World) economyTick(nowMs int64) {
	e := w.tun.Economy
	dt := float64(w.tun.Periods.EconomyMs) / 1000
	for _, nick := range sortedKeys(w.players) {
		p := w.players[nick]
		if !p.Online {
			continue
		}
		p.Rum += w.rumRate(p) * dt
		p.Wood += w.woodRate(p) * dt

		if p.Destruction > 0 {
			cost := e.RepairRumPerLevel * float64(p.Island)
			if p.Rum >= cost {
				p.Rum -= cost
				p.Repair += e.RepairProgressPerHour / 3600 * float64(p.Island)
				if p.Repair >= 1 {
					p.Repair = 0
					p.Destruction--
					w.markDirty(nick)
					w.emit(p.Nick, protocol.EventChat, chatMsg{From: "Island", Text: "Repairs complete"})
				}
			}
		}

		if p.Debris > 0 && p.DebrisUntilMs > nowMs {
			drain := math.Min(p.Debris, math.Max(1, math.Floor(p.Debris*e.DebrisDrainRate)))
			p.Debris -= drain
			p.Gold += drain
			if p.Debris < 1 {
				p.Debris, p.DebrisUntilMs = 0, 0
				w.markDirty(nick)
			}
		}
	}
}

// expireDebris zeroes every debris balance whose lifetime has passed. It is
// safe to run any number of times.
func (w *World) expireDebris(nowMs int64) {
	for nick, p := range w.players {
		if p.DebrisUntilMs == 0 || p.DebrisUntilMs > nowMs {
			continue
		}
		if p.Debris > 0 {
			w.logger.Printf("debris %s: %.0f expired", nick, p.Debris)
		}
		p.Debris, p.DebrisUntilMs = 0, 0
		w.markDirty(nick)
	}
}

// offlineGains credits income for the time since the player was last seen at
// a reduced rate. Gaps below the minimum pay nothing and long gaps are capped.
func (w *World) offlineGains(p *Player, nowMs int64) *protocol.Gains {
	if p.LastSeenMs <= 0 {
		return nil
	}
	e := w.tun.Economy
	sec := math.Min(float64(nowMs-p.LastSeenMs)/1000, e.OfflineMaxHours*3600)
	if sec < e.OfflineMinSeconds {
		return nil
	}
	sec = math.Floor(sec)
	rum := math.Floor(sec * w.rumRate(p) * e.OfflineRate)
	wood := math.Floor(sec * w.woodRate(p) * e.OfflineRate)
	p.Rum += rum
	p.Wood += wood
	return &protocol.Gains{Seconds: int(sec), Rum: int(rum), Wood: int(wood)}
}
