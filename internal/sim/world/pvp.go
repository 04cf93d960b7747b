package world

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"

	"pirateisles/internal/protocol"
	"pirateisles/internal/sim/combat"
)

func (w *World) pvpParams() combat.PvPParams {
	p, d := w.tun.PvP, w.tun.Defense
	return combat.PvPParams{
		AttackPerShip:     p.AttackPerShip,
		AttackPerLevel:    p.AttackPerLevel,
		DefensePerCannon:  p.DefensePerCannon,
		DefensePerLevel:   p.DefensePerLevel,
		Noise:             p.Noise,
		VictoryAt:         p.VictoryAt,
		PyrrhicAt:         p.PyrrhicAt,
		VictoryStealMin:   p.VictoryStealMin,
		VictoryStealMax:   p.VictoryStealMax,
		PyrrhicStealMin:   p.PyrrhicStealMin,
		PyrrhicStealMax:   p.PyrrhicStealMax,
		StealCap:          p.StealCap,
		WinStealCap:       p.WinStealCap,
		DefeatLossMin:     p.DefeatLossMin,
		DefeatLossMax:     p.DefeatLossMax,
		VolleyMultiplier:  d.VolleyMultiplier,
		MercenaryDefense:  d.MercenaryDefense,
		ShieldStealFactor: d.ShieldStealFactor,
	}
}

// movePvP integrates every PvP fleet toward its target over one motion
// period and resolves the ones that arrive.
func (w *World) movePvP(nowMs int64) {
	ms := w.sortedMissions(KindPvP)
	if len(ms) == 0 {
		return
	}
	speed := w.tun.PvP.Speed
	dt := float64(w.tun.Periods.PvPMotionMs) / 1000
	for _, m := range ms {
		if w.missions[m.ID] == nil {
			// Sunk by a wipe earlier in this pass.
			continue
		}
		pl := m.Payload.(*PvPPayload)
		dx, dy := pl.TX-pl.X, pl.TY-pl.Y
		d := math.Hypot(dx, dy)
		if d < speed*dt+w.tun.PvP.ArrivalRadius {
			if err := w.guard("pvp", func() { w.resolvePvP(m, pl, nowMs) }); err != nil {
				if _, open := w.missions[m.ID]; open {
					w.abortPvP(m, pl, "internal error")
				}
			}
			continue
		}
		pl.X += dx / d * speed * dt
		pl.Y += dy / d * speed * dt
	}
	w.broadcast(protocol.EventPvPMissions, w.pvpMissionViews())
}

type attackAborted struct {
	OK        bool   `json:"ok"`
	MissionID string `json:"mission_id"`
	Msg       string `json:"msg"`
	Boats     int    `json:"boats"`
}

// abortPvP cancels an attack without any side effect: ships come home and
// the attacker's cooldown is what it was before launch.
func (w *World) abortPvP(m *Mission, pl *PvPPayload, reason string) {
	w.dropMission(m)
	a := w.players[m.Owner]
	if a == nil {
		return
	}
	w.settleShips(a, m.Ships, m.Ships)
	a.PvPUntilMs = pl.PrevCooldownMs
	w.markDirty(a.Nick)
	w.emit(a.Nick, protocol.EventAttackResult, attackAborted{MissionID: m.ID, Msg: reason, Boats: a.Boats})
	w.logger.Printf("pvp %s -> %s: aborted (%s)", a.Nick, pl.Target, reason)
}

type attackResult struct {
	OK          bool        `json:"ok"`
	MissionID   string      `json:"mission_id"`
	Target      string      `json:"target"`
	Tier        combat.Tier `json:"tier"`
	Survivor    float64     `json:"survivor"`
	Defense     string      `json:"defense,omitempty"`
	Stolen      combat.Loot `json:"stolen"`
	Received    combat.Loot `json:"received"`
	TotalStolen int         `json:"total_stolen"`
	Debris      int         `json:"debris"`
	BoatsUsed   int         `json:"boats_used"`
	BoatsLost   int         `json:"boats_lost"`
	BoatsBack   int         `json:"boats_returned"`
	Wiped       bool        `json:"wiped"`
}

type attackedMsg struct {
	By               string      `json:"by"`
	MissionID        string      `json:"mission_id"`
	Tier             combat.Tier `json:"tier"`
	Lost             combat.Loot `json:"lost"`
	ShieldUntil      int64       `json:"shield_until"`
	DestructionState int         `json:"destruction_state"`
	DebrisGold       int         `json:"debris_gold"`
	WipeCount        int         `json:"wipe_count"`
}

// resolvePvP lands an attack. The target must still exist and be unshielded
// unless a large enough fleet breaches the shield.
func (w *World) resolvePvP(m *Mission, pl *PvPPayload, nowMs int64) {
	a := w.players[m.Owner]
	if a == nil {
		w.dropMission(m)
		return
	}
	t := w.players[pl.Target]
	if t == nil {
		w.abortPvP(m, pl, "Target not found")
		return
	}
	pt := w.tun.PvP
	if t.ShieldUntilMs > nowMs {
		breached := m.Ships >= pt.EnhancedRaidShips && combat.Chance(w.rng, pt.BreachChance)
		if !breached {
			w.abortPvP(m, pl, "Target is shielded")
			return
		}
		w.logger.Printf("pvp %s -> %s: shield breached", a.Nick, t.Nick)
	}
	w.dropMission(m)

	out := combat.ResolvePvP(w.rng, w.pvpParams(), combat.PvPInput{
		Ships:          m.Ships,
		AttackerLevel:  a.Island,
		StealBonus:     a.Passive.PvPSteal,
		DefenderCannon: t.Cannon,
		DefenderLevel:  t.Island,
		Defense:        pl.Defense,
	})
	w.settleShips(a, m.Ships, out.BoatsReturned)

	res := attackResult{
		OK:        true,
		MissionID: m.ID,
		Target:    t.Nick,
		Tier:      out.Tier,
		Survivor:  out.Survivor,
		Defense:   string(pl.Defense),
		BoatsUsed: m.Ships,
		BoatsLost: out.BoatsLost,
		BoatsBack: out.BoatsReturned,
	}
	hit := attackedMsg{By: a.Nick, MissionID: m.ID, Tier: out.Tier}

	if out.Tier != combat.TierDefeat {
		stolen := combat.Steal(t.Rum, t.Gold, t.Wood, out.StealFraction)
		plunder := combat.SplitPlunder(stolen, pt.DebrisRatio, pt.DebrisAttackerShare)
		a.Rum += float64(plunder.ToAttacker.Rum)
		a.Gold += float64(plunder.ToAttacker.Gold)
		a.Wood += float64(plunder.ToAttacker.Wood)
		t.Rum = math.Max(0, t.Rum-float64(stolen.Rum))
		t.Gold = math.Max(0, t.Gold-float64(stolen.Gold))
		t.Wood = math.Max(0, t.Wood-float64(stolen.Wood))
		if plunder.DefenderDebris > 0 {
			t.Debris += float64(plunder.DefenderDebris)
			t.DebrisUntilMs = nowMs + int64(w.tun.Economy.DebrisLifetimeMs)
		}

		a.Passive.PvPWins++
		a.Passive.PvPSteal = math.Min(a.Passive.PvPSteal+pt.WinStealBonus, pt.WinStealCap)

		if pt.ShieldAfterMaxMs > 0 {
			t.ShieldUntilMs = nowMs + int64(combat.RollRange(w.rng, pt.ShieldAfterMinMs, pt.ShieldAfterMaxMs))
		}
		t.Destruction = min(2, t.Destruction+1)
		if t.Destruction >= 2 {
			t.Passive.Legacy += pt.LegacyPerDestroy * float64(t.Island)
		}

		res.Stolen, res.Received = stolen, plunder.ToAttacker
		res.TotalStolen, res.Debris = stolen.Total(), plunder.DebrisTotal
		hit.Lost = stolen
		hit.DebrisGold = plunder.DefenderDebris

		t.Wipe.Count++
		hit.WipeCount = t.Wipe.Count
		if t.Wipe.Count >= t.Wipe.Threshold {
			w.wipe(t, nowMs)
			res.Wiped = true
		}
	}
	hit.ShieldUntil = t.ShieldUntilMs
	hit.DestructionState = t.Destruction

	w.markDirty(a.Nick)
	w.markDirty(t.Nick)
	w.emit(a.Nick, protocol.EventAttackResult, res)
	w.emit(t.Nick, protocol.EventAttacked, hit)
	if out.Tier != combat.TierDefeat {
		w.chat("PvP", fmt.Sprintf("%s raided %s! Stole %s resources", a.Nick, t.Nick, humanize.Comma(int64(res.TotalStolen))))
	} else {
		w.chat("PvP", fmt.Sprintf("%s's cannons repelled %s", t.Nick, a.Nick))
	}
	w.logger.Printf("pvp %s -> %s: %s survivor=%.2f stole=%d lost=%d/%d", a.Nick, t.Nick, out.Tier, out.Survivor, res.TotalStolen, out.BoatsLost, m.Ships)
	loot := res.Received
	w.writeOutcome(OutcomeEntry{AtMs: nowMs, Kind: string(KindPvP), Player: a.Nick, Target: t.Nick, Result: string(out.Tier), Ships: m.Ships, Lost: out.BoatsLost, Loot: &loot})
}

type wipedMsg struct {
	Legacy float64 `json:"legacy_bonus"`
	X      float64 `json:"pos_x"`
	Y      float64 `json:"pos_y"`
	Wipes  int     `json:"wipes"`
}

// wipe resets a player's island to starting values. Missions the player has
// at sea sink with it. Passive bonuses stay and legacy grows.
func (w *World) wipe(p *Player, nowMs int64) {
	pt := w.tun.PvP
	p.Passive.Legacy += pt.LegacyPerWipe + pt.LegacyPerLevel*float64(p.Island)

	for _, m := range w.sortedMissions("") {
		if m.Owner == p.Nick {
			w.dropMission(m)
		}
	}
	w.dirtyWorld = true

	p.Tavern, p.Dock, p.Cannon, p.Island = 1, 1, 0, 1
	p.Rum, p.Gold, p.Wood = 0, 0, 0
	p.Destruction, p.Repair = 0, 0
	p.Debris, p.DebrisUntilMs = 0, 0
	p.Committed = 0
	p.Boats = w.capacity(p)
	p.X, p.Y = w.FindFreeSpawnPosition(p.Nick)
	// Fleets already sailing at p follow the island to its new spot.
	for _, m := range w.sortedMissions(KindPvP) {
		if pl := m.Payload.(*PvPPayload); pl.Target == p.Nick {
			pl.TX, pl.TY = p.X, p.Y
		}
	}

	p.Wipe.Count = 0
	p.Wipe.Threshold = w.rollWipeThreshold()
	p.Wipe.Wipes++

	w.emit(p.Nick, protocol.EventWiped, wipedMsg{Legacy: p.Passive.Legacy, X: p.X, Y: p.Y, Wipes: p.Wipe.Wipes})
	w.chat("PvP", fmt.Sprintf("%s's island was wiped out and rebuilt elsewhere", p.Nick))
	w.logger.Printf("wipe %s: legacy=%.3f wipes=%d", p.Nick, p.Passive.Legacy, p.Wipe.Wipes)
	w.writeOutcome(OutcomeEntry{AtMs: nowMs, Kind: "wipe", Player: p.Nick, Result: "wiped"})
}

type pvpMissionView struct {
	ID     string  `json:"id"`
	Owner  string  `json:"owner"`
	Target string  `json:"targetNick"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	TX     float64 `json:"tx"`
	TY     float64 `json:"ty"`
	Ships  int     `json:"ships"`
}

func (w *World) pvpMissionViews() []pvpMissionView {
	ms := w.sortedMissions(KindPvP)
	out := make([]pvpMissionView, 0, len(ms))
	for _, m := range ms {
		pl := m.Payload.(*PvPPayload)
		out = append(out, pvpMissionView{
			ID:     m.ID,
			Owner:  m.Owner,
			Target: pl.Target,
			X:      math.Round(pl.X),
			Y:      math.Round(pl.Y),
			TX:     pl.TX,
			TY:     pl.TY,
			Ships:  m.Ships,
		})
	}
	return out
}
