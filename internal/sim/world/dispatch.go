package world

import (
	"fmt"
	"math"

	"pirateisles/internal/protocol"
	"pirateisles/internal/sim/archipelago"
	"pirateisles/internal/sim/combat"
)

type dispatchResult struct {
	MissionID  string `json:"mission_id"`
	DurationMs int64  `json:"duration_ms"`
	Boats      int    `json:"boats"`
	BoatsMax   int    `json:"boats_max"`
	Type       string `json:"type,omitempty"`
}

func (w *World) dispatched(p *Player, m *Mission, typ string) dispatchResult {
	w.logger.Printf("dispatch %s: %s %s ships=%d eta=%ds", p.Nick, m.Kind, m.Payload.target(), m.Ships, m.Duration/1000)
	return dispatchResult{
		MissionID:  m.ID,
		DurationMs: m.Duration,
		Boats:      p.Boats,
		BoatsMax:   w.capacity(p),
		Type:       typ,
	}
}

func noShips(p *Player, need int) *rejection {
	if need <= 1 {
		return reject(protocol.ErrNoShips, "No boats available")
	}
	return reject(protocol.ErrNoShips, "Need %d boats (have %d)", need, p.Boats)
}

func (w *World) cmdRaid(p *Player, _ protocol.CommandMsg, nowMs int64) (any, *rejection) {
	if p.Boats < 1 {
		return nil, noShips(p, 1)
	}
	rt := w.tun.Raid
	duration := int64(combat.RollRange(w.rng, rt.MinDurationMs, rt.MaxDurationMs))
	loot := combat.RollRange(w.rng, rt.LootMin, rt.LootMax)
	m, _ := w.launch(p.Nick, 1, nowMs, duration, RaidPayload{Loot: loot})
	return w.dispatched(p, m, ""), nil
}

func (w *World) cmdHarvestArchipelago(p *Player, c protocol.CommandMsg, nowMs int64) (any, *rejection) {
	if c.Index == nil {
		return nil, reject(protocol.ErrBadRequest, "Invalid island index")
	}
	islet, ok := archipelago.Get(p.Nick, *c.Index)
	if !ok {
		return nil, reject(protocol.ErrBadRequest, "Invalid island index")
	}
	if until := p.ArchiDepleted[islet.Index]; until > nowMs {
		return nil, reject(protocol.ErrDepleted, "Island depleted (%ds)", secondsLeft(until, nowMs))
	}
	payload := ArchipelagoPayload{Index: islet.Index, Type: islet.Type}
	if w.hasOpenMission(p.Nick, payload.target()) {
		return nil, reject(protocol.ErrConflict, "Already harvesting this island")
	}
	if p.Boats < 1 {
		return nil, noShips(p, 1)
	}
	at := w.tun.Archipelago
	m, _ := w.launch(p.Nick, 1, nowMs, travelMs(islet.Distance(), at.Speed, at.MinTravelMs), payload)
	return w.dispatched(p, m, islet.Type), nil
}

func (w *World) cmdHarvestResource(p *Player, c protocol.CommandMsg, nowMs int64) (any, *rejection) {
	n := w.node(c.NodeID)
	if n == nil {
		return nil, reject(protocol.ErrNotFound, "Island not found")
	}
	if n.DepletedUntilMs > nowMs {
		return nil, reject(protocol.ErrDepleted, "Island depleted (%ds)", secondsLeft(n.DepletedUntilMs, nowMs))
	}
	payload := HarvestPayload{NodeID: n.ID}
	if w.hasOpenMission(p.Nick, payload.target()) {
		return nil, reject(protocol.ErrConflict, "Already harvesting this island")
	}
	if p.Boats < 1 {
		return nil, noShips(p, 1)
	}
	rt := w.tun.Resources
	d := dist(p.X, p.Y, n.X, n.Y)
	m, _ := w.launch(p.Nick, 1, nowMs, travelMs(d, rt.Speed, rt.MinTravelMs), payload)
	return w.dispatched(p, m, n.Type), nil
}

// cmdCapture sails to an unheld point. The contest completes HoldMs after
// arrival unless someone takes it over first.
func (w *World) cmdCapture(p *Player, c protocol.CommandMsg, nowMs int64) (any, *rejection) {
	pt := w.point(c.PointID)
	if pt == nil {
		return nil, reject(protocol.ErrNotFound, "Capture point not found")
	}
	if pt.RespawnUntilMs > nowMs {
		return nil, reject(protocol.ErrCooldown, "Capture point respawning (%ds)", secondsLeft(pt.RespawnUntilMs, nowMs))
	}
	if held := w.missions[pt.MissionID]; held != nil {
		if held.Owner == p.Nick {
			return nil, reject(protocol.ErrConflict, "Already capturing this point")
		}
		return nil, reject(protocol.ErrConflict, "Point held by %s; use %s", held.Owner, protocol.CmdInterceptCapture)
	}
	ships := shipsArg(c)
	if p.Boats < ships {
		return nil, noShips(p, ships)
	}
	ct := w.tun.Capture
	duration := travelMs(dist(p.X, p.Y, pt.X, pt.Y), ct.Speed, ct.MinTravelMs) + int64(ct.HoldMs)
	m, _ := w.launch(p.Nick, ships, nowMs, duration, CapturePayload{PointID: pt.ID})
	pt.MissionID = m.ID
	w.dirtyWorld = true
	w.chat("Capture", fmt.Sprintf("%s is capturing point #%d", p.Nick, pt.ID))
	return w.dispatched(p, m, pt.Reward), nil
}

type contestResult struct {
	MissionID     string  `json:"mission_id"`
	Won           bool    `json:"won"`
	Challenger    string  `json:"challenger"`
	Holder        string  `json:"holder"`
	AttackerPower float64 `json:"attacker_power"`
	DefenderPower float64 `json:"defender_power"`
	AttackerLost  int     `json:"attacker_lost"`
	DefenderLost  int     `json:"defender_lost"`
	Ships         int     `json:"ships"`
	DeadlineMs    int64   `json:"deadline_ms"`
}

// contest fights a challenger fleet against the fleet holding m. The winner
// owns m afterwards with its surviving ships; the loser's survivors sail home
// at once. A takeover never moves the deadline earlier and leaves at least
// InterceptFloorMs on the clock.
func (w *World) contest(p *Player, m *Mission, ships int, nowMs int64) contestResult {
	holder := w.players[m.Owner]
	defShips := m.Ships
	out := combat.FleetVsFleet(w.rng, w.fleetParams(), ships, defShips)

	// The challenger fleet leaves port before the battle.
	w.ReserveShips(p.Nick, ships)

	res := contestResult{
		MissionID:     m.ID,
		Won:           out.AttackerWins,
		Challenger:    p.Nick,
		Holder:        m.Owner,
		AttackerPower: out.AttackerPower,
		DefenderPower: out.DefenderPower,
		AttackerLost:  out.AttackerLost,
		DefenderLost:  out.DefenderLost,
	}
	if out.AttackerWins {
		if holder != nil {
			w.settleShips(holder, defShips, out.DefenderSurvivors(defShips))
			w.markDirty(holder.Nick)
		}
		w.settleShips(p, out.AttackerLost, 0)
		m.Owner = p.Nick
		m.Ships = out.AttackerSurvivors(ships)
		deadline := max(m.DeadlineMs(), nowMs+int64(w.tun.Capture.InterceptFloorMs))
		m.Duration = deadline - m.StartMs
	} else {
		if holder != nil {
			w.settleShips(holder, out.DefenderLost, 0)
			w.markDirty(holder.Nick)
		}
		m.Ships = out.DefenderSurvivors(defShips)
		w.settleShips(p, ships, out.AttackerSurvivors(ships))
	}
	res.Ships = m.Ships
	res.DeadlineMs = m.DeadlineMs()

	result := "held"
	if out.AttackerWins {
		result = "taken"
	}
	w.writeOutcome(OutcomeEntry{
		AtMs:   nowMs,
		Kind:   string(m.Kind) + "_contest",
		Player: p.Nick,
		Target: res.Holder,
		Result: result,
		Ships:  ships,
		Lost:   out.AttackerLost,
	})
	w.logger.Printf("contest %s vs %s on %s: %s (lost %d/%d)", p.Nick, res.Holder, m.Payload.target(), result, out.AttackerLost, out.DefenderLost)
	return res
}

func (w *World) cmdInterceptCapture(p *Player, c protocol.CommandMsg, nowMs int64) (any, *rejection) {
	pt := w.point(c.PointID)
	if pt == nil {
		return nil, reject(protocol.ErrNotFound, "Capture point not found")
	}
	m := w.missions[pt.MissionID]
	if m == nil {
		return nil, reject(protocol.ErrInvalidTarget, "Point is not being captured")
	}
	if m.Owner == p.Nick {
		return nil, reject(protocol.ErrInvalidTarget, "Cannot intercept your own capture")
	}
	ships := shipsArg(c)
	if p.Boats < ships {
		return nil, noShips(p, ships)
	}
	res := w.contest(p, m, ships, nowMs)
	w.emit(res.Holder, protocol.EventCaptureContested, res)
	if res.Won {
		w.chat("Capture", fmt.Sprintf("%s seized point #%d from %s", p.Nick, pt.ID, res.Holder))
	}
	return res, nil
}

// cmdInterceptCaravan sails toward a caravan. If another player is already
// on the way, the two fleets fight for the intercept instead.
func (w *World) cmdInterceptCaravan(p *Player, c protocol.CommandMsg, nowMs int64) (any, *rejection) {
	cv := w.caravan(c.CaravanID)
	if cv == nil {
		return nil, reject(protocol.ErrNotFound, "Caravan not found")
	}
	if cv.CooldownUntilMs > nowMs {
		return nil, reject(protocol.ErrCooldown, "Caravan recently raided (%ds)", secondsLeft(cv.CooldownUntilMs, nowMs))
	}
	ships := shipsArg(c)
	if m := w.missions[cv.MissionID]; m != nil {
		if m.Owner == p.Nick {
			return nil, reject(protocol.ErrConflict, "Already intercepting this caravan")
		}
		if p.Boats < ships {
			return nil, noShips(p, ships)
		}
		res := w.contest(p, m, ships, nowMs)
		w.emit(res.Holder, protocol.EventCaravanContested, res)
		return res, nil
	}
	if p.Boats < ships {
		return nil, noShips(p, ships)
	}
	d := dist(p.X, p.Y, cv.X, cv.Y)
	m, _ := w.launch(p.Nick, ships, nowMs, travelMs(d, w.tun.Caravans.Speed, w.tun.Caravans.MinTravelMs), InterceptPayload{CaravanID: cv.ID})
	cv.MissionID = m.ID
	return w.dispatched(p, m, cv.Cargo), nil
}

type attackLaunch struct {
	MissionID string `json:"mission_id"`
	Target    string `json:"target"`
	Ships     int    `json:"ships"`
	EtaSec    int    `json:"eta"`
	Boats     int    `json:"boats"`
}

type incomingAttack struct {
	MissionID string `json:"mission_id"`
	From      string `json:"from"`
	Ships     int    `json:"ships"`
	EtaSec    int    `json:"eta"`
}

func (w *World) cmdAttack(p *Player, c protocol.CommandMsg, nowMs int64) (any, *rejection) {
	t := w.players[c.Target]
	if t == nil {
		return nil, reject(protocol.ErrNotFound, "Player not found")
	}
	if t.Nick == p.Nick {
		return nil, reject(protocol.ErrInvalidTarget, "Cannot attack yourself")
	}
	ships := shipsArg(c)
	pt := w.tun.PvP
	if t.ShieldUntilMs > nowMs && ships < pt.EnhancedRaidShips {
		h := int(math.Ceil(float64(t.ShieldUntilMs-nowMs) / 3600000))
		return nil, reject(protocol.ErrShielded, "Target is shielded (%dh left)", h)
	}
	if p.PvPUntilMs > nowMs {
		m := int(math.Ceil(float64(p.PvPUntilMs-nowMs) / 60000))
		return nil, reject(protocol.ErrCooldown, "PvP cooldown: %d min", m)
	}
	payload := &PvPPayload{Target: t.Nick, X: p.X, Y: p.Y, TX: t.X, TY: t.Y, PrevCooldownMs: p.PvPUntilMs}
	if w.hasOpenMission(p.Nick, payload.target()) {
		return nil, reject(protocol.ErrConflict, "Already attacking %s", t.Nick)
	}
	if p.Boats < ships {
		return nil, noShips(p, ships)
	}

	d := dist(p.X, p.Y, t.X, t.Y)
	eta := int(math.Ceil(d / pt.Speed))
	m, _ := w.launch(p.Nick, ships, nowMs, int64(eta)*1000, payload)
	p.PvPUntilMs = nowMs + int64(pt.CooldownMs)

	w.logger.Printf("pvp %s -> %s: launched ships=%d dist=%.0f eta=%ds", p.Nick, t.Nick, ships, d, eta)
	w.emit(t.Nick, protocol.EventIncomingAttack, incomingAttack{MissionID: m.ID, From: p.Nick, Ships: ships, EtaSec: eta})
	w.chat("PvP", fmt.Sprintf("%s launched attack on %s! (ETA ~%ds)", p.Nick, t.Nick, eta))
	return attackLaunch{MissionID: m.ID, Target: t.Nick, Ships: ships, EtaSec: eta, Boats: p.Boats}, nil
}

func (w *World) fleetParams() combat.FleetParams {
	f := w.tun.Fleet
	return combat.FleetParams{
		PowerMin:      f.PowerMin,
		PowerMax:      f.PowerMax,
		WinnerLossMin: f.WinnerLossMin,
		WinnerLossMax: f.WinnerLossMax,
		LoserLossMin:  f.LoserLossMin,
		LoserLossMax:  f.LoserLossMax,
		NPCLossMin:    f.NPCLossMin,
		NPCLossMax:    f.NPCLossMax,
	}
}
