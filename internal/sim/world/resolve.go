package world

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"pirateisles/internal/protocol"
	"pirateisles/internal/sim/combat"
	"pirateisles/internal/sim/tuning"
)

// sweepMissions resolves every non-PvP mission whose deadline has passed.
// PvP fleets land through the motion evaluator instead.
func (w *World) sweepMissions(nowMs int64) {
	for _, m := range w.sortedMissions("") {
		if m.Kind == KindPvP || nowMs < m.DeadlineMs() || w.missions[m.ID] == nil {
			continue
		}
		w.resolveMission(m, nowMs)
	}
}

func (w *World) resolveMission(m *Mission, nowMs int64) {
	w.dropMission(m)
	p := w.players[m.Owner]
	if p == nil {
		// Owner was removed; the ships went with it.
		return
	}
	var err error
	switch pl := m.Payload.(type) {
	case RaidPayload:
		err = w.guard("raid", func() { w.resolveRaid(p, m, pl, nowMs) })
	case ArchipelagoPayload:
		err = w.guard("archipelago", func() { w.resolveArchipelago(p, m, pl, nowMs) })
	case HarvestPayload:
		err = w.guard("harvest", func() { w.resolveHarvest(p, m, pl, nowMs) })
	case CapturePayload:
		err = w.guard("capture", func() { w.resolveCapture(p, m, pl, nowMs) })
	case InterceptPayload:
		err = w.guard("intercept", func() { w.resolveIntercept(p, m, pl, nowMs) })
	}
	if err != nil {
		// Never strand the fleet on a failed resolution.
		w.settleShips(p, m.Ships, m.Ships)
	}
	w.markDirty(p.Nick)
}

// missionSucceeded grows the player's permanent income bonus.
func (w *World) missionSucceeded(p *Player) {
	p.Passive.Missions++
	w.addIncomeBonus(p, w.tun.Passive.MissionIncome)
}

type raidResult struct {
	MissionID string      `json:"mission_id"`
	Success   bool        `json:"success"`
	BoatLost  bool        `json:"boat_lost"`
	Loot      combat.Loot `json:"loot"`
}

func (w *World) resolveRaid(p *Player, m *Mission, pl RaidPayload, nowMs int64) {
	res := raidResult{MissionID: m.ID}
	entry := OutcomeEntry{AtMs: nowMs, Kind: string(KindRaid), Player: p.Nick, Ships: m.Ships}
	if combat.Chance(w.rng, w.tun.Raid.LossChance) {
		w.settleShips(p, m.Ships, 0)
		res.BoatLost = true
		entry.Result, entry.Lost = "lost", m.Ships
		w.emit(p.Nick, protocol.EventChat, chatMsg{From: "Raid", Text: "Your boat was lost at sea!"})
	} else {
		loot := combat.SplitRaidLoot(pl.Loot)
		p.Rum += float64(loot.Rum)
		p.Wood += float64(loot.Wood)
		p.Gold += float64(loot.Gold)
		w.settleShips(p, m.Ships, m.Ships)
		w.missionSucceeded(p)
		res.Success, res.Loot = true, loot
		entry.Result, entry.Loot = "success", &loot
		w.emit(p.Nick, protocol.EventChat, chatMsg{
			From: "Raid",
			Text: fmt.Sprintf("Boat returned! +%s rum, +%s wood, +%s gold", humanize.Comma(int64(loot.Rum)), humanize.Comma(int64(loot.Wood)), humanize.Comma(int64(loot.Gold))),
		})
	}
	w.logger.Printf("raid %s: %s loot=%d", p.Nick, entry.Result, pl.Loot)
	w.emit(p.Nick, protocol.EventRaidResult, res)
	w.writeOutcome(entry)
}

type harvestResult struct {
	MissionID     string `json:"mission_id"`
	Index         *int   `json:"idx,omitempty"`
	NodeID        int    `json:"island_id,omitempty"`
	Type          string `json:"type"`
	Resource      string `json:"resource"`
	Amount        int    `json:"amount"`
	BoatLost      bool   `json:"boat_lost"`
	DepletedUntil int64  `json:"depleted_until"`
}

// harvest rolls loot for one resource and decides whether the boat made it
// home. The loot is delivered either way.
func (w *World) harvest(p *Player, m *Mission, loot map[string]tuning.LootRange, typ string, lossChance float64) (string, int, bool) {
	lr, ok := loot[typ]
	if !ok {
		lr = loot["wood"]
	}
	amount := combat.RollRange(w.rng, lr.Min, lr.Max)
	p.add(lr.Resource, float64(amount))
	lost := combat.Chance(w.rng, lossChance)
	if lost {
		w.settleShips(p, m.Ships, 0)
	} else {
		w.settleShips(p, m.Ships, m.Ships)
	}
	w.missionSucceeded(p)
	return lr.Resource, amount, lost
}

func (w *World) resolveArchipelago(p *Player, m *Mission, pl ArchipelagoPayload, nowMs int64) {
	at := w.tun.Archipelago
	resource, amount, lost := w.harvest(p, m, at.Loot, pl.Type, at.LossChance)
	if p.ArchiDepleted == nil {
		p.ArchiDepleted = map[int]int64{}
	}
	until := nowMs + int64(at.DepletionMs)
	p.ArchiDepleted[pl.Index] = until

	idx := pl.Index
	w.emit(p.Nick, protocol.EventArchiResult, harvestResult{
		MissionID:     m.ID,
		Index:         &idx,
		Type:          pl.Type,
		Resource:      resource,
		Amount:        amount,
		BoatLost:      lost,
		DepletedUntil: until,
	})
	w.logger.Printf("archipelago %s: islet %d (%s) +%d %s lost=%v", p.Nick, pl.Index, pl.Type, amount, resource, lost)
	w.writeOutcome(OutcomeEntry{AtMs: nowMs, Kind: string(KindArchipelago), Player: p.Nick, Target: m.Payload.target(), Result: harvestOutcome(lost), Ships: m.Ships, Loot: lootOf(resource, amount)})
}

func (w *World) resolveHarvest(p *Player, m *Mission, pl HarvestPayload, nowMs int64) {
	n := w.node(pl.NodeID)
	if n == nil {
		w.settleShips(p, m.Ships, m.Ships)
		return
	}
	rt := w.tun.Resources
	resource, amount, lost := w.harvest(p, m, rt.Loot, n.Type, rt.LossChance)
	n.DepletedUntilMs = nowMs + int64(rt.DepletionMs)
	w.dirtyWorld = true

	w.emit(p.Nick, protocol.EventResourceRaidResult, harvestResult{
		MissionID:     m.ID,
		NodeID:        n.ID,
		Type:          n.Type,
		Resource:      resource,
		Amount:        amount,
		BoatLost:      lost,
		DepletedUntil: n.DepletedUntilMs,
	})
	w.logger.Printf("harvest %s: node %d (%s) +%d %s lost=%v", p.Nick, n.ID, n.Type, amount, resource, lost)
	w.writeOutcome(OutcomeEntry{AtMs: nowMs, Kind: string(KindResource), Player: p.Nick, Target: m.Payload.target(), Result: harvestOutcome(lost), Ships: m.Ships, Loot: lootOf(resource, amount)})
}

type captureResult struct {
	MissionID    string `json:"mission_id"`
	PointID      int    `json:"point_id"`
	Resource     string `json:"resource"`
	Amount       int    `json:"amount"`
	Ships        int    `json:"ships"`
	RespawnUntil int64  `json:"respawn_until"`
}

func (w *World) resolveCapture(p *Player, m *Mission, pl CapturePayload, nowMs int64) {
	pt := w.point(pl.PointID)
	w.settleShips(p, m.Ships, m.Ships)
	if pt == nil {
		return
	}
	ct := w.tun.Capture
	lr := ct.Loot[pt.Reward]
	amount := combat.RollRange(w.rng, lr.Min, lr.Max)
	p.add(lr.Resource, float64(amount))
	w.missionSucceeded(p)
	pt.RespawnUntilMs = nowMs + int64(ct.RespawnMs)
	w.dirtyWorld = true

	w.emit(p.Nick, protocol.EventCaptureResult, captureResult{
		MissionID:    m.ID,
		PointID:      pt.ID,
		Resource:     lr.Resource,
		Amount:       amount,
		Ships:        m.Ships,
		RespawnUntil: pt.RespawnUntilMs,
	})
	w.chat("Capture", fmt.Sprintf("%s captured point #%d and took %s %s", p.Nick, pt.ID, humanize.Comma(int64(amount)), lr.Resource))
	w.logger.Printf("capture %s: point %d +%d %s", p.Nick, pt.ID, amount, lr.Resource)
	w.writeOutcome(OutcomeEntry{AtMs: nowMs, Kind: string(KindCapture), Player: p.Nick, Target: m.Payload.target(), Result: "captured", Ships: m.Ships, Loot: lootOf(lr.Resource, amount)})
}

type caravanResult struct {
	MissionID string  `json:"mission_id"`
	CaravanID int     `json:"caravan_id"`
	Won       bool    `json:"won"`
	Power     float64 `json:"power"`
	Escort    float64 `json:"escort"`
	Lost      int     `json:"lost"`
	Returned  int     `json:"returned"`
	Resource  string  `json:"resource,omitempty"`
	Amount    int     `json:"amount,omitempty"`
}

func (w *World) resolveIntercept(p *Player, m *Mission, pl InterceptPayload, nowMs int64) {
	cv := w.caravan(pl.CaravanID)
	if cv == nil {
		w.settleShips(p, m.Ships, m.Ships)
		return
	}
	out := combat.FleetVsNPC(w.rng, w.fleetParams(), m.Ships, cv.Escort)
	res := caravanResult{
		MissionID: m.ID,
		CaravanID: cv.ID,
		Won:       out.Won,
		Power:     out.Power,
		Escort:    out.Escort,
		Lost:      out.Lost,
		Returned:  m.Ships - out.Lost,
	}
	w.settleShips(p, m.Ships, res.Returned)
	entry := OutcomeEntry{AtMs: nowMs, Kind: string(KindCaravan), Player: p.Nick, Target: m.Payload.target(), Result: "repelled", Ships: m.Ships, Lost: out.Lost}
	if out.Won {
		ct := w.tun.Caravans
		res.Resource = cv.Cargo
		res.Amount = combat.RollRange(w.rng, ct.LootMin, ct.LootMax)
		p.add(cv.Cargo, float64(res.Amount))
		w.missionSucceeded(p)
		cv.CooldownUntilMs = nowMs + int64(ct.CooldownMs)
		w.dirtyWorld = true
		entry.Result, entry.Loot = "plundered", lootOf(cv.Cargo, res.Amount)
		w.chat("Caravan", fmt.Sprintf("%s plundered caravan #%d for %s %s", p.Nick, cv.ID, humanize.Comma(int64(res.Amount)), cv.Cargo))
	}
	w.emit(p.Nick, protocol.EventCaravanResult, res)
	w.logger.Printf("caravan %s: #%d %s lost=%d", p.Nick, cv.ID, entry.Result, out.Lost)
	w.writeOutcome(entry)
}

func harvestOutcome(lost bool) string {
	if lost {
		return "boat_lost"
	}
	return "success"
}

func lootOf(resource string, amount int) *combat.Loot {
	var l combat.Loot
	switch resource {
	case "rum":
		l.Rum = amount
	case "gold":
		l.Gold = amount
	case "wood":
		l.Wood = amount
	}
	return &l
}
