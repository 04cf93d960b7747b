package world

import (
	"fmt"
	"math"

	"pirateisles/internal/protocol"
	"pirateisles/internal/sim/combat"
)

// rejection is a validation failure reported back in the ACK. State is
// untouched whenever a handler returns one.
type rejection struct {
	Code string
	Msg  string
}

func reject(code, format string, args ...any) *rejection {
	return &rejection{Code: code, Msg: fmt.Sprintf(format, args...)}
}

type commandFunc func(p *Player, c protocol.CommandMsg, nowMs int64) (any, *rejection)

func (w *World) commandTable() map[string]commandFunc {
	return map[string]commandFunc{
		protocol.CmdUpgradeTavern:      w.cmdUpgradeTavern,
		protocol.CmdUpgradeDock:        w.cmdUpgradeDock,
		protocol.CmdUpgradeCannon:      w.cmdUpgradeCannon,
		protocol.CmdUpgradeIsland:      w.cmdUpgradeIsland,
		protocol.CmdRaid:               w.cmdRaid,
		protocol.CmdHarvestArchipelago: w.cmdHarvestArchipelago,
		protocol.CmdHarvestResource:    w.cmdHarvestResource,
		protocol.CmdCapture:            w.cmdCapture,
		protocol.CmdInterceptCapture:   w.cmdInterceptCapture,
		protocol.CmdInterceptCaravan:   w.cmdInterceptCaravan,
		protocol.CmdAttack:             w.cmdAttack,
		protocol.CmdBuyShip:            w.cmdBuyShip,
		protocol.CmdBuyShield:          w.cmdBuyShield,
		protocol.CmdChooseDefense:      w.cmdChooseDefense,
		protocol.CmdCollectDebris:      w.cmdCollectDebris,
	}
}

// HandleCommand validates and applies one player command and returns its ACK.
func (w *World) HandleCommand(nick string, c protocol.CommandMsg) (ack protocol.AckMsg) {
	defer w.flushDirty()

	p := w.players[nick]
	if p == nil || !p.Online {
		return protocol.Reject(c.Seq, protocol.ErrNotAuthenticated, "Not logged in")
	}
	fn := w.commandTable()[c.Cmd]
	if fn == nil {
		return protocol.Reject(c.Seq, protocol.ErrBadRequest, fmt.Sprintf("unknown command %q", c.Cmd))
	}

	var (
		data any
		rej  *rejection
	)
	nowMs := w.nowMs()
	if err := w.guard("command "+c.Cmd, func() { data, rej = fn(p, c, nowMs) }); err != nil {
		return protocol.Reject(c.Seq, protocol.ErrInternal, "internal error")
	}
	if rej != nil {
		return protocol.Reject(c.Seq, rej.Code, rej.Msg)
	}
	p.LastSeenMs = nowMs
	w.markDirty(nick)
	return protocol.Accept(c.Seq, data)
}

func shipsArg(c protocol.CommandMsg) int {
	if c.Ships <= 0 {
		return 1
	}
	return c.Ships
}

func secondsLeft(untilMs, nowMs int64) int {
	return int(math.Ceil(float64(untilMs-nowMs) / 1000))
}

type levelResult struct {
	Level int `json:"level"`
	Rum   int `json:"rum"`
	Gold  int `json:"gold"`
	Wood  int `json:"wood"`
	Boats int `json:"boats"`
	Max   int `json:"boats_max"`
}

func (w *World) levelResult(p *Player, level int) levelResult {
	return levelResult{
		Level: level,
		Rum:   floorInt(p.Rum),
		Gold:  floorInt(p.Gold),
		Wood:  floorInt(p.Wood),
		Boats: p.Boats,
		Max:   w.capacity(p),
	}
}

func (w *World) upgraded(p *Player, what string, level int) {
	w.addIncomeBonus(p, w.tun.Passive.UpgradeIncome)
	w.logger.Printf("upgrade %s: %s -> %d", p.Nick, what, level)
}

func (w *World) cmdUpgradeTavern(p *Player, _ protocol.CommandMsg, _ int64) (any, *rejection) {
	cost := w.tavernCost(p.Tavern)
	if p.Rum < cost {
		return nil, reject(protocol.ErrNoResource, "Need %.0f rum (have %d)", cost, floorInt(p.Rum))
	}
	p.Rum -= cost
	p.Tavern++
	w.upgraded(p, "tavern", p.Tavern)
	return w.levelResult(p, p.Tavern), nil
}

// Dock upgrades add the capacity increment as new ships. Ships out on
// missions still count against capacity when they return.
func (w *World) cmdUpgradeDock(p *Player, _ protocol.CommandMsg, _ int64) (any, *rejection) {
	cost := w.dockCost(p.Dock)
	if p.Wood < cost {
		return nil, reject(protocol.ErrNoResource, "Need %.0f wood (have %d)", cost, floorInt(p.Wood))
	}
	p.Wood -= cost
	p.Dock++
	p.Boats += w.tun.Economy.BoatsPerDock
	w.upgraded(p, "dock", p.Dock)
	return w.levelResult(p, p.Dock), nil
}

func (w *World) cmdUpgradeCannon(p *Player, _ protocol.CommandMsg, _ int64) (any, *rejection) {
	rum, wood := w.cannonCost(p.Cannon)
	if p.Rum < rum || p.Wood < wood {
		return nil, reject(protocol.ErrNoResource, "Need %.0f rum + %.0f wood", rum, wood)
	}
	p.Rum -= rum
	p.Wood -= wood
	p.Cannon++
	w.upgraded(p, "cannons", p.Cannon)
	return w.levelResult(p, p.Cannon), nil
}

func (w *World) cmdUpgradeIsland(p *Player, _ protocol.CommandMsg, _ int64) (any, *rejection) {
	rum, wood := w.islandCost(p.Island)
	if p.Rum < rum || p.Wood < wood {
		return nil, reject(protocol.ErrNoResource, "Need %.0f rum + %.0f wood", rum, wood)
	}
	p.Rum -= rum
	p.Wood -= wood
	p.Island++
	w.upgraded(p, "island", p.Island)
	return w.levelResult(p, p.Island), nil
}

// cmdBuyShip replaces a lost ship. It never raises the fleet above capacity,
// counting ships still at sea.
func (w *World) cmdBuyShip(p *Player, _ protocol.CommandMsg, _ int64) (any, *rejection) {
	if p.Boats+p.Committed >= w.capacity(p) {
		return nil, reject(protocol.ErrConflict, "Fleet is at capacity (%d)", w.capacity(p))
	}
	c := w.tun.Costs
	if p.Wood < c.ShipWood || p.Gold < c.ShipGold {
		return nil, reject(protocol.ErrNoResource, "Need %.0f wood + %.0f gold", c.ShipWood, c.ShipGold)
	}
	p.Wood -= c.ShipWood
	p.Gold -= c.ShipGold
	p.Boats++
	return w.levelResult(p, p.Dock), nil
}

type shieldResult struct {
	ShieldUntil int64 `json:"shield_until"`
	NextBuy     int64 `json:"next_buy"`
	Gold        int   `json:"gold"`
}

func (w *World) cmdBuyShield(p *Player, _ protocol.CommandMsg, nowMs int64) (any, *rejection) {
	if p.ShieldUntilMs > nowMs {
		return nil, reject(protocol.ErrConflict, "Already shielded (%ds left)", secondsLeft(p.ShieldUntilMs, nowMs))
	}
	if p.ShieldBuyUntilMs > nowMs {
		return nil, reject(protocol.ErrCooldown, "Shield cooldown (%ds)", secondsLeft(p.ShieldBuyUntilMs, nowMs))
	}
	cost := w.shieldCost(p)
	if p.Gold < cost {
		return nil, reject(protocol.ErrNoResource, "Need %.0f gold (have %d)", cost, floorInt(p.Gold))
	}
	p.Gold -= cost
	p.ShieldUntilMs = nowMs + int64(w.tun.Costs.ShieldDurationMs)
	p.ShieldBuyUntilMs = nowMs + int64(w.tun.Costs.ShieldCooldownMs)
	w.logger.Printf("shield %s: until %d", p.Nick, p.ShieldUntilMs)
	return shieldResult{ShieldUntil: p.ShieldUntilMs, NextBuy: p.ShieldBuyUntilMs, Gold: floorInt(p.Gold)}, nil
}

type debrisResult struct {
	Collected int `json:"collected"`
	Gold      int `json:"gold"`
}

func (w *World) cmdCollectDebris(p *Player, _ protocol.CommandMsg, _ int64) (any, *rejection) {
	if p.Debris < 1 {
		return nil, reject(protocol.ErrNoResource, "No debris to collect")
	}
	collected := math.Floor(p.Debris)
	p.Gold += collected
	p.Debris = 0
	p.DebrisUntilMs = 0
	return debrisResult{Collected: int(collected), Gold: floorInt(p.Gold)}, nil
}

type defenseResult struct {
	MissionID string         `json:"mission_id"`
	Defense   combat.Defense `json:"defense"`
	Rum       int            `json:"rum"`
	Gold      int            `json:"gold"`
}

// cmdChooseDefense arms one reactive defense against an incoming attack. A
// choice for an attack that already landed finds no mission and is rejected.
func (w *World) cmdChooseDefense(p *Player, c protocol.CommandMsg, _ int64) (any, *rejection) {
	m := w.missions[c.MissionID]
	if m == nil || m.Kind != KindPvP {
		return nil, reject(protocol.ErrNotFound, "Attack already resolved")
	}
	pl := m.Payload.(*PvPPayload)
	if pl.Target != p.Nick {
		return nil, reject(protocol.ErrInvalidTarget, "That attack is not aimed at you")
	}
	if pl.Defense != combat.DefenseNone {
		return nil, reject(protocol.ErrConflict, "Defense already chosen (%s)", pl.Defense)
	}
	d, ok := combat.ParseDefense(c.Defense)
	if !ok || d == combat.DefenseNone {
		return nil, reject(protocol.ErrBadRequest, "Unknown defense %q", c.Defense)
	}

	dt := w.tun.Defense
	switch d {
	case combat.DefenseVolley:
		cost := math.Max(dt.VolleyRumPerCannon, dt.VolleyRumPerCannon*float64(p.Cannon))
		if p.Rum < cost {
			return nil, reject(protocol.ErrNoResource, "Need %.0f rum", cost)
		}
		p.Rum -= cost
	case combat.DefenseMercenaries:
		if p.Gold < dt.MercenaryGold {
			return nil, reject(protocol.ErrNoResource, "Need %.0f gold", dt.MercenaryGold)
		}
		p.Gold -= dt.MercenaryGold
	case combat.DefenseShield:
		if p.Gold < dt.ShieldGold {
			return nil, reject(protocol.ErrNoResource, "Need %.0f gold", dt.ShieldGold)
		}
		p.Gold -= dt.ShieldGold
	}
	pl.Defense = d
	w.logger.Printf("defense %s: %s against %s", p.Nick, d, m.Owner)
	return defenseResult{MissionID: m.ID, Defense: d, Rum: floorInt(p.Rum), Gold: floorInt(p.Gold)}, nil
}
