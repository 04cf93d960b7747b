package world

import (
	"fmt"
	"maps"

	"pirateisles/internal/persistence/snapshot"
)

func exportPlayer(p *Player) snapshot.PlayerV1 {
	return snapshot.PlayerV1{
		Base: snapshot.PlayerBaseV1{
			Nick:       p.Nick,
			SecretHash: p.SecretHash,
			X:          p.X,
			Y:          p.Y,
			Tavern:     p.Tavern,
			Dock:       p.Dock,
			Cannon:     p.Cannon,
			Island:     p.Island,
			Boats:      p.Boats,
			CreatedMs:  p.CreatedMs,
			LastSeenMs: p.LastSeenMs,
		},
		Resources: snapshot.ResourcesV1{Rum: p.Rum, Gold: p.Gold, Wood: p.Wood},
		Cooldowns: snapshot.CooldownsV1{
			PvPUntilMs:       p.PvPUntilMs,
			ShieldUntilMs:    p.ShieldUntilMs,
			ShieldBuyUntilMs: p.ShieldBuyUntilMs,
		},
		Passive: snapshot.PassiveV1{
			Income:   p.Passive.Income,
			PvPSteal: p.Passive.PvPSteal,
			Legacy:   p.Passive.Legacy,
			Missions: p.Passive.Missions,
			PvPWins:  p.Passive.PvPWins,
		},
		Wipe:          snapshot.WipeV1{Threshold: p.Wipe.Threshold, Count: p.Wipe.Count, Wipes: p.Wipe.Wipes},
		Destruction:   snapshot.DestructionV1{State: p.Destruction, Progress: p.Repair},
		Debris:        snapshot.DebrisV1{Amount: p.Debris, ExpiresMs: p.DebrisUntilMs},
		ArchiDepleted: maps.Clone(p.ArchiDepleted),
	}
}

// exportObjects captures the shared world objects without players.
func (w *World) exportObjects() snapshot.WorldV1 {
	out := snapshot.WorldV1{Seed: w.seed}
	for _, n := range w.nodes {
		out.ResourceNodes = append(out.ResourceNodes, snapshot.ResourceNodeV1{
			ID:              n.ID,
			X:               n.X,
			Y:               n.Y,
			Type:            n.Type,
			Size:            n.Size,
			DepletedUntilMs: n.DepletedUntilMs,
		})
	}
	for _, pt := range w.points {
		out.CapturePoints = append(out.CapturePoints, snapshot.CapturePointV1{
			ID:             pt.ID,
			X:              pt.X,
			Y:              pt.Y,
			Reward:         pt.Reward,
			RespawnUntilMs: pt.RespawnUntilMs,
		})
	}
	for _, c := range w.caravans {
		cv := snapshot.CaravanV1{
			ID:              c.ID,
			Cargo:           c.Cargo,
			Escort:          c.Escort,
			Leg:             c.Leg,
			X:               c.X,
			Y:               c.Y,
			CooldownUntilMs: c.CooldownUntilMs,
		}
		for _, r := range c.Route {
			cv.Route = append(cv.Route, snapshot.PointV1{X: r.X, Y: r.Y})
		}
		out.Caravans = append(out.Caravans, cv)
	}
	return out
}

// ExportSnapshot captures every player and world object. Missions at sea are
// not part of it.
func (w *World) ExportSnapshot(nowMs int64) snapshot.WorldV1 {
	out := w.exportObjects()
	for _, nick := range sortedKeys(w.players) {
		out.Players = append(out.Players, exportPlayer(w.players[nick]))
	}
	out.Header = snapshot.Header{Version: snapshot.Version, SavedAtMs: nowMs, Players: len(out.Players)}
	return out
}

// ImportSnapshot replaces the world's players and objects with snap. Every
// player comes back offline with a full fleet in port. Object lists that are
// empty in snap keep their generated values.
func (w *World) ImportSnapshot(snap snapshot.WorldV1) error {
	if snap.Header.Version != 0 && snap.Header.Version != snapshot.Version {
		return fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	if len(w.missions) > 0 {
		return fmt.Errorf("cannot import with %d missions at sea", len(w.missions))
	}

	players := make(map[string]*Player, len(snap.Players))
	for _, rec := range snap.Players {
		p, err := importPlayer(rec)
		if err != nil {
			return err
		}
		p.Boats = w.capacity(p)
		if p.Wipe.Threshold <= 0 {
			p.Wipe.Threshold = w.rollWipeThreshold()
		}
		players[p.Nick] = p
	}
	w.players = players

	if len(snap.ResourceNodes) > 0 {
		w.nodes = w.nodes[:0]
		for _, n := range snap.ResourceNodes {
			w.nodes = append(w.nodes, &ResourceNode{ID: n.ID, X: n.X, Y: n.Y, Type: n.Type, Size: n.Size, DepletedUntilMs: n.DepletedUntilMs})
		}
	}
	if len(snap.CapturePoints) > 0 {
		w.points = w.points[:0]
		for _, pt := range snap.CapturePoints {
			w.points = append(w.points, &CapturePoint{ID: pt.ID, X: pt.X, Y: pt.Y, Reward: pt.Reward, RespawnUntilMs: pt.RespawnUntilMs})
		}
	}
	if len(snap.Caravans) > 0 {
		w.caravans = w.caravans[:0]
		for _, c := range snap.Caravans {
			cv := &Caravan{ID: c.ID, Cargo: c.Cargo, Escort: c.Escort, Leg: c.Leg, X: c.X, Y: c.Y, CooldownUntilMs: c.CooldownUntilMs}
			for _, r := range c.Route {
				cv.Route = append(cv.Route, Point{X: r.X, Y: r.Y})
			}
			w.caravans = append(w.caravans, cv)
		}
	}
	w.logger.Printf("imported %d players, %d nodes, %d points, %d caravans", len(w.players), len(w.nodes), len(w.points), len(w.caravans))
	return nil
}

func importPlayer(rec snapshot.PlayerV1) (*Player, error) {
	b := rec.Base
	if b.Nick == "" {
		return nil, fmt.Errorf("player record without nick")
	}
	p := &Player{
		Nick:             b.Nick,
		SecretHash:       b.SecretHash,
		X:                b.X,
		Y:                b.Y,
		Tavern:           max(b.Tavern, 1),
		Dock:             max(b.Dock, 1),
		Cannon:           max(b.Cannon, 0),
		Island:           max(b.Island, 1),
		Rum:              rec.Resources.Rum,
		Gold:             rec.Resources.Gold,
		Wood:             rec.Resources.Wood,
		PvPUntilMs:       rec.Cooldowns.PvPUntilMs,
		ShieldUntilMs:    rec.Cooldowns.ShieldUntilMs,
		ShieldBuyUntilMs: rec.Cooldowns.ShieldBuyUntilMs,
		Passive: Passive{
			Income:   rec.Passive.Income,
			PvPSteal: rec.Passive.PvPSteal,
			Legacy:   rec.Passive.Legacy,
			Missions: rec.Passive.Missions,
			PvPWins:  rec.Passive.PvPWins,
		},
		Wipe:          WipeState{Threshold: rec.Wipe.Threshold, Count: rec.Wipe.Count, Wipes: rec.Wipe.Wipes},
		Destruction:   min(max(rec.Destruction.State, 0), 2),
		Repair:        rec.Destruction.Progress,
		Debris:        rec.Debris.Amount,
		DebrisUntilMs: rec.Debris.ExpiresMs,
		ArchiDepleted: maps.Clone(rec.ArchiDepleted),
		CreatedMs:     b.CreatedMs,
		LastSeenMs:    b.LastSeenMs,
	}
	if p.ArchiDepleted == nil {
		p.ArchiDepleted = map[int]int64{}
	}
	return p, nil
}
