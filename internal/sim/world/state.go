package world

import (
	"math"

	"pirateisles/internal/sim/combat"
)

// GetPlayer returns the live record. Callers on the world loop may mutate it.
func (w *World) GetPlayer(nick string) (*Player, bool) {
	p, ok := w.players[nick]
	return p, ok
}

// UpsertPlayer installs p under its nick, replacing any existing record, and
// queues it for persistence.
func (w *World) UpsertPlayer(p *Player) {
	if p == nil || p.Nick == "" {
		return
	}
	if p.ArchiDepleted == nil {
		p.ArchiDepleted = map[int]int64{}
	}
	w.players[p.Nick] = p
	w.markDirty(p.Nick)
}

func (w *World) Players() []PlayerView {
	out := make([]PlayerView, 0, len(w.players))
	for _, nick := range sortedKeys(w.players) {
		out = append(out, w.playerView(w.players[nick]))
	}
	return out
}

// ReserveShips moves n ships from home onto a mission. It is the only way
// ships leave port, so it fails rather than over-commit the fleet.
func (w *World) ReserveShips(nick string, n int) bool {
	p := w.players[nick]
	if p == nil || n <= 0 || p.Boats < n {
		return false
	}
	p.Boats -= n
	p.Committed += n
	return true
}

// ReleaseShips brings n committed ships home.
func (w *World) ReleaseShips(nick string, n int) {
	if p := w.players[nick]; p != nil {
		w.settleShips(p, n, n)
	}
}

// settleShips retires committed ships of which returned come home and the
// rest are lost. Home ships never exceed what capacity leaves free.
func (w *World) settleShips(p *Player, committed, returned int) {
	p.Committed -= committed
	if p.Committed < 0 {
		p.Committed = 0
	}
	room := w.capacity(p) - p.Committed - p.Boats
	if returned > room {
		returned = room
	}
	if returned > 0 {
		p.Boats += returned
	}
}

// FindFreeSpawnPosition samples map points until one is far enough from every
// other island, falling back to an unconstrained point. exclude is ignored
// in the distance check.
func (w *World) FindFreeSpawnPosition(exclude string) (x, y float64) {
	m := w.tun.Map
	sample := func() (float64, float64) {
		return math.Round(m.SpawnMargin + w.rng.Float64()*(m.Width-2*m.SpawnMargin)),
			math.Round(m.SpawnMargin + w.rng.Float64()*(m.Height-2*m.SpawnMargin))
	}
	for i := 0; i < m.SpawnAttempts; i++ {
		x, y = sample()
		ok := true
		for nick, p := range w.players {
			if nick == exclude {
				continue
			}
			if dist(x, y, p.X, p.Y) < m.PlayerMinDistance {
				ok = false
				break
			}
		}
		if ok {
			return x, y
		}
	}
	return sample()
}

func (w *World) newPlayer(nick, secretHash string, nowMs int64) *Player {
	p := &Player{
		Nick:          nick,
		SecretHash:    secretHash,
		Tavern:        1,
		Dock:          1,
		Cannon:        0,
		Island:        1,
		ArchiDepleted: map[int]int64{},
		CreatedMs:     nowMs,
		LastSeenMs:    nowMs,
	}
	p.X, p.Y = w.FindFreeSpawnPosition(nick)
	p.Boats = w.capacity(p)
	p.Wipe.Threshold = w.rollWipeThreshold()
	return p
}

func (w *World) rollWipeThreshold() int {
	return combat.RollInclusive(w.rng, w.tun.PvP.WipeThresholdMin, w.tun.PvP.WipeThresholdMax)
}
