package world

import (
	"errors"
	"fmt"
)

// CheckInvariants reports every broken world invariant. It only reads state
// and must be called on the loop goroutine.
func (w *World) CheckInvariants() error {
	var errs []error
	fail := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	atSea := map[string]int{}
	holders := map[int][]string{}
	for _, m := range w.sortedMissions("") {
		if m.Ships < 1 {
			fail("mission %s: %d ships", m.ID, m.Ships)
		}
		if w.players[m.Owner] == nil {
			fail("mission %s: owner %q missing", m.ID, m.Owner)
		}
		atSea[m.Owner] += m.Ships
		if pl, ok := m.Payload.(CapturePayload); ok {
			holders[pl.PointID] = append(holders[pl.PointID], m.ID)
		}
	}

	for _, nick := range sortedKeys(w.players) {
		p := w.players[nick]
		if p.Boats < 0 || p.Committed < 0 {
			fail("%s: negative fleet boats=%d committed=%d", nick, p.Boats, p.Committed)
		}
		if limit := w.capacity(p); p.Boats+p.Committed > limit {
			fail("%s: fleet %d+%d exceeds capacity %d", nick, p.Boats, p.Committed, limit)
		}
		if p.Committed != atSea[nick] {
			fail("%s: committed %d but %d ships at sea", nick, p.Committed, atSea[nick])
		}
		if p.Rum < 0 || p.Gold < 0 || p.Wood < 0 || p.Debris < 0 {
			fail("%s: negative balance rum=%.1f gold=%.1f wood=%.1f debris=%.1f", nick, p.Rum, p.Gold, p.Wood, p.Debris)
		}
		if p.Destruction < 0 || p.Destruction > 2 {
			fail("%s: destruction %d out of range", nick, p.Destruction)
		}
		if p.Debris > 0 && p.DebrisUntilMs <= w.lastMs {
			fail("%s: debris %.0f past expiry %d", nick, p.Debris, p.DebrisUntilMs)
		}
	}

	for _, pt := range w.points {
		ids := holders[pt.ID]
		if len(ids) > 1 {
			fail("point %d: %d capture missions", pt.ID, len(ids))
		}
		if pt.MissionID == "" {
			if len(ids) > 0 {
				fail("point %d: capture %s not recorded", pt.ID, ids[0])
			}
			continue
		}
		if len(ids) != 1 || ids[0] != pt.MissionID {
			fail("point %d: holder %s is not an open capture", pt.ID, pt.MissionID)
		}
	}
	for _, c := range w.caravans {
		if c.MissionID != "" && w.missions[c.MissionID] == nil {
			fail("caravan %d: intercept %s is not open", c.ID, c.MissionID)
		}
	}
	return errors.Join(errs...)
}
