package world

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"pirateisles/internal/sim/combat"
)

type Kind string

const (
	KindRaid        Kind = "raid"
	KindArchipelago Kind = "archipelago"
	KindResource    Kind = "resource"
	KindCapture     Kind = "capture"
	KindCaravan     Kind = "caravan"
	KindPvP         Kind = "pvp"
)

var AllKinds = []Kind{KindRaid, KindArchipelago, KindResource, KindCapture, KindCaravan, KindPvP}

// Mission is a fleet committed to a timed objective. Owner and Ships change
// only through interception; Start never changes and Duration only grows.
type Mission struct {
	ID       string
	Seq      uint64 // dispatch order within this world
	Kind     Kind
	Owner    string
	Ships    int
	StartMs  int64
	Duration int64 // ms
	Payload  Payload
}

func (m *Mission) DeadlineMs() int64 { return m.StartMs + m.Duration }

// Payload is the kind-specific part of a mission.
type Payload interface {
	kind() Kind
	// target identifies the object the mission is aimed at; empty for raids.
	target() string
}

type RaidPayload struct {
	Loot int
}

type ArchipelagoPayload struct {
	Index int
	Type  string
}

type HarvestPayload struct {
	NodeID int
}

type CapturePayload struct {
	PointID int
}

type InterceptPayload struct {
	CaravanID int
}

// PvPPayload tracks the fleet in flight toward a player island.
type PvPPayload struct {
	Target         string
	X, Y           float64
	TX, TY         float64
	Defense        combat.Defense
	PrevCooldownMs int64
}

func (RaidPayload) kind() Kind        { return KindRaid }
func (ArchipelagoPayload) kind() Kind { return KindArchipelago }
func (HarvestPayload) kind() Kind     { return KindResource }
func (CapturePayload) kind() Kind     { return KindCapture }
func (InterceptPayload) kind() Kind   { return KindCaravan }
func (*PvPPayload) kind() Kind        { return KindPvP }

func (RaidPayload) target() string          { return "" }
func (p ArchipelagoPayload) target() string { return fmt.Sprintf("archi:%d", p.Index) }
func (p HarvestPayload) target() string     { return fmt.Sprintf("node:%d", p.NodeID) }
func (p CapturePayload) target() string     { return fmt.Sprintf("point:%d", p.PointID) }
func (p InterceptPayload) target() string   { return fmt.Sprintf("caravan:%d", p.CaravanID) }
func (p *PvPPayload) target() string        { return "player:" + p.Target }

// launch reserves ships and registers a new mission. ok is false when the
// owner does not have the ships.
func (w *World) launch(owner string, ships int, nowMs, duration int64, payload Payload) (*Mission, bool) {
	if !w.ReserveShips(owner, ships) {
		return nil, false
	}
	w.missionSeq++
	m := &Mission{
		ID:       w.missionID(nowMs),
		Seq:      w.missionSeq,
		Kind:     payload.kind(),
		Owner:    owner,
		Ships:    ships,
		StartMs:  nowMs,
		Duration: duration,
		Payload:  payload,
	}
	w.missions[m.ID] = m
	w.markDirty(owner)
	return m, true
}

// missionID derives a UUID from the world seed, the launch time and the
// dispatch counter so a fixed seed replays the same ids.
func (w *World) missionID(nowMs int64) string {
	name := fmt.Sprintf("%d/%d/%d", w.seed, nowMs, w.missionSeq)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

func (w *World) hasOpenMission(owner, target string) bool {
	if target == "" {
		return false
	}
	for _, m := range w.missions {
		if m.Owner == owner && m.Payload.target() == target {
			return true
		}
	}
	return false
}

// sortedMissions returns open missions by deadline, then dispatch order.
func (w *World) sortedMissions(kind Kind) []*Mission {
	out := make([]*Mission, 0, len(w.missions))
	for _, m := range w.missions {
		if kind == "" || m.Kind == kind {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DeadlineMs() != out[j].DeadlineMs() {
			return out[i].DeadlineMs() < out[j].DeadlineMs()
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

// travelMs converts a sailing distance into a duration with a floor.
func travelMs(distance, speed float64, minMs int) int64 {
	d := int64(math.Floor(distance / speed * 1000))
	return max(d, int64(minMs))
}

// MissionView is the externally observable form of a mission.
type MissionView struct {
	ID          string `json:"id"`
	Kind        Kind   `json:"kind"`
	Owner       string `json:"owner"`
	Target      string `json:"target,omitempty"`
	Ships       int    `json:"ships"`
	StartMs     int64  `json:"start_ms"`
	DurationMs  int64  `json:"duration_ms"`
	RemainingMs int64  `json:"remaining_ms"`
}

func (m *Mission) view(nowMs int64) MissionView {
	return MissionView{
		ID:          m.ID,
		Kind:        m.Kind,
		Owner:       m.Owner,
		Target:      m.Payload.target(),
		Ships:       m.Ships,
		StartMs:     m.StartMs,
		DurationMs:  m.Duration,
		RemainingMs: max(0, m.DeadlineMs()-nowMs),
	}
}

// Missions lists open missions by deadline.
func (w *World) Missions() []MissionView {
	now := w.lastMs
	ms := w.sortedMissions("")
	out := make([]MissionView, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.view(now))
	}
	return out
}

// dropMission removes m and clears any world object still pointing at it.
// Ships are not touched.
func (w *World) dropMission(m *Mission) {
	delete(w.missions, m.ID)
	switch pl := m.Payload.(type) {
	case CapturePayload:
		if pt := w.point(pl.PointID); pt != nil && pt.MissionID == m.ID {
			pt.MissionID = ""
		}
	case InterceptPayload:
		if c := w.caravan(pl.CaravanID); c != nil && c.MissionID == m.ID {
			c.MissionID = ""
		}
	}
}
