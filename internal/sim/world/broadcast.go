package world

import (
	"pirateisles/internal/protocol"
)

type nodeView struct {
	ID            int     `json:"id"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Type          string  `json:"type"`
	Size          float64 `json:"size"`
	DepletedUntil int64   `json:"depleted_until"`
}

type pointView struct {
	ID           int     `json:"id"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Reward       string  `json:"reward"`
	RespawnUntil int64   `json:"respawn_until"`
	Holder       string  `json:"holder,omitempty"`
	Ships        int     `json:"ships,omitempty"`
	EndsAt       int64   `json:"ends_at,omitempty"`
}

type caravanView struct {
	ID            int     `json:"id"`
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Cargo         string  `json:"cargo"`
	Escort        float64 `json:"escort"`
	CooldownUntil int64   `json:"cooldown_until"`
	Targeted      bool    `json:"targeted"`
}

type statePayload struct {
	Now      int64         `json:"now"`
	Players  []PlayerView  `json:"players"`
	Nodes    []nodeView    `json:"resource_nodes"`
	Points   []pointView   `json:"capture_points"`
	Caravans []caravanView `json:"caravans"`
}

func (w *World) statePayload() statePayload {
	s := statePayload{
		Now:      w.lastMs,
		Players:  w.Players(),
		Nodes:    make([]nodeView, 0, len(w.nodes)),
		Points:   make([]pointView, 0, len(w.points)),
		Caravans: make([]caravanView, 0, len(w.caravans)),
	}
	for _, n := range w.nodes {
		s.Nodes = append(s.Nodes, nodeView{ID: n.ID, X: n.X, Y: n.Y, Type: n.Type, Size: n.Size, DepletedUntil: n.DepletedUntilMs})
	}
	for _, pt := range w.points {
		v := pointView{ID: pt.ID, X: pt.X, Y: pt.Y, Reward: pt.Reward, RespawnUntil: pt.RespawnUntilMs}
		if m := w.missions[pt.MissionID]; m != nil {
			v.Holder, v.Ships, v.EndsAt = m.Owner, m.Ships, m.DeadlineMs()
		}
		s.Points = append(s.Points, v)
	}
	for _, c := range w.caravans {
		s.Caravans = append(s.Caravans, caravanView{
			ID:            c.ID,
			X:             c.X,
			Y:             c.Y,
			Cargo:         c.Cargo,
			Escort:        c.Escort,
			CooldownUntil: c.CooldownUntilMs,
			Targeted:      c.MissionID != "",
		})
	}
	return s
}

// broadcastState sends the shared world view to everyone and each client the
// list of its own missions.
func (w *World) broadcastState(nowMs int64) {
	if len(w.clients) == 0 {
		return
	}
	w.broadcast(protocol.EventState, w.statePayload())

	own := map[string][]MissionView{}
	for _, m := range w.sortedMissions("") {
		own[m.Owner] = append(own[m.Owner], m.view(nowMs))
	}
	for nick := range w.clients {
		views := own[nick]
		if views == nil {
			views = []MissionView{}
		}
		w.emit(nick, protocol.EventRaidsUpdate, views)
	}
}
