package world

import (
	"context"
	"errors"
)

type adminKind int

const (
	adminSnapshot adminKind = iota
	adminState
)

type adminReq struct {
	Kind adminKind
	Resp chan adminResp
}

type adminResp struct {
	SavedAtMs int64
	State     AdminState
	Err       string
}

// AdminState is the operator's view of the world.
type AdminState struct {
	NowMs    int64          `json:"now_ms"`
	Seed     int64          `json:"seed"`
	Players  []PlayerView   `json:"players"`
	Missions []MissionView  `json:"missions"`
	Nodes    []ResourceNode `json:"resource_nodes"`
	Points   []CapturePoint `json:"capture_points"`
	Caravans []Caravan      `json:"caravans"`
	Metrics  WorldMetrics   `json:"metrics"`
}

func (w *World) adminRequest(ctx context.Context, kind adminKind) (adminResp, error) {
	if w == nil || w.admin == nil {
		return adminResp{}, errors.New("admin requests not available")
	}
	resp := make(chan adminResp, 1)
	select {
	case w.admin <- adminReq{Kind: kind, Resp: resp}:
	case <-ctx.Done():
		return adminResp{}, ctx.Err()
	}
	select {
	case r := <-resp:
		if r.Err != "" {
			return r, errors.New(r.Err)
		}
		return r, nil
	case <-ctx.Done():
		return adminResp{}, ctx.Err()
	}
}

// RequestSnapshot asks the world loop goroutine to hand a snapshot to the
// snapshot sink. It is safe to call from other goroutines.
func (w *World) RequestSnapshot(ctx context.Context) (savedAtMs int64, err error) {
	r, err := w.adminRequest(ctx, adminSnapshot)
	return r.SavedAtMs, err
}

// RequestState returns a consistent copy of the world taken on the loop.
func (w *World) RequestState(ctx context.Context) (AdminState, error) {
	r, err := w.adminRequest(ctx, adminState)
	return r.State, err
}

func (w *World) AdminState() AdminState {
	return AdminState{
		NowMs:    w.lastMs,
		Seed:     w.seed,
		Players:  w.Players(),
		Missions: w.Missions(),
		Nodes:    w.ResourceNodes(),
		Points:   w.CapturePoints(),
		Caravans: w.Caravans(),
		Metrics:  w.Metrics(),
	}
}

func (w *World) handleAdminRequests(reqs []adminReq) {
	if len(reqs) == 0 {
		return
	}
	var snapResp *adminResp
	for _, r := range reqs {
		var resp adminResp
		switch r.Kind {
		case adminSnapshot:
			// One snapshot serves every request queued in the same tick.
			if snapResp == nil {
				snapResp = &adminResp{SavedAtMs: w.lastMs}
				if w.snapshotSink == nil {
					snapResp.Err = "snapshot sink not configured"
				} else {
					select {
					case w.snapshotSink <- w.ExportSnapshot(w.lastMs):
					default:
						snapResp.Err = "snapshot sink backpressure"
					}
				}
			}
			resp = *snapResp
		case adminState:
			resp = adminResp{SavedAtMs: w.lastMs, State: w.AdminState()}
		}
		if r.Resp == nil {
			continue
		}
		select {
		case r.Resp <- resp:
		default:
			// Caller timed out; don't block the loop.
		}
	}
}
