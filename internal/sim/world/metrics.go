package world

import (
	"time"
)

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	NowMs int64 `json:"now_ms"`

	Players  int          `json:"players"`
	Online   int          `json:"online"`
	Clients  int          `json:"clients"`
	Missions map[Kind]int `json:"missions"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS        float64 `json:"step_ms"`
	DroppedWrites uint64  `json:"dropped_writes"`
}

type QueueDepths struct {
	Inbox int `json:"inbox"`
	Join  int `json:"join"`
	Leave int `json:"leave"`
}

// droppedCounter is implemented by persisters that shed writes under load.
type droppedCounter interface {
	DroppedWrites() uint64
}

func (w *World) publishMetrics(step time.Duration) {
	m := WorldMetrics{
		NowMs:    w.lastMs,
		Players:  len(w.players),
		Clients:  len(w.clients),
		Missions: make(map[Kind]int, len(AllKinds)),
		QueueDepths: QueueDepths{
			Inbox: len(w.inbox),
			Join:  len(w.join),
			Leave: len(w.leave),
		},
		StepMS: float64(step) / float64(time.Millisecond),
	}
	for _, p := range w.players {
		if p.Online {
			m.Online++
		}
	}
	for _, k := range AllKinds {
		m.Missions[k] = 0
	}
	for _, ms := range w.missions {
		m.Missions[ms.Kind]++
	}
	if dc, ok := w.persister.(droppedCounter); ok {
		m.DroppedWrites = dc.DroppedWrites()
	}
	w.metrics.Store(m)
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}
