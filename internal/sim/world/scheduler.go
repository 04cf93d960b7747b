package world

import (
	"time"
)

type evaluator struct {
	name   string
	period int64 // ms
	next   int64
	fn     func(nowMs int64)
}

// scheduler runs each evaluator at its own fixed period. The world loop ticks
// at the shortest period; slower evaluators skip ticks until they are due.
type scheduler struct {
	base  time.Duration
	evals []*evaluator
}

func (w *World) newScheduler(nowMs int64) *scheduler {
	p := w.tun.Periods
	s := &scheduler{}
	add := func(name string, periodMs int, fn func(int64)) {
		if periodMs <= 0 {
			return
		}
		s.evals = append(s.evals, &evaluator{name: name, period: int64(periodMs), next: nowMs + int64(periodMs), fn: fn})
	}
	add("economy", p.EconomyMs, w.economyTick)
	add("sweep", p.SweepMs, w.sweepMissions)
	add("caravans", p.CaravanMs, w.moveCaravans)
	add("pvp", p.PvPMotionMs, w.movePvP)
	add("broadcast", p.BroadcastMs, w.broadcastState)
	add("flush", p.FlushMs, func(int64) { w.flushAll() })
	add("snapshot", w.tun.SnapshotEveryMs, w.emitSnapshot)

	minMs := int64(0)
	for _, e := range s.evals {
		if minMs == 0 || e.period < minMs {
			minMs = e.period
		}
	}
	s.base = time.Duration(minMs) * time.Millisecond
	return s
}

// Advance brings the world up to now: debris expires and every evaluator
// whose time has come runs once. An evaluator that fell more than one period
// behind is rescheduled from now instead of replaying missed ticks.
func (w *World) Advance(now time.Time) {
	nowMs := now.UnixMilli()
	w.lastMs = nowMs
	w.expireDebris(nowMs)
	for _, e := range w.sched.evals {
		if nowMs < e.next {
			continue
		}
		if err := w.guard(e.name, func() { e.fn(nowMs) }); err != nil {
			w.logger.Printf("evaluator %s failed: %v", e.name, err)
		}
		e.next += e.period
		if e.next <= nowMs {
			e.next = nowMs + e.period
		}
	}
	w.flushDirty()
}

func (w *World) moveCaravans(nowMs int64) {
	step := w.tun.Caravans.Step
	for _, c := range w.caravans {
		c.advance(step)
	}
}

// emitSnapshot hands a full snapshot to the sink without blocking the loop.
func (w *World) emitSnapshot(nowMs int64) {
	if w.snapshotSink == nil {
		return
	}
	select {
	case w.snapshotSink <- w.ExportSnapshot(nowMs):
	default:
		w.logger.Printf("snapshot sink busy, skipping")
	}
}
