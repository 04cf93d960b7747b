package world

import (
	"fmt"
	"io"
	"log"
	"math/rand"
	"sync/atomic"
	"time"

	"pirateisles/internal/persistence/snapshot"
	"pirateisles/internal/protocol"
	"pirateisles/internal/sim/combat"
	"pirateisles/internal/sim/tuning"
)

type Config struct {
	Seed   int64
	Logger *log.Logger

	// Now defaults to time.Now. Tests pass a manual clock.
	Now func() time.Time
}

type JoinRequest struct {
	Nick   string
	Secret string
	Out    chan []byte
	Resp   chan JoinResponse

	// Abandoned is closed when the requester stops waiting. A join that is
	// still queued at that point is rejected without side effects.
	Abandoned <-chan struct{}
}

// JoinResponse carries either a WELCOME or a rejection code.
type JoinResponse struct {
	Welcome protocol.WelcomeMsg
	Code    string
	Msg     string
}

func (r JoinResponse) OK() bool { return r.Code == "" }

type CommandEnvelope struct {
	PlayerID string
	Cmd      protocol.CommandMsg
}

// Persister is the write-behind sink for durable records. Calls must not block.
type Persister interface {
	SavePlayer(p snapshot.PlayerV1)
	SaveWorld(w snapshot.WorldV1)
}

// OutcomeSink receives one entry per resolved mission, PvP battle and wipe.
type OutcomeSink interface {
	WriteOutcome(e OutcomeEntry) error
}

type OutcomeEntry struct {
	AtMs   int64        `json:"at_ms"`
	Kind   string       `json:"kind"`
	Player string       `json:"player"`
	Target string       `json:"target,omitempty"`
	Result string       `json:"result"`
	Ships  int          `json:"ships,omitempty"`
	Lost   int          `json:"lost,omitempty"`
	Loot   *combat.Loot `json:"loot,omitempty"`
}

type clientState struct {
	Out chan []byte
}

// World is the single-writer authoritative game state.
// All state must be accessed only from the world loop goroutine.
type World struct {
	tun    tuning.Tuning
	seed   int64
	now    func() time.Time
	rng    *rand.Rand
	logger *log.Logger

	players  map[string]*Player
	missions map[string]*Mission
	nodes    []*ResourceNode
	points   []*CapturePoint
	caravans []*Caravan
	clients  map[string]*clientState

	sched      *scheduler
	lastMs     int64
	missionSeq uint64

	dirtyPlayers map[string]bool
	dirtyWorld   bool

	inbox chan CommandEnvelope
	join  chan JoinRequest
	leave chan string
	admin chan adminReq
	stop  chan struct{}

	// Optional sinks (may be nil). Implemented in internal/persistence/*.
	persister    Persister
	outcomes     OutcomeSink
	snapshotSink chan<- snapshot.WorldV1

	metrics atomic.Value
}

func New(cfg Config, tun tuning.Tuning) (*World, error) {
	if err := tun.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tuning: %w", err)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	w := &World{
		tun:          tun,
		seed:         cfg.Seed,
		now:          cfg.Now,
		rng:          rand.New(rand.NewSource(cfg.Seed)),
		logger:       cfg.Logger,
		players:      map[string]*Player{},
		missions:     map[string]*Mission{},
		clients:      map[string]*clientState{},
		dirtyPlayers: map[string]bool{},
		inbox:        make(chan CommandEnvelope, 1024),
		join:         make(chan JoinRequest, 64),
		leave:        make(chan string, 64),
		admin:        make(chan adminReq, 16),
		stop:         make(chan struct{}),
	}
	w.generateObjects()
	nowMs := w.now().UnixMilli()
	w.lastMs = nowMs
	w.sched = w.newScheduler(nowMs)
	w.publishMetrics(0)
	return w, nil
}

func (w *World) SetPersister(p Persister)                   { w.persister = p }
func (w *World) SetOutcomeSink(s OutcomeSink)               { w.outcomes = s }
func (w *World) SetSnapshotSink(ch chan<- snapshot.WorldV1) { w.snapshotSink = ch }

func (w *World) Inbox() chan<- CommandEnvelope { return w.inbox }
func (w *World) Join() chan<- JoinRequest      { return w.join }
func (w *World) Leave() chan<- string          { return w.leave }

func (w *World) Tuning() tuning.Tuning { return w.tun }
func (w *World) Seed() int64           { return w.seed }

func (w *World) nowMs() int64 { return w.now().UnixMilli() }

func (w *World) markDirty(nick string) { w.dirtyPlayers[nick] = true }

// flushDirty hands every player touched since the last call to the persister.
func (w *World) flushDirty() {
	if len(w.dirtyPlayers) == 0 && !w.dirtyWorld {
		return
	}
	if w.persister != nil {
		for _, nick := range sortedKeys(w.dirtyPlayers) {
			if p := w.players[nick]; p != nil {
				w.persister.SavePlayer(exportPlayer(p))
			}
		}
		if w.dirtyWorld {
			w.persister.SaveWorld(w.exportObjects())
		}
	}
	clear(w.dirtyPlayers)
	w.dirtyWorld = false
}

func (w *World) writeOutcome(e OutcomeEntry) {
	if w.outcomes == nil {
		return
	}
	if err := w.outcomes.WriteOutcome(e); err != nil {
		w.logger.Printf("outcome log: %v", err)
	}
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
