package world

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"pirateisles/internal/protocol"
)

// Run is the world loop. Joins, leaves and commands are queued as they arrive
// and applied on the next scheduler tick (leaves, then joins, then commands,
// each in arrival order), followed by every evaluator that is due.
func (w *World) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.sched.base)
	defer ticker.Stop()

	var pendingJoins []JoinRequest
	var pendingLeaves []string
	var pendingCmds []CommandEnvelope
	var pendingAdmin []adminReq

	for {
		select {
		case <-ctx.Done():
			w.flushAll()
			return ctx.Err()
		case <-w.stop:
			w.flushAll()
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
		case nick := <-w.leave:
			pendingLeaves = append(pendingLeaves, nick)
		case env := <-w.inbox:
			pendingCmds = append(pendingCmds, env)
		case req := <-w.admin:
			pendingAdmin = append(pendingAdmin, req)
		case <-ticker.C:
			w.step(pendingJoins, pendingLeaves, pendingCmds)
			w.handleAdminRequests(pendingAdmin)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingCmds = pendingCmds[:0]
			pendingAdmin = pendingAdmin[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

func (w *World) step(joins []JoinRequest, leaves []string, cmds []CommandEnvelope) {
	start := time.Now()
	// Leaves go first so a reconnect queued behind its own disconnect succeeds.
	for _, nick := range leaves {
		w.HandleLeave(nick)
	}
	for _, req := range joins {
		resp := w.HandleJoin(req)
		if req.Resp != nil {
			req.Resp <- resp
		}
	}
	for _, env := range cmds {
		ack := w.HandleCommand(env.PlayerID, env.Cmd)
		w.sendTo(env.PlayerID, ack)
	}
	w.Advance(w.now())
	w.publishMetrics(time.Since(start))
}

// guard runs fn and turns a panic into a logged error so one bad command or
// evaluator cannot take the loop down.
func (w *World) guard(what string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Printf("panic in %s: %v\n%s", what, r, debug.Stack())
			err = fmt.Errorf("panic in %s: %v", what, r)
		}
	}()
	fn()
	return nil
}

func (w *World) sendTo(nick string, v any) {
	c := w.clients[nick]
	if c == nil || c.Out == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		w.logger.Printf("marshal for %s: %v", nick, err)
		return
	}
	sendLatest(c.Out, b)
}

func (w *World) emit(nick, event string, data any) {
	w.sendTo(nick, protocol.NewEvent(event, data))
}

func (w *World) broadcast(event string, data any) {
	if len(w.clients) == 0 {
		return
	}
	b, err := json.Marshal(protocol.NewEvent(event, data))
	if err != nil {
		w.logger.Printf("marshal %s: %v", event, err)
		return
	}
	for _, c := range w.clients {
		if c.Out != nil {
			sendLatest(c.Out, b)
		}
	}
}

type chatMsg struct {
	From string `json:"from"`
	Text string `json:"text"`
}

func (w *World) chat(from, text string) {
	w.broadcast(protocol.EventChat, chatMsg{From: from, Text: text})
}

// flushAll persists every player and the world objects regardless of what
// changed. It is the safety net behind per-action persistence.
func (w *World) flushAll() {
	for nick := range w.players {
		w.dirtyPlayers[nick] = true
	}
	w.dirtyWorld = true
	w.flushDirty()
}
