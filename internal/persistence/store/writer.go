package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pirateisles/internal/persistence/snapshot"
)

type reqKind int

const (
	reqPut reqKind = iota + 1
	reqSync
)

type req struct {
	kind reqKind
	nick string // non-empty for player writes
	recs []record
	done chan struct{}
}

// SavePlayer queues every sub-record of p. It never blocks; when the queue is
// full the write is dropped and counted.
func (s *Store) SavePlayer(p snapshot.PlayerV1) {
	recs, err := playerRecords(p)
	if err != nil {
		s.failed.Add(1)
		s.logger.Printf("save player: %v", err)
		return
	}
	s.enqueue(req{kind: reqPut, nick: p.Base.Nick, recs: recs})
}

// SaveWorld queues the shared world-object records of w. Players are ignored.
func (s *Store) SaveWorld(w snapshot.WorldV1) {
	recs, err := worldRecords(w)
	if err != nil {
		s.failed.Add(1)
		s.logger.Printf("save world: %v", err)
		return
	}
	s.enqueue(req{kind: reqPut, recs: recs})
}

func (s *Store) enqueue(r req) bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed.Load() {
		return false
	}
	select {
	case s.ch <- r:
		s.enqueued.Add(1)
		return true
	default:
		// The next unconditional flush writes the same state again.
		s.dropped.Add(1)
		return false
	}
}

// Sync waits until everything queued before the call is committed.
func (s *Store) Sync(ctx context.Context) error {
	done := make(chan struct{})
	s.mu.RLock()
	if s.closed.Load() {
		s.mu.RUnlock()
		return fmt.Errorf("store closed")
	}
	select {
	case s.ch <- req{kind: reqSync, done: done}:
		s.mu.RUnlock()
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) loop() {
	ctx := context.Background()

	upsertRecord := fmt.Sprintf(
		`INSERT INTO records(key, value, updated_at) VALUES (%s, %s, %s)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.bind(1), s.bind(2), s.bind(3))
	upsertPlayer := fmt.Sprintf(
		`INSERT INTO players(nick, created_at, updated_at) VALUES (%s, %s, %s)
		ON CONFLICT(nick) DO UPDATE SET updated_at = excluded.updated_at`,
		s.bind(1), s.bind(2), s.bind(3))

	var (
		tx          *sql.Tx
		pending     int
		commitEvery = 512
	)

	begin := func() bool {
		if tx != nil {
			return true
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.logger.Printf("begin tx: %v", err)
			time.Sleep(50 * time.Millisecond)
			return false
		}
		tx = txx
		pending = 0
		return true
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.failed.Add(uint64(pending))
			s.logger.Printf("commit %d writes: %v", pending, err)
		} else {
			s.written.Add(uint64(pending))
		}
		tx = nil
		pending = 0
	}
	rollback := func(err error) {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		s.failed.Add(uint64(pending + 1))
		s.logger.Printf("write failed, dropped %d queued writes: %v", pending+1, err)
		tx = nil
		pending = 0
	}

	for r := range s.ch {
		switch r.kind {
		case reqSync:
			commit()
			close(r.done)
			continue
		case reqPut:
			if !begin() {
				s.failed.Add(1)
				continue
			}
			now := time.Now().UnixMilli()
			if err := putReq(ctx, tx, upsertRecord, upsertPlayer, r, now); err != nil {
				rollback(err)
				continue
			}
			pending++
		}
		if pending >= commitEvery || len(s.ch) == 0 {
			commit()
		}
	}
	commit()
}

func putReq(ctx context.Context, tx *sql.Tx, upsertRecord, upsertPlayer string, r req, now int64) error {
	for _, rec := range r.recs {
		if _, err := tx.ExecContext(ctx, upsertRecord, rec.key, rec.value, now); err != nil {
			return fmt.Errorf("upsert %s: %w", rec.key, err)
		}
	}
	if r.nick != "" {
		if _, err := tx.ExecContext(ctx, upsertPlayer, r.nick, now, now); err != nil {
			return fmt.Errorf("upsert player %s: %w", r.nick, err)
		}
	}
	return nil
}
