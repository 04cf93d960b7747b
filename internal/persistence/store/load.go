package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pirateisles/internal/persistence/snapshot"
)

// Load reads every persisted player and world record once.
func (s *Store) Load(ctx context.Context) (snapshot.WorldV1, error) {
	var w snapshot.WorldV1
	vals, err := s.readAll(ctx)
	if err != nil {
		return w, err
	}
	nicks, err := s.ListPlayers(ctx)
	if err != nil {
		return w, err
	}
	for _, nick := range nicks {
		p, err := decodePlayer(nick, vals)
		if err != nil {
			s.logger.Printf("skip player: %v", err)
			continue
		}
		w.Players = append(w.Players, p)
	}

	worldDst := map[string]any{
		KeyResourceNodes: &w.ResourceNodes,
		KeyCapturePoints: &w.CapturePoints,
		KeyCaravans:      &w.Caravans,
	}
	for key, dst := range worldDst {
		b, ok := vals[key]
		if !ok {
			continue
		}
		if err := decodeWorldRecord(b, dst); err != nil {
			return w, fmt.Errorf("decode %s: %w", key, err)
		}
	}
	w.Header = snapshot.Header{Version: snapshot.Version, SavedAtMs: time.Now().UnixMilli(), Players: len(w.Players)}
	return w, nil
}

func (s *Store) readAll(ctx context.Context) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM records")
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	defer rows.Close()
	out := map[string][]byte{}
	for rows.Next() {
		var k string
		var v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// ListPlayers returns persisted nicks in name order.
func (s *Store) ListPlayers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT nick FROM players ORDER BY nick")
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) LoadPlayer(ctx context.Context, nick string) (snapshot.PlayerV1, bool, error) {
	keys := playerKeys(nick)
	ph := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		ph[i] = s.bind(i + 1)
		args[i] = k
	}
	q := fmt.Sprintf("SELECT key, value FROM records WHERE key IN (%s)", strings.Join(ph, ", "))
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return snapshot.PlayerV1{}, false, fmt.Errorf("load player %s: %w", nick, err)
	}
	defer rows.Close()
	vals := map[string][]byte{}
	for rows.Next() {
		var k string
		var v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return snapshot.PlayerV1{}, false, fmt.Errorf("scan record: %w", err)
		}
		vals[k] = v
	}
	if err := rows.Err(); err != nil {
		return snapshot.PlayerV1{}, false, err
	}
	if _, ok := vals[PlayerKey(nick)]; !ok {
		return snapshot.PlayerV1{}, false, nil
	}
	p, err := decodePlayer(nick, vals)
	if err != nil {
		return p, false, err
	}
	return p, true, nil
}

// RemovePlayer deletes every record of nick. It bypasses the write queue, so
// callers must make sure the world is not saving the same player.
func (s *Store) RemovePlayer(ctx context.Context, nick string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	for _, k := range playerKeys(nick) {
		if _, err := tx.ExecContext(ctx, "DELETE FROM records WHERE key = "+s.bind(1), k); err != nil {
			return false, fmt.Errorf("delete %s: %w", k, err)
		}
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM players WHERE nick = "+s.bind(1), nick)
	if err != nil {
		return false, fmt.Errorf("delete player %s: %w", nick, err)
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return n > 0, nil
}
