package store

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"

	"pirateisles/internal/persistence/snapshot"
)

// Player sub-record suffixes, appended to "player:<id>".
const (
	subBase          = ""
	subResources     = ":resources"
	subCooldowns     = ":cooldowns"
	subPassive       = ":passive"
	subWipe          = ":wipe"
	subDestruction   = ":destruction"
	subDebris        = ":debris"
	subArchiDepleted = ":archi_depleted"
)

var playerSubs = []string{
	subBase,
	subResources,
	subCooldowns,
	subPassive,
	subWipe,
	subDestruction,
	subDebris,
	subArchiDepleted,
}

const (
	KeyResourceNodes = "world:resource_nodes"
	KeyCapturePoints = "world:capture_points"
	KeyCaravans      = "world:caravans"
)

// PlayerKey is "player:<id>" where id is the hex-encoded nick. Nicks may
// contain ':', so they never appear raw in a key.
func PlayerKey(nick string) string { return "player:" + hex.EncodeToString([]byte(nick)) }

func playerKeys(nick string) []string {
	out := make([]string, len(playerSubs))
	for i, sub := range playerSubs {
		out[i] = PlayerKey(nick) + sub
	}
	return out
}

type record struct {
	key   string
	value []byte
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unmarshal(b []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

func compressLZ4(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(src); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressLZ4(src []byte) ([]byte, error) {
	return io.ReadAll(lz4.NewReader(bytes.NewReader(src)))
}

func playerRecords(p snapshot.PlayerV1) ([]record, error) {
	nick := p.Base.Nick
	if nick == "" {
		return nil, fmt.Errorf("player without nick")
	}
	vals := map[string]any{
		subBase:          p.Base,
		subResources:     p.Resources,
		subCooldowns:     p.Cooldowns,
		subPassive:       p.Passive,
		subWipe:          p.Wipe,
		subDestruction:   p.Destruction,
		subDebris:        p.Debris,
		subArchiDepleted: p.ArchiDepleted,
	}
	out := make([]record, 0, len(playerSubs))
	for _, sub := range playerSubs {
		b, err := marshal(vals[sub])
		if err != nil {
			return nil, fmt.Errorf("encode %s%s: %w", PlayerKey(nick), sub, err)
		}
		out = append(out, record{key: PlayerKey(nick) + sub, value: b})
	}
	return out, nil
}

// decodePlayer assembles a player from whatever sub-records exist. Missing
// sub-records leave their zero value; a missing base record is an error.
func decodePlayer(nick string, vals map[string][]byte) (snapshot.PlayerV1, error) {
	var p snapshot.PlayerV1
	base, ok := vals[PlayerKey(nick)]
	if !ok {
		return p, fmt.Errorf("player %q: base record missing", nick)
	}
	if err := unmarshal(base, &p.Base); err != nil {
		return p, fmt.Errorf("decode %s: %w", PlayerKey(nick), err)
	}
	targets := map[string]any{
		subResources:     &p.Resources,
		subCooldowns:     &p.Cooldowns,
		subPassive:       &p.Passive,
		subWipe:          &p.Wipe,
		subDestruction:   &p.Destruction,
		subDebris:        &p.Debris,
		subArchiDepleted: &p.ArchiDepleted,
	}
	for sub, dst := range targets {
		b, ok := vals[PlayerKey(nick)+sub]
		if !ok {
			continue
		}
		if err := unmarshal(b, dst); err != nil {
			return p, fmt.Errorf("decode %s%s: %w", PlayerKey(nick), sub, err)
		}
	}
	p.Base.Nick = nick
	return p, nil
}

func worldRecords(w snapshot.WorldV1) ([]record, error) {
	vals := []struct {
		key string
		v   any
	}{
		{KeyResourceNodes, w.ResourceNodes},
		{KeyCapturePoints, w.CapturePoints},
		{KeyCaravans, w.Caravans},
	}
	out := make([]record, 0, len(vals))
	for _, kv := range vals {
		b, err := marshal(kv.v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", kv.key, err)
		}
		z, err := compressLZ4(b)
		if err != nil {
			return nil, fmt.Errorf("compress %s: %w", kv.key, err)
		}
		out = append(out, record{key: kv.key, value: z})
	}
	return out, nil
}

func decodeWorldRecord(b []byte, dst any) error {
	raw, err := decompressLZ4(b)
	if err != nil {
		return err
	}
	return unmarshal(raw, dst)
}
