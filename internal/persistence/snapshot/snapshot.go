package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version   int   `json:"version"`
	SavedAtMs int64 `json:"saved_at_ms"`
	Players   int   `json:"players"`
}

// WorldV1 is everything durable about the world. In-flight missions are not
// part of it: on load every player gets a full fleet back.
type WorldV1 struct {
	Header Header `json:"header"`

	Seed int64 `json:"seed"`

	Players       []PlayerV1       `json:"players"`
	ResourceNodes []ResourceNodeV1 `json:"resource_nodes"`
	CapturePoints []CapturePointV1 `json:"capture_points"`
	Caravans      []CaravanV1      `json:"caravans"`
}

// PlayerV1 groups the independently stored sub-records of one player.
type PlayerV1 struct {
	Base          PlayerBaseV1  `json:"base"`
	Resources     ResourcesV1   `json:"resources"`
	Cooldowns     CooldownsV1   `json:"cooldowns"`
	Passive       PassiveV1     `json:"passive"`
	Wipe          WipeV1        `json:"wipe"`
	Destruction   DestructionV1 `json:"destruction"`
	Debris        DebrisV1      `json:"debris"`
	ArchiDepleted map[int]int64 `json:"archi_depleted,omitempty"`
}

type PlayerBaseV1 struct {
	Nick       string  `json:"nick"`
	SecretHash string  `json:"secret_hash,omitempty"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Tavern     int     `json:"tavern"`
	Dock       int     `json:"dock"`
	Cannon     int     `json:"cannon"`
	Island     int     `json:"island"`
	Boats      int     `json:"boats"`
	CreatedMs  int64   `json:"created_ms"`
	LastSeenMs int64   `json:"last_seen_ms"`
}

type ResourcesV1 struct {
	Rum  float64 `json:"rum"`
	Gold float64 `json:"gold"`
	Wood float64 `json:"wood"`
}

type CooldownsV1 struct {
	PvPUntilMs       int64 `json:"pvp_until_ms,omitempty"`
	ShieldUntilMs    int64 `json:"shield_until_ms,omitempty"`
	ShieldBuyUntilMs int64 `json:"shield_buy_until_ms,omitempty"`
}

type PassiveV1 struct {
	Income   float64 `json:"income"`
	PvPSteal float64 `json:"pvp_steal"`
	Legacy   float64 `json:"legacy"`
	Missions int     `json:"missions"`
	PvPWins  int     `json:"pvp_wins"`
}

type WipeV1 struct {
	Threshold int `json:"threshold"`
	Count     int `json:"count"`
	Wipes     int `json:"wipes"`
}

type DestructionV1 struct {
	State    int     `json:"state"`
	Progress float64 `json:"progress"`
}

type DebrisV1 struct {
	Amount    float64 `json:"amount"`
	ExpiresMs int64   `json:"expires_ms,omitempty"`
}

type ResourceNodeV1 struct {
	ID              int     `json:"id"`
	X               float64 `json:"x"`
	Y               float64 `json:"y"`
	Type            string  `json:"type"`
	Size            float64 `json:"size"`
	DepletedUntilMs int64   `json:"depleted_until_ms,omitempty"`
}

type CapturePointV1 struct {
	ID             int     `json:"id"`
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	Reward         string  `json:"reward"`
	RespawnUntilMs int64   `json:"respawn_until_ms,omitempty"`
}

type PointV1 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type CaravanV1 struct {
	ID              int       `json:"id"`
	Cargo           string    `json:"cargo"`
	Escort          float64   `json:"escort"`
	Route           []PointV1 `json:"route"`
	Leg             int       `json:"leg"`
	X               float64   `json:"x"`
	Y               float64   `json:"y"`
	CooldownUntilMs int64     `json:"cooldown_until_ms,omitempty"`
}

func WriteSnapshot(path string, snap WorldV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	if snap.Header.Version == 0 {
		snap.Header.Version = Version
	}
	snap.Header.Players = len(snap.Players)
	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (WorldV1, error) {
	var snap WorldV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The gob body repeats the header.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the leading JSON line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

const fileSuffix = ".snap.zst"

// PathFor names a snapshot by its save time.
func PathFor(dir string, savedAtMs int64) string {
	return filepath.Join(dir, strconv.FormatInt(savedAtMs, 10)+fileSuffix)
}

// Latest returns the newest snapshot in dir, or "" when there is none.
func Latest(dir string) (string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	var stamps []int64
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		ms, err := strconv.ParseInt(strings.TrimSuffix(name, fileSuffix), 10, 64)
		if err != nil {
			continue
		}
		stamps = append(stamps, ms)
	}
	if len(stamps) == 0 {
		return "", nil
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i] < stamps[j] })
	return PathFor(dir, stamps[len(stamps)-1]), nil
}
