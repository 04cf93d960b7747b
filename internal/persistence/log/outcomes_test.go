package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"pirateisles/internal/sim/world"
)

func readEntries(t *testing.T, path string) []world.OutcomeEntry {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer dec.Close()
	var out []world.OutcomeEntry
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var e world.OutcomeEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("decode %q: %v", sc.Text(), err)
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}

func TestOutcomeLogger_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	l := NewOutcomeLogger(dir)
	now := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for _, e := range []world.OutcomeEntry{
		{AtMs: now.UnixMilli(), Kind: "raid", Player: "a", Result: "success"},
		{AtMs: now.UnixMilli(), Kind: "raid", Player: "b", Result: "lost"},
	} {
		if err := l.WriteOutcome(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	first := now
	now = now.Add(2 * time.Minute)
	if err := l.WriteOutcome(world.OutcomeEntry{AtMs: now.UnixMilli(), Kind: "pvp", Player: "a", Target: "b", Result: "victory"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := readEntries(t, FileFor(l.dir, first)); len(got) != 2 || got[1].Player != "b" {
		t.Fatalf("first hour: %+v", got)
	}
	second := readEntries(t, FileFor(l.dir, now))
	if len(second) != 1 || second[0].Kind != "pvp" || second[0].Target != "b" || second[0].Result != "victory" {
		t.Fatalf("second hour: %+v", second)
	}
	if w, f := l.Counts(); w != 3 || f != 0 {
		t.Fatalf("counts written=%d failed=%d", w, f)
	}
}

func TestOutcomeLogger_ReadableWhileOpen(t *testing.T) {
	l := NewOutcomeLogger(t.TempDir())
	now := time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	t.Cleanup(func() { _ = l.Close() })

	if err := l.WriteOutcome(world.OutcomeEntry{AtMs: 1, Kind: "capture", Player: "anne", Result: "captured", Ships: 3}); err != nil {
		t.Fatalf("write: %v", err)
	}
	got := readEntries(t, FileFor(l.dir, now))
	if len(got) != 1 || got[0].Kind != "capture" || got[0].Ships != 3 {
		t.Fatalf("live file: %+v", got)
	}

	if err := l.WriteOutcome(world.OutcomeEntry{AtMs: 2, Kind: "raid", Player: "anne", Result: "returned"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := readEntries(t, FileFor(l.dir, now)); len(got) != 2 {
		t.Fatalf("live file after second write: %+v", got)
	}
}

func TestOutcomeLogger_AppendsAcrossRestarts(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		l := NewOutcomeLogger(dir)
		l.now = func() time.Time { return now }
		if err := l.WriteOutcome(world.OutcomeEntry{AtMs: int64(i), Kind: "raid", Player: "anne", Result: "returned"}); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := l.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
	got := readEntries(t, FileFor(filepath.Join(dir, "outcomes"), now))
	if len(got) != 2 || got[0].AtMs != 0 || got[1].AtMs != 1 {
		t.Fatalf("entries: %+v", got)
	}
}
