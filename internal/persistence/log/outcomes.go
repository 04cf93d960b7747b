// Package log keeps the append-only outcome log: one JSON line per resolved
// mission, contest and PvP attack, in hourly files under <data>/outcomes.
package log

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"pirateisles/internal/sim/world"
)

const hourLayout = "2006-01-02-15"

// FileFor names the outcome file covering t.
func FileFor(dir string, t time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("outcomes-%s.jsonl.zst", t.UTC().Format(hourLayout)))
}

// OutcomeLogger writes every entry as its own zstd frame. A reader sees each
// entry as soon as WriteOutcome returns, even in the file still being
// written, and a torn final frame only loses that entry.
type OutcomeLogger struct {
	dir string
	now func() time.Time
	enc *zstd.Encoder

	mu      sync.Mutex
	hour    string
	f       *os.File
	written uint64
	failed  uint64
}

func NewOutcomeLogger(dataDir string) *OutcomeLogger {
	// Only invalid options make NewWriter fail.
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest), zstd.WithEncoderConcurrency(1))
	return &OutcomeLogger{
		dir: filepath.Join(dataDir, "outcomes"),
		now: time.Now,
		enc: enc,
	}
}

func (l *OutcomeLogger) WriteOutcome(e world.OutcomeEntry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.openLocked(l.now()); err != nil {
		l.failed++
		return err
	}
	if _, err := l.f.Write(l.enc.EncodeAll(line, nil)); err != nil {
		l.failed++
		return fmt.Errorf("write outcome: %w", err)
	}
	l.written++
	return nil
}

// openLocked makes sure the file for t's hour is open, rotating away from the
// previous hour. Reopening an existing file appends frames to it.
func (l *OutcomeLogger) openLocked(t time.Time) error {
	hour := t.UTC().Format(hourLayout)
	if l.f != nil && hour == l.hour {
		return nil
	}
	if err := l.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(FileFor(l.dir, t), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	l.f, l.hour = f, hour
	return nil
}

func (l *OutcomeLogger) closeLocked() error {
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f, l.hour = nil, ""
	return err
}

// Counts reports how many entries were written and how many failed.
func (l *OutcomeLogger) Counts() (written, failed uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.written, l.failed
}

func (l *OutcomeLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeLocked()
}
