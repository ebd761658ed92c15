package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	"steelrush.gg/internal/sim/world"
)

func readEntries(t *testing.T, dir string) [][]byte {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(dir, "*.jsonl.zst"))
	if err != nil || len(files) == 0 {
		t.Fatalf("no log files in %s (err=%v)", dir, err)
	}
	var lines [][]byte
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			t.Fatalf("open %s: %v", path, err)
		}
		dec, err := zstd.NewReader(f)
		if err != nil {
			t.Fatalf("zstd: %v", err)
		}
		sc := bufio.NewScanner(dec)
		for sc.Scan() {
			b := make([]byte, len(sc.Bytes()))
			copy(b, sc.Bytes())
			lines = append(lines, b)
		}
		dec.Close()
		_ = f.Close()
	}
	return lines
}

func TestTickLogger_WritesReadableJSONL(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)

	for tick := uint64(0); tick < 10; tick++ {
		err := l.WriteTick(world.TickLogEntry{Tick: tick, WorldID: "w1", Digest: "abc", Players: 1})
		if err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	lines := readEntries(t, filepath.Join(dir, "ticks"))
	if len(lines) != 10 {
		t.Fatalf("want 10 entries, got %d", len(lines))
	}
	var e world.TickLogEntry
	if err := json.Unmarshal(lines[9], &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.Tick != 9 || e.WorldID != "w1" {
		t.Fatalf("entry: %+v", e)
	}
}

func TestAuditLogger_RecordsJoinsAndActions(t *testing.T) {
	dir := t.TempDir()
	l := NewAuditLogger(dir)

	_ = l.WriteAudit(world.AuditEntry{
		Tick:    1,
		WorldID: "w1",
		Join:    &world.RecordedJoin{PlayerID: "P1", PlayerName: "alice"},
	})
	_ = l.WriteAudit(world.AuditEntry{
		Tick:    2,
		WorldID: "w1",
		Action:  &world.RecordedAction{PlayerID: "P1", ActionID: "f1", Type: "FIRE", Result: "OK"},
	})
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	lines := readEntries(t, filepath.Join(dir, "audit"))
	if len(lines) != 2 {
		t.Fatalf("want 2 entries, got %d", len(lines))
	}
	var join, action world.AuditEntry
	if err := json.Unmarshal(lines[0], &join); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := json.Unmarshal(lines[1], &action); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if join.Join == nil || join.Join.PlayerName != "alice" {
		t.Fatalf("join entry: %+v", join)
	}
	if action.Action == nil || action.Action.Type != "FIRE" {
		t.Fatalf("action entry: %+v", action)
	}
}
