// Package snapshot serializes full world state to disk: a zstd stream whose
// first line is a JSON header (cheap to peek at with zstdcat) followed by the
// gob-encoded body.
package snapshot

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
)

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed           int64   `json:"seed"`
	TickRate       int     `json:"tick_rate_hz"`
	StreamDistance float64 `json:"stream_distance"`
	LastRef        float64 `json:"last_ref"`

	Blocks      []BlockV1      `json:"blocks"`
	Players     []PlayerV1     `json:"players"`
	Enemies     []EnemyV1      `json:"enemies"`
	Projectiles []ProjectileV1 `json:"projectiles"`

	Counters CountersV1 `json:"counters"`
}

type CountersV1 struct {
	NextID uint64 `json:"next_id"`
}

type BlockV1 struct {
	ID    string  `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type PlayerV1 struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ResumeToken string `json:"resume_token"`

	Pos   [2]float64 `json:"pos"`
	Speed float64    `json:"speed"`
	HP    int        `json:"hp"`
	Dead  bool       `json:"dead,omitempty"`

	Ammo    map[string]int `json:"ammo"`
	Items   []ItemV1       `json:"items"`
	Weapons []WeaponV1     `json:"weapons"`
}

type ItemV1 struct {
	WeaponID string  `json:"weapon_id"`
	Health   float64 `json:"health"`
}

type WeaponV1 struct {
	Slot   int     `json:"slot"`
	State  string  `json:"state"`
	Health float64 `json:"health"`
}

type EnemyV1 struct {
	ID   string     `json:"id"`
	Kind string     `json:"kind"`
	Pos  [2]float64 `json:"pos"`
	HP   int        `json:"hp"`
}

type ProjectileV1 struct {
	ID       string     `json:"id"`
	OwnerID  string     `json:"owner_id"`
	WeaponID string     `json:"weapon_id"`
	Pos      [2]float64 `json:"pos"`
	Origin   float64    `json:"origin"`
}

// Encode renders the snapshot to the on-disk byte format.
func Encode(snap SnapshotV1) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}

	bw := bufio.NewWriterSize(enc, 64*1024)
	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return nil, err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return nil, err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return nil, fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func Decode(raw []byte) (SnapshotV1, error) {
	var snap SnapshotV1
	dec, err := zstd.NewReader(bytes.NewReader(raw))
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)
	// Skip the header line; the gob body carries the header too.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("header line: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	raw, err := Encode(snap)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return SnapshotV1{}, err
	}
	return Decode(raw)
}

// DirSink stores snapshots under <dir>/<worldID>/snapshots, one file per
// tick. It satisfies the world's snapshot sink.
type DirSink struct {
	Dir string
}

func (s DirSink) Save(worldID string, tick uint64, payload []byte) (string, error) {
	dir := filepath.Join(s.Dir, worldID, "snapshots")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("snap-%012d.zst", tick))
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Latest returns the most recent snapshot file for a world, or "" when none
// exist yet.
func (s DirSink) Latest(worldID string) (string, error) {
	dir := filepath.Join(s.Dir, worldID, "snapshots")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "snap-") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", nil
	}
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1]), nil
}
