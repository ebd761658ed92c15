// Package indexdb keeps a queryable sqlite index alongside the JSONL trails.
// Writes go through a buffered channel into a single writer goroutine; the
// simulation loop never blocks on the database and entries may be dropped
// under pressure, the JSONL logs remain the source of truth.
package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"steelrush.gg/internal/sim/catalogs"
	"steelrush.gg/internal/sim/tuning"
	"steelrush.gg/internal/sim/world"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqAudit
	reqSnapshot
	reqFlush
)

type req struct {
	kind reqKind

	tick     world.TickLogEntry
	audit    world.AuditEntry
	snapshot snapshotRow
	flush    chan struct{}
}

type snapshotRow struct {
	WorldID string
	Tick    uint64
	Path    string
	Bytes   int
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-only workload; NORMAL durability is enough for a
	// secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			world_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			digest TEXT NOT NULL,
			players INTEGER NOT NULL,
			enemies INTEGER NOT NULL,
			blocks INTEGER NOT NULL,
			head_z REAL NOT NULL,
			PRIMARY KEY (world_id, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS joins (
			world_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			player_id TEXT NOT NULL,
			name TEXT NOT NULL,
			resumed INTEGER NOT NULL,
			PRIMARY KEY (world_id, tick, player_id)
		);`,
		`CREATE TABLE IF NOT EXISTS actions (
			world_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			player_id TEXT NOT NULL,
			action_id TEXT NOT NULL,
			type TEXT NOT NULL,
			result TEXT NOT NULL,
			PRIMARY KEY (world_id, tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_actions_player_tick ON actions(player_id, tick);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			world_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			path TEXT NOT NULL,
			bytes INTEGER NOT NULL,
			PRIMARY KEY (world_id, tick)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
	}
	return nil
}

func (s *SQLiteIndex) WriteAudit(entry world.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqAudit, audit: entry}:
	default:
	}
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(worldID string, tick uint64, path string, size int) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: snapshotRow{WorldID: worldID, Tick: tick, Path: path, Bytes: size}}:
	default:
	}
}

// UpsertCatalogs records the catalog digests and applied tuning so operators
// can tell which content a database was built against.
func (s *SQLiteIndex) UpsertCatalogs(cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type row struct {
		name   string
		digest string
		data   []byte
	}
	var rows []row
	if b, _ := json.Marshal(cats.Blocks.Defs); len(b) > 0 {
		rows = append(rows, row{"blocks", cats.Blocks.Digest, b})
	}
	if b, _ := json.Marshal(cats.Weapons.Defs); len(b) > 0 {
		rows = append(rows, row{"weapons", cats.Weapons.Digest, b})
	}
	if b, _ := json.Marshal(cats.Enemies.Defs); len(b) > 0 {
		rows = append(rows, row{"enemies", cats.Enemies.Digest, b})
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, row{"tuning", hex.EncodeToString(sum[:]), b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.Exec(r.name, r.digest, string(r.data), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// TickDigest looks up the recorded digest for a tick, "" when absent.
func (s *SQLiteIndex) TickDigest(worldID string, tick uint64) (string, error) {
	s.Flush()
	var digest string
	err := s.db.QueryRow(`SELECT digest FROM ticks WHERE world_id=? AND tick=?`, worldID, int64(tick)).Scan(&digest)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return digest, err
}

// ActionCount counts indexed actions for a player.
func (s *SQLiteIndex) ActionCount(playerID string) (int, error) {
	s.Flush()
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM actions WHERE player_id=?`, playerID).Scan(&n)
	return n, err
}

// LatestSnapshot returns the newest indexed snapshot path for a world.
func (s *SQLiteIndex) LatestSnapshot(worldID string) (path string, tick uint64, err error) {
	s.Flush()
	var t int64
	err = s.db.QueryRow(`SELECT path, tick FROM snapshots WHERE world_id=? ORDER BY tick DESC LIMIT 1`, worldID).Scan(&path, &t)
	if err == sql.ErrNoRows {
		return "", 0, nil
	}
	return path, uint64(t), err
}

// Flush waits for everything queued before the call to commit. Best effort:
// a full queue skips the wait.
func (s *SQLiteIndex) Flush() {
	if s == nil || s.closed.Load() {
		return
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqFlush, flush: done}:
		<-done
	default:
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(world_id,tick,digest,players,enemies,blocks,head_z) VALUES(?,?,?,?,?,?,?)`)
	insertJoin, _ := s.db.Prepare(`INSERT OR REPLACE INTO joins(world_id,tick,player_id,name,resumed) VALUES(?,?,?,?,?)`)
	insertAction, _ := s.db.Prepare(`INSERT OR REPLACE INTO actions(world_id,tick,seq,player_id,action_id,type,result) VALUES(?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(world_id,tick,path,bytes) VALUES(?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertJoin, insertAction, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx          *sql.Tx
		opCount     int
		lastCommit  = time.Now()
		commitEvery = 1000
		commitWait  = 2 * time.Second

		lastActionTick uint64
		actionSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		if r.kind == reqFlush {
			commit()
			close(r.flush)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			e := r.tick
			if insertTick != nil {
				if _, err := tx.Stmt(insertTick).Exec(e.WorldID, int64(e.Tick), e.Digest, e.Players, e.Enemies, e.Blocks, e.HeadZ); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqAudit:
			a := r.audit
			if a.Join != nil && insertJoin != nil {
				resumed := 0
				if a.Join.Resumed {
					resumed = 1
				}
				if _, err := tx.Stmt(insertJoin).Exec(a.WorldID, int64(a.Tick), a.Join.PlayerID, a.Join.PlayerName, resumed); err != nil {
					rollback()
					continue
				}
				opCount++
			}
			if a.Action != nil && insertAction != nil {
				if a.Tick != lastActionTick {
					lastActionTick = a.Tick
					actionSeq = 0
				}
				seq := actionSeq
				actionSeq++
				if _, err := tx.Stmt(insertAction).Exec(a.WorldID, int64(a.Tick), seq, a.Action.PlayerID, a.Action.ActionID, a.Action.Type, a.Action.Result); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot != nil {
				if _, err := tx.Stmt(insertSnapshot).Exec(sn.WorldID, int64(sn.Tick), sn.Path, sn.Bytes); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitWait) {
			commit()
		}
	}
	commit()
}
