// Command admin inspects a world's runtime data directory: the sqlite index,
// snapshot files and the worlds present on disk.
package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"steelrush.gg/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "worlds")
	if *worldID != "" {
		base = filepath.Join(base, *worldID)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to latest)")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*snapPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -snapshot")
			os.Exit(2)
		}
		sink := snapshot.DirSink{Dir: filepath.Join(*dataDir, "worlds")}
		latest, err := sink.Latest(*worldID)
		if err != nil {
			fmt.Fprintln(os.Stderr, "scan snapshots:", err)
			os.Exit(1)
		}
		if latest == "" {
			fmt.Fprintln(os.Stderr, "no snapshot found; provide -snapshot or run the server until it writes one")
			os.Exit(2)
		}
		path = latest
	}

	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	fmt.Printf("snapshot v%d world=%s tick=%d seed=%d tick_rate=%d distance=%.0f blocks=%d players=%d enemies=%d projectiles=%d path=%s\n",
		snap.Header.Version, snap.Header.WorldID, snap.Header.Tick, snap.Seed,
		snap.TickRate, snap.StreamDistance,
		len(snap.Blocks), len(snap.Players), len(snap.Enemies), len(snap.Projectiles), path)
}

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	player := fs.String("player", "", "player_id filter (actions)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	if *limit <= 0 {
		*limit = 20
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "worlds", *worldID, "index.db")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	switch q {
	case "snapshots":
		rows, err := db.Query(`SELECT world_id,tick,path,bytes FROM snapshots ORDER BY tick DESC LIMIT ?`, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		scanRows(rows, func(rows *sql.Rows) (any, error) {
			var r struct {
				WorldID string `json:"world_id"`
				Tick    int64  `json:"tick"`
				Path    string `json:"path"`
				Bytes   int64  `json:"bytes"`
			}
			err := rows.Scan(&r.WorldID, &r.Tick, &r.Path, &r.Bytes)
			return r, err
		})

	case "ticks":
		rows, err := db.Query(`SELECT world_id,tick,digest,players,enemies,blocks,head_z FROM ticks ORDER BY tick DESC LIMIT ?`, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		scanRows(rows, func(rows *sql.Rows) (any, error) {
			var r struct {
				WorldID string  `json:"world_id"`
				Tick    int64   `json:"tick"`
				Digest  string  `json:"digest"`
				Players int     `json:"players"`
				Enemies int     `json:"enemies"`
				Blocks  int     `json:"blocks"`
				HeadZ   float64 `json:"head_z"`
			}
			err := rows.Scan(&r.WorldID, &r.Tick, &r.Digest, &r.Players, &r.Enemies, &r.Blocks, &r.HeadZ)
			return r, err
		})

	case "actions":
		query := `SELECT world_id,tick,seq,player_id,action_id,type,result FROM actions ORDER BY tick DESC, seq DESC LIMIT ?`
		qargs := []any{*limit}
		if *player != "" {
			query = `SELECT world_id,tick,seq,player_id,action_id,type,result FROM actions WHERE player_id=? ORDER BY tick DESC, seq DESC LIMIT ?`
			qargs = []any{*player, *limit}
		}
		rows, err := db.Query(query, qargs...)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		scanRows(rows, func(rows *sql.Rows) (any, error) {
			var r struct {
				WorldID  string `json:"world_id"`
				Tick     int64  `json:"tick"`
				Seq      int64  `json:"seq"`
				PlayerID string `json:"player_id"`
				ActionID string `json:"action_id"`
				Type     string `json:"type"`
				Result   string `json:"result"`
			}
			err := rows.Scan(&r.WorldID, &r.Tick, &r.Seq, &r.PlayerID, &r.ActionID, &r.Type, &r.Result)
			return r, err
		})

	case "joins":
		rows, err := db.Query(`SELECT world_id,tick,player_id,name,resumed FROM joins ORDER BY tick DESC LIMIT ?`, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		scanRows(rows, func(rows *sql.Rows) (any, error) {
			var r struct {
				WorldID  string `json:"world_id"`
				Tick     int64  `json:"tick"`
				PlayerID string `json:"player_id"`
				Name     string `json:"name"`
				Resumed  bool   `json:"resumed"`
			}
			err := rows.Scan(&r.WorldID, &r.Tick, &r.PlayerID, &r.Name, &r.Resumed)
			return r, err
		})

	case "catalogs":
		rows, err := db.Query(`SELECT name,digest,updated_at FROM catalogs ORDER BY name`)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		scanRows(rows, func(rows *sql.Rows) (any, error) {
			var r struct {
				Name      string `json:"name"`
				Digest    string `json:"digest"`
				UpdatedAt string `json:"updated_at"`
			}
			err := rows.Scan(&r.Name, &r.Digest, &r.UpdatedAt)
			return r, err
		})

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data] [-world WORLD|-db PATH] [-player P] [-limit N] snapshots|ticks|actions|joins|catalogs")
		os.Exit(2)
	}
}

func scanRows(rows *sql.Rows, scan func(*sql.Rows) (any, error)) {
	defer rows.Close()
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			os.Exit(1)
		}
		printJSON(r)
	}
	if err := rows.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "rows:", err)
		os.Exit(1)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
