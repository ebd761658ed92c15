package catalogs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_RepoConfigs(t *testing.T) {
	c, err := Load("../../../configs")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(c.Blocks.Order) == 0 || len(c.Weapons.Order) == 0 || len(c.Enemies.Order) == 0 {
		t.Fatalf("empty catalog: %+v", c)
	}
	for i := 1; i < len(c.Blocks.Order); i++ {
		if c.Blocks.Order[i-1] >= c.Blocks.Order[i] {
			t.Fatalf("block order not sorted: %v", c.Blocks.Order)
		}
	}
	if len(c.Blocks.Digest) != 64 || len(c.Weapons.Digest) != 64 || len(c.Enemies.Digest) != 64 {
		t.Fatalf("digests should be sha256 hex")
	}
	for id, d := range c.Blocks.Defs {
		if d.Length <= 0 || d.HalfWidth <= 0 {
			t.Fatalf("block %s: bad geometry %+v", id, d)
		}
	}
	for id, d := range c.Weapons.Defs {
		if d.Durability <= 0 || d.AmmoType == "" {
			t.Fatalf("weapon %s: %+v", id, d)
		}
	}
}

func TestLoad_RejectsBadDefs(t *testing.T) {
	write := func(dir, name, body string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	valid := map[string]string{
		"blocks.json":  `[{"id":"B","length":100,"half_width":8}]`,
		"weapons.json": `[{"id":"W","ammo_type":"BULLET","durability":10}]`,
		"enemies.json": `[{"id":"E","hp":10}]`,
	}

	cases := []struct {
		name string
		file string
		body string
	}{
		{"empty block id", "blocks.json", `[{"id":"","length":100}]`},
		{"zero length", "blocks.json", `[{"id":"B","length":0}]`},
		{"zero durability", "weapons.json", `[{"id":"W","durability":0}]`},
		{"malformed json", "enemies.json", `{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, body := range valid {
				write(dir, name, body)
			}
			write(dir, tc.file, tc.body)
			if _, err := Load(dir); err == nil {
				t.Fatalf("expected load error")
			}
		})
	}
}
