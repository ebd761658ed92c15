package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

type Catalogs struct {
	Blocks  BlockCatalog
	Weapons WeaponCatalog
	Enemies EnemyCatalog
}

// BlockCatalog lists the road block prefabs the streamer can instantiate.
type BlockCatalog struct {
	Order  []string
	Defs   map[string]BlockDef
	Digest string
}

type BlockDef struct {
	ID        string  `json:"id"`
	Length    float64 `json:"length"`
	HalfWidth float64 `json:"half_width"`
}

type WeaponCatalog struct {
	Order  []string
	Defs   map[string]WeaponDef
	Digest string
}

type WeaponDef struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Damage      int     `json:"damage"`
	AmmoType    string  `json:"ammo_type"`
	ReloadTicks int     `json:"reload_ticks"`
	Accuracy    float64 `json:"accuracy"`  // 0..1, lateral spread narrows as it rises
	Durability  int     `json:"durability"` // shots survived before breaking
}

type EnemyCatalog struct {
	Order  []string
	Defs   map[string]EnemyDef
	Digest string
}

type EnemyDef struct {
	ID    string  `json:"id"`
	HP    int     `json:"hp"`
	Speed float64 `json:"speed"`
	Width float64 `json:"width"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadBlocks(filepath.Join(configDir, "blocks.json"), &c.Blocks); err != nil {
		return nil, err
	}
	if err := loadWeapons(filepath.Join(configDir, "weapons.json"), &c.Weapons); err != nil {
		return nil, err
	}
	if err := loadEnemies(filepath.Join(configDir, "enemies.json"), &c.Enemies); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadBlocks(path string, out *BlockCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	out.Defs = map[string]BlockDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("blocks.json: empty id")
		}
		if d.Length <= 0 {
			return fmt.Errorf("blocks.json: %s: non-positive length", d.ID)
		}
		out.Defs[d.ID] = d
	}
	out.Order = sortedIDs(len(out.Defs), func(add func(string)) {
		for id := range out.Defs {
			add(id)
		}
	})
	return nil
}

func loadWeapons(path string, out *WeaponCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []WeaponDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("weapons.json: %w", err)
	}
	out.Defs = map[string]WeaponDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("weapons.json: empty id")
		}
		if d.Durability <= 0 {
			return fmt.Errorf("weapons.json: %s: non-positive durability", d.ID)
		}
		out.Defs[d.ID] = d
	}
	out.Order = sortedIDs(len(out.Defs), func(add func(string)) {
		for id := range out.Defs {
			add(id)
		}
	})
	return nil
}

func loadEnemies(path string, out *EnemyCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []EnemyDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("enemies.json: %w", err)
	}
	out.Defs = map[string]EnemyDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("enemies.json: empty id")
		}
		out.Defs[d.ID] = d
	}
	out.Order = sortedIDs(len(out.Defs), func(add func(string)) {
		for id := range out.Defs {
			add(id)
		}
	})
	return nil
}

func sortedIDs(n int, each func(add func(string))) []string {
	ids := make([]string, 0, n)
	each(func(id string) { ids = append(ids, id) })
	sort.Strings(ids)
	return ids
}
