package protocol

// OBS (server -> client), one per tick per connected player.
type ObsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	PlayerID        string `json:"player_id"`

	Self    SelfObs     `json:"self"`
	Weapons []WeaponObs `json:"weapons"`
	Ammo    []AmmoStack `json:"ammo"`

	Road     RoadObs     `json:"road"`
	Entities []EntityObs `json:"entities"`
	Events   []Event     `json:"events"`
}

type SelfObs struct {
	Pos   [2]float64 `json:"pos"` // x, z
	Speed float64    `json:"speed"`
	HP    int        `json:"hp"`
	Dead  bool       `json:"dead,omitempty"`
}

type WeaponObs struct {
	Slot     int     `json:"slot"`
	WeaponID string  `json:"weapon_id"`
	State    string  `json:"state"`
	Health   float64 `json:"health"`
}

type AmmoStack struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// RoadObs describes the live block window.
type RoadObs struct {
	Distance float64    `json:"distance"`
	Blocks   []BlockObs `json:"blocks"`
}

type BlockObs struct {
	ID        string  `json:"id"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	HalfWidth float64 `json:"half_width"`
}

type EntityObs struct {
	ID   string     `json:"id"`
	Type string     `json:"type"` // "PLAYER", "ENEMY", "PROJECTILE"
	Kind string     `json:"kind,omitempty"`
	Pos  [2]float64 `json:"pos"`
	HP   int        `json:"hp,omitempty"`
}

type Event map[string]interface{}

// ACT (client -> server)
type ActMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Tick            uint64       `json:"tick"`
	PlayerID        string       `json:"player_id"`
	Instants        []InstantReq `json:"instants,omitempty"`
}

type InstantReq struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	Slot  int     `json:"slot,omitempty"`
	Speed float64 `json:"speed,omitempty"`
}
