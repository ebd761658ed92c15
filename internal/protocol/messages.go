package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	PlayerName      string            `json:"player_name"`
	Capabilities    HelloCapabilities `json:"capabilities"`
	Auth            *HelloAuth        `json:"auth,omitempty"`
}

type HelloCapabilities struct {
	MaxQueue int `json:"max_queue,omitempty"`
}

type HelloAuth struct {
	Token string `json:"token,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	PlayerID        string         `json:"player_id"`
	ResumeToken     string         `json:"resume_token"`
	WorldParams     WorldParams    `json:"world_params"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type WorldParams struct {
	TickRateHz     int     `json:"tick_rate_hz"`
	StreamDistance float64 `json:"stream_distance"`
	Seed           int64   `json:"seed"`
}

type CatalogDigests struct {
	Blocks  DigestRef `json:"blocks"`
	Weapons DigestRef `json:"weapons"`
	Enemies DigestRef `json:"enemies"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// CATALOG (server -> client): one catalog sent as a single part.
type CatalogMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Name            string      `json:"name"`   // e.g. "weapons"
	Digest          string      `json:"digest"` // sha256 hex
	Data            interface{} `json:"data"`
}
