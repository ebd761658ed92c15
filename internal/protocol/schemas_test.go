package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	helloSchema := compile("hello.schema.json")
	welcomeSchema := compile("welcome.schema.json")
	obsSchema := compile("obs.schema.json")
	actSchema := compile("act.schema.json")

	var hello any
	_ = json.Unmarshal([]byte(`{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "player_name":"bot1",
	  "capabilities":{"max_queue":8}
	}`), &hello)
	validate(helloSchema, hello)

	digest := `"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"`
	var welcome any
	_ = json.Unmarshal([]byte(`{
	  "type":"WELCOME",
	  "protocol_version":"1.0",
	  "player_id":"P1",
	  "resume_token":"0d7b5c3e-4a79-4aa3-a2da-5e6a2f9f9d01",
	  "world_params":{"tick_rate_hz":20,"stream_distance":300,"seed":1337},
	  "catalogs":{
	    "blocks":{"digest":`+digest+`,"count":5},
	    "weapons":{"digest":`+digest+`,"count":4},
	    "enemies":{"digest":`+digest+`,"count":3}
	  }
	}`), &welcome)
	validate(welcomeSchema, welcome)

	var obs any
	_ = json.Unmarshal([]byte(`{
	  "type":"OBS",
	  "protocol_version":"1.0",
	  "tick":42,
	  "player_id":"P1",
	  "self":{"pos":[0.5,84.2],"speed":5,"hp":90},
	  "weapons":[{"slot":0,"weapon_id":"MG_LIGHT","state":"READY","health":0.95}],
	  "ammo":[{"type":"BULLET","count":58}],
	  "road":{"distance":300,"blocks":[{"id":"STRAIGHT_100","start":0,"end":100,"half_width":8}]},
	  "entities":[{"id":"E3","type":"ENEMY","kind":"RAIDER_BUGGY","pos":[1,140],"hp":30}],
	  "events":[{"type":"ACTION_RESULT","ref":"FIRE_1","ok":true}]
	}`), &obs)
	validate(obsSchema, obs)

	var act any
	_ = json.Unmarshal([]byte(`{
	  "type":"ACT",
	  "protocol_version":"1.0",
	  "tick":42,
	  "player_id":"P1",
	  "instants":[
	    {"id":"FIRE_1","type":"FIRE","slot":0},
	    {"id":"THROTTLE_1","type":"THROTTLE","speed":5}
	  ]
	}`), &act)
	validate(actSchema, act)
}

func TestSchemas_RejectBadAct(t *testing.T) {
	p := filepath.Join("..", "..", "schemas", "act.schema.json")
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	var act any
	_ = json.Unmarshal([]byte(`{
	  "type":"ACT",
	  "protocol_version":"1.0",
	  "tick":1,
	  "player_id":"P1",
	  "instants":[{"id":"X1","type":"TELEPORT"}]
	}`), &act)
	if err := s.Validate(act); err == nil {
		t.Fatalf("expected unknown instant type to fail validation")
	}
}
