package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"chatwars.ai/internal/protocol"
	"chatwars.ai/internal/sim/catalogs"
)

func compile(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

// asJSON round-trips v so the validator sees plain JSON values.
func asJSON(t *testing.T, v any) any {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestSchemas_ValidateSamples(t *testing.T) {
	validate := func(s *jsonschema.Schema, raw string) {
		t.Helper()
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			t.Fatalf("sample: %v", err)
		}
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	validate(compile(t, "hello.schema.json"), `{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "adapter_name":"telegram"
	}`)

	cmd := compile(t, "cmd.schema.json")
	validate(cmd, `{"type":"CMD","id":"c1","chat_id":-100123,"player_id":42,"op":"purchase","asset":"tank","quantity":2}`)
	validate(cmd, `{"type":"CMD","id":"c2","chat_id":1,"player_id":42,"op":"attack","target":7}`)
	validate(cmd, `{"type":"CMD","id":"c3","chat_id":1,"op":"leaderboard","by":"wins","limit":5}`)
	validate(cmd, `{"type":"CMD","id":"c4","chat_id":1,"player_id":42,"op":"activity","ts":1767225600000}`)

	validate(compile(t, "result.schema.json"), `{
	  "type":"RESULT",
	  "protocol_version":"1.0",
	  "ref":"c1",
	  "ok":false,
	  "code":"E_NO_RESOURCE",
	  "reason":"INSUFFICIENT_FUNDS",
	  "message":"not enough points"
	}`)
}

func TestSchemas_RejectInvalid(t *testing.T) {
	cmd := compile(t, "cmd.schema.json")
	bad := []string{
		`{"type":"CMD","id":"x","chat_id":1,"op":"fly"}`,
		`{"type":"CMD","id":"x","chat_id":1,"player_id":1,"op":"purchase","asset":"tank"}`,
		`{"type":"CMD","id":"x","chat_id":1,"player_id":1,"op":"attack"}`,
		`{"type":"CMD","chat_id":1,"op":"summary"}`,
	}
	for _, raw := range bad {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			t.Fatalf("sample: %v", err)
		}
		if err := cmd.Validate(v); err == nil {
			t.Fatalf("expected %s to be rejected", raw)
		}
	}

	result := compile(t, "result.schema.json")
	var v any
	_ = json.Unmarshal([]byte(`{"type":"RESULT","protocol_version":"1.0","ref":"x","ok":false}`), &v)
	if err := result.Validate(v); err == nil {
		t.Fatalf("failed result without code should be rejected")
	}
}

func TestSchemas_ServerMessages(t *testing.T) {
	cat := catalogs.Default()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       "7f0c3c8e-3a43-4a8e-9d6b-0d0cf5d1f2a1",
		CatalogDigest:   cat.Digest,
		CatalogVariant:  cat.Variant,
	}
	if err := compile(t, "welcome.schema.json").Validate(asJSON(t, welcome)); err != nil {
		t.Fatalf("welcome: %v", err)
	}

	result := compile(t, "result.schema.json")
	ok, err := protocol.OKResult("c1", map[string]int64{"points": 10})
	if err != nil {
		t.Fatalf("OKResult: %v", err)
	}
	if err := result.Validate(asJSON(t, ok)); err != nil {
		t.Fatalf("ok result: %v", err)
	}
	fail := protocol.ErrResult("c2", protocol.ErrConflict, "NAME_TAKEN", "alliance name already taken")
	if err := result.Validate(asJSON(t, fail)); err != nil {
		t.Fatalf("error result: %v", err)
	}

	cmd := protocol.CmdMsg{Type: protocol.TypeCmd, ID: "c3", ChatID: 9, PlayerID: 1, Op: protocol.OpHire, Unit: "miner", Quantity: 2}
	if err := compile(t, "cmd.schema.json").Validate(asJSON(t, cmd)); err != nil {
		t.Fatalf("cmd: %v", err)
	}
}
