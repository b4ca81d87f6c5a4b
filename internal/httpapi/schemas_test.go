package httpapi_test

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

	createSchema := compile("create_world.schema.json")
	changesSchema := compile("apply_changes.schema.json")
	worldSchema := compile("world.schema.json")

	var create any
	_ = json.Unmarshal([]byte(`{"seed":"seed-42"}`), &create)
	validate(createSchema, create)

	var changes any
	_ = json.Unmarshal([]byte(`{
	  "changes":[
	    {"x":0,"y":0,"z":0,"type":"stone","action":"place"},
	    {"x":0,"y":0,"z":0,"type":"","action":"remove"}
	  ]
	}`), &changes)
	validate(changesSchema, changes)

	var world any
	_ = json.Unmarshal([]byte(`{
	  "id":1,
	  "seed":"seed-42",
	  "changes":[{"x":0,"y":0,"z":0,"type":"stone","action":"place"}],
	  "last_updated":"2026-08-29T12:00:00.000000Z"
	}`), &world)
	validate(worldSchema, world)

	var badAction any
	_ = json.Unmarshal([]byte(`{
	  "changes":[{"x":0,"y":0,"z":0,"type":"tnt","action":"explode"}]
	}`), &badAction)
	if err := changesSchema.Validate(badAction); err == nil {
		t.Fatalf("expected invalid action rejected")
	}

	var emptySeed any
	_ = json.Unmarshal([]byte(`{"seed":""}`), &emptySeed)
	if err := createSchema.Validate(emptySeed); err == nil {
		t.Fatalf("expected empty seed rejected")
	}
}
