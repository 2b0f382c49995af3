package types

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/danielgtaylor/huma/v2"
)

func validateRulesPayload(t *testing.T, payload string) []error {
	t.Helper()
	registry := huma.NewMapRegistry("#/components/schemas/", huma.DefaultSchemaNamer)
	schema := registry.Schema(reflect.TypeOf(SegmentRules{}), true, "SegmentRules")

	var v any
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	res := &huma.ValidateResult{}
	huma.Validate(registry, schema, huma.NewPathBuffer([]byte{}, 0), huma.ModeWriteToServer, v, res)
	return res.Errors
}

// The published schema must accept the wire format the codec in rules.go
// speaks, not the shape of the Go union struct.
func TestRulesSchema_AcceptsWireFormat(t *testing.T) {
	payloads := map[string]string{
		"tag leaf": `{
			"operator": "OR",
			"conditions": [{"kind": "tag", "tagId": "tag-vip"}]
		}`,
		"nested group": `{
			"operator": "AND",
			"conditions": [
				{"kind": "tag", "tagId": "tag-vip"},
				{"kind": "group", "operator": "NOT", "conditions": [
					{"kind": "tag", "tagId": "tag-news"}
				]}
			]
		}`,
		"incomplete leaf": `{
			"operator": "AND",
			"conditions": [{"kind": "tag", "tagId": ""}]
		}`,
		"empty root": `{}`,
	}
	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			if errs := validateRulesPayload(t, payload); len(errs) > 0 {
				t.Errorf("wire payload rejected by schema: %v", errs)
			}
		})
	}
}

// Unknown kinds must pass schema validation so decoding can drop them;
// rejecting them at the transport would break forward compatibility with
// newer builder clients.
func TestRulesSchema_TolerantOfUnknownKinds(t *testing.T) {
	payload := `{
		"operator": "OR",
		"conditions": [
			{"kind": "geo_radius", "lat": 1.5, "lng": 2.5},
			{"kind": "tag", "tagId": "tag-vip"}
		]
	}`
	if errs := validateRulesPayload(t, payload); len(errs) > 0 {
		t.Errorf("unknown-kind condition rejected by schema: %v", errs)
	}
}

func TestRulesSchema_RejectsNonArrayConditions(t *testing.T) {
	payload := `{"operator": "AND", "conditions": "not-a-list"}`
	if errs := validateRulesPayload(t, payload); len(errs) == 0 {
		t.Error("expected schema error for non-array conditions")
	}
}
