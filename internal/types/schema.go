// internal/types/schema.go
package types

import (
	"reflect"

	"github.com/danielgtaylor/huma/v2"
)

/*
 * OpenAPI schemas for the rule-tree wire format.
 *
 * Condition's Go struct (two union arms) deliberately differs from its JSON
 * shape (kind/tagId/operator/conditions), so reflection-based schema
 * generation would publish and validate the wrong contract. These providers
 * describe the wire shape the codec in rules.go actually speaks.
 *
 * The schemas are intentionally loose: unknown kinds and invalid operators
 * must reach Normalize, which drops or defaults them, instead of being
 * rejected at the transport.
 */

// conditionSchemaName is registered under the registry prefix, which is
// "#/components/schemas/" for the default huma config.
const (
	conditionSchemaName = "Condition"
	conditionSchemaRef  = "#/components/schemas/" + conditionSchemaName
)

// Schema implements huma.SchemaProvider. The named schema is registered once
// and self-references for nested groups.
func (c Condition) Schema(r huma.Registry) *huma.Schema {
	if _, ok := r.Map()[conditionSchemaName]; !ok {
		s := &huma.Schema{}
		r.Map()[conditionSchemaName] = s
		*s = huma.Schema{
			Type:        huma.TypeObject,
			Description: "A rule-tree node: a tag leaf (kind \"tag\") or a nested boolean group (kind \"group\").",
			Properties: map[string]*huma.Schema{
				"kind":     {Type: huma.TypeString, Description: "Node kind; unrecognized kinds are ignored."},
				"tagId":    {Type: huma.TypeString, Description: "Tag to match (leaf nodes). Empty matches nothing."},
				"operator": {Type: huma.TypeString, Description: "Boolean combinator for group nodes: AND, OR or NOT."},
				"conditions": {
					Type:  huma.TypeArray,
					Items: &huma.Schema{Ref: conditionSchemaRef},
				},
			},
		}
		s.PrecomputeMessages()
	}
	return &huma.Schema{Ref: conditionSchemaRef}
}

// Schema implements huma.SchemaProvider. A rule tree root is structurally a
// group; every field is optional so a bare `{}` means "match every user".
func (r SegmentRules) Schema(reg huma.Registry) *huma.Schema {
	item := reg.Schema(reflect.TypeOf(Condition{}), true, conditionSchemaName)
	return &huma.Schema{
		Type:        huma.TypeObject,
		Description: "Root of a segmentation rule tree. Empty conditions match the whole audience.",
		Properties: map[string]*huma.Schema{
			"operator":   {Type: huma.TypeString, Description: "Boolean combinator: AND, OR or NOT."},
			"conditions": {Type: huma.TypeArray, Items: item},
		},
	}
}
