// internal/types/rules.go
package types

import (
	"encoding/json"
	"fmt"
)

/*
 * Domain types for audience segmentation rules.
 *
 * Provides SegmentRules, Condition, TagCondition, and GroupCondition
 * structures used by internal/rules for validation and compilation. These
 * types are wire-format compatible with the JSON the query builder UI
 * produces and the segments table stores.
 *
 * Key types:
 *   - SegmentRules: the tree root (operator + ordered conditions)
 *   - Condition: closed tagged union (tag leaf or nested group)
 *   - TagCondition: leaf matching users who hold a tag
 *   - GroupCondition: recursive boolean group
 *
 * Dependencies: encoding/json only.
 */

// Operator is a boolean combinator for a group of conditions.
type Operator string

const (
	OpAnd Operator = "AND"
	OpOr  Operator = "OR"
	OpNot Operator = "NOT"
)

// Valid reports whether op is one of the known combinators.
func (op Operator) Valid() bool {
	switch op {
	case OpAnd, OpOr, OpNot:
		return true
	}
	return false
}

// Condition kinds as they appear on the wire.
const (
	KindTag   = "tag"
	KindGroup = "group"
)

// TagCondition is a leaf: it matches users who currently hold TagID.
// An empty TagID is a valid *incomplete* leaf (the UI inserts the row before
// the admin picks a tag) and matches nothing rather than erroring.
type TagCondition struct {
	TagID TagID
}

// GroupCondition is an internal node: a boolean combination of child
// conditions. Depth is unbounded in the model; internal/rules enforces the
// configured guards before compilation.
type GroupCondition struct {
	Operator   Operator
	Conditions []Condition
}

// Condition is a closed tagged union: exactly one of Tag or Group is set.
// The compiler dispatches on which arm is non-nil; both nil means the wire
// form carried an unrecognized kind and Normalize drops it.
type Condition struct {
	Tag   *TagCondition
	Group *GroupCondition
}

// SegmentRules is the root of a rule tree. Structurally identical to a
// GroupCondition, but the root carries one special rule: empty Conditions
// means "match every user" (total-population reach), whereas a nested empty
// group compiles to its operator's identity element.
type SegmentRules struct {
	Operator   Operator    `json:"operator"`
	Conditions []Condition `json:"conditions"`
}

// conditionWire is the JSON shape shared by both union arms.
type conditionWire struct {
	Kind       string          `json:"kind"`
	TagID      TagID           `json:"tagId,omitempty"`
	Operator   Operator        `json:"operator,omitempty"`
	Conditions json.RawMessage `json:"conditions,omitempty"`
}

// MarshalJSON implements json.Marshaler for the tagged union.
func (c Condition) MarshalJSON() ([]byte, error) {
	switch {
	case c.Tag != nil:
		return json.Marshal(conditionWire{Kind: KindTag, TagID: c.Tag.TagID})
	case c.Group != nil:
		nested, err := json.Marshal(c.Group.Conditions)
		if err != nil {
			return nil, err
		}
		return json.Marshal(conditionWire{
			Kind:       KindGroup,
			Operator:   c.Group.Operator,
			Conditions: nested,
		})
	}
	return nil, fmt.Errorf("condition has no variant set: %w", ErrMalformedRule)
}

// UnmarshalJSON implements json.Unmarshaler for the tagged union.
// Unknown kinds produce a Condition with both arms nil; they survive
// decoding so Normalize can drop them without failing the whole tree
// (forward compatibility with newer builder clients).
func (c *Condition) UnmarshalJSON(data []byte) error {
	var w conditionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRule, err)
	}

	switch w.Kind {
	case KindTag:
		c.Tag = &TagCondition{TagID: w.TagID}
		c.Group = nil
	case KindGroup:
		group := &GroupCondition{Operator: w.Operator}
		if len(w.Conditions) > 0 {
			if err := json.Unmarshal(w.Conditions, &group.Conditions); err != nil {
				return fmt.Errorf("%w: %v", ErrMalformedRule, err)
			}
		}
		c.Tag = nil
		c.Group = group
	default:
		c.Tag = nil
		c.Group = nil
	}
	return nil
}

// IsZero reports whether the condition carries no variant (unknown kind on
// the wire).
func (c Condition) IsZero() bool {
	return c.Tag == nil && c.Group == nil
}

// Clone returns a deep copy of the rule tree. The engine normalizes a clone
// rather than the caller's tree: every call is stateless and the UI's
// in-progress edit buffer is never mutated underneath it.
func (r SegmentRules) Clone() SegmentRules {
	return SegmentRules{
		Operator:   r.Operator,
		Conditions: cloneConditions(r.Conditions),
	}
}

func cloneConditions(conds []Condition) []Condition {
	if conds == nil {
		return nil
	}
	out := make([]Condition, len(conds))
	for i, c := range conds {
		switch {
		case c.Tag != nil:
			tag := *c.Tag
			out[i].Tag = &tag
		case c.Group != nil:
			out[i].Group = &GroupCondition{
				Operator:   c.Group.Operator,
				Conditions: cloneConditions(c.Group.Conditions),
			}
		}
	}
	return out
}
