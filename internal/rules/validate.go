// internal/rules/validate.go
package rules

import (
	"fmt"

	"github.com/coursekit/reach/internal/types"
)

/*
 * Rule tree validation and normalization.
 *
 * Normalization workflow:
 *   1. Drop conditions with no recognized variant (forward compatibility
 *      with newer builder clients that emit kinds this server predates)
 *   2. Default missing/invalid group operators to AND (the builder UI
 *      default) rather than rejecting the tree mid-edit
 *   3. Enforce depth and node-count guards
 *
 * Incomplete tag leaves (empty TagID) are preserved: they compile to an
 * always-false predicate. Dropping them instead would silently change group
 * semantics, e.g. turn an AND-of-3 into an AND-of-2.
 *
 * Why guards at validation time: enforcing limits before compilation moves
 * error detection to the cheap phase and keeps a pathological tree from
 * ever producing a query plan.
 */

// Guards bounds the shape of a rule tree accepted for compilation.
type Guards struct {
	MaxDepth int
	MaxNodes int
}

// DefaultGuards returns the product-default complexity limits.
func DefaultGuards() Guards {
	return Guards{
		MaxDepth: types.DefaultMaxRuleDepth,
		MaxNodes: types.DefaultMaxRuleNodes,
	}
}

// Normalize validates a rule tree in place and enforces g.
// Returns types.ErrMalformedRule for structurally invalid trees and
// types.ErrRuleTooComplex when g is exceeded. The returned tree contains
// only tag leaves and groups with valid operators.
func Normalize(rules *types.SegmentRules, g Guards) error {
	if rules == nil {
		return fmt.Errorf("nil rules: %w", types.ErrMalformedRule)
	}
	if !rules.Operator.Valid() {
		rules.Operator = types.OpAnd
	}

	nodes := 0
	conditions, err := normalizeConditions(rules.Conditions, 1, &nodes, g)
	if err != nil {
		return err
	}
	rules.Conditions = conditions
	return nil
}

func normalizeConditions(conds []types.Condition, depth int, nodes *int, g Guards) ([]types.Condition, error) {
	if depth > g.MaxDepth {
		return nil, fmt.Errorf("nesting exceeds %d levels: %w", g.MaxDepth, types.ErrRuleTooComplex)
	}

	out := conds[:0]
	for _, c := range conds {
		if c.IsZero() {
			// Unrecognized kind from a newer client; skip it.
			continue
		}
		*nodes++
		if *nodes > g.MaxNodes {
			return nil, fmt.Errorf("tree exceeds %d conditions: %w", g.MaxNodes, types.ErrRuleTooComplex)
		}
		if c.Group != nil {
			if !c.Group.Operator.Valid() {
				c.Group.Operator = types.OpAnd
			}
			nested, err := normalizeConditions(c.Group.Conditions, depth+1, nodes, g)
			if err != nil {
				return nil, err
			}
			c.Group.Conditions = nested
		}
		out = append(out, c)
	}
	return out, nil
}
