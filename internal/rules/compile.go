// internal/rules/compile.go
package rules

import (
	"fmt"
	"strings"

	"github.com/coursekit/reach/internal/types"
)

/*
 * Rule compilation.
 *
 * Compiles a normalized types.SegmentRules tree into a single SQL predicate
 * over the users relation, with ? placeholders and a parallel args slice.
 * The executor rebinds placeholders for the active driver (sqlx.Rebind), so
 * one compiled form serves both SQLite and PostgreSQL.
 *
 * Predicate construction:
 *   - tag leaf      -> EXISTS semi-join against user_tags; empty TagID
 *                      compiles to FALSE, never to an omitted predicate
 *   - AND group     -> conjunction of children, empty group -> TRUE
 *   - OR group      -> disjunction of children, empty group -> FALSE
 *   - NOT group     -> negated disjunction, empty group -> TRUE
 *   - empty root    -> no WHERE clause at all (match every user)
 *
 * Empty nested groups take the identity element of their own operator so
 * that inserting an empty group into an expression never changes what the
 * surrounding expression matches.
 *
 * Why EXISTS rather than JOIN: the semi-join never multiplies user rows, so
 * a user holding several matching tags still counts once. Distinctness is a
 * structural property of the query, not a DISTINCT bolted on afterwards.
 *
 * All tag identifiers are bound parameters. Nothing user-authored is ever
 * interpolated into SQL text.
 */

// SQL literals for the degenerate predicates. Named so the intent survives
// in the generated query text.
const (
	predTrue  = "1 = 1"
	predFalse = "1 = 0"
)

const tagExistsPred = "EXISTS (SELECT 1 FROM user_tags ut WHERE ut.user_id = u.id AND ut.tag_id = ?)"

// CompiledQuery is a rule tree lowered to a reusable SQL predicate.
// The zero predicate (empty where) matches the entire population.
// A CompiledQuery is immutable after Compile and safe for concurrent use.
type CompiledQuery struct {
	where string
	args  []any
}

// Compile lowers a normalized rule tree to its SQL predicate.
// Callers must run Normalize first; Compile fails with ErrMalformedRule on
// conditions no normalized tree can contain.
func Compile(rules *types.SegmentRules) (*CompiledQuery, error) {
	if rules == nil {
		return nil, fmt.Errorf("nil rules: %w", types.ErrMalformedRule)
	}

	// Root special case: no conditions means total-population reach.
	if len(rules.Conditions) == 0 {
		return &CompiledQuery{}, nil
	}

	b := &predicateBuilder{}
	where, err := b.group(rules.Operator, rules.Conditions)
	if err != nil {
		return nil, err
	}
	return &CompiledQuery{where: where, args: b.args}, nil
}

type predicateBuilder struct {
	args []any
}

func (b *predicateBuilder) condition(c types.Condition) (string, error) {
	switch {
	case c.Tag != nil:
		if c.Tag.TagID == "" {
			// Incomplete leaf mid-edit: matches nothing.
			return predFalse, nil
		}
		b.args = append(b.args, string(c.Tag.TagID))
		return tagExistsPred, nil
	case c.Group != nil:
		return b.group(c.Group.Operator, c.Group.Conditions)
	}
	return "", fmt.Errorf("condition has no variant: %w", types.ErrMalformedRule)
}

func (b *predicateBuilder) group(op types.Operator, conds []types.Condition) (string, error) {
	if len(conds) == 0 {
		// Identity element of the operator: AND() and NOT() constrain
		// nothing, OR() offers no alternative.
		if op == types.OpOr {
			return predFalse, nil
		}
		return predTrue, nil
	}

	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		p, err := b.condition(c)
		if err != nil {
			return "", err
		}
		parts = append(parts, p)
	}

	switch op {
	case types.OpAnd:
		return "(" + strings.Join(parts, " AND ") + ")", nil
	case types.OpOr:
		return "(" + strings.Join(parts, " OR ") + ")", nil
	case types.OpNot:
		return "NOT (" + strings.Join(parts, " OR ") + ")", nil
	}
	return "", fmt.Errorf("unknown operator %q: %w", op, types.ErrMalformedRule)
}

// MatchesAll reports whether the compiled query has no predicate, i.e. the
// empty root that matches the entire population.
func (q *CompiledQuery) MatchesAll() bool {
	return q.where == ""
}

// CountSQL returns the count form: total distinct users matching the tree.
func (q *CompiledQuery) CountSQL() (string, []any) {
	sql := "SELECT COUNT(*) FROM users u"
	if q.where != "" {
		sql += " WHERE " + q.where
	}
	return sql, q.args
}

// RowsSQL returns the row form: matching users ordered stably by email then
// id, windowed by limit/offset. Count and row forms share the identical
// predicate and args, so they can never disagree about which users match.
func (q *CompiledQuery) RowsSQL(limit, offset int) (string, []any) {
	sql := "SELECT u.id, u.email, u.name FROM users u"
	if q.where != "" {
		sql += " WHERE " + q.where
	}
	sql += " ORDER BY u.email, u.id LIMIT ? OFFSET ?"
	args := append(append([]any{}, q.args...), limit, offset)
	return sql, args
}

// IDPageSQL returns the keyset-pagination form used for recipient
// resolution: one page of matching user ids strictly after the cursor,
// ordered by id. UUIDv7 ids give the cursor a stable total order.
func (q *CompiledQuery) IDPageSQL(afterID types.UserID, pageSize int) (string, []any) {
	sql := "SELECT u.id FROM users u"
	if q.where != "" {
		sql += " WHERE " + q.where + " AND u.id > ?"
	} else {
		sql += " WHERE u.id > ?"
	}
	sql += " ORDER BY u.id LIMIT ?"
	args := append(append([]any{}, q.args...), string(afterID), pageSize)
	return sql, args
}
