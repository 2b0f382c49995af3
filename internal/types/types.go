// Package types provides domain models shared across the segmentation engine.
//
// Zero-dependency design: types.go, rules.go and errors.go use only
// encoding/json so the rule model can be embedded in clients without pulling
// in database or transport packages. ID utilities in ids.go import uuid but
// are isolated for selective inclusion.
package types

// UserID represents a UUIDv7 user identifier.
// String alias enables type safety while maintaining JSON string serialization.
// UUIDv7 time-ordering ensures sequential IDs cluster in B-tree indexes.
type UserID string

// TagID represents a UUIDv7 tag identifier.
// String alias enables type safety while maintaining JSON string serialization.
type TagID string

// SegmentID represents a UUIDv7 identifier for a saved segment.
type SegmentID string

// User is a read-only projection of a row in the externally owned users
// relation. The engine never mutates users; it only selects them.
type User struct {
	ID    UserID `json:"id" db:"id"`
	Email string `json:"email" db:"email"`
	Name  string `json:"name" db:"name"`
}

// Tag is a named label a user may or may not currently hold. Tags are the
// sole predicate primitive of the rule model.
type Tag struct {
	ID   TagID  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Segment is a named, persisted rule tree.
type Segment struct {
	ID        SegmentID    `json:"id" db:"id"`
	Name      string       `json:"name" db:"name"`
	Rules     SegmentRules `json:"rules"`
	CreatedAt string       `json:"created_at" db:"created_at"`
	UpdatedAt string       `json:"updated_at" db:"updated_at"`
}

// Resource limits enforced on rule trees before compilation.
// An adversarial or buggy client can submit arbitrarily nested JSON; these
// bounds keep the compiled query plan a sane size. Both are overridable
// through configuration; the constants are the defaults.
const (
	// DefaultMaxRuleDepth bounds group nesting. Six levels is far beyond
	// what the query builder UI produces.
	DefaultMaxRuleDepth = 6

	// DefaultMaxRuleNodes bounds the total condition count across the tree.
	DefaultMaxRuleNodes = 200
)
