package types

import (
	"github.com/google/uuid"
)

// NewUserID generates a UUIDv7 user identifier.
// Time-ordered IDs ensure sequential inserts cluster in B-tree pages, and
// give the resolution cursor a total order to page over.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewUserID() UserID {
	return UserID(uuid.Must(uuid.NewV7()).String())
}

// NewTagID generates a UUIDv7 tag identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewTagID() TagID {
	return TagID(uuid.Must(uuid.NewV7()).String())
}

// NewSegmentID generates a UUIDv7 segment identifier.
func NewSegmentID() SegmentID {
	return SegmentID(uuid.Must(uuid.NewV7()).String())
}

// ParseTagID validates and converts a string to TagID.
// Rejects malformed UUIDs so an injected tag reference never reaches the
// compiler; the empty string is allowed because it is the incomplete-leaf
// placeholder the builder UI produces.
func ParseTagID(s string) (TagID, error) {
	if s == "" {
		return "", nil
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return TagID(s), nil
}

// ParseSegmentID validates and converts a string to SegmentID.
func ParseSegmentID(s string) (SegmentID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return SegmentID(s), nil
}
