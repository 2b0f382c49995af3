// internal/segment/store.go
package segment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coursekit/reach/internal/core/db"
	"github.com/coursekit/reach/internal/types"
)

// Store persists named segments and serves the tag list the builder UI
// needs. Rule trees are stored as the same JSON the wire carries, so a
// saved segment round-trips byte-compatible with the editor.
type Store struct {
	q *db.Queries
}

// NewStore creates a segment store over loaded named queries.
func NewStore(q *db.Queries) *Store {
	return &Store{q: q}
}

// segmentRow is the database projection; rules arrive as raw JSON text.
type segmentRow struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	Rules     string `db:"rules"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

func (r segmentRow) toSegment() (types.Segment, error) {
	var rules types.SegmentRules
	if err := json.Unmarshal([]byte(r.Rules), &rules); err != nil {
		return types.Segment{}, fmt.Errorf("segment %s: %w", r.ID, types.ErrMalformedRule)
	}
	return types.Segment{
		ID:        types.SegmentID(r.ID),
		Name:      r.Name,
		Rules:     rules,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

// Create persists a new named segment and returns it with its generated ID.
func (s *Store) Create(ctx context.Context, name string, rules types.SegmentRules) (types.Segment, error) {
	encoded, err := json.Marshal(rules)
	if err != nil {
		return types.Segment{}, fmt.Errorf("encode rules: %w", err)
	}

	id := types.NewSegmentID()
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := s.q.Exec(ctx, "create-segment", string(id), name, string(encoded), now, now); err != nil {
		return types.Segment{}, mapStorageError(err)
	}
	return types.Segment{ID: id, Name: name, Rules: rules, CreatedAt: now, UpdatedAt: now}, nil
}

// Get loads a segment by ID. Unknown IDs return types.ErrSegmentNotFound.
func (s *Store) Get(ctx context.Context, id types.SegmentID) (types.Segment, error) {
	var row segmentRow
	if err := s.q.Get(ctx, "get-segment", &row, string(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Segment{}, types.ErrSegmentNotFound
		}
		return types.Segment{}, mapStorageError(err)
	}
	return row.toSegment()
}

// List returns all saved segments ordered by name.
func (s *Store) List(ctx context.Context) ([]types.Segment, error) {
	var rows []segmentRow
	if err := s.q.Select(ctx, "list-segments", &rows); err != nil {
		return nil, mapStorageError(err)
	}

	segments := make([]types.Segment, 0, len(rows))
	for _, r := range rows {
		seg, err := r.toSegment()
		if err != nil {
			// A segment saved by a newer client may not decode; skip it
			// rather than failing the whole listing.
			continue
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// Update replaces a segment's name and rules.
func (s *Store) Update(ctx context.Context, id types.SegmentID, name string, rules types.SegmentRules) (types.Segment, error) {
	encoded, err := json.Marshal(rules)
	if err != nil {
		return types.Segment{}, fmt.Errorf("encode rules: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.q.Exec(ctx, "update-segment", name, string(encoded), now, string(id))
	if err != nil {
		return types.Segment{}, mapStorageError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return types.Segment{}, types.ErrSegmentNotFound
	}
	return s.Get(ctx, id)
}

// Delete removes a segment by ID.
func (s *Store) Delete(ctx context.Context, id types.SegmentID) error {
	res, err := s.q.Exec(ctx, "delete-segment", string(id))
	if err != nil {
		return mapStorageError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return types.ErrSegmentNotFound
	}
	return nil
}

// Tags returns all tags ordered by name, for the builder's tag picker.
func (s *Store) Tags(ctx context.Context) ([]types.Tag, error) {
	tags := []types.Tag{}
	if err := s.q.Select(ctx, "list-tags", &tags); err != nil {
		return nil, mapStorageError(err)
	}
	return tags, nil
}

// Tag loads a single tag by ID. Unknown IDs return types.ErrTagNotFound.
func (s *Store) Tag(ctx context.Context, id types.TagID) (types.Tag, error) {
	var tag types.Tag
	if err := s.q.Get(ctx, "get-tag", &tag, string(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Tag{}, types.ErrTagNotFound
		}
		return types.Tag{}, mapStorageError(err)
	}
	return tag, nil
}
