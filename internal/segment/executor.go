// internal/segment/executor.go
package segment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/coursekit/reach/internal/rules"
	"github.com/coursekit/reach/internal/types"
)

/*
 * Segmentation executor.
 *
 * Runs a compiled query against the user/tag store in one of four modes:
 *
 *   Count   - total matching population, no rows fetched
 *   Sample  - small ordered window for the live reach preview
 *   Export  - large bounded window for CSV-bound callers
 *   Resolve - full distinct id set, paged internally by keyset cursor
 *
 * Each mode runs under its own deadline so a runaway query cannot hang the
 * calling request; preview modes get a short deadline, bulk modes a longer
 * one. Caller cancellation propagates into the driver through the context,
 * abandoning superseded preview queries instead of letting them complete.
 *
 * The executor holds no mutable state; concurrent invocations are
 * independent. Read consistency is the store's concern (read committed).
 */

// Limits carries the per-mode execution bounds. Values come from
// configuration; see config.Engine.
type Limits struct {
	SampleSize      int
	ExportCap       int
	ResolvePageSize int
	PreviewTimeout  time.Duration
	BulkTimeout     time.Duration
}

// DefaultLimits returns the product-default execution bounds.
func DefaultLimits() Limits {
	return Limits{
		SampleSize:      10,
		ExportCap:       100000,
		ResolvePageSize: 1000,
		PreviewTimeout:  5 * time.Second,
		BulkTimeout:     60 * time.Second,
	}
}

// Executor runs compiled segment queries against the store.
type Executor struct {
	db     *sqlx.DB
	limits Limits
}

// NewExecutor creates an executor over an open database handle.
func NewExecutor(db *sqlx.DB, limits Limits) *Executor {
	return &Executor{db: db, limits: limits}
}

// Count returns the total number of distinct users matching q.
func (e *Executor) Count(ctx context.Context, q *rules.CompiledQuery) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, e.limits.PreviewTimeout)
	defer cancel()

	query, args := q.CountSQL()
	var count int
	if err := e.db.GetContext(ctx, &count, e.db.Rebind(query), args...); err != nil {
		return 0, mapStorageError(err)
	}
	return count, nil
}

// Sample returns an ordered window of matching users for the reach preview.
func (e *Executor) Sample(ctx context.Context, q *rules.CompiledQuery, limit, offset int) ([]types.User, error) {
	ctx, cancel := context.WithTimeout(ctx, e.limits.PreviewTimeout)
	defer cancel()

	return e.fetchRows(ctx, q, limit, offset)
}

// Export returns matching users up to the configured export cap. Callers
// needing more than the cap must switch to a batched strategy; the cap
// bounds memory for a single request/response cycle.
func (e *Executor) Export(ctx context.Context, q *rules.CompiledQuery) ([]types.User, error) {
	ctx, cancel := context.WithTimeout(ctx, e.limits.BulkTimeout)
	defer cancel()

	return e.fetchRows(ctx, q, e.limits.ExportCap, 0)
}

// Resolve returns the complete distinct set of matching user ids, paging
// internally with a keyset cursor so no single query is unbounded.
func (e *Executor) Resolve(ctx context.Context, q *rules.CompiledQuery) ([]types.UserID, error) {
	ctx, cancel := context.WithTimeout(ctx, e.limits.BulkTimeout)
	defer cancel()

	pageSize := e.limits.ResolvePageSize
	if pageSize <= 0 {
		pageSize = DefaultLimits().ResolvePageSize
	}

	var all []types.UserID
	var cursor types.UserID
	for {
		query, args := q.IDPageSQL(cursor, pageSize)
		var page []types.UserID
		if err := e.db.SelectContext(ctx, &page, e.db.Rebind(query), args...); err != nil {
			return nil, mapStorageError(err)
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
		cursor = page[len(page)-1]
	}
}

func (e *Executor) fetchRows(ctx context.Context, q *rules.CompiledQuery, limit, offset int) ([]types.User, error) {
	query, args := q.RowsSQL(limit, offset)
	users := []types.User{}
	if err := e.db.SelectContext(ctx, &users, e.db.Rebind(query), args...); err != nil {
		return nil, mapStorageError(err)
	}
	return users, nil
}

// mapStorageError folds driver failures into the two storage sentinels.
// Deadline and cancellation become ErrStorageTimeout; everything else from
// the driver becomes ErrStorageUnavailable. sql.ErrNoRows never surfaces
// here because count queries always return a row and Select tolerates
// empty result sets.
func mapStorageError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", types.ErrStorageTimeout, err)
	}
	return fmt.Errorf("%w: %v", types.ErrStorageUnavailable, err)
}
