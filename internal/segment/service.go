// internal/segment/service.go

// Package segment implements the audience segmentation engine: rule trees
// validated by internal/rules are compiled to SQL and executed against the
// users/user_tags relation in four modes (count, sample, export, resolve).
// The Service facade is the single entry point external code calls.
package segment

import (
	"context"
	"errors"
	"log/slog"

	"github.com/coursekit/reach/internal/rules"
	"github.com/coursekit/reach/internal/types"
)

// ReachResult is the uniform envelope for reach previews. Zero count with
// empty Err is a legitimate "no matches" result; callers must check Err
// rather than infer failure from the count.
type ReachResult struct {
	Count       int          `json:"count"`
	SampleUsers []types.User `json:"sampleUsers"`
	Err         string       `json:"error,omitempty"`
}

// ExportResult is the uniform envelope for bounded exports.
type ExportResult struct {
	Users []types.User `json:"users"`
	Err   string       `json:"error,omitempty"`
}

// Service is the reach facade. All methods are stateless, side-effect-free
// and safe for concurrent use; two calls with identical rules against an
// unchanged population return identical results.
type Service struct {
	exec   *Executor
	guards rules.Guards
	logger *slog.Logger
}

// NewService creates the facade over an executor.
func NewService(exec *Executor, guards rules.Guards, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{exec: exec, guards: guards, logger: logger}
}

// Reach returns the total matching count plus an ordered sample window.
// Both queries run against the identical compiled predicate, so they can
// never disagree about which users match, only how many rows come back.
//
// Failures of every kind - malformed tree, complexity guard, storage - are
// folded into the envelope's Err with count 0 and an empty sample. A broken
// in-progress edit degrades to an empty-looking segment instead of crashing
// the builder; the engine never retries, the UI's debounce loop does.
func (s *Service) Reach(ctx context.Context, seg types.SegmentRules, sampleSize, offset int) ReachResult {
	if sampleSize <= 0 {
		sampleSize = s.exec.limits.SampleSize
	}
	if offset < 0 {
		offset = 0
	}

	q, err := s.compile(seg)
	if err != nil {
		return ReachResult{SampleUsers: []types.User{}, Err: reachErrorMessage(err)}
	}

	count, err := s.exec.Count(ctx, q)
	if err != nil {
		s.logger.Warn("segment count failed", "error", err)
		return ReachResult{SampleUsers: []types.User{}, Err: reachErrorMessage(err)}
	}

	sample, err := s.exec.Sample(ctx, q, sampleSize, offset)
	if err != nil {
		s.logger.Warn("segment sample failed", "error", err)
		return ReachResult{SampleUsers: []types.User{}, Err: reachErrorMessage(err)}
	}

	return ReachResult{Count: count, SampleUsers: sample}
}

// ExportAll returns every matching user up to the configured export cap,
// in the same stable order the sample uses. Beyond the cap callers must
// switch to a batched strategy; Resolve is the unbounded path for ids.
func (s *Service) ExportAll(ctx context.Context, seg types.SegmentRules) ExportResult {
	q, err := s.compile(seg)
	if err != nil {
		return ExportResult{Users: []types.User{}, Err: reachErrorMessage(err)}
	}

	users, err := s.exec.Export(ctx, q)
	if err != nil {
		s.logger.Warn("segment export failed", "error", err)
		return ExportResult{Users: []types.User{}, Err: reachErrorMessage(err)}
	}
	return ExportResult{Users: users}
}

// ResolveRecipients returns the complete distinct set of matching user ids
// for campaign recipient materialization. The engine only resolves ids; the
// materialization job owns writing recipient rows. Unlike the preview
// envelopes this returns a plain error: the caller is a job, not a UI.
func (s *Service) ResolveRecipients(ctx context.Context, seg types.SegmentRules) ([]types.UserID, error) {
	q, err := s.compile(seg)
	if err != nil {
		return nil, err
	}
	ids, err := s.exec.Resolve(ctx, q)
	if err != nil {
		s.logger.Warn("recipient resolution failed", "error", err)
		return nil, err
	}
	return ids, nil
}

// compile normalizes a private clone of the tree and lowers it to SQL.
// Cloning keeps the caller's tree untouched while the UI keeps editing it.
func (s *Service) compile(seg types.SegmentRules) (*rules.CompiledQuery, error) {
	tree := seg.Clone()
	if err := rules.Normalize(&tree, s.guards); err != nil {
		return nil, err
	}
	return rules.Compile(&tree)
}

// reachErrorMessage converts engine errors into the human-readable strings
// the envelope carries. Sentinel matching keeps driver details out of the
// admin UI.
func reachErrorMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, types.ErrRuleTooComplex):
		return "segment rules are too complex to evaluate"
	case errors.Is(err, types.ErrMalformedRule):
		return "segment rules are malformed"
	case errors.Is(err, types.ErrStorageTimeout):
		return "audience query timed out, try again"
	case errors.Is(err, types.ErrStorageUnavailable):
		return "audience store is temporarily unavailable"
	}
	return err.Error()
}
