package types

import "errors"

// Sentinel errors for segmentation operations.
var (
	// ErrMalformedRule indicates a rule tree that is structurally invalid
	// after normalization (non-tree JSON shape, condition without a variant).
	ErrMalformedRule = errors.New("segment rules are malformed")

	// ErrRuleTooComplex indicates a rule tree exceeding the configured
	// depth or node-count guards.
	ErrRuleTooComplex = errors.New("segment rules exceed complexity limits")

	// ErrStorageTimeout indicates the underlying query exceeded its deadline.
	ErrStorageTimeout = errors.New("segment query exceeded deadline")

	// ErrStorageUnavailable indicates the underlying store connection failed.
	ErrStorageUnavailable = errors.New("segment store unavailable")

	// ErrSegmentNotFound indicates a saved segment lookup by unknown ID.
	ErrSegmentNotFound = errors.New("segment not found")

	// ErrTagNotFound indicates a tag lookup by unknown ID.
	ErrTagNotFound = errors.New("tag not found")
)
