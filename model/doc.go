// Package model defines core types shared throughout Tessera.
//
// # Regions
//
//   - Range: a closed integer interval [Lo, Hi] on one dimension
//   - Region: one Range per dimension, in domain order
//
// # Session Modes
//
//   - ModeRead: any number of concurrent readers, each pinned to a snapshot
//   - ModeWrite: at most one writer per array at a time
//
// # Error Kinds
//
// Every error returned by Tessera wraps exactly one of the kind sentinels
// (ErrSchema, ErrDomain, ErrShapeMismatch, ErrConcurrency, ErrNotFound,
// ErrStorageIO), so callers can classify failures with errors.Is:
//
//	if errors.Is(err, model.ErrStorageIO) {
//	    // retry
//	}
package model
