package bptree

import "errors"

// Error kinds returned by the index. Callers should compare with errors.Is.
var (
	ErrNotFound      = errors.New("bptree: not found")
	ErrConflict      = errors.New("bptree: key already present")
	ErrOutOfSpace    = errors.New("bptree: free list exhausted")
	ErrOutOfBounds   = errors.New("bptree: slot index out of bounds")
	ErrInsane        = errors.New("bptree: on-disk invariant violated")
	ErrUnimplemented = errors.New("bptree: unimplemented")
)
