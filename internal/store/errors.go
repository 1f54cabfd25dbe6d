package store

import "errors"

// ErrNotFound indicates a missing or unauthorized resource lookup.
var ErrNotFound = errors.New("record not found")

// ErrConflict indicates a write that would double-book a practitioner.
var ErrConflict = errors.New("conflicting appointment")
