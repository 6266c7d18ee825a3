package graph

import "errors"

var (
	// ErrBlockNotFound means a mutation targeted an id that is not in the store.
	ErrBlockNotFound = errors.New("block not found")
	// ErrKindMismatch means the targeted block exists but has the wrong kind.
	ErrKindMismatch = errors.New("block kind mismatch")
	// ErrBadPayload means a drop payload was malformed or not applicable to
	// the drop target. The operation performs no state change.
	ErrBadPayload = errors.New("bad drop payload")
)
