// Package pagination implements opaque cursor tokens for list endpoints.
package pagination

import "errors"

// Cursor captures the Firestore ordering values a page continues from. Exactly
// one of StartAfter or StartAt is populated.
type Cursor struct {
	StartAfter []any `json:"startAfter,omitempty"`
	StartAt    []any `json:"startAt,omitempty"`
}

// ErrInvalidPageToken indicates the supplied page token could not be decoded.
var ErrInvalidPageToken = errors.New("pagination: invalid pageToken")
