package core

import "github.com/oklog/ulid/v2"

// NewID returns a new lexically sortable identifier for expenses and users.
func NewID() string {
	return ulid.Make().String()
}
