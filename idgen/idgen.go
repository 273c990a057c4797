// Package idgen generates correlation identifiers for render-graph compile
// sessions and debug pass tags. Grounded on the teacher's utils/id.go
// fallback structure, with the hand-rolled hex encoding swapped for the
// pack's google/uuid dependency.
package idgen

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// New generates a random (v4) UUID string, falling back to a nanosecond
// timestamp if the system's CSPRNG is unavailable.
func New() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return id.String()
}
