package artifact

import "fmt"

var (
	// ErrNotFound is returned when no artifact of the requested kind exists
	// for the given session.
	ErrNotFound = fmt.Errorf("artifact not found")
)
