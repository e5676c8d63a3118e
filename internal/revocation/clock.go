package revocation

import "time"

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

type realClock struct{}

// Now returns the current time.
func (realClock) Now() time.Time {
	return time.Now()
}
