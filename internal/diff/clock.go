package diff

import "time"

// Clock supplies emission timestamps.
type Clock interface {
	Now() time.Time
}

// SystemClock reads wall time in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
