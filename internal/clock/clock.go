package clock

import "time"

// Clock abstracts time so expiry logic can be tested deterministically.
// All callers operate in UTC.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
