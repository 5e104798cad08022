package vault

import "time"

// Clock supplies the ledger time, in unix seconds, used for activity and
// expiry checks.
type Clock interface {
	Now() int64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current unix time in seconds.
func (SystemClock) Now() int64 {
	return time.Now().Unix()
}
