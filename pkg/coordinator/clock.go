package coordinator

import "time"

// Clock supplies the coordinator's notion of "now". Adjudication and
// archival compare stored lastModified timestamps (which come from
// the storage backend, not the local machine) against a deadline
// derived from this clock, so tests can simulate TTL expiry without
// sleeping.
type Clock interface {
	Now() time.Time
}

// systemClock is the default Clock, backed by time.Now.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the default Clock backed by the machine's wall
// clock.
func SystemClock() Clock { return systemClock{} }
