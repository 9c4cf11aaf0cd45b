// Package metrics declares the coordinator's metrics surface. A nil
// Metrics value is valid everywhere it is accepted and results in
// zero overhead; pkg/metrics/prometheus supplies the real
// implementation when enabled.
package metrics

import "time"

// Metrics records coordinator activity. Callers should use the
// package-level helpers below, which guard against a nil Metrics;
// the prometheus implementation's methods do not accept a nil receiver.
type Metrics interface {
	CommitAttempt()
	CommitSuccess()
	CommitConflict()
	ObservePhase(phase string, d time.Duration)
	SetTrackerBacklog(n int)
	SetArchiveBacklog(n int)
}

// CommitAttempt records the start of a commit attempt.
func CommitAttempt(m Metrics) {
	if m != nil {
		m.CommitAttempt()
	}
}

// CommitSuccess records a published commit.
func CommitSuccess(m Metrics) {
	if m != nil {
		m.CommitSuccess()
	}
}

// CommitConflict records a commit that failed with
// ErrConcurrentModification.
func CommitConflict(m Metrics) {
	if m != nil {
		m.CommitConflict()
	}
}

// ObservePhase records how long a named protocol phase took.
func ObservePhase(m Metrics, phase string, d time.Duration) {
	if m != nil {
		m.ObservePhase(phase, d)
	}
}

// SetTrackerBacklog records the current size of tracker/.
func SetTrackerBacklog(m Metrics, n int) {
	if m != nil {
		m.SetTrackerBacklog(n)
	}
}

// SetArchiveBacklog records the current size of archive/.
func SetArchiveBacklog(m Metrics, n int) {
	if m != nil {
		m.SetArchiveBacklog(n)
	}
}
