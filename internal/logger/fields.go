package logger

// Standard structured-logging field keys used across the coordinator so
// that log lines stay greppable regardless of which component emitted
// them.
const (
	KeyOperation  = "op"
	KeyVersion    = "version"
	KeyAttempt    = "attempt"
	KeyClientID   = "client_id"
	KeyPath       = "path"
	KeyBackend    = "backend"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
	KeyState      = "state"
	KeyCount      = "count"
)
