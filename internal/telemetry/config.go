package telemetry

// Config holds OpenTelemetry configuration for tracing commit
// attempts.
type Config struct {
	// Enabled indicates whether tracing is enabled.
	Enabled bool

	// ServiceName is reported to the trace backend.
	ServiceName string

	// ServiceVersion is reported alongside ServiceName.
	ServiceVersion string

	// Endpoint is the OTLP gRPC collector endpoint, e.g. "localhost:4317".
	Endpoint string

	// Insecure disables TLS on the OTLP connection.
	Insecure bool

	// SampleRate is the trace sampling rate, 0.0 to 1.0.
	SampleRate float64
}

// DefaultConfig returns tracing disabled by default, matching the
// coordinator's opt-in telemetry stance.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "commitcoord",
		ServiceVersion: "dev",
		Endpoint:       "localhost:4317",
		Insecure:       true,
		SampleRate:     1.0,
	}
}
