package config

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	UDPListenAddr     string  // address the telemetry listener binds to
	OutputDir         string  // directory for the per-weekend output artifacts
	AutoSaveInterval  string  // interval for the best-effort auto-save timer
	CaptureFile       string  // if set, received datagrams are appended to this file
	NatsURL           string  // if set, completed laps are published to this NATS server
	NatsSubjectPrefix string  // subject prefix for published lap records
	WearPitThreshold  float64 // negative wear delta that indicates a tyre change
	DebugPackets      bool    // if true, dropped packets/laps are logged on debug level
	LogLevel          string  // sets the log level (zap log level values)
	LogFormat         string  // text vs json
	LogConfig         string  // zapfilter rules applied to the logger
	EnableTelemetry   bool    // enable telemetry
	TelemetryEndpoint string  // endpoint for telemetry
	ProfilingPort     int     // port for profiling
)

// Config holds the configuration values which are used by the application
type Config struct {
	DebugPackets bool // if true, dropped packets/laps are logged on debug level
}
