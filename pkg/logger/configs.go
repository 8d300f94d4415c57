package logger

// Log levels accepted by Config.Level.
const (
	Debug   = "debug"
	Info    = "info"
	Warning = "warning"
	Error   = "error"
)

// Config holds configuration for the logger.
type Config struct {
	// Level is the minimum level that will be emitted. One of the
	// Debug/Info/Warning/Error constants; anything else falls back to Info.
	Level string

	// ServiceName is attached to every log entry as the "service" field
	ServiceName string
}
