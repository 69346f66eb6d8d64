package logger

// Logger is the logging contract of the allocation core. The *w variants
// attach structured fields, used where a line is meant to be queried later
// (per-cycle details, reconfigurations).
type Logger interface {
	Debugf(format string, args ...any)
	Debugw(msg string, fields map[string]any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Warnw(msg string, fields map[string]any)
	Errorf(format string, args ...any)
}
