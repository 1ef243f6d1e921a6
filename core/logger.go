package core

// Logger is any service that can log messages.
// args may hold an error, a map[string]interface{} of extras, or a scope value understood by the implementation.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// LogScope identifies the grading session a log entry relates to.
type LogScope struct {
	SessionID      string
	AssignmentName string
}
