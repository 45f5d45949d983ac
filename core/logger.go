package core

// Logger is implemented by every log sink of the app.
// args may carry errors, map[string]interface{} extras or the acting teacher's Identity.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Identity is the authenticated dashboard user attached to log entries.
type Identity struct {
	ID      string
	Name    string
	IsAdmin bool
}
