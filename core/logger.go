package core

// Logger is the application-wide structured logging contract.
// args may include an error, a map of extra fields and/or a user value;
// implementations decide how to report them.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
