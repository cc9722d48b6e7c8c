package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// Warnf carries warnings about degraded or skipped work, such as a scene
// passing through the perturbation unchanged. It defaults to log.Printf with a
// WARN prefix and may be replaced by SetWarnLogger.
var Warnf func(format string, v ...interface{}) = func(format string, v ...interface{}) {
	log.Printf("WARN: "+format, v...)
}

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetWarnLogger replaces the warning logger. Passing nil will set a no-op logger.
func SetWarnLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Warnf = func(string, ...interface{}) {}
		return
	}
	Warnf = f
}
