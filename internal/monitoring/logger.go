// Package monitoring carries the diagnostic logging seam shared by the
// library packages. Binaries keep the default log.Printf; tests mute or
// capture it with SetLogger.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. Library code that wants
// to report progress (migrations, long-running maintenance) calls this
// instead of binding log directly.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op
// logger. Not safe to call concurrently with logging; set it once at
// startup or in TestMain.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
