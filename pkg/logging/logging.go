// Package logging provides thin helpers around the global zap logger
// installed by config.SetupLogger.
package logging

import (
	"go.uber.org/zap"
)

// Debugf logs a formatted debug message
func Debugf(format string, args ...interface{}) {
	zap.S().Debugf(format, args...)
}

// Infof logs a formatted info message
func Infof(format string, args ...interface{}) {
	zap.S().Infof(format, args...)
}

// Warnf logs a formatted warning message
func Warnf(format string, args ...interface{}) {
	zap.S().Warnf(format, args...)
}

// Errorf logs err together with a formatted message
func Errorf(err error, format string, args ...interface{}) {
	zap.S().With(zap.Error(err)).Errorf(format, args...)
}

// Fatalf logs err together with a formatted message and exits
func Fatalf(err error, format string, args ...interface{}) {
	zap.S().With(zap.Error(err)).Fatalf(format, args...)
}
