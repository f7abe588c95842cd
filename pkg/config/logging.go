package config

import (
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// SetupLogger installs the global zap logger. JSON output by default,
// console output with HUMAN_READABLE_LOGS, debug level with DEBUG.
func SetupLogger() {
	cfg := zap.NewProductionConfig()
	if viper.GetBool("HUMAN_READABLE_LOGS") {
		cfg = zap.NewDevelopmentConfig()
	}
	if viper.GetBool("DEBUG") {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	zap.ReplaceGlobals(logger)
}
