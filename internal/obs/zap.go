// Package obs constructs this module's loggers.
package obs

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewDevLogger returns a human-readable, colorized logger suitable for
// local runs of cmd/feedsim and cmd/wsfeed.
func NewDevLogger() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableCaller = true

	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}

// NewProdLogger returns a JSON logger tuned for production deployment.
func NewProdLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableCaller = true

	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}

// ForConnection scopes logger to one feed connection, stamping every
// subsequent log line it produces with connection_id so a single
// pipeline's log output can be grepped out of a multi-connection
// process without threading the id through every call site by hand.
func ForConnection(logger *zap.Logger, connectionID string) *zap.Logger {
	return logger.With(zap.String("connection_id", connectionID))
}
