// Package logger builds the process-wide zap logger.
package logger

import "go.uber.org/zap"

// New returns a zap logger appropriate for env: JSON output in production,
// console output otherwise. The caller owns Sync on shutdown.
func New(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
