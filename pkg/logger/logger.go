// Package logger provides a thin wrapper around zap for constructing the
// structured logger every subsystem in the store threads through its Config.
package logger

import (
	"os"

	"go.uber.org/zap"
)

// New builds a *zap.SugaredLogger scoped to the given service name.
//
// The encoder is chosen from the KVS_ENV environment variable: the value
// "development" uses zap's human-readable development config; any other
// value, or none, uses zap's JSON production config. Construction failures
// from zap's own config validation fall back to zap.NewNop so that callers
// never have to handle a logger construction error on the hot path.
func New(service string) *zap.SugaredLogger {
	var base *zap.Logger
	var err error

	if os.Getenv("KVS_ENV") == "development" {
		base, err = zap.NewDevelopment()
	} else {
		base, err = zap.NewProduction()
	}
	if err != nil {
		base = zap.NewNop()
	}

	return base.Sugar().With("service", service)
}
