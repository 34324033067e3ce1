// Package handlers registers the command table against an ipc.Dispatcher,
// translating each command's JSON params into a call against the
// acquisition core's components and its result back into a plain map.
// Grouped into one file per command family, mirroring the teacher's
// per-concern method registration.
package handlers

import (
	"encoding/json"
	"fmt"

	"github.com/isi-macroscope/acquisition-core/internal/ipc"
	"github.com/isi-macroscope/acquisition-core/internal/logging"
)

// decodeParams unmarshals raw into v, treating an empty/absent params
// object as a no-op so commands with no arguments don't have to special
// case it.
func decodeParams(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("handlers: invalid params: %w", err)
	}
	return nil
}

// ensureLogger substitutes a component-scoped logger when the composition
// root passes nil, matching the nil-default convention used throughout
// this module's constructors.
func ensureLogger(logger *logging.Logger) *logging.Logger {
	if logger == nil {
		return logging.NewLogger("handlers")
	}
	return logger
}

// wrap centralizes debug/error logging around a command handler, matching
// the teacher's methodWrapper pattern.
func wrap(logger *logging.Logger, command string, fn func(json.RawMessage) (interface{}, error)) ipc.Handler {
	logger = ensureLogger(logger)
	return func(params json.RawMessage) (interface{}, error) {
		logger.WithFields(logging.Fields{"command": command}).Debug("command received")
		result, err := fn(params)
		if err != nil {
			logger.WithFields(logging.Fields{"command": command}).WithError(err).Error("command failed")
			return nil, err
		}
		logger.WithFields(logging.Fields{"command": command}).Debug("command completed")
		return result, nil
	}
}

// register calls d.Register and panics on a duplicate-registration error,
// since that can only happen from a programming mistake in the
// composition root's registration order, not from runtime input.
func register(d *ipc.Dispatcher, command string, h ipc.Handler) {
	if err := d.Register(command, h); err != nil {
		panic(err)
	}
}
