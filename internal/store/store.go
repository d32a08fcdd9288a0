// Package store persists session-scoped data outside the compiler core:
// a session's static device configurations and time lanes (read once at
// the start of a run) and the per-shot results produced while running it.
// No package in the pure algebra/compiler core (timing, instr, expr, units,
// lane, channel, shotcompiler) imports this package — persistence is wired
// in only at the CLI layer.
package store

import (
	"context"
	"encoding/json"
	"time"
)

// SessionStore is the narrow persistence interface that SQLiteStore
// implements. A session groups one run's device configurations, time lanes,
// and the shot results accumulated while compiling/executing it.
type SessionStore interface {
	// SaveShotResult records one compiled shot's per-device parameters.
	// deviceParameters is already-serialized JSON per device name, so this
	// package never needs to import the device-parameter types themselves.
	SaveShotResult(ctx context.Context, sessionID string, shotIndex int, deviceParameters map[string]json.RawMessage, startedAt, finishedAt time.Time) error

	// LoadDeviceConfigs returns the session's device configuration blob
	// exactly as it was saved, for the caller to unmarshal into whatever
	// per-device configuration type it expects.
	LoadDeviceConfigs(ctx context.Context, sessionID string) (json.RawMessage, error)

	// LoadTimeLanes returns the session's time-lanes blob exactly as it was
	// saved.
	LoadTimeLanes(ctx context.Context, sessionID string) (json.RawMessage, error)
}
