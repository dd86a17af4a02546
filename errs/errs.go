// Package errs holds the error kinds shared by placement, routing and storage.
// Every failure returned by this module wraps exactly one kind, so callers
// test with errors.Is and read the message for the operation and offending id.
package errs

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrConfig: invalid or missing cluster parameters.
	ErrConfig = errors.New("config error")
	// ErrNotFound: unknown partition, node or server id.
	ErrNotFound = errors.New("not found")
	// ErrNotReady: placement queried before Init, or after a cluster change.
	ErrNotReady = errors.New("placement not ready")
	// ErrDuplicateKey: re-adding an existing id.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrRouting: a resolved node has no reachable location.
	ErrRouting = errors.New("routing error")
	// ErrInvalidKey: key is empty or longer than the configured bound.
	ErrInvalidKey = errors.New("invalid key")
	// ErrBackendUnavailable: connection or open failure against a backend.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrBackendRejected: a reachable backend failed the request itself.
	ErrBackendRejected = errors.New("backend rejected request")
)

var (
	ErrInvalidReplicationParameters = errors.Wrap(ErrConfig, "invalid replication parameters")
	ErrNoServerForNode              = errors.Wrap(ErrRouting, "no server for node")
)

// IsTransient reports whether a caller may retry the same request without
// reinitializing placement.
func IsTransient(err error) bool {
	return errors.Is(err, ErrBackendUnavailable)
}

// Kind returns the taxonomy kind err belongs to, or nil.
func Kind(err error) error {
	for _, k := range []error{ErrConfig, ErrNotFound, ErrNotReady, ErrDuplicateKey, ErrRouting, ErrInvalidKey, ErrBackendUnavailable, ErrBackendRejected} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
