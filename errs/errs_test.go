package errs

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestSubKindsMatchParent(t *testing.T) {
	err := errors.Wrapf(ErrInvalidReplicationParameters, "DYNAMO: serverCount(2) >= requestedFactor(3)")
	assert.True(t, errors.Is(err, ErrInvalidReplicationParameters))
	assert.True(t, errors.Is(err, ErrConfig))
	assert.False(t, errors.Is(err, ErrRouting))
	assert.Contains(t, err.Error(), "serverCount(2)")

	err = errors.Wrapf(ErrNoServerForNode, "pickServer: node 3")
	assert.True(t, errors.Is(err, ErrRouting))
	assert.Equal(t, ErrRouting, Kind(err))
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"backend", errors.Wrap(ErrBackendUnavailable, "open 127.0.0.1:9000"), true},
		{"config", errors.Wrap(ErrConfig, "partitionCount"), false},
		{"rejected", errors.Wrap(ErrBackendRejected, "put: disk full"), false},
		{"not ready", ErrNotReady, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
