package opinion

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestQueryError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	qerr := &QueryError{Peer: "peer-1", Err: cause}

	assert.ErrorIs(t, qerr, cause)
	assert.Contains(t, qerr.Error(), "peer-1")
	assert.Contains(t, qerr.Error(), "connection refused")
}
