package thyerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindRetryable(t *testing.T) {
	assert.True(t, KindTimeout.Retryable())
	assert.True(t, KindRateLimited.Retryable())
	assert.True(t, KindTransient.Retryable())
	assert.False(t, KindValidation.Retryable())
	assert.False(t, KindCapabilityDenied.Retryable())
	assert.False(t, KindNotFound.Retryable())
	assert.False(t, KindInternal.Retryable())
}

func TestErrorImplementsRecoverableError(t *testing.T) {
	var err error = NotFound("branch", "feature-x")

	var re RecoverableError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "NOT_FOUND", re.ErrorCode())
	assert.Equal(t, "branch", re.Context()["resource"])
	assert.Equal(t, "feature-x", re.Context()["id"])
}

func TestErrorIsMatchesByKind(t *testing.T) {
	err := AlreadyExists("branch", "main")
	sentinel := New(KindAlreadyExists, "")
	assert.True(t, errors.Is(err, sentinel))

	other := New(KindNotFound, "")
	assert.False(t, errors.Is(err, other))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Internal("failed to write snapshot", cause)
	assert.ErrorIs(t, err, cause)
}
