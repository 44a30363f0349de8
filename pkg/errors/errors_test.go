package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedError(t *testing.T) {
	err := fmt.Errorf("login: %w", Clone(ErrInvalidCredentials, ""))

	appErr := FromError(err)
	assert.Equal(t, ErrInvalidCredentials.Code, appErr.Code)
	assert.Equal(t, http.StatusUnauthorized, appErr.Status)
}

func TestFromErrorWrapsUnknownAsInternal(t *testing.T) {
	appErr := FromError(errors.New("pq: connection refused"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, ErrInternal.Message, appErr.Message)
}

func TestClonedErrorMatchesSentinel(t *testing.T) {
	err := Clone(ErrTokenInvalid, "refresh token missing")
	assert.True(t, errors.Is(err, ErrTokenInvalid))
	assert.False(t, errors.Is(err, ErrInvalidCredentials))
}

func TestUnavailableHidesCause(t *testing.T) {
	cause := errors.New("dial tcp: i/o timeout")
	err := Unavailable(cause)
	assert.Equal(t, http.StatusServiceUnavailable, err.Status)
	assert.ErrorIs(t, err, cause)
	assert.NotContains(t, err.Message, "i/o timeout")
}
