package apperr

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("send message: %w", Unauthorized("not a participant"))

	assert.Equal(t, KindUnauthorized, KindOf(err))
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "not a participant", MessageOf(err))
}

func TestStoreUnavailableIsRetryable(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	err := StoreUnavailable("list messages", cause)

	assert.True(t, Retryable(err))
	assert.ErrorIs(t, err, cause)
	assert.False(t, Retryable(NotFound("thread not found")))
}

func TestUnknownErrorsAreInternal(t *testing.T) {
	err := fmt.Errorf("boom")

	require.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "internal error", MessageOf(err))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(KindOf(err)))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindNotFound:         http.StatusNotFound,
		KindUnauthorized:     http.StatusForbidden,
		KindValidation:       http.StatusBadRequest,
		KindConflict:         http.StatusConflict,
		KindStoreUnavailable: http.StatusInternalServerError,
		KindPartialCreation:  http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, HTTPStatus(kind), kind)
	}
}
