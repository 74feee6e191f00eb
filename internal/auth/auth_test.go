package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidate(t *testing.T) {
	j := NewJWT("secret")

	token, err := j.Issue("user-1", time.Hour)
	require.NoError(t, err)

	userID, err := j.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestValidateNormalizesUUIDSubject(t *testing.T) {
	j := NewJWT("secret")
	token, err := j.Issue("A0000000-0000-4000-8000-0000000000AA", time.Hour)
	require.NoError(t, err)

	userID, err := j.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "a0000000-0000-4000-8000-0000000000aa", userID)
}

func TestValidateRejectsExpired(t *testing.T) {
	j := NewJWT("secret")
	j.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := j.Issue("user-1", time.Hour)
	require.NoError(t, err)

	j.now = time.Now
	_, err = j.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := NewJWT("other").Issue("user-1", time.Hour)
	require.NoError(t, err)

	_, err = NewJWT("secret").Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsMissingSubject(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{}).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewJWT("secret").Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateEmpty(t *testing.T) {
	_, err := NewJWT("secret").Validate("")
	assert.ErrorIs(t, err, ErrMissingToken)
}
