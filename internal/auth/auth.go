// Package auth issues and validates the HS256 bearer tokens that identify callers.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"lineup-chat/internal/models"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims carries the caller identity in the subject.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenValidator resolves a bearer token to a user id.
type TokenValidator interface {
	Validate(token string) (string, error)
}

type JWT struct {
	secret []byte
	now    func() time.Time
}

func NewJWT(secret string) *JWT {
	return &JWT{secret: []byte(secret), now: time.Now}
}

// Issue signs a token for userID valid for ttl.
func (j *JWT) Issue(userID string, ttl time.Duration) (string, error) {
	now := j.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
}

func (j *JWT) Validate(tokenStr string) (string, error) {
	if tokenStr == "" {
		return "", ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims := token.Claims.(*Claims)
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return models.NormalizeUserID(claims.Subject), nil
}
