package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidState = errors.New("invalid oauth state")
	ErrExpiredState = errors.New("oauth state expired")
)

// StateSigner issues and checks the short-lived OAuth state tokens.
type StateSigner struct {
	secret []byte
}

// NewStateSigner creates a signer keyed with the session secret.
func NewStateSigner(secret []byte) *StateSigner {
	return &StateSigner{secret: secret}
}

// Generate signs nonce into an HS256 token valid for expiresIn.
func (s *StateSigner) Generate(nonce string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": nonce,
		"iat": now.Unix(),
		"exp": now.Add(expiresIn).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify validates the token and returns the nonce it carries.
func (s *StateSigner) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredState
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	if !token.Valid {
		return "", ErrInvalidState
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidState
	}

	nonce, ok := claims["sub"].(string)
	if !ok || nonce == "" {
		return "", fmt.Errorf("%w: missing sub", ErrInvalidState)
	}
	return nonce, nil
}
