package domain

import "errors"

var (
	// ErrUnauthenticated covers every way a request can fail to present a
	// usable session: no token, a malformed token or an expired one.
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrTokenExpired    = errors.New("token expired")
	ErrInvalidToken    = errors.New("invalid token")
)
