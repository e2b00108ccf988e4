// Package common defines shared constants and sentinel errors used across
// the gophauth server. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// repository specific errors
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// service specific errors
	ErrorInternal      = errors.New("internal error")
	ErrorUnauthorized  = errors.New("unauthorized")
	ErrorUnprocessable = errors.New("unprocessable token")

	// token decoding
	ErrInvalidToken = errors.New("invalid token")

	// startup configuration
	ErrorConfig = errors.New("config error")
)
