package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRefreshToken is returned when a refresh is attempted without a stored refresh token.
	ErrNoRefreshToken = errors.New("auth: no refresh token")
	// ErrRefreshFailed is returned when the refresh endpoint rejects the refresh token.
	ErrRefreshFailed = errors.New("auth: refresh token rejected")
	// ErrSessionExpired is returned after a failed refresh; stored tokens have been cleared.
	ErrSessionExpired = errors.New("auth: session expired, please log in again")
	// ErrBadResponse is returned when the server claims JSON but sends something else.
	ErrBadResponse = errors.New("auth: malformed server response")
	// ErrCooldown is returned when a verification code was requested too recently.
	ErrCooldown = errors.New("auth: verification code requested too recently")
)

// APIError carries a non-success envelope back to callers that want an error
// instead of inspecting Response.Code.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("auth: api error %d: %s", e.Code, e.Message)
}
