package wxwork

import (
	"errors"
	"fmt"
)

// Application error codes returned in the errcode field of every API response.
const (
	ErrCodeOK           = 0
	ErrCodeInvalidToken = 40014
	ErrCodeTokenExpired = 42001
)

// APIError is a non-zero errcode reported by the WeChat Work API. Transport
// failures are never APIErrors; they are returned as wrapped plain errors.
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wxwork: errcode %d: %s", e.Code, e.Msg)
}

// TokenInvalid reports whether the error means the access token used for the
// call is no longer accepted and a fresh one must be obtained.
func (e *APIError) TokenInvalid() bool {
	return e.Code == ErrCodeInvalidToken || e.Code == ErrCodeTokenExpired
}

// IsTokenInvalid reports whether err is an APIError carrying one of the two
// token-invalid sentinels.
func IsTokenInvalid(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.TokenInvalid()
}
