package auth

import "errors"

// ErrIdentityInvalid means the remote refused to issue a token for the
// stored identity; the user has to go through the interactive login again.
var ErrIdentityInvalid = errors.New("auth: identity is no longer valid")

// Identity is the pipeline's final output, handed to the host for account
// linking. Only Data changes afterwards, via RefreshIdentity.
type Identity struct {
	ID    string       `json:"id"`
	Email string       `json:"email"`
	Name  string       `json:"name"`
	Data  IdentityData `json:"data"`
}

type IdentityData struct {
	AccessToken string `json:"access_token"`
	Expires     int64  `json:"expires"`
}
