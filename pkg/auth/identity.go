// Package auth authenticates inbound MCP connections and carries the
// resulting identity to the tool caller through the request context.
package auth

import (
	"context"
	"errors"
)

var (
	// ErrAuthenticationFailed is returned when no validator accepts a request
	// or a validator rejects it outright.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrKeyFetchFailed is returned when the JWT verification key cannot be
	// retrieved from the issuing server.
	ErrKeyFetchFailed = errors.New("failed to get the jwt public key")
	// ErrInvalidToken is returned when a JWT does not decode or verify.
	ErrInvalidToken = errors.New("failed to decode jwt token")
)

// NopHeaderName is the credential header name of the synthetic nop identity.
// It is never forwarded to backends.
const NopHeaderName = "nop"

// Identity is the authenticated caller of one inbound request.
type Identity struct {
	// Principal is the user name, or a fixed label for opaque credentials.
	Principal string `json:"principal"`
	// HeaderName and HeaderValue are the credential to forward to backends.
	HeaderName  string `json:"header_name"`
	HeaderValue string `json:"-"`
	// ServerURL is the server that issued the credential.
	ServerURL  string `json:"server_url"`
	VerifyCert bool   `json:"verify_cert"`
}

// Headers returns the credential headers to send with backend requests.
func (i *Identity) Headers() map[string]string {
	headers := map[string]string{}
	if i == nil || i.HeaderName == "" || i.HeaderName == NopHeaderName {
		return headers
	}
	headers[i.HeaderName] = i.HeaderValue
	return headers
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity stored in ctx, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}
