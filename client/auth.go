package client

import (
	"fmt"
)

// Header names used by the release service to carry credentials.
const (
	HeaderAPIKey        = "x-releasy-api-key"
	HeaderAdminKey      = "x-releasy-admin-key"
	HeaderAuthorization = "Authorization"
)

// AuthKind identifies which authentication scheme an [Auth] carries.
type AuthKind uint8

const (
	AuthNone AuthKind = iota
	AuthAPIKey
	AuthAdminKey
	AuthOperatorJWT
)

func (k AuthKind) String() string {
	switch k {
	case AuthAPIKey:
		return "api-key"
	case AuthAdminKey:
		return "admin-key"
	case AuthOperatorJWT:
		return "operator-jwt"
	default:
		return "none"
	}
}

// Auth is the single authentication mode bound to a [Client]. Exactly one
// kind is active; the zero value sends no credentials.
//
// Tokens are forwarded verbatim. Malformed or expired tokens are rejected
// by the service and surface as an [*APIError].
type Auth struct {
	kind  AuthKind
	token string
}

// NoAuth returns an Auth that adds no credential header.
func NoAuth() Auth { return Auth{} }

// APIKey authenticates with a customer API key.
func APIKey(token string) Auth { return Auth{kind: AuthAPIKey, token: token} }

// AdminKey authenticates with the service's admin key.
func AdminKey(token string) Auth { return Auth{kind: AuthAdminKey, token: token} }

// OperatorJWT authenticates with an operator JWT sent as a bearer token.
func OperatorJWT(token string) Auth { return Auth{kind: AuthOperatorJWT, token: token} }

// Kind reports the active scheme.
func (a Auth) Kind() AuthKind { return a.kind }

// String never includes the secret.
func (a Auth) String() string {
	if a.kind == AuthNone {
		return "auth(none)"
	}
	return fmt.Sprintf("auth(%s, redacted)", a.kind)
}

// header maps the auth mode to the one header it contributes. ok is false
// for AuthNone.
func (a Auth) header() (name, value string, ok bool) {
	switch a.kind {
	case AuthAPIKey:
		return HeaderAPIKey, a.token, true
	case AuthAdminKey:
		return HeaderAdminKey, a.token, true
	case AuthOperatorJWT:
		return HeaderAuthorization, "Bearer " + a.token, true
	default:
		return "", "", false
	}
}
