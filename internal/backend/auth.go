package backend

import (
	"encoding/base64"
	"fmt"
	"net/http"
)

// BasicAuth returns the value of a Basic Authorization header.
func BasicAuth(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

// ApplyAuth sets the per-request auth headers for authType on h. It is the
// generic strategy used by kinds without a server session.
func ApplyAuth(h http.Header, authType AuthType, creds *Credentials) error {
	const op = "apply auth"

	switch authType {
	case "", AuthNone:
		return nil
	case AuthBasic:
		if creds == nil || creds.Username == "" {
			return NewAuthenticationError(op, AuthMissingCredentials, 0, "basic auth requires a username and password")
		}
		h.Set("Authorization", BasicAuth(creds.Username, creds.Password))
		return nil
	case AuthBearer:
		if creds == nil || creds.Token == "" {
			return NewAuthenticationError(op, AuthMissingCredentials, 0, "bearer auth requires a token")
		}
		h.Set("Authorization", "Bearer "+creds.Token)
		return nil
	case AuthCustom:
		if creds == nil || len(creds.Headers) == 0 {
			return NewAuthenticationError(op, AuthMissingCredentials, 0, "custom auth requires at least one header")
		}
		for k, v := range creds.Headers {
			h.Set(k, v)
		}
		return nil
	default:
		return NewConfigurationError(op, fmt.Errorf("unknown auth type %q", authType))
	}
}
