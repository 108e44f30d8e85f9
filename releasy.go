// Package releasy is the entry point to the Releasy release-management
// client. The typed API lives in [github.com/adamwoolhether/releasy/client];
// an in-memory service for tests lives in
// [github.com/adamwoolhether/releasy/releasytest].
package releasy

import (
	"github.com/adamwoolhether/releasy/client"
)

// NewClient builds a client for the service at baseURL, authenticating
// every call with auth.
func NewClient(baseURL string, auth client.Auth, opts ...client.Option) (*client.Client, error) {
	return client.New(baseURL, auth, opts...)
}
