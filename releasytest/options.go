package releasytest

import "log/slog"

// Option configures a Server.
type Option func(*options)

type options struct {
	adminKey    string
	operatorJWT string
	logger      *slog.Logger
	tls         bool
}

// WithAdminKey sets the admin secret accepted in x-releasy-admin-key.
func WithAdminKey(key string) Option {
	return func(opts *options) {
		opts.adminKey = key
	}
}

// WithOperatorJWT makes the Server accept "Authorization: Bearer <token>"
// on admin endpoints.
func WithOperatorJWT(token string) Option {
	return func(opts *options) {
		opts.operatorJWT = token
	}
}

// WithLogger sets the logger used for request logs and handler errors.
// Logs are discarded by default.
func WithLogger(log *slog.Logger) Option {
	return func(opts *options) {
		if log != nil {
			opts.logger = log
		}
	}
}

// WithTLS serves over HTTPS with a self-signed certificate.
func WithTLS() Option {
	return func(opts *options) {
		opts.tls = true
	}
}
