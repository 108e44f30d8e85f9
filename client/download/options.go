package download

import (
	"errors"
	"io/fs"
	"strings"
)

// Option configures Handle.
type Option func(*options) error

type options struct {
	expected     *Digest
	size         int64
	progress     func(Progress)
	logProgress  bool
	skipExisting bool
	mode         fs.FileMode
}

// WithChecksum verifies the written bytes against digest, given as
// "<algorithm>:<hex>" or bare sha256 hex.
func WithChecksum(digest string) Option {
	return func(opts *options) error {
		if digest == "" {
			return errors.New("expected checksum must not be empty")
		}

		d, err := ParseDigest(digest)
		if err != nil {
			return err
		}

		opts.expected = &d
		return nil
	}
}

// WithSHA256 verifies against a sha256 hex digest, with or without the
// "sha256:" prefix.
func WithSHA256(expected string) Option {
	expected = strings.TrimPrefix(expected, "sha256:")
	if expected == "" {
		return WithChecksum("")
	}
	return WithChecksum("sha256:" + expected)
}

// WithExpectedSize rejects a body that is not exactly n bytes, independent
// of any Content-Length the server sent. Non-positive n disables the check.
func WithExpectedSize(n int64) Option {
	return func(opts *options) error {
		opts.size = n
		return nil
	}
}

// WithProgress logs progress at info level through the logger given to
// Handle, at most once a second and once on completion.
func WithProgress() Option {
	return func(opts *options) error {
		opts.logProgress = true
		return nil
	}
}

// WithProgressFunc calls fn with the same cadence as WithProgress. fn runs
// on the copying goroutine and should return quickly.
func WithProgressFunc(fn func(Progress)) Option {
	return func(opts *options) error {
		if fn == nil {
			return errors.New("progress func must not be nil")
		}

		opts.progress = fn
		return nil
	}
}

// WithSkipExisting makes Handle return without reading the body when the
// destination already exists.
func WithSkipExisting() Option {
	return func(opts *options) error {
		opts.skipExisting = true
		return nil
	}
}

// WithMode sets the permission bits of the final file. Default is 0644.
func WithMode(mode fs.FileMode) Option {
	return func(opts *options) error {
		if mode&^fs.ModePerm != 0 {
			return errors.New("mode must only carry permission bits")
		}

		opts.mode = mode
		return nil
	}
}
