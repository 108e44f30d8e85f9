package download

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Handle streams body to destPath. The bytes land in a temp file in the
// destination directory that is renamed over destPath only after every
// check passes; on failure it is removed and destPath is left untouched.
// A negative contentLength skips the Content-Length check.
func Handle(ctx context.Context, body io.Reader, contentLength int64, destPath string, logger *slog.Logger, optFns ...Option) (*Result, error) {
	if destPath == "" {
		return nil, errors.New("destPath must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := options{mode: 0o644}
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}

	if opts.skipExisting {
		if _, err := os.Stat(destPath); err == nil {
			logger.InfoContext(ctx, "skipping existing file", "path", destPath)
			return &Result{Path: destPath, Skipped: true}, nil
		}
	}

	file, err := os.CreateTemp(filepath.Dir(destPath), ".releasy-dl-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}

	var successful bool
	defer func() {
		if err := file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			logger.Error("defer closing temp file", "error", err)
		}
		if !successful {
			if err := os.Remove(file.Name()); err != nil {
				logger.Error("failed to remove temp file", "error", err)
			}
		}
	}()

	digest := Digest{Algorithm: "sha256"}
	if opts.expected != nil {
		digest.Algorithm = opts.expected.Algorithm
	}
	h := digest.newHash()

	var w io.Writer = io.MultiWriter(file, h)
	var report func(Progress)
	if opts.logProgress {
		report = logProgress(ctx, logger, destPath)
	}
	if report = both(report, opts.progress); report != nil {
		w = newProgressWriter(w, contentLength, report)
	}

	n, err := io.Copy(w, &contextReader{ctx: ctx, r: body})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", ErrDownloadCancelled, err)
		}
		return nil, fmt.Errorf("copying body: %w", err)
	}

	if contentLength >= 0 && n != contentLength {
		return nil, &Error{Path: destPath, Err: ErrContentLengthMismatch, Detail: fmt.Sprintf("content-length %d, received %d", contentLength, n)}
	}
	if opts.size > 0 && n != opts.size {
		return nil, &Error{Path: destPath, Err: ErrContentLengthMismatch, Detail: fmt.Sprintf("expected %d bytes, received %d", opts.size, n)}
	}

	digest.Hex = hex.EncodeToString(h.Sum(nil))
	if opts.expected != nil && digest != *opts.expected {
		return nil, &Error{Path: destPath, Err: ErrChecksumMismatch, Detail: fmt.Sprintf("expected %s, got %s", opts.expected, digest)}
	}

	if err := file.Chmod(opts.mode); err != nil {
		return nil, fmt.Errorf("setting file mode: %w", err)
	}
	if err := file.Sync(); err != nil {
		return nil, fmt.Errorf("syncing temp file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(file.Name(), destPath); err != nil {
		return nil, fmt.Errorf("renaming temp file: %w", err)
	}

	successful = true

	return &Result{Path: destPath, Bytes: n, Digest: digest}, nil
}

// contextReader stops a copy as soon as ctx ends, even when the underlying
// reader would keep producing data.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
