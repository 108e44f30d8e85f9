// Package upload prepares a local file for a presigned artifact upload: it
// measures the file, computes its sha256 digest and streams it back with
// optional progress logging.
package upload

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"time"
)

// ErrNotRegular is returned by [Prepare] for directories and other
// non-regular files.
var ErrNotRegular = errors.New("not a regular file")

// Payload describes a file ready to be sent to a storage endpoint.
type Payload struct {
	Path        string
	Name        string
	Size        int64
	SHA256      string
	ContentType string
}

// Checksum returns the digest in the "sha256:<hex>" form the release
// service stores on artifacts.
func (p *Payload) Checksum() string {
	return "sha256:" + p.SHA256
}

// Prepare stats and hashes the file at path.
func Prepare(path string) (*Payload, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat payload: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: %w", path, ErrNotRegular)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening payload: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return nil, fmt.Errorf("hashing payload: %w", err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	p := Payload{
		Path:        path,
		Name:        filepath.Base(path),
		Size:        n,
		SHA256:      hex.EncodeToString(h.Sum(nil)),
		ContentType: contentType,
	}

	return &p, nil
}

// Open returns a reader over the payload. When logger is non-nil, progress
// is logged at most once per second and once on completion. The caller
// closes the returned reader.
func (p *Payload) Open(logger *slog.Logger) (io.ReadCloser, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		return nil, fmt.Errorf("opening payload: %w", err)
	}

	if logger == nil {
		return f, nil
	}

	pr := progressReader{
		ReadCloser: f,
		logger:     logger.With("file", p.Name),
		total:      p.Size,
		startTime:  time.Now(),
	}

	return &pr, nil
}

// progressReader mirrors the download progress writer on the read side.
type progressReader struct {
	io.ReadCloser
	logger    *slog.Logger
	sent      int64
	total     int64
	startTime time.Time
	lastLog   time.Time
	done      bool
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.ReadCloser.Read(p)
	pr.sent += int64(n)

	if time.Since(pr.lastLog) >= time.Second {
		pr.lastLog = time.Now()
		pr.log("uploading")
	}

	if !pr.done && (pr.sent == pr.total || errors.Is(err, io.EOF)) {
		pr.done = true
		pr.log("upload read complete")
	}

	return n, err
}

func (pr *progressReader) log(msg string) {
	elapsed := time.Since(pr.startTime)
	attrs := []any{
		"elapsed", elapsed.Round(time.Millisecond),
		"sent", pr.sent,
		"total", pr.total,
	}
	if pr.total > 0 {
		attrs = append(attrs, "progress", fmt.Sprintf("%.1f%%", float64(pr.sent)/float64(pr.total)*100))
	}
	pr.logger.Info(msg, attrs...)
}
