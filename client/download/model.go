package download

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strings"
	"time"
)

var (
	ErrContentLengthMismatch = errors.New("content length mismatch")
	ErrChecksumMismatch      = errors.New("checksum mismatch")
	ErrDownloadCancelled     = errors.New("download cancelled")
	ErrInvalidDigest         = errors.New("invalid digest")
)

// Error wraps a sentinel with the observed mismatch.
type Error struct {
	Path   string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v: %s", e.Path, e.Err, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Digest is a content digest in the "<algorithm>:<hex>" form artifacts are
// recorded with.
type Digest struct {
	Algorithm string
	Hex       string
}

var digestSizes = map[string]int{
	"sha256": sha256.Size,
	"sha512": sha512.Size,
}

// ParseDigest parses "sha256:<hex>", "sha512:<hex>" or a bare sha256 hex
// string. Hex is normalized to lower case.
func ParseDigest(s string) (Digest, error) {
	algo, hexPart, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		algo, hexPart = "sha256", algo
	}
	algo = strings.ToLower(algo)

	size, known := digestSizes[algo]
	if !known {
		return Digest{}, fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidDigest, algo)
	}

	raw, err := hex.DecodeString(hexPart)
	if err != nil || len(raw) != size {
		return Digest{}, fmt.Errorf("%w: %q is not a %s digest", ErrInvalidDigest, s, algo)
	}

	return Digest{Algorithm: algo, Hex: hex.EncodeToString(raw)}, nil
}

func (d Digest) String() string {
	if d.Hex == "" {
		return ""
	}
	return d.Algorithm + ":" + d.Hex
}

func (d Digest) newHash() hash.Hash {
	if d.Algorithm == "sha512" {
		return sha512.New()
	}
	return sha256.New()
}

// Result describes a completed download.
type Result struct {
	Path  string
	Bytes int64

	// Digest is computed over the written bytes with the expected
	// checksum's algorithm, or sha256 when none was given.
	Digest Digest

	// Skipped is set when WithSkipExisting found the destination present;
	// nothing was read and Bytes and Digest are zero.
	Skipped bool
}

// Progress is a snapshot of a running download.
type Progress struct {
	Transferred int64
	Total       int64 // negative when unknown
	Elapsed     time.Duration
}

// Percent is the completed share in [0, 100], or -1 when the total is unknown.
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return -1
	}
	return float64(p.Transferred) / float64(p.Total) * 100
}

func (p Progress) BytesPerSecond() float64 {
	return float64(p.Transferred) / max(p.Elapsed.Seconds(), 0.001)
}
