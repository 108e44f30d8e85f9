package upload_test

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/adamwoolhether/releasy/client/upload"
	"github.com/google/go-cmp/cmp"
)

func TestPrepare(t *testing.T) {
	dir := t.TempDir()
	data := []byte("release payload")
	path := filepath.Join(dir, "app-linux-amd64.tar.gz")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := upload.Prepare(path)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	digest := sha256.Sum256(data)
	exp := &upload.Payload{
		Path:        path,
		Name:        "app-linux-amd64.tar.gz",
		Size:        int64(len(data)),
		SHA256:      hex.EncodeToString(digest[:]),
		ContentType: "application/gzip",
	}

	// mime tables vary by host; only the fallback is fixed.
	if got.ContentType == "" {
		t.Error("content type must not be empty")
	}
	got.ContentType = exp.ContentType

	if diff := cmp.Diff(exp, got); diff != "" {
		t.Errorf("payload mismatch (-exp +got):\n%s", diff)
	}
	if got.Checksum() != "sha256:"+exp.SHA256 {
		t.Errorf("unexpected checksum form %q", got.Checksum())
	}
}

func TestPrepare_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := upload.Prepare(dir); !errors.Is(err, upload.ErrNotRegular) {
		t.Errorf("directory: exp ErrNotRegular, got %v", err)
	}

	if _, err := upload.Prepare(filepath.Join(dir, "missing")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing: exp ErrNotExist, got %v", err)
	}
}

func TestPayload_Open(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob")
	data := []byte("0123456789")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	p, err := upload.Prepare(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.ContentType != "application/octet-stream" {
		t.Errorf("exp octet-stream fallback, got %q", p.ContentType)
	}

	for name, logger := range map[string]*slog.Logger{
		"plain":    nil,
		"progress": slog.New(slog.DiscardHandler),
	} {
		t.Run(name, func(t *testing.T) {
			rc, err := p.Open(logger)
			if err != nil {
				t.Fatal(err)
			}
			defer rc.Close()

			got, err := io.ReadAll(rc)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(data, got); diff != "" {
				t.Errorf("content mismatch (-exp +got):\n%s", diff)
			}
		})
	}
}
