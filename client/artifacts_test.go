package client_test

import (
	"bytes"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/adamwoolhether/releasy/client"
	"github.com/adamwoolhether/releasy/opt"
	"github.com/adamwoolhether/releasy/releasytest"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}

	return path
}

func storagePuts(srv *releasytest.Server) []releasytest.Request {
	var out []releasytest.Request
	for _, r := range srv.Requests() {
		if r.Method == http.MethodPut && strings.HasPrefix(r.Path, "/_storage/") {
			out = append(out, r)
		}
	}
	return out
}

func TestUploadArtifactFile(t *testing.T) {
	srv := newServer(t)
	c := adminClient(srv)
	rel := srv.SeedRelease("relay", "1.4.0")
	data := bytes.Repeat([]byte("relay-binary;"), 1000)
	path := writeFile(t, "relay-linux-amd64.bin", data)

	u, err := c.UploadArtifactFile(t.Context(), rel.ID, path, client.ArtifactMetadata{Platform: opt.Some("linux/amd64")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if u.State() != client.UploadUploaded {
		t.Fatalf("state = %s, want uploaded", u.State())
	}
	if u.ReleaseID() != rel.ID {
		t.Errorf("release id = %q, want %q", u.ReleaseID(), rel.ID)
	}

	desc := u.Descriptor()
	if desc.Filename != "relay-linux-amd64.bin" || desc.Platform != "linux/amd64" || desc.Size != int64(len(data)) {
		t.Errorf("unexpected descriptor: %+v", desc)
	}
	if !strings.HasPrefix(desc.Checksum, "sha256:") {
		t.Errorf("checksum should be filled from the file, got %q", desc.Checksum)
	}

	res := u.Result()
	if res.StatusCode != http.StatusOK || res.BytesSent != int64(len(data)) || res.ETag == "" {
		t.Errorf("unexpected upload result: %+v", res)
	}
	if !u.Presigned().Consumed() {
		t.Error("target should be consumed after the upload")
	}

	stored, ok := srv.Artifact(desc.ID)
	if !ok {
		t.Fatal("artifact not stored")
	}
	if !bytes.Equal(stored, data) {
		t.Error("stored bytes differ from the file")
	}

	puts := storagePuts(srv)
	if len(puts) != 1 {
		t.Fatalf("expected one storage request, got %d", len(puts))
	}
	for _, h := range []string{client.HeaderAdminKey, client.HeaderAPIKey, client.HeaderAuthorization} {
		if v := puts[0].Header.Get(h); v != "" {
			t.Errorf("storage request carried %s=%q", h, v)
		}
	}
	if puts[0].Header.Get(releasytest.UploadTokenHeader) == "" {
		t.Error("storage request is missing the presigned headers")
	}
}

func TestUploadArtifactFile_Errors(t *testing.T) {
	srv := newServer(t)
	c := adminClient(srv)
	path := writeFile(t, "a.bin", []byte("abc"))

	t.Run("missingFile", func(t *testing.T) {
		u, err := c.UploadArtifactFile(t.Context(), "rel", filepath.Join(t.TempDir(), "nope"), client.ArtifactMetadata{})
		if err == nil || u != nil {
			t.Fatalf("expected an error and no upload, got %v, %v", u, err)
		}
	})

	t.Run("unknownRelease", func(t *testing.T) {
		u, err := c.UploadArtifactFile(t.Context(), "missing-release", path, client.ArtifactMetadata{})
		if !client.IsNotFound(err) {
			t.Fatalf("expected not found, got %v", err)
		}
		if u != nil {
			t.Error("no upload should be returned when registration fails")
		}
	})

	t.Run("checksumRejected", func(t *testing.T) {
		rel := srv.SeedRelease("relay", "2.0.0")

		u, err := c.UploadArtifactFile(t.Context(), rel.ID, path, client.ArtifactMetadata{Checksum: opt.Some("sha256:00")})

		upErr, ok := errors.AsType[*client.UploadError](err)
		if !ok {
			t.Fatalf("expected *UploadError, got %T: %v", err, err)
		}
		if upErr.StatusCode != http.StatusBadRequest || !strings.Contains(upErr.Body, "BadDigest") {
			t.Errorf("unexpected upload error: %v", upErr)
		}
		if u == nil || u.State() != client.UploadPresigned || u.Result() != nil {
			t.Errorf("upload should remain presigned: %+v", u)
		}
	})
}

func TestUpload_StorageRejects(t *testing.T) {
	srv := newServer(t)
	c := adminClient(srv)
	rel := srv.SeedRelease("relay", "1.0.0")
	data := []byte("payload")

	u, err := c.StartArtifactUpload(t.Context(), rel.ID, client.ArtifactMetadata{Filename: "relay.bin"})
	if err != nil {
		t.Fatalf("registering: %v", err)
	}
	if err := c.Presign(t.Context(), u); err != nil {
		t.Fatalf("presigning: %v", err)
	}
	first := u.Presigned()

	const denied = `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code></Error>`
	srv.FailNext(http.MethodPut, "/_storage/"+u.Descriptor().ObjectKey, http.StatusForbidden, denied)

	err = c.Upload(t.Context(), u, bytes.NewReader(data), int64(len(data)))

	upErr, ok := errors.AsType[*client.UploadError](err)
	if !ok {
		t.Fatalf("expected *UploadError, got %T: %v", err, err)
	}
	if upErr.StatusCode != http.StatusForbidden || upErr.Body != denied || upErr.ArtifactID != u.Descriptor().ID {
		t.Errorf("unexpected upload error: %+v", upErr)
	}
	if !errors.Is(err, client.ErrUploadRejected) {
		t.Error("expected ErrUploadRejected")
	}
	if _, ok := errors.AsType[*client.APIError](err); ok {
		t.Error("storage failures must not be reported as APIError")
	}
	if got, ok := client.StatusCode(err); !ok || got != http.StatusForbidden {
		t.Errorf("StatusCode() = %d, %v", got, ok)
	}

	if u.State() != client.UploadPresigned || u.Result() != nil {
		t.Fatalf("failed upload changed state to %s", u.State())
	}

	t.Run("specConsumed", func(t *testing.T) {
		before := len(srv.Requests())

		err := c.Upload(t.Context(), u, bytes.NewReader(data), int64(len(data)))
		if !errors.Is(err, client.ErrUploadConsumed) {
			t.Fatalf("expected ErrUploadConsumed, got %v", err)
		}
		if after := len(srv.Requests()); after != before {
			t.Errorf("a consumed target must not reach storage: %d requests sent", after-before)
		}
	})

	t.Run("represignAndRetry", func(t *testing.T) {
		if err := c.Presign(t.Context(), u); err != nil {
			t.Fatalf("re-presigning: %v", err)
		}
		if u.Presigned() == first {
			t.Fatal("expected a fresh target")
		}

		if err := c.Upload(t.Context(), u, bytes.NewReader(data), int64(len(data))); err != nil {
			t.Fatalf("retrying upload: %v", err)
		}
		if u.State() != client.UploadUploaded {
			t.Errorf("state = %s, want uploaded", u.State())
		}

		stored, _ := srv.Artifact(u.Descriptor().ID)
		if diff := cmp.Diff(data, stored); diff != "" {
			t.Errorf("stored bytes mismatch (-exp +got):\n%s", diff)
		}
	})
}

func TestUpload_Expired(t *testing.T) {
	srv := newServer(t)
	c := adminClient(srv)
	rel := srv.SeedRelease("relay", "1.0.0")
	data := []byte("late payload")

	u, err := c.StartArtifactUpload(t.Context(), rel.ID, client.ArtifactMetadata{Filename: "late.bin"})
	if err != nil {
		t.Fatalf("registering: %v", err)
	}
	if err := c.Presign(t.Context(), u); err != nil {
		t.Fatalf("presigning: %v", err)
	}

	later := time.Now().Add(time.Hour)
	srv.SetClock(func() time.Time { return later })

	if !u.Presigned().Expired(later) {
		t.Error("target should report expiry")
	}

	err = c.Upload(t.Context(), u, bytes.NewReader(data), int64(len(data)))

	upErr, ok := errors.AsType[*client.UploadError](err)
	if !ok {
		t.Fatalf("expected *UploadError, got %T: %v", err, err)
	}
	if upErr.StatusCode != http.StatusForbidden || !strings.Contains(upErr.Body, "expired") {
		t.Errorf("unexpected upload error: %v", upErr)
	}
	if u.State() != client.UploadPresigned {
		t.Fatalf("state = %s, want presigned", u.State())
	}

	if err := c.Presign(t.Context(), u); err != nil {
		t.Fatalf("re-presigning: %v", err)
	}
	if u.Presigned().Expired(later) {
		t.Error("fresh target should not be expired")
	}
	if err := c.Upload(t.Context(), u, bytes.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("upload after re-presign: %v", err)
	}
}

func TestPresignArtifact(t *testing.T) {
	srv := newServer(t)
	c := adminClient(srv)
	rel := srv.SeedRelease("relay", "1.0.0")
	uploaded := srv.SeedArtifact(rel.ID, "done.bin", []byte("done"))

	tests := map[string]struct {
		artifactID string
		check      func(error) bool
	}{
		"unknown":         {artifactID: "missing", check: client.IsNotFound},
		"alreadyUploaded": {artifactID: uploaded.ID, check: client.IsConflict},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			target, err := c.PresignArtifact(t.Context(), tc.artifactID)
			if target != nil || !tc.check(err) {
				t.Errorf("unexpected result: %+v, %v", target, err)
			}
		})
	}

	t.Run("defaultsMethod", func(t *testing.T) {
		desc, err := c.RegisterArtifact(t.Context(), rel.ID, client.ArtifactMetadata{Filename: "x.bin"})
		if err != nil {
			t.Fatalf("registering: %v", err)
		}

		srv.FailNext(http.MethodPost, "/v1/artifacts/"+desc.ID+"/presign", http.StatusOK,
			`{"artifact_id":"`+desc.ID+`","object_key":"x.bin","upload_url":"https://storage.example.com/x.bin","expires_at":1}`)

		target, err := c.PresignArtifact(t.Context(), desc.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if target.Method != http.MethodPut {
			t.Errorf("method = %q, want PUT", target.Method)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		srv.FailNext(http.MethodPost, "/v1/artifacts/abc/presign", http.StatusOK, `{"artifact_id":"abc","upload_url":"not a url"}`)

		_, err := c.PresignArtifact(t.Context(), "abc")
		if !errors.Is(err, client.ErrDecode) {
			t.Errorf("expected decode error, got %v", err)
		}
	})
}

func TestArtifactUpload_StateMachine(t *testing.T) {
	srv := newServer(t)
	c := adminClient(srv)
	rel := srv.SeedRelease("relay", "1.0.0")
	data := []byte("x")

	u, err := c.StartArtifactUpload(t.Context(), rel.ID, client.ArtifactMetadata{Filename: "x.bin"})
	if err != nil {
		t.Fatalf("registering: %v", err)
	}

	expectState := func(t *testing.T, err error, step string, have, want client.UploadState) {
		t.Helper()

		stateErr, ok := errors.AsType[*client.StateError](err)
		if !ok {
			t.Fatalf("expected *StateError, got %T: %v", err, err)
		}
		exp := client.StateError{Step: step, Have: have, Want: want}
		if diff := cmp.Diff(exp, *stateErr); diff != "" {
			t.Errorf("state error mismatch (-exp +got):\n%s", diff)
		}
		if !errors.Is(err, client.ErrOutOfOrder) {
			t.Error("StateError should wrap ErrOutOfOrder")
		}
	}

	before := len(srv.Requests())
	err = c.Upload(t.Context(), u, bytes.NewReader(data), 1)
	expectState(t, err, "upload", client.UploadRegistered, client.UploadPresigned)
	if len(srv.Requests()) != before {
		t.Error("an out of order step must not send a request")
	}

	srv.FailNext(http.MethodPost, "/v1/artifacts/"+u.Descriptor().ID+"/presign", http.StatusServiceUnavailable, "")
	if err := c.Presign(t.Context(), u); !errors.Is(err, client.ErrAPI) {
		t.Fatalf("expected api error, got %v", err)
	}
	if u.State() != client.UploadRegistered || u.Presigned() != nil {
		t.Fatalf("failed presign changed state to %s", u.State())
	}

	if err := c.Presign(t.Context(), u); err != nil {
		t.Fatalf("presigning: %v", err)
	}
	expectState(t, c.Presign(t.Context(), u), "presign", client.UploadPresigned, client.UploadRegistered)

	if err := c.Upload(t.Context(), u, bytes.NewReader(data), 1); err != nil {
		t.Fatalf("uploading: %v", err)
	}
	expectState(t, c.Presign(t.Context(), u), "presign", client.UploadUploaded, client.UploadRegistered)
	expectState(t, c.Upload(t.Context(), u, bytes.NewReader(data), 1), "upload", client.UploadUploaded, client.UploadPresigned)
}

func TestUploadPresigned_NilTarget(t *testing.T) {
	c := client.MustNew("http://127.0.0.1:1", client.NoAuth(), quiet)

	if _, err := c.UploadPresigned(t.Context(), nil, nil, 0); err == nil {
		t.Fatal("expected an error for a nil target")
	}
}

func TestUploadState_String(t *testing.T) {
	tests := map[client.UploadState]string{
		client.UploadRegistered: "registered",
		client.UploadPresigned:  "presigned",
		client.UploadUploaded:   "uploaded",
		client.UploadState(0):   "unknown",
	}

	for state, exp := range tests {
		if got := state.String(); got != exp {
			t.Errorf("%d.String() = %q, want %q", state, got, exp)
		}
	}
}
