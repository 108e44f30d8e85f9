package releasytest

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"strconv"

	"github.com/adamwoolhether/releasy/internal/web/mux"
)

// storageError is the body the storage endpoint rejects requests with. It
// is deliberately not the release service's error shape.
type storageError struct {
	XMLName xml.Name `xml:"Error"`
	Code    string   `xml:"Code"`
	Message string   `xml:"Message"`
	Key     string   `xml:"Key"`
}

func (s *Server) rejectStorage(ctx context.Context, w http.ResponseWriter, status int, code, msg, key string) error {
	body, err := xml.Marshal(storageError{Code: code, Message: msg, Key: key})
	if err != nil {
		return err
	}

	mux.SetStatus(ctx, status)
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, err = w.Write(append([]byte(xml.Header), body...))

	return err
}

func (s *Server) storagePut(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	key := r.PathValue("key")

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}

	type outcome struct {
		status  int
		code    string
		message string
		etag    string
	}

	var out outcome
	s.inLock(func() {
		p, ok := s.presigns[key]
		switch {
		case !ok || !equal(r.Header.Get(UploadTokenHeader), p.token):
			out = outcome{status: http.StatusForbidden, code: "SignatureDoesNotMatch", message: "The request signature we calculated does not match the signature you provided."}
			return
		case s.now().Unix() >= p.expiresAt:
			out = outcome{status: http.StatusForbidden, code: "AccessDenied", message: "Request has expired"}
			return
		}

		a, ok := s.artifacts[p.artifactID]
		if !ok {
			out = outcome{status: http.StatusNotFound, code: "NoSuchKey", message: "The specified key does not exist."}
			return
		}

		sum := checksum(data)
		switch {
		case a.desc.Size != 0 && a.desc.Size != int64(len(data)):
			out = outcome{status: http.StatusBadRequest, code: "IncompleteBody", message: "You did not provide the number of bytes specified by the Content-Length HTTP header."}
			return
		case a.desc.Checksum != "" && a.desc.Checksum != sum:
			out = outcome{status: http.StatusBadRequest, code: "BadDigest", message: "The Content-SHA256 you specified did not match what we received."}
			return
		}

		a.uploaded = true
		a.data = data
		a.desc.Size = int64(len(data))
		a.desc.Checksum = sum
		a.etag = `"` + sum[len("sha256:"):] + `"`
		delete(s.presigns, key)
		s.auditLocked("storage", "artifact.uploaded", "", map[string]any{"artifact_id": a.desc.ID, "size": len(data)})

		out = outcome{status: http.StatusOK, etag: a.etag}
	})

	if out.status != http.StatusOK {
		return s.rejectStorage(ctx, w, out.status, out.code, out.message, key)
	}

	mux.SetStatus(ctx, http.StatusOK)
	w.Header().Set("ETag", out.etag)
	w.WriteHeader(http.StatusOK)

	return nil
}

func (s *Server) storageGet(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	key := r.PathValue("key")
	token := r.URL.Query().Get("download_token")

	var (
		data        []byte
		etag        string
		contentType string
		denied      bool
	)
	s.inLock(func() {
		g, ok := s.grants[token]
		if !ok || s.now().Unix() >= g.expiresAt {
			denied = true
			return
		}
		a, ok := s.artifacts[g.artifactID]
		if !ok || !a.uploaded || a.desc.ObjectKey != key {
			denied = true
			return
		}

		data, etag, contentType = a.data, a.etag, a.contentType
	})

	if denied {
		return s.rejectStorage(ctx, w, http.StatusForbidden, "AccessDenied", "Access Denied", key)
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	mux.SetStatus(ctx, http.StatusOK)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("ETag", etag)
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(data)

	return err
}
