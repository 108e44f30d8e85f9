package releasytest

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adamwoolhether/releasy/client"
	"github.com/adamwoolhether/releasy/internal/web"
	"github.com/adamwoolhether/releasy/internal/web/errs"
)

const (
	statusDraft     = "draft"
	statusPublished = "published"

	defaultTokenTTL = 300
	maxTokenTTL     = 86400
)

// presignResponse mirrors client.PresignedUpload on the wire.
type presignResponse struct {
	ArtifactID string            `json:"artifact_id"`
	ObjectKey  string            `json:"object_key"`
	UploadURL  string            `json:"upload_url"`
	Method     string            `json:"method"`
	Headers    map[string]string `json:"headers"`
	ExpiresAt  int64             `json:"expires_at"`
}

// storageURL is the address of an object on the built-in storage endpoint.
func (s *Server) storageURL(objectKey string) string {
	segments := strings.Split(objectKey, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}

	return s.URL() + "/_storage/" + strings.Join(segments, "/")
}

func (s *Server) summariesLocked(releaseID string) []client.ArtifactSummary {
	out := []client.ArtifactSummary{}
	for _, id := range s.artifactIDs {
		a := s.artifacts[id]
		if a.desc.ReleaseID != releaseID {
			continue
		}
		out = append(out, client.ArtifactSummary{
			ID:        a.desc.ID,
			ObjectKey: a.desc.ObjectKey,
			Filename:  a.desc.Filename,
			Platform:  a.desc.Platform,
			Checksum:  a.desc.Checksum,
			Size:      a.desc.Size,
		})
	}

	return out
}

func (s *Server) listReleases(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	limit, offset, err := pageParams(r)
	if err != nil {
		return err
	}

	includeArtifacts := false
	if v := r.URL.Query().Get("include_artifacts"); v != "" {
		if includeArtifacts, err = strconv.ParseBool(v); err != nil {
			return badRequest("query param[include_artifacts] must be boolean")
		}
	}
	customerView := principalFrom(ctx).key != nil

	var all []client.ReleaseResponse
	s.inLock(func() {
		for _, rel := range s.releases {
			if customerView && rel.Status != statusPublished {
				continue
			}
			if !matches(r, "product", rel.Product) || !matches(r, "version", rel.Version) || !matches(r, "status", rel.Status) {
				continue
			}

			resp := *rel
			if includeArtifacts {
				resp.Artifacts = s.summariesLocked(rel.ID)
			}
			all = append(all, resp)
		}
	})

	resp := client.ReleaseListResponse{
		Releases: page(all, limit, offset),
		Limit:    int64(limit),
		Offset:   int64(offset),
	}

	return web.RespondJSON(ctx, w, http.StatusOK, resp)
}

func (s *Server) createRelease(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req client.ReleaseCreateRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}

	rel := client.ReleaseResponse{
		ID:      uuid.NewString(),
		Product: req.Product,
		Version: req.Version,
		Status:  statusDraft,
	}

	err := s.locked(func() error {
		_, dup := find(s.releases, func(o *client.ReleaseResponse) bool {
			return o.Product == req.Product && o.Version == req.Version
		})
		if dup {
			return conflict("release %s %s already exists", req.Product, req.Version)
		}

		rel.CreatedAt = s.now().Unix()
		s.releases = append(s.releases, &rel)
		s.auditLocked(principalFrom(ctx).actor, "release.created", "", req)
		return nil
	})
	if err != nil {
		return err
	}

	return web.RespondJSON(ctx, w, http.StatusCreated, rel)
}

func (s *Server) deleteRelease(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id := r.PathValue("release_id")

	err := s.locked(func() error {
		rel, ok := s.release(id)
		if !ok {
			return notFound("release", id)
		}
		if rel.Status == statusPublished {
			return conflict("release %s is published; unpublish it first", id)
		}

		s.releases = slices.DeleteFunc(s.releases, func(o *client.ReleaseResponse) bool { return o.ID == id })
		s.artifactIDs = slices.DeleteFunc(s.artifactIDs, func(aid string) bool {
			a := s.artifacts[aid]
			if a.desc.ReleaseID != id {
				return false
			}
			delete(s.presigns, a.desc.ObjectKey)
			delete(s.artifacts, aid)
			return true
		})
		s.auditLocked(principalFrom(ctx).actor, "release.deleted", "", map[string]string{"release_id": id})
		return nil
	})
	if err != nil {
		return err
	}

	return web.RespondJSON(ctx, w, http.StatusNoContent, nil)
}

func (s *Server) publishRelease(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return s.setReleaseStatus(ctx, w, r, statusPublished)
}

func (s *Server) unpublishRelease(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return s.setReleaseStatus(ctx, w, r, statusDraft)
}

func (s *Server) setReleaseStatus(ctx context.Context, w http.ResponseWriter, r *http.Request, status string) error {
	id := r.PathValue("release_id")

	var resp client.ReleaseResponse
	err := s.locked(func() error {
		rel, ok := s.release(id)
		if !ok {
			return notFound("release", id)
		}

		rel.Status = status
		rel.PublishedAt = nil
		if status == statusPublished {
			now := s.now().Unix()
			rel.PublishedAt = &now
		}

		event := "release.unpublished"
		if status == statusPublished {
			event = "release.published"
		}
		s.auditLocked(principalFrom(ctx).actor, event, "", map[string]string{"release_id": id})

		resp = *rel
		resp.Artifacts = s.summariesLocked(id)
		return nil
	})
	if err != nil {
		return err
	}

	return web.RespondJSON(ctx, w, http.StatusOK, resp)
}

// ----------------------------------------------------------------------------
// Artifacts and downloads
// ----------------------------------------------------------------------------

func (s *Server) registerArtifact(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var meta client.ArtifactMetadata
	if err := web.Decode(r, &meta); err != nil {
		return err
	}
	if strings.ContainsAny(meta.Filename, "/\\") {
		return badRequest("filename must not contain path separators")
	}
	releaseID := r.PathValue("release_id")

	var resp client.ArtifactDescriptor
	err := s.locked(func() error {
		rel, ok := s.release(releaseID)
		if !ok {
			return notFound("release", releaseID)
		}
		if rel.Status == statusPublished {
			return conflict("release %s is published", releaseID)
		}

		a := s.registerLocked(releaseID, client.ArtifactDescriptor{
			Filename: meta.Filename,
			Platform: meta.Platform.Or(""),
			Checksum: meta.Checksum.Or(""),
			Size:     meta.Size.Or(0),
		})
		a.contentType = meta.ContentType.Or("")
		s.auditLocked(principalFrom(ctx).actor, "artifact.registered", "", map[string]string{"artifact_id": a.desc.ID, "release_id": releaseID})
		resp = a.desc
		return nil
	})
	if err != nil {
		return err
	}

	return web.RespondJSON(ctx, w, http.StatusCreated, resp)
}

func (s *Server) presignArtifact(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id := r.PathValue("artifact_id")

	var resp presignResponse
	err := s.locked(func() error {
		a, ok := s.artifacts[id]
		if !ok {
			return notFound("artifact", id)
		}
		if a.uploaded {
			return conflict("artifact %s already uploaded", id)
		}

		p := presign{
			artifactID: id,
			token:      uuid.NewString(),
			expiresAt:  s.now().Add(presignTTL).Unix(),
		}
		s.presigns[a.desc.ObjectKey] = &p

		headers := map[string]string{UploadTokenHeader: p.token}
		if a.contentType != "" {
			headers["Content-Type"] = a.contentType
		}

		resp = presignResponse{
			ArtifactID: id,
			ObjectKey:  a.desc.ObjectKey,
			UploadURL:  s.storageURL(a.desc.ObjectKey),
			Method:     http.MethodPut,
			Headers:    headers,
			ExpiresAt:  p.expiresAt,
		}
		return nil
	})
	if err != nil {
		return err
	}

	return web.RespondJSON(ctx, w, http.StatusOK, resp)
}

func (s *Server) createDownloadToken(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req client.DownloadTokenRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}

	ttl := int(req.ExpiresInSeconds.Or(defaultTokenTTL))
	if ttl <= 0 || ttl > maxTokenTTL {
		return badRequest("expires_in_seconds must be between 1 and %d", maxTokenTTL)
	}
	customerView := principalFrom(ctx).key != nil

	var resp client.DownloadTokenResponse
	err := s.locked(func() error {
		a, ok := s.artifacts[req.ArtifactID]
		if !ok {
			return notFound("artifact", req.ArtifactID)
		}
		if customerView {
			if rel, ok := s.release(a.desc.ReleaseID); !ok || rel.Status != statusPublished {
				return notFound("artifact", req.ArtifactID)
			}
		}
		if !a.uploaded {
			return conflict("artifact %s has not been uploaded", req.ArtifactID)
		}

		token := uuid.NewString()
		g := grant{
			artifactID: a.desc.ID,
			expiresAt:  s.now().Add(time.Duration(ttl) * time.Second).Unix(),
		}
		s.grants[token] = g

		resp = client.DownloadTokenResponse{
			DownloadURL: s.URL() + "/v1/downloads/" + token,
			ExpiresAt:   g.expiresAt,
		}
		return nil
	})
	if err != nil {
		return err
	}

	return web.RespondJSON(ctx, w, http.StatusOK, resp)
}

func (s *Server) resolveDownload(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	token := r.PathValue("token")

	var location string
	err := s.locked(func() error {
		g, ok := s.grants[token]
		if !ok || s.now().Unix() >= g.expiresAt {
			return errs.New(http.StatusNotFound, "not_found", errors.New("download token not found or expired"))
		}
		a, ok := s.artifacts[g.artifactID]
		if !ok {
			return notFound("artifact", g.artifactID)
		}

		location = s.storageURL(a.desc.ObjectKey) + "?download_token=" + url.QueryEscape(token)
		return nil
	})
	if err != nil {
		return err
	}

	return web.Redirect(w, r, location, http.StatusFound)
}
