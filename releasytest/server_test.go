package releasytest_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/go-cmp/cmp"

	"github.com/adamwoolhether/releasy/client"
	"github.com/adamwoolhether/releasy/releasytest"
)

func newServer(t *testing.T, opts ...releasytest.Option) *releasytest.Server {
	t.Helper()
	srv := releasytest.New(opts...)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *releasytest.Server, method, path string, header http.Header, body string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), method, srv.URL()+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := srv.HTTPClient().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}

	return resp, b
}

func adminHeader(srv *releasytest.Server) http.Header {
	return http.Header{http.CanonicalHeaderKey(client.HeaderAdminKey): {srv.AdminKey()}}
}

func TestOpenAPIDocumentValidates(t *testing.T) {
	srv := newServer(t)

	_, body := do(t, srv, http.MethodGet, "/openapi.json", nil, "")

	doc, err := openapi3.NewLoader().LoadFromData(body)
	if err != nil {
		t.Fatalf("loading document: %v", err)
	}
	if err := doc.Validate(t.Context()); err != nil {
		t.Fatalf("document does not validate: %v", err)
	}
	if doc.Paths.Find("/v1/artifacts/{artifact_id}/presign") == nil {
		t.Error("presign path missing from document")
	}
}

func TestAuth(t *testing.T) {
	srv := newServer(t, releasytest.WithOperatorJWT("op-token"))
	cust := srv.SeedCustomer("acme")
	apiKey := srv.SeedAPIKey(cust.ID)

	tests := map[string]struct {
		path      string
		header    http.Header
		expStatus int
	}{
		"adminMissing":     {path: "/v1/admin/customers", expStatus: http.StatusUnauthorized},
		"adminWrong":       {path: "/v1/admin/customers", header: http.Header{"X-Releasy-Admin-Key": {"nope"}}, expStatus: http.StatusUnauthorized},
		"adminOK":          {path: "/v1/admin/customers", header: adminHeader(srv), expStatus: http.StatusOK},
		"operatorOK":       {path: "/v1/admin/customers", header: http.Header{"Authorization": {"Bearer op-token"}}, expStatus: http.StatusOK},
		"apiKeyOnAdmin":    {path: "/v1/admin/customers", header: http.Header{"X-Releasy-Api-Key": {apiKey}}, expStatus: http.StatusUnauthorized},
		"apiKeyOnReleases": {path: "/v1/releases", header: http.Header{"X-Releasy-Api-Key": {apiKey}}, expStatus: http.StatusOK},
		"healthOpen":       {path: "/health", expStatus: http.StatusOK},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			resp, body := do(t, srv, http.MethodGet, tc.path, tc.header, "")
			if resp.StatusCode != tc.expStatus {
				t.Fatalf("status = %d, want %d: %s", resp.StatusCode, tc.expStatus, body)
			}

			if tc.expStatus == http.StatusUnauthorized {
				var eb client.ErrorBody
				if err := json.Unmarshal(body, &eb); err != nil || eb.Error.Code != "unauthorized" {
					t.Errorf("unexpected error body %s (%v)", body, err)
				}
			}
		})
	}
}

func TestIdempotentReplay(t *testing.T) {
	srv := newServer(t)

	header := adminHeader(srv)
	header.Set(client.HeaderIdempotencyKey, "key-1")

	resp1, body1 := do(t, srv, http.MethodPost, "/v1/admin/customers", header, `{"name":"acme"}`)
	resp2, body2 := do(t, srv, http.MethodPost, "/v1/admin/customers", header, `{"name":"acme"}`)

	if resp1.StatusCode != http.StatusCreated || resp2.StatusCode != http.StatusCreated {
		t.Fatalf("statuses = %d, %d", resp1.StatusCode, resp2.StatusCode)
	}
	if diff := cmp.Diff(string(body1), string(body2)); diff != "" {
		t.Errorf("replayed body differs (-first +second):\n%s", diff)
	}
	if resp2.Header.Get("Idempotent-Replayed") != "true" {
		t.Error("second response should be marked as replayed")
	}

	_, list := do(t, srv, http.MethodGet, "/v1/admin/customers", adminHeader(srv), "")
	var got client.AdminCustomerListResponse
	if err := json.Unmarshal(list, &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Customers) != 1 {
		t.Errorf("customers = %d, want 1", len(got.Customers))
	}
}

func TestFailNext(t *testing.T) {
	srv := newServer(t)
	srv.FailNext(http.MethodGet, "/health", http.StatusServiceUnavailable, `{"error":{"code":"maintenance","message":"down"}}`)

	resp, body := do(t, srv, http.MethodGet, "/health", nil, "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !bytes.Contains(body, []byte("maintenance")) {
		t.Errorf("body = %s", body)
	}

	resp, _ = do(t, srv, http.MethodGet, "/health", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("failure should be consumed once, got %d", resp.StatusCode)
	}
}

func TestRequestsRecorded(t *testing.T) {
	srv := newServer(t)

	header := adminHeader(srv)
	header.Set("X-Trace", "abc")
	do(t, srv, http.MethodPost, "/v1/releases", header, `{"product":"cli","version":"1.0.0"}`)

	got, ok := srv.LastRequest()
	if !ok {
		t.Fatal("no request recorded")
	}

	if got.Method != http.MethodPost || got.Path != "/v1/releases" || got.Header.Get("X-Trace") != "abc" {
		t.Errorf("unexpected request: %+v", got)
	}
	if diff := cmp.Diff(`{"product":"cli","version":"1.0.0"}`, string(got.Body)); diff != "" {
		t.Errorf("body mismatch (-exp +got):\n%s", diff)
	}
	if len(srv.Requests()) != 1 {
		t.Errorf("requests = %d, want 1", len(srv.Requests()))
	}
}

func TestStorage(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	srv := newServer(t)
	srv.SetClock(func() time.Time { return now })

	rel := srv.SeedRelease("cli", "1.0.0")
	_, regBody := do(t, srv, http.MethodPost, "/v1/releases/"+rel.ID+"/artifacts", adminHeader(srv), `{"filename":"cli.tar.gz"}`)
	var desc client.ArtifactDescriptor
	if err := json.Unmarshal(regBody, &desc); err != nil {
		t.Fatal(err)
	}

	presign := func(t *testing.T) map[string]any {
		t.Helper()
		resp, body := do(t, srv, http.MethodPost, "/v1/artifacts/"+desc.ID+"/presign", adminHeader(srv), "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("presign status = %d: %s", resp.StatusCode, body)
		}
		var out map[string]any
		if err := json.Unmarshal(body, &out); err != nil {
			t.Fatal(err)
		}
		return out
	}

	put := func(t *testing.T, target map[string]any, token string) (*http.Response, []byte) {
		t.Helper()
		path := strings.TrimPrefix(target["upload_url"].(string), srv.URL())
		return do(t, srv, http.MethodPut, path, http.Header{"X-Releasy-Upload-Token": {token}}, "payload")
	}

	target := presign(t)
	if got := int64(target["expires_at"].(float64)); got != now.Add(15*time.Minute).Unix() {
		t.Errorf("expires_at = %d", got)
	}
	token := target["headers"].(map[string]any)[releasytest.UploadTokenHeader].(string)

	t.Run("badToken", func(t *testing.T) {
		resp, body := put(t, target, "wrong")
		if resp.StatusCode != http.StatusForbidden || !bytes.Contains(body, []byte("<Error>")) {
			t.Fatalf("status = %d body = %s", resp.StatusCode, body)
		}
	})

	t.Run("expired", func(t *testing.T) {
		srv.SetClock(func() time.Time { return now.Add(16 * time.Minute) })
		defer srv.SetClock(func() time.Time { return now })

		resp, body := put(t, target, token)
		if resp.StatusCode != http.StatusForbidden || !bytes.Contains(body, []byte("expired")) {
			t.Fatalf("status = %d body = %s", resp.StatusCode, body)
		}
	})

	t.Run("accepted", func(t *testing.T) {
		resp, body := put(t, target, token)
		if resp.StatusCode != http.StatusOK || resp.Header.Get("ETag") == "" {
			t.Fatalf("status = %d etag = %q body = %s", resp.StatusCode, resp.Header.Get("ETag"), body)
		}

		data, ok := srv.Artifact(desc.ID)
		if !ok || string(data) != "payload" {
			t.Fatalf("stored = %q, %v", data, ok)
		}
	})

	t.Run("presignAfterUpload", func(t *testing.T) {
		resp, _ := do(t, srv, http.MethodPost, "/v1/artifacts/"+desc.ID+"/presign", adminHeader(srv), "")
		if resp.StatusCode != http.StatusConflict {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
		}
	})
}

func TestNewUnstarted(t *testing.T) {
	srv := releasytest.NewUnstarted("https://sandbox.example.com/")
	defer srv.Close()

	if got := srv.URL(); got != "https://sandbox.example.com" {
		t.Errorf("URL() = %q", got)
	}

	rel := srv.SeedRelease("relay", "1.0.0")
	art := srv.SeedArtifact(rel.ID, "relay.bin", []byte("relay"))

	body := `{"artifact_id":"` + art.ID + `"}`
	req := httptest.NewRequestWithContext(t.Context(), http.MethodPost, "/v1/downloads/token", strings.NewReader(body))
	req.Header.Set(client.HeaderAdminKey, srv.AdminKey())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var tok client.DownloadTokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &tok); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(tok.DownloadURL, "https://sandbox.example.com/v1/downloads/") {
		t.Errorf("download url %q not under the configured base", tok.DownloadURL)
	}
}
