// Package client is a typed client for the Releasy release-management
// service.
//
// # Building a Client
//
// A [Client] is bound to one base URL and one authentication mode:
//
//	c, err := client.New("https://releasy.example.com", client.AdminKey(secret),
//		client.WithTimeout(10*time.Second),
//		client.WithUserAgent("release-bot/1.0"),
//	)
//
// Use [Client.WithAuth] to derive a client with different credentials.
//
// # Errors
//
// Every operation returns either its typed result or one of:
//
//   - [*TransportError]: no response was obtained.
//   - [*DecodeError]: a 2xx body did not match the expected schema.
//   - [*APIError]: a non-2xx reply from the release service.
//   - [*UploadError]: the presigned storage endpoint rejected a transfer.
//   - [*DownloadError]: storage refused a resolved download.
//   - [*ValidationError]: the request was rejected before any I/O.
//
// Some admin user endpoints answer with a richer error body. It is decoded
// on demand:
//
//	if ent, ok := client.AsEnterprise(err); ok {
//		for _, v := range ent.Violations() { ... }
//	}
//
// # Idempotency
//
// Creation endpoints for customers, users, entitlements and API keys accept
// [WithIdempotencyKey]. Reuse the same key when resending the same request:
//
//	key := client.NewIdempotencyKey()
//	cust, err := c.AdminCreateCustomer(ctx, req, client.WithIdempotencyKey(key))
//
// # Uploading Artifacts
//
// An artifact is registered on a release, presigned, then transferred
// directly to storage. [Client.UploadArtifactFile] runs all three steps;
// the step-wise form keeps each intermediate result inspectable:
//
//	u, err := c.StartArtifactUpload(ctx, releaseID, client.ArtifactMetadata{Filename: "app.tar.gz"})
//	err = c.Presign(ctx, u)
//	err = c.Upload(ctx, u, f, size)
//
// # Downloading Artifacts
//
// [Client.DownloadArtifact] resolves a download token and streams the file
// to disk using [github.com/adamwoolhether/releasy/client/download].
package client
