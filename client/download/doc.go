// Package download streams a resolved artifact body to disk.
//
// [Handle] writes to a temporary file next to the destination and renames
// it into place only after the length and digest checks pass, so a
// destination path never holds a partial or corrupt artifact:
//
//	res, err := download.Handle(ctx, resp.Body, resp.ContentLength, destPath, logger,
//		download.WithChecksum(artifact.Checksum),
//		download.WithExpectedSize(artifact.Size),
//	)
//
// Digests use the release service's "<algorithm>:<hex>" form; a bare hex
// string is read as sha256.
//
// Most callers reach this package through
// [github.com/adamwoolhether/releasy/client.Client.DownloadArtifact].
package download
