package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adamwoolhether/releasy/client"
)

func (a *app) artifactsCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:     "artifacts",
		Aliases: []string{"artifact"},
		Short:   "Manage release artifacts",
	}
	cmd.AddCommand(a.artifactsUploadCmd())

	return &cmd
}

type uploadSummary struct {
	ArtifactID string `json:"artifact_id"`
	ReleaseID  string `json:"release_id"`
	Filename   string `json:"filename"`
	ObjectKey  string `json:"object_key"`
	Checksum   string `json:"checksum"`
	Size       int64  `json:"size"`
	ETag       string `json:"etag,omitempty"`
	State      string `json:"state"`
}

func (a *app) artifactsUploadCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:   "upload <release-id> <file>",
		Short: "Register, presign and upload a file to a release",
		Long: `Registers the file as an artifact of the release, obtains a presigned
upload target and transfers the file directly to storage. The filename,
size, sha256 checksum and content type are taken from the file.`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd)
			if err != nil {
				return err
			}

			meta := client.ArtifactMetadata{
				Platform: optString(cmd, "platform"),
			}
			if name, _ := cmd.Flags().GetString("name"); name != "" {
				meta.Filename = name
			}

			u, err := c.UploadArtifactFile(cmd.Context(), args[0], args[1], meta)
			if u != nil && err != nil {
				fmt.Fprintf(a.stderr, "artifact %s left in state %s\n", u.Descriptor().ID, u.State())
			}
			if err != nil {
				return fmt.Errorf("uploading %s: %w", args[1], err)
			}

			desc := u.Descriptor()
			summary := uploadSummary{
				ArtifactID: desc.ID,
				ReleaseID:  u.ReleaseID(),
				Filename:   desc.Filename,
				ObjectKey:  desc.ObjectKey,
				Checksum:   desc.Checksum,
				Size:       u.Result().BytesSent,
				ETag:       u.Result().ETag,
				State:      u.State().String(),
			}

			if a.flags.json {
				return a.printJSON(summary)
			}

			fmt.Fprintf(a.stdout, "uploaded %s (%d bytes) as artifact %s\n", summary.Filename, summary.Size, summary.ArtifactID)
			fmt.Fprintf(a.stdout, "object key: %s\n", summary.ObjectKey)
			fmt.Fprintf(a.stdout, "checksum:   %s\n", summary.Checksum)
			return nil
		},
	}

	cmd.Flags().String("platform", "", "target platform, e.g. linux/amd64")
	cmd.Flags().String("name", "", "artifact filename (default: the file's base name)")

	return &cmd
}
