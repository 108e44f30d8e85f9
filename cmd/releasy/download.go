package main

import (
	"fmt"
	"net/url"
	"path"

	"github.com/spf13/cobra"

	"github.com/adamwoolhether/releasy/client/download"
)

// tokenFromArg accepts either a bare download token or the download_url
// returned when the token was issued.
func tokenFromArg(arg string) string {
	u, err := url.Parse(arg)
	if err != nil || u.Scheme == "" {
		return arg
	}
	return path.Base(u.Path)
}

type downloadSummary struct {
	Path    string `json:"path"`
	Bytes   int64  `json:"bytes"`
	Digest  string `json:"digest,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
}

func (a *app) downloadCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:   "download <token|download-url> <dest>",
		Short: "Download an artifact with a download token",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd)
			if err != nil {
				return err
			}

			var opts []download.Option
			if sum, _ := cmd.Flags().GetString("checksum"); sum != "" {
				opts = append(opts, download.WithChecksum(sum))
			}
			if skip, _ := cmd.Flags().GetBool("skip-existing"); skip {
				opts = append(opts, download.WithSkipExisting())
			}
			if a.flags.verbose {
				opts = append(opts, download.WithProgress())
			}

			res, err := c.DownloadArtifact(cmd.Context(), tokenFromArg(args[0]), args[1], opts...)
			if err != nil {
				return err
			}

			if a.flags.json {
				return a.printJSON(downloadSummary{
					Path:    res.Path,
					Bytes:   res.Bytes,
					Digest:  res.Digest.String(),
					Skipped: res.Skipped,
				})
			}

			if res.Skipped {
				fmt.Fprintf(a.stdout, "%s exists, skipped\n", res.Path)
				return nil
			}
			fmt.Fprintf(a.stdout, "saved %s (%d bytes, %s)\n", res.Path, res.Bytes, res.Digest)
			return nil
		},
	}

	cmd.Flags().String("checksum", "", "expected digest (sha256:<hex>, sha512:<hex> or bare sha256 hex)")
	cmd.Flags().Bool("skip-existing", false, "do nothing if <dest> already exists")

	return &cmd
}
