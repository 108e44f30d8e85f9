package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adamwoolhether/releasy/client"
)

func (a *app) releasesCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:     "releases",
		Aliases: []string{"release"},
		Short:   "Manage releases",
	}

	cmd.AddCommand(
		a.releasesListCmd(),
		a.releasesCreateCmd(),
		a.releaseStatusCmd("publish", "Publish a draft release"),
		a.releaseStatusCmd("unpublish", "Return a published release to draft"),
		a.releasesDeleteCmd(),
	)

	return &cmd
}

func (a *app) releasesListCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:   "list",
		Short: "List releases",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client(cmd)
			if err != nil {
				return err
			}

			q := client.ReleaseListQuery{
				Product:          optString(cmd, "product"),
				Version:          optString(cmd, "version"),
				Status:           optString(cmd, "status"),
				IncludeArtifacts: optBool(cmd, "artifacts"),
				Limit:            optInt32(cmd, "limit"),
				Offset:           optInt32(cmd, "offset"),
			}

			list, err := c.ListReleases(cmd.Context(), q)
			if err != nil {
				return fmt.Errorf("listing releases: %w", err)
			}

			if a.flags.json {
				return a.printJSON(list)
			}

			w := a.table("ID\tPRODUCT\tVERSION\tSTATUS\tCREATED\tARTIFACTS")
			for _, rel := range list.Releases {
				names := make([]string, 0, len(rel.Artifacts))
				for _, art := range rel.Artifacts {
					names = append(names, art.Filename)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					rel.ID, rel.Product, rel.Version, rel.Status, formatTime(rel.CreatedAt), strings.Join(names, ","))
			}
			return w.Flush()
		},
	}

	f := cmd.Flags()
	f.String("product", "", "filter by product")
	f.String("version", "", "filter by version")
	f.String("status", "", "filter by status (draft, published)")
	f.Bool("artifacts", false, "include artifact summaries")
	f.Int32("limit", 0, "maximum number of releases")
	f.Int32("offset", 0, "number of releases to skip")

	return &cmd
}

func (a *app) releasesCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <product> <version>",
		Short: "Create a draft release",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd)
			if err != nil {
				return err
			}

			rel, err := c.CreateRelease(cmd.Context(), client.ReleaseCreateRequest{Product: args[0], Version: args[1]})
			if err != nil {
				return fmt.Errorf("creating release: %w", err)
			}

			return a.printRelease(rel)
		},
	}
}

func (a *app) releaseStatusCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <release-id>",
		Short: short,
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd)
			if err != nil {
				return err
			}

			change := c.PublishRelease
			if action == "unpublish" {
				change = c.UnpublishRelease
			}

			rel, err := change(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("%s release: %w", action, err)
			}

			return a.printRelease(rel)
		},
	}
}

func (a *app) releasesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <release-id>",
		Short: "Delete a draft release and its artifacts",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd)
			if err != nil {
				return err
			}

			if err := c.DeleteRelease(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("deleting release: %w", err)
			}

			if a.flags.json {
				return a.printJSON(map[string]string{"deleted": args[0]})
			}

			fmt.Fprintf(a.stdout, "deleted release %s\n", args[0])
			return nil
		},
	}
}

func (a *app) printRelease(rel *client.ReleaseResponse) error {
	if a.flags.json {
		return a.printJSON(rel)
	}

	fmt.Fprintf(a.stdout, "id:        %s\n", rel.ID)
	fmt.Fprintf(a.stdout, "product:   %s\n", rel.Product)
	fmt.Fprintf(a.stdout, "version:   %s\n", rel.Version)
	fmt.Fprintf(a.stdout, "status:    %s\n", rel.Status)
	fmt.Fprintf(a.stdout, "created:   %s\n", formatTime(rel.CreatedAt))
	if rel.PublishedAt != nil {
		fmt.Fprintf(a.stdout, "published: %s\n", formatTime(*rel.PublishedAt))
	}
	for _, art := range rel.Artifacts {
		fmt.Fprintf(a.stdout, "artifact:  %s %s (%d bytes)\n", art.ID, art.Filename, art.Size)
	}

	return nil
}
