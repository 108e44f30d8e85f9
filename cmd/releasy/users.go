package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adamwoolhether/releasy/client"
	"github.com/adamwoolhether/releasy/opt"
)

func (a *app) usersCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:     "users",
		Aliases: []string{"user"},
		Short:   "Manage customer users (admin)",
	}

	cmd.AddCommand(
		a.usersListCmd(),
		a.usersGetCmd(),
		a.usersCreateCmd(),
	)

	return &cmd
}

func (a *app) usersListCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client(cmd)
			if err != nil {
				return err
			}

			q := client.UserListQuery{
				CustomerID: optString(cmd, "customer-id"),
				Email:      optString(cmd, "email"),
				Status:     optString(cmd, "status"),
				Limit:      optInt32(cmd, "limit"),
				Cursor:     optString(cmd, "cursor"),
			}

			list, err := c.ListUsers(cmd.Context(), q)
			if err != nil {
				return fmt.Errorf("listing users: %w", err)
			}

			if a.flags.json {
				return a.printJSON(list)
			}

			w := a.table("ID\tEMAIL\tCUSTOMER\tSTATUS\tGROUPS")
			for _, u := range list.Users {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Email, u.CustomerID, u.Status, strings.Join(u.Groups, ","))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if list.NextCursor != "" {
				fmt.Fprintf(a.stdout, "\nmore results: --cursor %s\n", list.NextCursor)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.String("customer-id", "", "filter by customer")
	f.String("email", "", "filter by email")
	f.String("status", "", "filter by status (active, disabled, invited)")
	f.Int32("limit", 0, "maximum number of users")
	f.String("cursor", "", "continue from a previous page")

	return &cmd
}

func (a *app) usersGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <user-id>",
		Short: "Show a user",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd)
			if err != nil {
				return err
			}

			u, err := c.GetUser(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("getting user: %w", err)
			}

			return a.printUser(u)
		},
	}
}

func (a *app) usersCreateCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:   "create",
		Short: "Create a user for a customer",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			customerID, _ := cmd.Flags().GetString("customer-id")
			email, _ := cmd.Flags().GetString("email")
			if customerID == "" || email == "" {
				return usagef("--customer-id and --email are required")
			}

			c, err := a.client(cmd)
			if err != nil {
				return err
			}

			req := client.UserCreateRequest{
				Email:       email,
				CustomerID:  customerID,
				DisplayName: optString(cmd, "display-name"),
				Status:      optString(cmd, "status"),
			}
			if cmd.Flags().Changed("group") {
				groups, _ := cmd.Flags().GetStringSlice("group")
				req.Groups = opt.Some(groups)
			}

			key, _ := cmd.Flags().GetString("idempotency-key")
			if key == "" {
				key = client.NewIdempotencyKey()
			}

			u, err := c.CreateUser(cmd.Context(), req, client.WithIdempotencyKey(key))
			if err != nil {
				return fmt.Errorf("creating user (idempotency key %s): %w", key, err)
			}

			return a.printUser(u)
		},
	}

	f := cmd.Flags()
	f.String("customer-id", "", "owning customer (required)")
	f.String("email", "", "email address (required)")
	f.String("display-name", "", "display name")
	f.StringSlice("group", nil, "group membership, repeatable")
	f.String("status", "", "initial status (active, disabled, invited)")
	f.String("idempotency-key", "", "reuse a key from an earlier attempt")

	return &cmd
}

func (a *app) printUser(u *client.UserResponse) error {
	if a.flags.json {
		return a.printJSON(u)
	}

	fmt.Fprintf(a.stdout, "id:       %s\n", u.ID)
	fmt.Fprintf(a.stdout, "email:    %s\n", u.Email)
	fmt.Fprintf(a.stdout, "customer: %s\n", u.CustomerID)
	fmt.Fprintf(a.stdout, "status:   %s\n", u.Status)
	fmt.Fprintf(a.stdout, "groups:   %s\n", strings.Join(u.Groups, ","))
	if u.DisplayName != "" {
		fmt.Fprintf(a.stdout, "name:     %s\n", u.DisplayName)
	}

	return nil
}
