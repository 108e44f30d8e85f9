package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adamwoolhether/releasy/client"
)

func (a *app) customersCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:     "customers",
		Aliases: []string{"customer"},
		Short:   "Manage customers (admin)",
	}

	cmd.AddCommand(
		a.customersListCmd(),
		a.customersGetCmd(),
		a.customersCreateCmd(),
	)

	return &cmd
}

func (a *app) customersListCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:   "list",
		Short: "List customers",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client(cmd)
			if err != nil {
				return err
			}

			q := client.AdminCustomerListQuery{
				Name:   optString(cmd, "name"),
				Plan:   optString(cmd, "plan"),
				Limit:  optInt32(cmd, "limit"),
				Offset: optInt32(cmd, "offset"),
			}

			list, err := c.ListCustomers(cmd.Context(), q)
			if err != nil {
				return fmt.Errorf("listing customers: %w", err)
			}

			if a.flags.json {
				return a.printJSON(list)
			}

			w := a.table("ID\tNAME\tPLAN\tCREATED\tSUSPENDED")
			for _, cust := range list.Customers {
				suspended := "-"
				if cust.SuspendedAt != nil {
					suspended = formatTime(*cust.SuspendedAt)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", cust.ID, cust.Name, cust.Plan, formatTime(cust.CreatedAt), suspended)
			}
			return w.Flush()
		},
	}

	f := cmd.Flags()
	f.String("name", "", "filter by name")
	f.String("plan", "", "filter by plan")
	f.Int32("limit", 0, "maximum number of customers")
	f.Int32("offset", 0, "number of customers to skip")

	return &cmd
}

func (a *app) customersGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <customer-id>",
		Short: "Show a customer",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd)
			if err != nil {
				return err
			}

			cust, err := c.GetCustomer(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("getting customer: %w", err)
			}

			if a.flags.json {
				return a.printJSON(cust)
			}

			fmt.Fprintf(a.stdout, "id:      %s\n", cust.ID)
			fmt.Fprintf(a.stdout, "name:    %s\n", cust.Name)
			fmt.Fprintf(a.stdout, "plan:    %s\n", cust.Plan)
			fmt.Fprintf(a.stdout, "created: %s\n", formatTime(cust.CreatedAt))
			if cust.SuspendedAt != nil {
				fmt.Fprintf(a.stdout, "suspended: %s\n", formatTime(*cust.SuspendedAt))
			}
			return nil
		},
	}
}

func (a *app) customersCreateCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:   "create <name>",
		Short: "Create a customer",
		Long: `Creates a customer. The request carries an idempotency key, so it is
safe to rerun with the same --idempotency-key after a network failure.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client(cmd)
			if err != nil {
				return err
			}

			key, _ := cmd.Flags().GetString("idempotency-key")
			if key == "" {
				key = client.NewIdempotencyKey()
			}

			req := client.AdminCreateCustomerRequest{
				Name: args[0],
				Plan: optString(cmd, "plan"),
			}

			cust, err := c.AdminCreateCustomer(cmd.Context(), req, client.WithIdempotencyKey(key))
			if err != nil {
				return fmt.Errorf("creating customer (idempotency key %s): %w", key, err)
			}

			if a.flags.json {
				return a.printJSON(cust)
			}

			fmt.Fprintf(a.stdout, "created customer %s (%s)\n", cust.ID, cust.Name)
			return nil
		},
	}

	cmd.Flags().String("plan", "", "billing plan")
	cmd.Flags().String("idempotency-key", "", "reuse a key from an earlier attempt")

	return &cmd
}
