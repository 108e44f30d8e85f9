package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check service health",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client(cmd)
			if err != nil {
				return err
			}

			health, err := c.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("health check: %w", err)
			}

			if a.flags.json {
				return a.printJSON(health)
			}

			fmt.Fprintf(a.stdout, "status: %s\n", health.Status)
			return nil
		},
	}
}
