package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewCreateTableCmd creates the create-table command.
func NewCreateTableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-table",
		Short: "Create the DynamoDB table if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, prov, err := setup(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			if err := prov.EnsureTable(ctx); err != nil {
				return err
			}
			if err := prov.Ping(ctx); err != nil {
				return fmt.Errorf("table not reachable after create: %w", err)
			}
			color.Green("Table %s ready", cfg.DynamoDB.TableName)
			return nil
		},
	}
	addConfigFlag(cmd)
	return cmd
}
