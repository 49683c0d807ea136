// Package commands implements the CLI subcommands for the trashcan binary.
package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/trashcan/internal/config"
	"github.com/dwsmith1983/trashcan/internal/logging"
	ddbprov "github.com/dwsmith1983/trashcan/internal/provider/dynamodb"
)

const configFlag = "config"

func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().StringP(configFlag, "c", "", "path to trashcan.yaml (environment variables override it)")
}

// setup loads configuration and builds the logger and provider shared by
// every subcommand. The provider is not started.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, *ddbprov.DynamoDBProvider, error) {
	path, _ := cmd.Flags().GetString(configFlag)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, nil, err
	}
	slog.SetDefault(logger)

	prov, err := ddbprov.New(&cfg.DynamoDB)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating provider: %w", err)
	}
	prov.SetLogger(logger)
	return cfg, logger, prov, nil
}
