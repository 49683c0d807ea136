package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/trashcan/internal/commands"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "trashcan",
		Short: "Fill-level telemetry API for trash-can sensors",
		Long: `trashcan stores registrations and fill-level reports from trash-can sensors
in a single DynamoDB table and serves current status and reading history
over HTTP. Devices may also register and report over MQTT.`,
		Version:      version,
		SilenceUsage: true,
	}

	root.AddCommand(
		commands.NewServeCmd(),
		commands.NewCreateTableCmd(),
		commands.NewStatusCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
