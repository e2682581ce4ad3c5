package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/khaothi-ai/khaothi/internal/cli"
	"github.com/khaothi-ai/khaothi/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "khaothi",
		Short: "Khaothi CLI - Vietnamese multiple-choice question answering",
		Long: `Khaothi CLI talks to a running khaothi server.

Environment variables:
  KHAOTHI_SERVER   Server base URL (default: http://localhost:8108)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("server", "", "Server base URL (overrides env)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.SearchCmd())
	rootCmd.AddCommand(client.RouteCmd())
	rootCmd.AddCommand(client.HealthCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
