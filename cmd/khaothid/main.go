package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/khaothi-ai/khaothi/internal/cli"
	"github.com/khaothi-ai/khaothi/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "khaothid",
		Short: "Khaothi daemon and index tooling",
		Long:  "Khaothi daemon for serving the answering API and building retrieval indexes",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.PredictCmd())
	rootCmd.AddCommand(admin.IndexCmd())
	rootCmd.AddCommand(admin.SafetyIndexCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
