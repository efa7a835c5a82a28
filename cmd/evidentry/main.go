package main

import (
	"fmt"
	"os"

	"github.com/evidentry/evidentry/internal/cli"
	"github.com/evidentry/evidentry/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "evidentry",
		Short: "Evidentry CLI - Audit trails for AI decisions",
		Long: `Evidentry CLI provides commands to record AI decisions, build signed
audit artifacts, and govern their retention.

Environment variables:
  EVIDENTRY_API_KEY       API key for authentication (required)
  EVIDENTRY_API_URL       API base URL (default: http://localhost:8080)
  EVIDENTRY_OPERATOR_KEY  Operator credential for privileged operations`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-key", "", "API key for authentication (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	rootCmd.PersistentFlags().String("operator-key", "", "Operator key for privileged operations (overrides env)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.AuthCmd())
	rootCmd.AddCommand(client.DecisionCmd())
	rootCmd.AddCommand(client.DocumentCmd())
	rootCmd.AddCommand(client.ExportCmd())
	rootCmd.AddCommand(client.BundleCmd())
	rootCmd.AddCommand(client.PackageCmd())
	rootCmd.AddCommand(client.ArtifactCmd())
	rootCmd.AddCommand(client.VerifyCmd())
	rootCmd.AddCommand(client.PolicyCmd())
	rootCmd.AddCommand(client.HoldCmd())
	rootCmd.AddCommand(client.EnforceCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
