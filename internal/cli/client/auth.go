package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// AuthCmd creates the auth parent command
func AuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage authentication credentials",
		Long:  "Login, logout, and check authentication status for the evidentry CLI",
	}

	cmd.AddCommand(AuthLoginCmd())
	cmd.AddCommand(AuthLogoutCmd())
	cmd.AddCommand(AuthStatusCmd())

	return cmd
}

func AuthLoginCmd() *cobra.Command {
	var apiKey string
	var apiURL string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save API credentials",
		Long:  "Validate and save API credentials to the global config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthLogin(apiKey, apiURL)
		},
	}

	cmd.Flags().StringVar(&apiKey, "key", "", "API key (prompted when omitted)")
	cmd.Flags().StringVar(&apiURL, "url", defaultAPIURL, "API base URL")

	return cmd
}

func runAuthLogin(apiKey, apiURL string) error {
	if apiKey == "" {
		fmt.Print("Enter API key: ")
		reader := bufio.NewReader(os.Stdin)
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read API key: %w", err)
		}
		apiKey = strings.TrimSpace(input)
	}

	if !IsValidAPIKey(apiKey) {
		return fmt.Errorf("invalid API key format (expected 'evd_<64 hex chars>')")
	}

	api, err := NewAPIClientWithConfig(apiKey, apiURL)
	if err != nil {
		return err
	}
	// A query with an empty filter authenticates without side effects.
	if _, err := api.Post("/decisions/query", map[string]any{"limit": 1}); err != nil {
		return fmt.Errorf("credential check failed: %w", err)
	}

	if err := SaveGlobalConfig(&GlobalConfig{APIKey: apiKey, APIURL: apiURL}); err != nil {
		return err
	}

	configPath, _ := GetConfigPath()
	fmt.Printf("Credentials saved to %s\n", configPath)
	return nil
}

func AuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove saved API credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := DeleteGlobalConfig(); err != nil {
				return err
			}
			fmt.Println("Logged out")
			return nil
		},
	}
}

func AuthStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show which credentials would be used",
		RunE: func(cmd *cobra.Command, args []string) error {
			flagKey, _ := cmd.Flags().GetString("api-key")
			flagURL, _ := cmd.Flags().GetString("api-url")
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runAuthStatus(flagKey, flagURL, outputJSON)
		},
	}
	return cmd
}

func runAuthStatus(flagKey, flagURL string, outputJSON bool) error {
	source, apiKey, apiURL := GetCredentialSource(flagKey, flagURL)

	masked := ""
	if len(apiKey) > 8 {
		masked = apiKey[:8] + "..."
	}

	if outputJSON {
		data := map[string]interface{}{
			"source":  string(source),
			"api_url": apiURL,
			"api_key": masked,
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
		return nil
	}

	if source == SourceNone {
		fmt.Println("Not authenticated (run 'evidentry auth login')")
		return nil
	}
	fmt.Printf("Source: %s\n", source)
	fmt.Printf("API URL: %s\n", apiURL)
	fmt.Printf("API key: %s\n", masked)
	return nil
}
