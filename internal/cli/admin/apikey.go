package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evidentry/evidentry/internal/domain"
	"github.com/evidentry/evidentry/internal/repository"
	"github.com/evidentry/evidentry/internal/service"
)

func resolveTenantID(ctx context.Context, tenantRepo *repository.TenantRepository, tenantRef string) (string, error) {
	tenant, err := tenantRepo.GetByID(ctx, tenantRef)
	if err == nil {
		return tenant.ID, nil
	}
	if !errors.Is(err, domain.ErrTenantNotFound) {
		return "", err
	}

	// Fall back to a name match.
	tenants, err := tenantRepo.List(ctx)
	if err != nil {
		return "", err
	}
	for _, t := range tenants {
		if t.Name == tenantRef {
			return t.ID, nil
		}
	}
	return "", fmt.Errorf("tenant not found: %s", tenantRef)
}

func APIKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys",
		Long:  "Create, list, and revoke API keys",
	}

	cmd.AddCommand(APIKeyCreateCmd())
	cmd.AddCommand(APIKeyListCmd())
	cmd.AddCommand(APIKeyRevokeCmd())

	return cmd
}

func APIKeyCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API key",
		Long:  "Create a new API key for a tenant",
		RunE:  runAPIKeyCreate,
	}

	cmd.Flags().StringP("tenant", "t", "", "Tenant ID or name (required)")
	cmd.Flags().StringP("name", "n", "", "API key name (required)")
	cmd.Flags().StringP("subject", "s", "", "Subject recorded on rows created with this key (defaults to name)")
	cmd.Flags().StringP("output", "", "text", "Output format (text or json)")
	cmd.MarkFlagRequired("tenant")
	cmd.MarkFlagRequired("name")

	return cmd
}

func runAPIKeyCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	tenantRef, _ := cmd.Flags().GetString("tenant")
	name, _ := cmd.Flags().GetString("name")
	subject, _ := cmd.Flags().GetString("subject")
	outputFormat, _ := cmd.Flags().GetString("output")

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	tenantRepo := repository.NewTenantRepository(pool)
	apiKeyRepo := repository.NewAPIKeyRepository(pool)
	uuidGen := &service.DefaultUUIDGenerator{}
	authSvc := service.NewAuthService(tenantRepo, apiKeyRepo, uuidGen)

	tenantID, err := resolveTenantID(ctx, tenantRepo, tenantRef)
	if err != nil {
		return err
	}

	token, key, err := authSvc.CreateAPIKey(ctx, tenantID, name, subject)
	if err != nil {
		return fmt.Errorf("failed to create API key: %w", err)
	}

	if outputFormat == "json" {
		data := map[string]interface{}{
			"id":      key.ID,
			"name":    key.Name,
			"subject": key.Subject,
			"tenant":  key.TenantID,
			"token":   token,
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		fmt.Printf("API key created for tenant %s\n", key.TenantID)
		fmt.Printf("Key ID: %s\n", key.ID)
		fmt.Printf("Key Name: %s\n", key.Name)
		fmt.Printf("Subject: %s\n", key.Subject)
		fmt.Printf("Token: %s\n", token)
		fmt.Println("\n⚠️  Save this token now. You won't be able to see it again!")
	}

	return nil
}

func APIKeyListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys for a tenant",
		Long:  "List all API keys for a specific tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantRef, _ := cmd.Flags().GetString("tenant")
			outputFormat, _ := cmd.Flags().GetString("output")
			return runAPIKeyList(tenantRef, outputFormat)
		},
	}

	cmd.Flags().StringP("tenant", "t", "", "Tenant ID or name (required)")
	cmd.Flags().StringP("output", "", "text", "Output format (text or json)")
	cmd.MarkFlagRequired("tenant")

	return cmd
}

func runAPIKeyList(tenantRef, outputFormat string) error {
	ctx := context.Background()

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	tenantRepo := repository.NewTenantRepository(pool)
	apiKeyRepo := repository.NewAPIKeyRepository(pool)

	tenantID, err := resolveTenantID(ctx, tenantRepo, tenantRef)
	if err != nil {
		return err
	}

	keys, err := apiKeyRepo.ListByTenant(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to list API keys: %w", err)
	}

	if outputFormat == "json" {
		data := make([]map[string]interface{}, len(keys))
		for i, key := range keys {
			data[i] = map[string]interface{}{
				"id":         key.ID,
				"name":       key.Name,
				"subject":    key.Subject,
				"tenant":     key.TenantID,
				"created_at": key.CreatedAt,
				"revoked_at": key.RevokedAt,
				"revoked":    key.Revoked(),
			}
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		if len(keys) == 0 {
			fmt.Printf("No API keys found for tenant %s\n", tenantID)
			return nil
		}
		fmt.Printf("API keys for tenant %s:\n", tenantID)
		for _, key := range keys {
			status := "active"
			if key.Revoked() {
				status = "revoked"
			}
			fmt.Printf("  %s: %s (%s, created: %s)\n", key.ID, key.Name, status, key.CreatedAt.Format("2006-01-02 15:04:05"))
		}
	}

	return nil
}

func APIKeyRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key",
		Long:  "Revoke an API key by its ID",
		Args:  cobra.ExactArgs(1),
		RunE:  runAPIKeyRevoke,
	}

	cmd.Flags().StringP("output", "", "text", "Output format (text or json)")

	return cmd
}

func runAPIKeyRevoke(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	keyID := args[0]
	outputFormat, _ := cmd.Flags().GetString("output")

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	tenantRepo := repository.NewTenantRepository(pool)
	apiKeyRepo := repository.NewAPIKeyRepository(pool)
	uuidGen := &service.DefaultUUIDGenerator{}
	authSvc := service.NewAuthService(tenantRepo, apiKeyRepo, uuidGen)

	if err := authSvc.RevokeAPIKey(ctx, keyID); err != nil {
		return fmt.Errorf("failed to revoke API key: %w", err)
	}

	if outputFormat == "json" {
		data := map[string]interface{}{
			"id":      keyID,
			"revoked": true,
			"message": "API key revoked successfully",
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		fmt.Printf("API key %s revoked successfully\n", keyID)
	}

	return nil
}
