package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/evidentry/evidentry/internal/config"
	"github.com/evidentry/evidentry/internal/database"
	"github.com/evidentry/evidentry/internal/repository"
	"github.com/evidentry/evidentry/internal/service"
)

func TenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
		Long:  "Create and list tenants",
	}

	cmd.AddCommand(TenantCreateCmd())
	cmd.AddCommand(TenantListCmd())

	return cmd
}

func TenantCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new tenant",
		Long:  "Create a new tenant with the specified name",
		Args:  cobra.ExactArgs(1),
		RunE:  runTenantCreate,
	}

	cmd.Flags().String("id", "", "Tenant ID (generated when omitted)")
	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runTenantCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	name := args[0]
	id, _ := cmd.Flags().GetString("id")
	outputFormat, _ := cmd.Flags().GetString("output")

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	tenantRepo := repository.NewTenantRepository(pool)
	uuidGen := &service.DefaultUUIDGenerator{}
	authSvc := service.NewAuthService(tenantRepo, nil, uuidGen)

	tenant, err := authSvc.CreateTenant(ctx, id, name)
	if err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}

	if outputFormat == "json" {
		data := map[string]interface{}{
			"id":         tenant.ID,
			"name":       tenant.Name,
			"created_at": tenant.CreatedAt,
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		fmt.Printf("Tenant created: %s (%s)\n", tenant.Name, tenant.ID)
	}

	return nil
}

func TenantListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all tenants",
		Long:  "List all tenants in the system",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runTenantList(outputFormat)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runTenantList(outputFormat string) error {
	ctx := context.Background()

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	tenantRepo := repository.NewTenantRepository(pool)
	tenants, err := tenantRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tenants: %w", err)
	}

	if outputFormat == "json" {
		data := make([]map[string]interface{}, len(tenants))
		for i, tenant := range tenants {
			data[i] = map[string]interface{}{
				"id":         tenant.ID,
				"name":       tenant.Name,
				"created_at": tenant.CreatedAt,
			}
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		if len(tenants) == 0 {
			fmt.Println("No tenants found")
			return nil
		}
		fmt.Println("Tenants:")
		for _, tenant := range tenants {
			fmt.Printf("  %s: %s (created: %s)\n", tenant.ID, tenant.Name, tenant.CreatedAt.Format("2006-01-02 15:04:05"))
		}
	}

	return nil
}

func getDBPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return database.NewPool(ctx, cfg.DatabaseURL)
}
