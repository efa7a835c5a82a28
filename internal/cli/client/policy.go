package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

// PolicyView mirrors the retention policy shape returned by the API.
type PolicyView struct {
	Tenant            string `json:"tenant"`
	ArtifactType      string `json:"artifact_type"`
	RetainDays        int    `json:"retain_days"`
	LegalHoldEnabled  bool   `json:"legal_hold_enabled"`
	ImmutableRequired bool   `json:"immutable_required"`
	CreatedBy         string `json:"created_by,omitempty"`
	CreatedAt         string `json:"created_at,omitempty"`
	UpdatedAt         string `json:"updated_at,omitempty"`
}

type UpsertPolicyAPIRequest struct {
	ArtifactType      string `json:"artifact_type"`
	RetainDays        int    `json:"retain_days"`
	LegalHoldEnabled  *bool  `json:"legal_hold_enabled,omitempty"`
	ImmutableRequired *bool  `json:"immutable_required,omitempty"`
}

// PolicyCmd creates the policy parent command.
func PolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Manage tenant retention policies",
	}

	cmd.AddCommand(PolicySetCmd())
	cmd.AddCommand(PolicyListCmd())
	cmd.AddCommand(PolicyGetCmd())
	cmd.AddCommand(PolicyDeleteCmd())
	cmd.AddCommand(PolicySnapshotCmd())

	return cmd
}

func PolicySetCmd() *cobra.Command {
	var (
		retainDays        int
		legalHoldEnabled  bool
		immutableRequired bool
	)

	cmd := &cobra.Command{
		Use:   "set <artifact-type>",
		Short: "Create or replace a retention policy (operator only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			req := UpsertPolicyAPIRequest{
				ArtifactType: args[0],
				RetainDays:   retainDays,
			}
			if cmd.Flags().Changed("legal-hold") {
				req.LegalHoldEnabled = &legalHoldEnabled
			}
			if cmd.Flags().Changed("immutable") {
				req.ImmutableRequired = &immutableRequired
			}
			return runPolicySet(cmd, req, outputJSON)
		},
	}

	cmd.Flags().IntVar(&retainDays, "retain-days", 0, "Retention window in days (required, > 0)")
	cmd.Flags().BoolVar(&legalHoldEnabled, "legal-hold", true, "Whether legal holds block deletion")
	cmd.Flags().BoolVar(&immutableRequired, "immutable", true, "Require write-once object storage")
	_ = cmd.MarkFlagRequired("retain-days")

	return cmd
}

func runPolicySet(cmd *cobra.Command, req UpsertPolicyAPIRequest, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Put("/policies", req)
	if err != nil {
		return fmt.Errorf("set failed: %w", err)
	}

	var policy PolicyView
	if err := json.Unmarshal(resp.Data, &policy); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		out, _ := json.MarshalIndent(policy, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	printPolicy(&policy)
	return nil
}

func printPolicy(p *PolicyView) {
	fmt.Printf("Policy: %s\n", p.ArtifactType)
	fmt.Printf("Retain days: %d\n", p.RetainDays)
	fmt.Printf("Legal hold enabled: %v\n", p.LegalHoldEnabled)
	fmt.Printf("Immutable required: %v\n", p.ImmutableRequired)
	if p.UpdatedAt != "" {
		fmt.Printf("Updated: %s\n", p.UpdatedAt)
	}
}

func PolicyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the tenant's retention policies",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runPolicyList(cmd, outputJSON)
		},
	}
}

func runPolicyList(cmd *cobra.Command, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/policies")
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}

	var policies []PolicyView
	if err := json.Unmarshal(resp.Data, &policies); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		out, _ := json.MarshalIndent(policies, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	if len(policies) == 0 {
		fmt.Println("No policies configured.")
		return nil
	}

	for i, p := range policies {
		printPolicy(&p)
		if i < len(policies)-1 {
			fmt.Println(strings.Repeat("-", 40))
		}
	}
	return nil
}

func PolicyGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <artifact-type>",
		Short: "Show one retention policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runPolicyGet(cmd, args[0], outputJSON)
		},
	}
}

func runPolicyGet(cmd *cobra.Command, artifactType string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/policies/" + url.PathEscape(artifactType))
	if err != nil {
		return fmt.Errorf("get failed: %w", err)
	}

	var policy PolicyView
	if err := json.Unmarshal(resp.Data, &policy); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		out, _ := json.MarshalIndent(policy, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	printPolicy(&policy)
	return nil
}

func PolicyDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <artifact-type>",
		Short: "Delete a retention policy (operator only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPolicyDelete(cmd, args[0])
		},
	}
}

func runPolicyDelete(cmd *cobra.Command, artifactType string) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	if _, err := api.Delete("/policies/" + url.PathEscape(artifactType)); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}

	fmt.Printf("Deleted policy %s\n", artifactType)
	return nil
}

func PolicySnapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Persist the tenant's policy set as an artifact (operator only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runPolicySnapshot(cmd, outputJSON)
		},
	}
}

func runPolicySnapshot(cmd *cobra.Command, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/policies/snapshot", nil)
	if err != nil {
		return fmt.Errorf("snapshot failed: %w", err)
	}

	var result ArtifactResultView
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	fmt.Println("Policy snapshot stored.")
	printArtifact(&result.Artifact)
	return nil
}
