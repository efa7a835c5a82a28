package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

type EnforceAPIRequest struct {
	ArtifactType string `json:"artifact_type,omitempty"`
	DryRun       bool   `json:"dry_run"`
	Limit        int    `json:"limit,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

type EnforcementItemView struct {
	Tenant         string   `json:"tenant"`
	ArtifactID     string   `json:"artifact_id"`
	ArtifactType   string   `json:"artifact_type"`
	ObjectLocation string   `json:"object_location"`
	Outcome        string   `json:"outcome"`
	ExpiresAt      *string  `json:"expires_at,omitempty"`
	HoldIDs        []string `json:"hold_ids,omitempty"`
	Error          string   `json:"error,omitempty"`
}

type EnforcementReportView struct {
	JobID                string                `json:"job_id"`
	DryRun               bool                  `json:"dry_run"`
	Tenant               string                `json:"tenant,omitempty"`
	ArtifactType         string                `json:"artifact_type,omitempty"`
	Reason               string                `json:"reason,omitempty"`
	StartedAt            string                `json:"started_at"`
	FinishedAt           string                `json:"finished_at"`
	Scanned              int                   `json:"scanned"`
	Eligible             int                   `json:"eligible"`
	Deleted              int                   `json:"deleted"`
	SkippedNotExpired    int                   `json:"skipped_not_expired"`
	SkippedOnHold        int                   `json:"skipped_on_hold"`
	SkippedPolicyMissing int                   `json:"skipped_policy_missing"`
	Failed               int                   `json:"failed"`
	Items                []EnforcementItemView `json:"items"`
	ItemsTruncated       bool                  `json:"items_truncated"`
}

// EnforceCmd creates the enforce command.
func EnforceCmd() *cobra.Command {
	var (
		artifactType string
		dryRun       bool
		limit        int
		reason       string
	)

	cmd := &cobra.Command{
		Use:   "enforce",
		Short: "Run retention enforcement for the tenant (operator only)",
		Long:  "Deletes expired, unheld artifacts per the tenant's retention policies. Use --dry-run to preview what would be deleted without touching anything.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			req := EnforceAPIRequest{
				ArtifactType: artifactType,
				DryRun:       dryRun,
				Limit:        limit,
				Reason:       reason,
			}
			return runEnforce(cmd, req, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&artifactType, "type", "t", "", "Restrict to one artifact type")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report eligibility without deleting")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum artifacts to scan (0 = no limit)")
	cmd.Flags().StringVar(&reason, "reason", "", "Reason recorded on the enforcement job")

	return cmd
}

func runEnforce(cmd *cobra.Command, req EnforceAPIRequest, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/retention/enforce", req)
	if err != nil {
		return fmt.Errorf("enforce failed: %w", err)
	}

	var report EnforcementReportView
	if err := json.Unmarshal(resp.Data, &report); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		out, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	mode := "Enforcement"
	if report.DryRun {
		mode = "Dry run"
	}
	fmt.Printf("%s complete (job %s)\n", mode, report.JobID)
	fmt.Printf("Scanned: %d  Eligible: %d  Deleted: %d  Failed: %d\n",
		report.Scanned, report.Eligible, report.Deleted, report.Failed)
	fmt.Printf("Skipped: %d not expired, %d on hold, %d missing policy\n",
		report.SkippedNotExpired, report.SkippedOnHold, report.SkippedPolicyMissing)

	if len(report.Items) > 0 {
		fmt.Println()
		for i, item := range report.Items {
			fmt.Printf("%d. %s [%s] %s\n", i+1, item.ArtifactID, item.ArtifactType, item.Outcome)
			fmt.Printf("   Location: %s\n", item.ObjectLocation)
			if len(item.HoldIDs) > 0 {
				fmt.Printf("   Holds: %s\n", strings.Join(item.HoldIDs, ", "))
			}
			if item.Error != "" {
				fmt.Printf("   Error: %s\n", item.Error)
			}
			if i < len(report.Items)-1 {
				fmt.Println(strings.Repeat("-", 40))
			}
		}
		if report.ItemsTruncated {
			fmt.Println("\n(item list truncated)")
		}
	}
	return nil
}
