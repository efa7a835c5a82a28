package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

type BundleAPIRequest struct {
	DecisionIDs  []string                 `json:"decision_ids,omitempty"`
	Filter       QueryDecisionsAPIRequest `json:"filter"`
	CaseID       string                   `json:"case_id,omitempty"`
	RegulatorRef string                   `json:"regulator_ref,omitempty"`
}

type PackageAPIResponse struct {
	Manifest ArtifactResultView `json:"manifest"`
	Files    []ArtifactView     `json:"files"`
}

// BundleCmd creates the bundle command.
func BundleCmd() *cobra.Command {
	var (
		decisionIDs  []string
		prefix       string
		caseID       string
		regulatorRef string
	)

	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Bundle decisions into one evidence artifact (operator only)",
		Long:  "Collects the named or filtered decisions into a single evidence bundle document and persists it as a signed write-once artifact.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			req := BundleAPIRequest{
				DecisionIDs:  decisionIDs,
				Filter:       QueryDecisionsAPIRequest{DecisionIDPrefix: prefix},
				CaseID:       caseID,
				RegulatorRef: regulatorRef,
			}
			return runBundle(cmd, req, outputJSON)
		},
	}

	cmd.Flags().StringSliceVar(&decisionIDs, "decision", nil, "Decision ID to include (repeatable)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Include decisions matching this ID prefix")
	cmd.Flags().StringVar(&caseID, "case", "", "Case identifier for the bundle")
	cmd.Flags().StringVar(&regulatorRef, "regulator-ref", "", "Regulator reference for the bundle")

	return cmd
}

func runBundle(cmd *cobra.Command, req BundleAPIRequest, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/decisions/bundle", req)
	if err != nil {
		return fmt.Errorf("bundle failed: %w", err)
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

	fmt.Println("Bundle stored.")
	printArtifact(&result.Artifact)
	return nil
}

// PackageCmd creates the package command.
func PackageCmd() *cobra.Command {
	var (
		decisionIDs  []string
		prefix       string
		caseID       string
		regulatorRef string
	)

	cmd := &cobra.Command{
		Use:   "package",
		Short: "Write per-decision reports plus a signed manifest (operator only)",
		Long:  "Stores one report artifact per decision and a manifest artifact that pins each file's content hash.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			req := BundleAPIRequest{
				DecisionIDs:  decisionIDs,
				Filter:       QueryDecisionsAPIRequest{DecisionIDPrefix: prefix},
				CaseID:       caseID,
				RegulatorRef: regulatorRef,
			}
			return runPackage(cmd, req, outputJSON)
		},
	}

	cmd.Flags().StringSliceVar(&decisionIDs, "decision", nil, "Decision ID to include (repeatable)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Include decisions matching this ID prefix")
	cmd.Flags().StringVar(&caseID, "case", "", "Case identifier for the package")
	cmd.Flags().StringVar(&regulatorRef, "regulator-ref", "", "Regulator reference for the package")

	return cmd
}

func runPackage(cmd *cobra.Command, req BundleAPIRequest, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/decisions/package", req)
	if err != nil {
		return fmt.Errorf("package failed: %w", err)
	}

	var result PackageAPIResponse
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("Package stored with %d file(s).\n\n", len(result.Files))
	fmt.Println("Manifest:")
	printArtifact(&result.Manifest.Artifact)
	if len(result.Files) > 0 {
		fmt.Printf("\nFiles:\n")
		for i, f := range result.Files {
			fmt.Printf("%d. %s\n", i+1, f.ObjectLocation)
			fmt.Printf("   Hash: %s\n", f.ReportHash)
			if i < len(result.Files)-1 {
				fmt.Println(strings.Repeat("-", 40))
			}
		}
	}
	return nil
}
