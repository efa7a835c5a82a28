package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

// HoldView mirrors the legal hold shape returned by the API.
type HoldView struct {
	HoldID       string  `json:"hold_id"`
	Tenant       string  `json:"tenant"`
	ScopeType    string  `json:"scope_type"`
	ScopeID      string  `json:"scope_id"`
	Reason       string  `json:"reason"`
	CaseID       string  `json:"case_id,omitempty"`
	RegulatorRef string  `json:"regulator_ref,omitempty"`
	CreatedBy    string  `json:"created_by,omitempty"`
	CreatedAt    string  `json:"created_at"`
	ReleasedAt   *string `json:"released_at"`
	Active       bool    `json:"active"`
}

type CreateHoldAPIRequest struct {
	HoldID       string `json:"hold_id,omitempty"`
	ScopeType    string `json:"scope_type"`
	ScopeID      string `json:"scope_id"`
	Reason       string `json:"reason"`
	CaseID       string `json:"case_id,omitempty"`
	RegulatorRef string `json:"regulator_ref,omitempty"`
}

// HoldCmd creates the hold parent command.
func HoldCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hold",
		Short: "Manage legal holds",
	}

	cmd.AddCommand(HoldCreateCmd())
	cmd.AddCommand(HoldListCmd())
	cmd.AddCommand(HoldGetCmd())
	cmd.AddCommand(HoldReleaseCmd())

	return cmd
}

func HoldCreateCmd() *cobra.Command {
	var (
		holdID       string
		scopeType    string
		scopeID      string
		reason       string
		caseID       string
		regulatorRef string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Place a legal hold (operator only)",
		Long:  "Places a legal hold on a decision, artifact, artifact type, or the whole tenant. Held artifacts survive retention enforcement until released.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			req := CreateHoldAPIRequest{
				HoldID:       holdID,
				ScopeType:    scopeType,
				ScopeID:      scopeID,
				Reason:       reason,
				CaseID:       caseID,
				RegulatorRef: regulatorRef,
			}
			return runHoldCreate(cmd, req, outputJSON)
		},
	}

	cmd.Flags().StringVar(&holdID, "id", "", "Hold ID (generated when omitted)")
	cmd.Flags().StringVar(&scopeType, "scope", "", "Scope type (tenant|artifact_type|artifact|decision)")
	cmd.Flags().StringVar(&scopeID, "scope-id", "", "Scope target (empty for tenant scope)")
	cmd.Flags().StringVar(&reason, "reason", "", "Reason for the hold (required)")
	cmd.Flags().StringVar(&caseID, "case", "", "Case identifier")
	cmd.Flags().StringVar(&regulatorRef, "regulator-ref", "", "Regulator reference")
	_ = cmd.MarkFlagRequired("scope")
	_ = cmd.MarkFlagRequired("reason")

	return cmd
}

func runHoldCreate(cmd *cobra.Command, req CreateHoldAPIRequest, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/holds", req)
	if err != nil {
		return fmt.Errorf("create failed: %w", err)
	}

	var hold HoldView
	if err := json.Unmarshal(resp.Data, &hold); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		out, _ := json.MarshalIndent(hold, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	printHold(&hold)
	return nil
}

func printHold(h *HoldView) {
	status := "active"
	if !h.Active {
		status = "released"
	}
	fmt.Printf("Hold: %s (%s)\n", h.HoldID, status)
	fmt.Printf("Scope: %s", h.ScopeType)
	if h.ScopeID != "" {
		fmt.Printf(" %s", h.ScopeID)
	}
	fmt.Println()
	fmt.Printf("Reason: %s\n", h.Reason)
	if h.CaseID != "" {
		fmt.Printf("Case: %s\n", h.CaseID)
	}
	if h.RegulatorRef != "" {
		fmt.Printf("Regulator ref: %s\n", h.RegulatorRef)
	}
	fmt.Printf("Created: %s\n", h.CreatedAt)
	if h.ReleasedAt != nil {
		fmt.Printf("Released: %s\n", *h.ReleasedAt)
	}
}

func HoldListCmd() *cobra.Command {
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List legal holds",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runHoldList(cmd, activeOnly, outputJSON)
		},
	}

	cmd.Flags().BoolVar(&activeOnly, "active", false, "Show only active holds")

	return cmd
}

func runHoldList(cmd *cobra.Command, activeOnly, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	path := "/holds"
	if activeOnly {
		path += "?active_only=true"
	}

	resp, err := api.Get(path)
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}

	var holds []HoldView
	if err := json.Unmarshal(resp.Data, &holds); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		out, _ := json.MarshalIndent(holds, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	if len(holds) == 0 {
		fmt.Println("No holds found.")
		return nil
	}

	for i, h := range holds {
		printHold(&h)
		if i < len(holds)-1 {
			fmt.Println(strings.Repeat("-", 40))
		}
	}
	return nil
}

func HoldGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <hold-id>",
		Short: "Show one legal hold",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runHoldGet(cmd, args[0], outputJSON)
		},
	}
}

func runHoldGet(cmd *cobra.Command, holdID string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/holds/" + url.PathEscape(holdID))
	if err != nil {
		return fmt.Errorf("get failed: %w", err)
	}

	var hold HoldView
	if err := json.Unmarshal(resp.Data, &hold); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		out, _ := json.MarshalIndent(hold, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	printHold(&hold)
	return nil
}

func HoldReleaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "release <hold-id>",
		Short: "Release a legal hold (operator only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runHoldRelease(cmd, args[0], outputJSON)
		},
	}
}

func runHoldRelease(cmd *cobra.Command, holdID string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/holds/"+url.PathEscape(holdID)+"/release", nil)
	if err != nil {
		return fmt.Errorf("release failed: %w", err)
	}

	var hold HoldView
	if err := json.Unmarshal(resp.Data, &hold); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		out, _ := json.MarshalIndent(hold, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	printHold(&hold)
	return nil
}
