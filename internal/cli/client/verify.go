package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

type VerifyAPIRequest struct {
	ObjectLocation string `json:"object_location"`
}

type VerificationResultView struct {
	ObjectLocation  string `json:"object_location"`
	ArtifactType    string `json:"artifact_type,omitempty"`
	ObjectPresent   bool   `json:"object_present"`
	HashValid       bool   `json:"hash_valid"`
	SignatureStatus string `json:"signature_status"`
	ComputedHash    string `json:"computed_hash,omitempty"`
	StoredHash      string `json:"stored_hash,omitempty"`
	IndexHashMatch  bool   `json:"index_hash_match"`
	Indexed         bool   `json:"indexed"`
	Deleted         bool   `json:"deleted"`
}

// VerifyCmd creates the verify command.
func VerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <object-location>",
		Short: "Re-verify a stored artifact's hash and signature",
		Long:  "Downloads the stored artifact, recomputes its content hash, and checks the embedded signature against the configured key ring.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runVerify(cmd, args[0], outputJSON)
		},
	}
	return cmd
}

func runVerify(cmd *cobra.Command, objectLocation string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/artifacts/verify", VerifyAPIRequest{ObjectLocation: objectLocation})
	if err != nil {
		return fmt.Errorf("verify failed: %w", err)
	}

	var result VerificationResultView
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("Object: %s\n", result.ObjectLocation)
	if !result.ObjectPresent {
		fmt.Println("Object present: no")
		if result.Deleted {
			fmt.Println("Status: deleted by retention enforcement")
		}
		return nil
	}

	fmt.Printf("Hash valid: %v\n", result.HashValid)
	if !result.HashValid {
		fmt.Printf("  Stored:   %s\n", result.StoredHash)
		fmt.Printf("  Computed: %s\n", result.ComputedHash)
	}
	fmt.Printf("Signature: %s\n", result.SignatureStatus)
	fmt.Printf("Indexed: %v\n", result.Indexed)
	if result.Indexed {
		fmt.Printf("Index hash match: %v\n", result.IndexHashMatch)
	}
	return nil
}
