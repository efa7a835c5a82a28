package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

type ExportAPIRequest struct {
	QueryDecisionsAPIRequest
	IncludeContext bool `json:"include_context"`
}

// ExportCmd creates the export command.
func ExportCmd() *cobra.Command {
	var (
		prefix         string
		model          string
		modelVersion   string
		band           string
		traceID        string
		limit          int
		includeContext bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export filtered decisions as a signed artifact (operator only)",
		Long:  "Renders every decision matching the filter into a single export document and persists it as a signed write-once artifact.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			req := ExportAPIRequest{
				QueryDecisionsAPIRequest: QueryDecisionsAPIRequest{
					DecisionIDPrefix: prefix,
					Model:            model,
					ModelVersion:     modelVersion,
					ConfidenceBand:   band,
					TraceID:          traceID,
					Limit:            limit,
				},
				IncludeContext: includeContext,
			}
			return runExport(cmd, req, outputJSON)
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "Filter by decision ID prefix")
	cmd.Flags().StringVarP(&model, "model", "m", "", "Filter by model")
	cmd.Flags().StringVar(&modelVersion, "model-version", "", "Filter by model version")
	cmd.Flags().StringVar(&band, "band", "", "Confidence band (low|medium|high)")
	cmd.Flags().StringVar(&traceID, "trace", "", "Filter by trace ID")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of decisions (0 = server default)")
	cmd.Flags().BoolVar(&includeContext, "include-context", false, "Embed full context documents and chunks")

	return cmd
}

func runExport(cmd *cobra.Command, req ExportAPIRequest, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/decisions/export", req)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
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

	fmt.Println("Export stored.")
	printArtifact(&result.Artifact)
	return nil
}
