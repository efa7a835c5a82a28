package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// ArtifactView mirrors the artifact index entry returned by the API.
type ArtifactView struct {
	ArtifactID         string         `json:"artifact_id"`
	Tenant             string         `json:"tenant"`
	ArtifactType       string         `json:"artifact_type"`
	ObjectLocation     string         `json:"object_location"`
	ObjectGeneration   *string        `json:"object_generation"`
	ReportHash         string         `json:"report_hash_sha256"`
	SignatureAlgorithm string         `json:"signature_alg"`
	SignatureKeyID     *string        `json:"signature_key_id"`
	ImmutableWrite     bool           `json:"immutable_write"`
	CreatedBy          string         `json:"created_by,omitempty"`
	TraceID            string         `json:"trace_id,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	CreatedAt          string         `json:"created_at"`
	DeletedAt          *string        `json:"deleted_at,omitempty"`
	DeletedBy          string         `json:"deleted_by,omitempty"`
	DeletionReason     string         `json:"deletion_reason,omitempty"`
}

// ArtifactResultView pairs an artifact index entry with the stored document.
type ArtifactResultView struct {
	Artifact ArtifactView   `json:"artifact"`
	Document map[string]any `json:"document"`
}

type ArtifactPageResponse struct {
	Items    []ArtifactView `json:"items"`
	Total    int            `json:"total"`
	Returned int            `json:"returned"`
	Offset   int            `json:"offset"`
	Limit    int            `json:"limit"`
}

func printArtifact(a *ArtifactView) {
	fmt.Printf("Artifact: %s [%s]\n", a.ArtifactID, a.ArtifactType)
	fmt.Printf("Location: %s\n", a.ObjectLocation)
	fmt.Printf("Hash: %s\n", a.ReportHash)
	if a.SignatureAlgorithm != "" && a.SignatureKeyID != nil {
		fmt.Printf("Signed: %s (key %s)\n", a.SignatureAlgorithm, *a.SignatureKeyID)
	} else {
		fmt.Println("Signed: no (hash only)")
	}
	fmt.Printf("Immutable write: %v\n", a.ImmutableWrite)
	if a.CreatedBy != "" {
		fmt.Printf("Created by: %s\n", a.CreatedBy)
	}
	fmt.Printf("Created: %s\n", a.CreatedAt)
	if a.DeletedAt != nil {
		fmt.Printf("Deleted: %s (%s)\n", *a.DeletedAt, a.DeletionReason)
	}
}

// ArtifactCmd creates the artifact parent command.
func ArtifactCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifact",
		Short: "Inspect stored audit artifacts",
	}

	cmd.AddCommand(ArtifactListCmd())
	cmd.AddCommand(ArtifactGetCmd())
	cmd.AddCommand(ArtifactDownloadCmd())

	return cmd
}

func ArtifactListCmd() *cobra.Command {
	var (
		artifactType   string
		includeDeleted bool
		offset         int
		limit          int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List artifact index entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runArtifactList(cmd, artifactType, includeDeleted, offset, limit, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&artifactType, "type", "t", "", "Filter by artifact type")
	cmd.Flags().BoolVar(&includeDeleted, "include-deleted", false, "Include tombstoned artifacts")
	cmd.Flags().IntVar(&offset, "offset", 0, "Pagination offset")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of results")

	return cmd
}

func runArtifactList(cmd *cobra.Command, artifactType string, includeDeleted bool, offset, limit int, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	params := url.Values{}
	if artifactType != "" {
		params.Set("artifact_type", artifactType)
	}
	if includeDeleted {
		params.Set("include_deleted", "true")
	}
	params.Set("offset", strconv.Itoa(offset))
	params.Set("limit", strconv.Itoa(limit))

	resp, err := api.Get("/artifacts?" + params.Encode())
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}

	var page ArtifactPageResponse
	if err := json.Unmarshal(resp.Data, &page); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		out, _ := json.MarshalIndent(page, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	if len(page.Items) == 0 {
		fmt.Println("No artifacts found.")
		return nil
	}

	fmt.Printf("Showing %d of %d artifacts:\n\n", page.Returned, page.Total)
	for i, a := range page.Items {
		status := ""
		if a.DeletedAt != nil {
			status = " (deleted)"
		}
		fmt.Printf("%d. %s [%s]%s\n", i+1, a.ArtifactID, a.ArtifactType, status)
		fmt.Printf("   Location: %s\n", a.ObjectLocation)
		fmt.Printf("   Hash: %s\n", a.ReportHash)
		fmt.Printf("   Created: %s\n", a.CreatedAt)
		if i < len(page.Items)-1 {
			fmt.Println(strings.Repeat("-", 40))
		}
	}
	if page.Offset+page.Returned < page.Total {
		fmt.Printf("\nMore results available. Use --offset %d\n", page.Offset+page.Returned)
	}

	return nil
}

func ArtifactGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <artifact-id>",
		Short: "Fetch a single artifact index entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runArtifactGet(cmd, args[0], outputJSON)
		},
	}
}

func runArtifactGet(cmd *cobra.Command, artifactID string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/artifacts/" + url.PathEscape(artifactID))
	if err != nil {
		return fmt.Errorf("get failed: %w", err)
	}

	var a ArtifactView
	if err := json.Unmarshal(resp.Data, &a); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		out, _ := json.MarshalIndent(a, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	printArtifact(&a)
	return nil
}

// DownloadLinkView mirrors the presigned download response.
type DownloadLinkView struct {
	ArtifactID     string `json:"artifact_id"`
	ObjectLocation string `json:"object_location"`
	DownloadURL    string `json:"download_url"`
}

func ArtifactDownloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "download <artifact-id>",
		Short: "Get a short-lived download URL for an artifact's stored bytes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runArtifactDownload(cmd, args[0], outputJSON)
		},
	}
}

func runArtifactDownload(cmd *cobra.Command, artifactID string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/artifacts/" + url.PathEscape(artifactID) + "/download")
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	var link DownloadLinkView
	if err := json.Unmarshal(resp.Data, &link); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		out, _ := json.MarshalIndent(link, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("Artifact: %s\n", link.ArtifactID)
	fmt.Printf("Location: %s\n", link.ObjectLocation)
	fmt.Printf("URL: %s\n", link.DownloadURL)
	return nil
}
