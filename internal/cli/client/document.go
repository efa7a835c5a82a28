package client

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// DocumentView mirrors the catalog document shape returned by the API.
type DocumentView struct {
	DocID       string `json:"doc_id"`
	Tenant      string `json:"tenant"`
	SourceURI   string `json:"source_uri"`
	MimeType    string `json:"mime_type,omitempty"`
	SizeBytes   int64  `json:"size_bytes,omitempty"`
	ContentHash string `json:"content_hash,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

type RegisterDocumentAPIRequest struct {
	DocID       string `json:"doc_id"`
	SourceURI   string `json:"source_uri"`
	MimeType    string `json:"mime_type,omitempty"`
	SizeBytes   int64  `json:"size_bytes,omitempty"`
	ContentHash string `json:"content_hash,omitempty"`
	Text        string `json:"text,omitempty"`
}

type RegisterDocumentAPIResponse struct {
	Document   DocumentView `json:"document"`
	ChunkCount int          `json:"chunk_count"`
}

type DocumentPageResponse struct {
	Items    []DocumentView `json:"items"`
	Total    int            `json:"total"`
	Returned int            `json:"returned"`
	Offset   int            `json:"offset"`
	Limit    int            `json:"limit"`
}

// DocumentCmd creates the document parent command.
func DocumentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "document",
		Short: "Manage catalog documents referenced by decisions",
	}

	cmd.AddCommand(DocumentRegisterCmd())
	cmd.AddCommand(DocumentListCmd())
	cmd.AddCommand(DocumentGetCmd())

	return cmd
}

func DocumentRegisterCmd() *cobra.Command {
	var (
		docID     string
		sourceURI string
		mimeType  string
	)

	cmd := &cobra.Command{
		Use:   "register <file>",
		Short: "Register a document from a local file (operator only)",
		Long:  "Reads the file, hashes its contents, and registers it in the tenant's catalog. The server chunks the text for context linkage.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runDocumentRegister(cmd, args[0], docID, sourceURI, mimeType, outputJSON)
		},
	}

	cmd.Flags().StringVar(&docID, "id", "", "Document ID (defaults to the file name)")
	cmd.Flags().StringVar(&sourceURI, "uri", "", "Source URI (defaults to file://<path>)")
	cmd.Flags().StringVar(&mimeType, "mime", "text/plain", "MIME type")

	return cmd
}

func runDocumentRegister(cmd *cobra.Command, path, docID, sourceURI, mimeType string, outputJSON bool) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	if docID == "" {
		docID = filepath.Base(path)
	}
	if sourceURI == "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		sourceURI = "file://" + abs
	}
	sum := sha256.Sum256(content)

	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/documents", RegisterDocumentAPIRequest{
		DocID:       docID,
		SourceURI:   sourceURI,
		MimeType:    mimeType,
		SizeBytes:   int64(len(content)),
		ContentHash: hex.EncodeToString(sum[:]),
		Text:        string(content),
	})
	if err != nil {
		return fmt.Errorf("register failed: %w", err)
	}

	var result RegisterDocumentAPIResponse
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("Registered %s (%d chunks)\n", result.Document.DocID, result.ChunkCount)
	return nil
}

func DocumentListCmd() *cobra.Command {
	var offset, limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runDocumentList(cmd, offset, limit, outputJSON)
		},
	}

	cmd.Flags().IntVar(&offset, "offset", 0, "Pagination offset")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of results")

	return cmd
}

func runDocumentList(cmd *cobra.Command, offset, limit int, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	params := url.Values{}
	params.Set("offset", strconv.Itoa(offset))
	params.Set("limit", strconv.Itoa(limit))

	resp, err := api.Get("/documents?" + params.Encode())
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}

	var page DocumentPageResponse
	if err := json.Unmarshal(resp.Data, &page); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		out, _ := json.MarshalIndent(page, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	if len(page.Items) == 0 {
		fmt.Println("No documents found.")
		return nil
	}

	fmt.Printf("Showing %d of %d documents:\n\n", page.Returned, page.Total)
	for i, d := range page.Items {
		fmt.Printf("%d. %s\n", i+1, d.DocID)
		fmt.Printf("   Source: %s\n", d.SourceURI)
		if d.SizeBytes > 0 {
			fmt.Printf("   Size: %d bytes\n", d.SizeBytes)
		}
		if i < len(page.Items)-1 {
			fmt.Println(strings.Repeat("-", 40))
		}
	}
	if page.Offset+page.Returned < page.Total {
		fmt.Printf("\nMore results available. Use --offset %d\n", page.Offset+page.Returned)
	}
	return nil
}

func DocumentGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <doc-id>",
		Short: "Show one catalog document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runDocumentGet(cmd, args[0], outputJSON)
		},
	}
}

func runDocumentGet(cmd *cobra.Command, docID string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/documents/" + url.PathEscape(docID))
	if err != nil {
		return fmt.Errorf("get failed: %w", err)
	}

	var d DocumentView
	if err := json.Unmarshal(resp.Data, &d); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		out, _ := json.MarshalIndent(d, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("Document: %s\n", d.DocID)
	fmt.Printf("Source: %s\n", d.SourceURI)
	if d.MimeType != "" {
		fmt.Printf("MIME: %s\n", d.MimeType)
	}
	if d.SizeBytes > 0 {
		fmt.Printf("Size: %d bytes\n", d.SizeBytes)
	}
	if d.ContentHash != "" {
		fmt.Printf("Hash: %s\n", d.ContentHash)
	}
	if d.CreatedAt != "" {
		fmt.Printf("Created: %s\n", d.CreatedAt)
	}
	return nil
}
