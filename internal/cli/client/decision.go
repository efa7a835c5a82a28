package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

// DecisionView mirrors the canonical decision shape returned by the API.
type DecisionView struct {
	DecisionID    string         `json:"decision_id"`
	Tenant        string         `json:"tenant"`
	Model         string         `json:"model"`
	ModelVersion  string         `json:"model_version,omitempty"`
	Input         string         `json:"input"`
	Output        string         `json:"output"`
	Confidence    *float64       `json:"confidence"`
	TraceID       string         `json:"trace_id"`
	Metadata      map[string]any `json:"metadata"`
	ContextDocs   []string       `json:"context_docs"`
	ContextChunks []string       `json:"context_chunks"`
	CreatedAt     string         `json:"created_at"`
	UpdatedAt     string         `json:"updated_at"`
}

type UpsertDecisionAPIRequest struct {
	DecisionID    string   `json:"decision_id"`
	Model         string   `json:"model"`
	ModelVersion  string   `json:"model_version,omitempty"`
	Input         string   `json:"input"`
	Output        string   `json:"output"`
	Confidence    *float64 `json:"confidence,omitempty"`
	TraceID       string   `json:"trace_id,omitempty"`
	ContextDocs   []string `json:"context_docs,omitempty"`
	ContextChunks []string `json:"context_chunks,omitempty"`
}

type UpsertDecisionAPIResponse struct {
	Decision DecisionView `json:"decision"`
	Created  bool         `json:"created"`
}

type QueryDecisionsAPIRequest struct {
	DecisionIDPrefix string   `json:"decision_id_prefix,omitempty"`
	Model            string   `json:"model,omitempty"`
	ModelVersion     string   `json:"model_version,omitempty"`
	Query            string   `json:"query,omitempty"`
	MinConfidence    *float64 `json:"min_confidence,omitempty"`
	MaxConfidence    *float64 `json:"max_confidence,omitempty"`
	ConfidenceBand   string   `json:"confidence_band,omitempty"`
	TraceID          string   `json:"trace_id,omitempty"`
	ContextDocs      []string `json:"context_docs,omitempty"`
	Order            string   `json:"order,omitempty"`
	Offset           int      `json:"offset,omitempty"`
	Limit            int      `json:"limit,omitempty"`
}

type DecisionPageResponse struct {
	Items    []DecisionView `json:"items"`
	Total    int            `json:"total"`
	Returned int            `json:"returned"`
	Offset   int            `json:"offset"`
	Limit    int            `json:"limit"`
}

// DecisionCmd creates the decision parent command.
func DecisionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decision",
		Short: "Record and inspect ledger decisions",
	}

	cmd.AddCommand(DecisionRecordCmd())
	cmd.AddCommand(DecisionQueryCmd())
	cmd.AddCommand(DecisionGetCmd())
	cmd.AddCommand(DecisionReportCmd())

	return cmd
}

func DecisionRecordCmd() *cobra.Command {
	var (
		model         string
		modelVersion  string
		input         string
		output        string
		confidence    float64
		traceID       string
		contextDocs   []string
		contextChunks []string
	)

	cmd := &cobra.Command{
		Use:   "record <decision-id>",
		Short: "Record or update a decision (operator only)",
		Long:  "Appends a decision to the tenant ledger, or updates it when the decision ID already exists.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			req := UpsertDecisionAPIRequest{
				DecisionID:    args[0],
				Model:         model,
				ModelVersion:  modelVersion,
				Input:         input,
				Output:        output,
				TraceID:       traceID,
				ContextDocs:   contextDocs,
				ContextChunks: contextChunks,
			}
			if cmd.Flags().Changed("confidence") {
				req.Confidence = &confidence
			}
			return runDecisionRecord(cmd, req, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "Model identifier (required)")
	cmd.Flags().StringVar(&modelVersion, "model-version", "", "Model version")
	cmd.Flags().StringVar(&input, "input", "", "Decision input text")
	cmd.Flags().StringVar(&output, "decision-output", "", "Decision output text")
	cmd.Flags().Float64Var(&confidence, "confidence", 0, "Model confidence in [0,1]")
	cmd.Flags().StringVar(&traceID, "trace", "", "Upstream trace ID")
	cmd.Flags().StringSliceVar(&contextDocs, "doc", nil, "Context document ID (repeatable)")
	cmd.Flags().StringSliceVar(&contextChunks, "chunk", nil, "Context chunk ID (repeatable)")
	_ = cmd.MarkFlagRequired("model")

	return cmd
}

func runDecisionRecord(cmd *cobra.Command, req UpsertDecisionAPIRequest, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/decisions", req)
	if err != nil {
		return fmt.Errorf("record failed: %w", err)
	}

	var result UpsertDecisionAPIResponse
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	verb := "Updated"
	if result.Created {
		verb = "Recorded"
	}
	fmt.Printf("%s decision %s (model %s)\n", verb, result.Decision.DecisionID, result.Decision.Model)
	return nil
}

func DecisionQueryCmd() *cobra.Command {
	var (
		prefix         string
		model          string
		modelVersion   string
		query          string
		band           string
		minConfidence  float64
		maxConfidence  float64
		traceID        string
		contextDocs    []string
		order          string
		offset         int
		limit          int
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query the decision ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			req := QueryDecisionsAPIRequest{
				DecisionIDPrefix: prefix,
				Model:            model,
				ModelVersion:     modelVersion,
				Query:            query,
				ConfidenceBand:   band,
				TraceID:          traceID,
				ContextDocs:      contextDocs,
				Order:            order,
				Offset:           offset,
				Limit:            limit,
			}
			if cmd.Flags().Changed("min-confidence") {
				req.MinConfidence = &minConfidence
			}
			if cmd.Flags().Changed("max-confidence") {
				req.MaxConfidence = &maxConfidence
			}
			return runDecisionQuery(cmd, req, outputJSON)
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "Filter by decision ID prefix")
	cmd.Flags().StringVarP(&model, "model", "m", "", "Filter by model")
	cmd.Flags().StringVar(&modelVersion, "model-version", "", "Filter by model version")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Substring match over input and output text")
	cmd.Flags().StringVar(&band, "band", "", "Confidence band (low|medium|high)")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", 0, "Minimum confidence")
	cmd.Flags().Float64Var(&maxConfidence, "max-confidence", 0, "Maximum confidence")
	cmd.Flags().StringVar(&traceID, "trace", "", "Filter by trace ID")
	cmd.Flags().StringSliceVar(&contextDocs, "doc", nil, "Filter by context document ID (repeatable)")
	cmd.Flags().StringVar(&order, "order", "", "Sort order (created_at_desc|created_at_asc|confidence_desc|confidence_asc)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Pagination offset")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of results")

	return cmd
}

func runDecisionQuery(cmd *cobra.Command, req QueryDecisionsAPIRequest, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/decisions/query", req)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	var page DecisionPageResponse
	if err := json.Unmarshal(resp.Data, &page); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		out, _ := json.MarshalIndent(page, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	if len(page.Items) == 0 {
		fmt.Println("No decisions found.")
		return nil
	}

	fmt.Printf("Showing %d of %d decisions:\n\n", page.Returned, page.Total)
	for i, d := range page.Items {
		fmt.Printf("%d. %s [%s]\n", i+1, d.DecisionID, d.Model)
		if d.Confidence != nil {
			fmt.Printf("   Confidence: %.2f\n", *d.Confidence)
		}
		if d.TraceID != "" {
			fmt.Printf("   Trace: %s\n", d.TraceID)
		}
		if len(d.ContextDocs) > 0 {
			fmt.Printf("   Context docs: %s\n", strings.Join(d.ContextDocs, ", "))
		}
		fmt.Printf("   Created: %s\n", d.CreatedAt)
		if i < len(page.Items)-1 {
			fmt.Println(strings.Repeat("-", 40))
		}
	}
	if page.Offset+page.Returned < page.Total {
		fmt.Printf("\nMore results available. Use --offset %d\n", page.Offset+page.Returned)
	}

	return nil
}

func DecisionGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <decision-id>",
		Short: "Fetch a single decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runDecisionGet(cmd, args[0], outputJSON)
		},
	}
}

func runDecisionGet(cmd *cobra.Command, decisionID string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/decisions/" + url.PathEscape(decisionID))
	if err != nil {
		return fmt.Errorf("get failed: %w", err)
	}

	var d DecisionView
	if err := json.Unmarshal(resp.Data, &d); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		out, _ := json.MarshalIndent(d, "", "  ")
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("Decision: %s\n", d.DecisionID)
	fmt.Printf("Model: %s", d.Model)
	if d.ModelVersion != "" {
		fmt.Printf(" (%s)", d.ModelVersion)
	}
	fmt.Println()
	if d.Confidence != nil {
		fmt.Printf("Confidence: %.2f\n", *d.Confidence)
	}
	if d.TraceID != "" {
		fmt.Printf("Trace: %s\n", d.TraceID)
	}
	if len(d.ContextDocs) > 0 {
		fmt.Printf("Context docs: %s\n", strings.Join(d.ContextDocs, ", "))
	}
	if len(d.ContextChunks) > 0 {
		fmt.Printf("Context chunks: %s\n", strings.Join(d.ContextChunks, ", "))
	}
	fmt.Printf("Created: %s\n", d.CreatedAt)
	fmt.Printf("Input:\n%s\n", d.Input)
	fmt.Printf("Output:\n%s\n", d.Output)
	return nil
}

func DecisionReportCmd() *cobra.Command {
	var store bool
	var includeContext bool

	cmd := &cobra.Command{
		Use:   "report <decision-id>",
		Short: "Render the canonical report for a decision",
		Long:  "Renders the canonical decision report. With --store the server persists it as a signed write-once artifact.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runDecisionReport(cmd, args[0], store, includeContext, outputJSON)
		},
	}

	cmd.Flags().BoolVar(&store, "store", false, "Persist the report as a write-once artifact")
	cmd.Flags().BoolVar(&includeContext, "include-context", true, "Include context documents and chunks")

	return cmd
}

func runDecisionReport(cmd *cobra.Command, decisionID string, store, includeContext, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	path := "/decisions/" + url.PathEscape(decisionID) + "/report"
	params := url.Values{}
	if store {
		params.Set("store", "true")
	}
	if !includeContext {
		params.Set("include_context", "false")
	}
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	resp, err := api.Get(path)
	if err != nil {
		return fmt.Errorf("report failed: %w", err)
	}

	if store {
		var result ArtifactResultView
		if err := json.Unmarshal(resp.Data, &result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		if outputJSON {
			out, _ := json.MarshalIndent(result, "", "  ")
			fmt.Println(string(out))
			return nil
		}
		printArtifact(&result.Artifact)
		return nil
	}

	// Raw report document, pretty-printed as-is so the rendered bytes
	// stay recognizable against the stored artifact.
	var doc map[string]any
	if err := json.Unmarshal(resp.Data, &doc); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	out, _ := json.MarshalIndent(doc, "", "  ")
	fmt.Println(string(out))
	return nil
}
