package client

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cloo-solutions/kbchat/internal/extract"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// IngestDocument is one document of an ingest request.
type IngestDocument struct {
	TenantID string `json:"tenant_id"`
	Content  string `json:"content"`
	Source   string `json:"source,omitempty"`
	Section  string `json:"section,omitempty"`
	DocType  string `json:"doc_type,omitempty"`
	Version  string `json:"version,omitempty"`
}

// IngestRequest represents the ingest API request.
type IngestRequest struct {
	Docs []IngestDocument `json:"docs"`
}

// IngestResponse represents the ingest API response.
type IngestResponse struct {
	OK       bool `json:"ok"`
	Inserted int  `json:"inserted"`
}

var successStyle = color.New(color.FgGreen).SprintFunc()

// IngestCmd creates the ingest command.
func IngestCmd() *cobra.Command {
	var tmpl IngestDocument

	cmd := &cobra.Command{
		Use:   "ingest <files...>",
		Short: "Upload documents to a tenant's knowledge base",
		Long: `Extracts text from local files and sends them to the ingest API.

Supported formats: .txt .md .csv .html .pdf .docx .odt .rtf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if tmpl.TenantID == "" {
				return errors.New("--tenant is required")
			}

			req, err := buildIngestRequest(args, tmpl)
			if err != nil {
				return err
			}

			api := NewAPIClientWithCmd(cmd)
			var resp IngestResponse
			if err := api.Post(cmd.Context(), "/v1/ingest", req, &resp); err != nil {
				var apiErr *APIError
				if errors.As(err, &apiErr) && apiErr.Inserted != nil {
					return fmt.Errorf("%w (%d chunks were stored before the failure)", err, *apiErr.Inserted)
				}
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), successStyle(fmt.Sprintf("Ingested %d documents (%d chunks)", len(req.Docs), resp.Inserted)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&tmpl.TenantID, "tenant", "t", "", "Tenant the documents belong to (required)")
	cmd.Flags().StringVar(&tmpl.Section, "section", "", "Section label")
	cmd.Flags().StringVar(&tmpl.DocType, "doc-type", "", "Document type label")
	cmd.Flags().StringVar(&tmpl.Version, "version", "", "Version label")

	return cmd
}

// buildIngestRequest extracts every file into a document based on tmpl.
// The file name becomes the document source.
func buildIngestRequest(paths []string, tmpl IngestDocument) (IngestRequest, error) {
	req := IngestRequest{Docs: make([]IngestDocument, 0, len(paths))}
	for _, path := range paths {
		text, err := extract.File(path)
		if err != nil {
			return IngestRequest{}, err
		}
		if text == "" {
			continue
		}
		doc := tmpl
		doc.Content = text
		doc.Source = filepath.Base(path)
		req.Docs = append(req.Docs, doc)
	}
	if len(req.Docs) == 0 {
		return IngestRequest{}, errors.New("no text found in the given files")
	}
	return req, nil
}
